package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/tradescope/internal/apikeys"
)

type KeysHandler struct {
	keys   apikeys.Registry
	logger *zap.Logger
}

func (h *KeysHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.DELETE("/:key", h.revoke)
}

// Issue an API key
//
//	@Summary	Issue a new API key for a user
//	@Tags		api-keys
//	@Accept		json
//	@Produce	json
//	@Param		user_id	query		string			false	"User identifier"
//	@Param		payload	body		CreateKeyRequest	false	"User identifier"
//	@Success	201		{object}	CreateKeyResponse
//	@Failure	400		{object}	HTTPError
//	@Failure	403		{object}	HTTPError
//	@Router		/v1/api-keys [post]
func (h *KeysHandler) create(c echo.Context) error {
	user := strings.TrimSpace(c.QueryParam("user_id"))
	if user == "" && c.Request().ContentLength != 0 {
		var req CreateKeyRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		user = strings.TrimSpace(req.UserID)
	}
	if user == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	key, err := h.keys.Issue(c.Request().Context(), user)
	if errors.Is(err, apikeys.ErrInvalidUser) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue api key").SetInternal(err)
	}
	h.logger.Info("api key issued", zap.String("user", user))
	return c.JSON(http.StatusCreated, CreateKeyResponse{
		UserID:  user,
		APIKey:  key,
		Message: "Store this key securely. It cannot be retrieved later.",
		Usage:   "Include in X-API-Key header for authenticated requests",
	})
}

// Revoke an API key
//
//	@Summary	Revoke an API key
//	@Tags		api-keys
//	@Param		key	path	string	true	"API key"
//	@Success	204
//	@Failure	404	{object}	HTTPError	"unknown or built-in demo key"
//	@Router		/v1/api-keys/{key} [delete]
func (h *KeysHandler) revoke(c echo.Context) error {
	ok, err := h.keys.Revoke(c.Request().Context(), c.Param("key"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not revoke api key").SetInternal(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "api key not found")
	}
	return c.NoContent(http.StatusNoContent)
}
