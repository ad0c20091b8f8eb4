package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/tradescope/internal/apikeys"
)

const (
	headerAPIKey     = "X-API-Key"
	headerAdminToken = "X-Admin-Token"
	ctxUserKey       = "user_id"
)

// apiKeyAuth resolves X-API-Key (or a Bearer token) to a user. Requests
// without a key run as the guest user; an unknown key is rejected before
// any rate limiting happens.
func apiKeyAuth(keys apikeys.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := presentedKey(c.Request())
			if key == "" {
				c.Set(ctxUserKey, apikeys.GuestUser)
				return next(c)
			}
			user, err := keys.Lookup(c.Request().Context(), key)
			if errors.Is(err, apikeys.ErrNotFound) {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "ApiKey")
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired API key")
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "API key lookup unavailable").SetInternal(err)
			}
			c.Set(ctxUserKey, user)
			return next(c)
		}
	}
}

func presentedKey(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get(headerAPIKey)); k != "" {
		return k
	}
	auth := r.Header.Get(echo.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// adminOnly guards key management when an admin token is configured.
func adminOnly(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if token == "" {
			return next
		}
		return func(c echo.Context) error {
			got := c.Request().Header.Get(headerAdminToken)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "admin token required")
			}
			return next(c)
		}
	}
}

func userID(c echo.Context) string {
	if u, ok := c.Get(ctxUserKey).(string); ok {
		return u
	}
	return apikeys.GuestUser
}
