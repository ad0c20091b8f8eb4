package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type ReportsHandler struct {
	history History
}

func (h *ReportsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

// List past analyses
//
//	@Summary	List stored analyses, newest first
//	@Tags		reports
//	@Security	ApiKeyAuth
//	@Param		sector	query	string	false	"Filter by sector"
//	@Param		limit	query	int		false	"Max rows (default 20, max 100)"
//	@Produce	json
//	@Success	200	{array}		store.AnalysisRecord
//	@Router		/v1/reports [get]
func (h *ReportsHandler) list(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	sector := strings.ToLower(strings.TrimSpace(c.QueryParam("sector")))
	items, err := h.history.ListAnalyses(c.Request().Context(), sector, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

// Get a stored analysis
//
//	@Summary	Stored analysis by report id
//	@Tags		reports
//	@Security	ApiKeyAuth
//	@Param		id	path	string	true	"Report ID"
//	@Produce	json
//	@Success	200	{object}	analysis.Result
//	@Failure	404	{object}	HTTPError
//	@Router		/v1/reports/{id} [get]
func (h *ReportsHandler) get(c echo.Context) error {
	res, ok, err := h.history.GetAnalysis(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	return c.JSON(http.StatusOK, res)
}
