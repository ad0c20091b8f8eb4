package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	serviceName    = "Trade Opportunities API"
	serviceVersion = "1.0.0"
)

// OpsHandler serves service info and liveness.
type OpsHandler struct {
	now func() time.Time
}

func (h *OpsHandler) Register(e *echo.Echo) {
	e.GET("/", h.root)
	e.GET("/health", h.health)
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
}

func (h *OpsHandler) root(c echo.Context) error {
	return c.JSON(http.StatusOK, ServiceInfo{
		Service:       serviceName,
		Version:       serviceVersion,
		Documentation: "/api/docs",
		Endpoints: map[string]string{
			"analysis":    "/v1/analyze/{sector}",
			"download":    "/v1/analyze/{sector}/download",
			"rate_limits": "/v1/rate-limits",
			"api_keys":    "/v1/api-keys",
			"reports":     "/v1/reports",
			"health":      "/health",
			"metrics":     "/metrics",
		},
	})
}

func (h *OpsHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC(),
		Service:   serviceName,
		Version:   serviceVersion,
	})
}
