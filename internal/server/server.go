package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/tradescope/config"
	"github.com/mohammad-safakhou/tradescope/internal/analysis"
	"github.com/mohammad-safakhou/tradescope/internal/apikeys"
	"github.com/mohammad-safakhou/tradescope/internal/ratelimit"
	"github.com/mohammad-safakhou/tradescope/internal/store"
	"github.com/mohammad-safakhou/tradescope/repository"
)

// Analyzer runs one analysis. *analysis.Orchestrator satisfies it.
type Analyzer interface {
	Run(ctx context.Context, sector, country string) analysis.Result
}

// History persists finished analyses. *store.Store satisfies it.
type History interface {
	SaveAnalysis(ctx context.Context, res analysis.Result) error
	GetAnalysis(ctx context.Context, id string) (analysis.Result, bool, error)
	ListAnalyses(ctx context.Context, sector string, limit int) ([]store.AnalysisRecord, error)
}

// RejectionRecorder counts rate limit rejections. *telemetry.Metrics satisfies it.
type RejectionRecorder interface {
	RateLimitRejection(window string)
}

// Deps are the services shared by every handler. History, Metrics and
// MetricsHandler are optional.
type Deps struct {
	Config         *config.Config
	Logger         *zap.Logger
	Analyzer       Analyzer
	Limiter        ratelimit.Limiter
	Keys           apikeys.Registry
	Reports        repository.ReportRepository
	History        History
	Metrics        RejectionRecorder
	MetricsHandler http.Handler
	Now            func() time.Time
}

// New builds the echo instance with every route mounted.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	logger := d.Logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", zap.Int("status", code), zap.String("method", req.Method),
				zap.String("path", req.URL.Path), zap.String("remote", c.RealIP()), zap.Error(err))
		}
		if !c.Response().Committed {
			if req.Method == http.MethodHead {
				_ = c.NoContent(code)
				return
			}
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  d.Config.Server.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderAuthorization, headerAPIKey, headerAdminToken},
		ExposeHeaders: []string{echo.HeaderRetryAfter, echo.HeaderContentDisposition},
	}))
	e.Use(requestLogger(logger))

	ops := &OpsHandler{now: d.Now}
	ops.Register(e)
	registerDocs(e, d.Config.Server.OpenAPIPath)
	if d.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(d.MetricsHandler))
	}

	v1 := e.Group("/v1")
	authed := v1.Group("", apiKeyAuth(d.Keys))

	ah := NewAnalysisHandler(d)
	ah.Register(authed)

	kh := &KeysHandler{keys: d.Keys, logger: logger}
	kh.Register(v1.Group("/api-keys", adminOnly(d.Config.Server.AdminToken)))

	if d.History != nil {
		rh := &ReportsHandler{history: d.History}
		rh.Register(authed.Group("/reports"))
	}
	return e
}

// Serve runs e on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, e *echo.Echo, addr string, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote", v.RemoteIP),
				zap.String("user", userID(c)),
			)
			return nil
		},
	})
}
