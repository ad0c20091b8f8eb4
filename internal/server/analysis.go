package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/tradescope/internal/analysis"
	"github.com/mohammad-safakhou/tradescope/internal/ratelimit"
	"github.com/mohammad-safakhou/tradescope/repository"
)

var sectorPattern = regexp.MustCompile(`^[\p{L}\p{N} &-]{1,64}$`)

type AnalysisHandler struct {
	analyzer       Analyzer
	limiter        ratelimit.Limiter
	reports        repository.ReportRepository
	history        History
	metrics        RejectionRecorder
	defaultCountry string
	timeout        time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

func NewAnalysisHandler(d Deps) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer:       d.Analyzer,
		limiter:        d.Limiter,
		reports:        d.Reports,
		history:        d.History,
		metrics:        d.Metrics,
		defaultCountry: d.Config.Analysis.DefaultCountry,
		timeout:        d.Config.General.RequestTimeout,
		now:            d.Now,
		logger:         d.Logger.Named("analysis"),
	}
}

func (h *AnalysisHandler) Register(g *echo.Group) {
	g.GET("/analyze/:sector", h.analyze)
	g.GET("/analyze/:sector/download", h.download)
	g.GET("/rate-limits", h.rateLimits)
}

// Analyze a sector
//
//	@Summary	Run the trade analysis workflow for a sector
//	@Tags		analysis
//	@Security	ApiKeyAuth
//	@Param		sector	path	string	true	"Sector name"
//	@Param		country	query	string	false	"Target market"
//	@Produce	json
//	@Success	200	{object}	analysis.Result
//	@Failure	400	{object}	HTTPError
//	@Failure	401	{object}	HTTPError
//	@Failure	429	{object}	HTTPError
//	@Failure	500	{object}	HTTPError
//	@Router		/v1/analyze/{sector} [get]
func (h *AnalysisHandler) analyze(c echo.Context) error {
	sector, country, err := h.admit(c)
	if err != nil {
		return err
	}
	res, err := h.execute(c, sector, country)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Download a sector report as markdown
//
//	@Summary	Download the markdown report for a sector
//	@Tags		analysis
//	@Security	ApiKeyAuth
//	@Param		sector	path	string	true	"Sector name"
//	@Param		country	query	string	false	"Target market"
//	@Produce	text/markdown
//	@Success	200	{string}	string
//	@Failure	429	{object}	HTTPError
//	@Router		/v1/analyze/{sector}/download [get]
func (h *AnalysisHandler) download(c echo.Context) error {
	sector, country, err := h.admit(c)
	if err != nil {
		return err
	}

	res, err := h.reports.GetReport(c.Request().Context(), sector, country)
	if err != nil {
		if !errors.Is(err, repository.ErrReportNotFound) {
			h.logger.Warn("report cache read failed", zap.Error(err))
		}
		if res, err = h.execute(c, sector, country); err != nil {
			return err
		}
	}

	filename := fmt.Sprintf("%s_analysis_%s.md", strings.ReplaceAll(sector, " ", "_"), h.now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+filename)
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(res.Report))
}

// Rate limit status
//
//	@Summary	Current limits and remaining quota for the caller
//	@Tags		monitoring
//	@Security	ApiKeyAuth
//	@Produce	json
//	@Success	200	{object}	RateLimitResponse
//	@Router		/v1/rate-limits [get]
func (h *AnalysisHandler) rateLimits(c echo.Context) error {
	user := userID(c)
	rem, err := h.limiter.Remaining(c.Request().Context(), user)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "rate limiter unavailable").SetInternal(err)
	}
	return c.JSON(http.StatusOK, RateLimitResponse{
		User:      user,
		Limits:    h.limiter.Limits(),
		Remaining: rem,
		Timestamp: h.now().UTC(),
	})
}

// admit validates the request and charges it against the caller's quota.
func (h *AnalysisHandler) admit(c echo.Context) (string, string, error) {
	raw, err := url.PathUnescape(c.Param("sector"))
	if err != nil {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "invalid sector encoding")
	}
	sector, ok := normalizeSector(raw)
	if !ok {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "sector must be 1-64 letters, digits, spaces, '-' or '&'")
	}
	country := strings.TrimSpace(c.QueryParam("country"))
	if country == "" {
		country = h.defaultCountry
	} else if len(country) > 64 {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "country is too long")
	}

	if err := h.limiter.Allow(c.Request().Context(), userID(c)); err != nil {
		var exceeded *ratelimit.ExceededError
		if errors.As(err, &exceeded) {
			if h.metrics != nil {
				h.metrics.RateLimitRejection(exceeded.Window)
			}
			c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(exceeded.RetryAfterSeconds()))
			return "", "", echo.NewHTTPError(http.StatusTooManyRequests, exceeded.Error())
		}
		return "", "", echo.NewHTTPError(http.StatusServiceUnavailable, "rate limiter unavailable").SetInternal(err)
	}
	return sector, country, nil
}

func (h *AnalysisHandler) execute(c echo.Context, sector, country string) (analysis.Result, error) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	h.logger.Info("analysis requested", zap.String("sector", sector), zap.String("country", country), zap.String("user", userID(c)))
	res := h.analyzer.Run(ctx, sector, country)
	if err := ctx.Err(); err != nil {
		return analysis.Result{}, echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate analysis: "+err.Error()).SetInternal(err)
	}
	if res.Status != analysis.StatusError {
		h.keep(res)
	}
	return res, nil
}

// keep writes the result to the cache and history. Failures are logged only.
func (h *AnalysisHandler) keep(res analysis.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.reports.SaveReport(ctx, res); err != nil {
		h.logger.Warn("report cache write failed", zap.String("report_id", res.ReportID), zap.Error(err))
	}
	if h.history != nil {
		if err := h.history.SaveAnalysis(ctx, res); err != nil {
			h.logger.Warn("history write failed", zap.String("report_id", res.ReportID), zap.Error(err))
		}
	}
}

func normalizeSector(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if !sectorPattern.MatchString(s) {
		return "", false
	}
	return s, true
}
