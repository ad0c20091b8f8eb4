package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/tradescope/config"
	"github.com/mohammad-safakhou/tradescope/internal/analysis"
	"github.com/mohammad-safakhou/tradescope/internal/apikeys"
	"github.com/mohammad-safakhou/tradescope/internal/collector"
	"github.com/mohammad-safakhou/tradescope/internal/logging"
	"github.com/mohammad-safakhou/tradescope/internal/ratelimit"
	"github.com/mohammad-safakhou/tradescope/internal/store"
	"github.com/mohammad-safakhou/tradescope/internal/telemetry"
	"github.com/mohammad-safakhou/tradescope/provider"
	"github.com/mohammad-safakhou/tradescope/repository"
	"github.com/mohammad-safakhou/tradescope/repository/redis_repository"
	"github.com/mohammad-safakhou/tradescope/tools/web_search"
)

// app holds the long-lived services shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *telemetry.Metrics
	orch    *analysis.Orchestrator
	redis   *redis.Client
	store   *store.Store
}

func loadConfig(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.General)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger.With(zap.String("service", cfg.Telemetry.ServiceName)), nil
}

// newApp wires the analysis pipeline. Storage is opened only when
// withStorage is set.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, withStorage bool) (*app, error) {
	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, metrics: telemetry.New()}

	llm, err := provider.NewProvider(provider.OpenAI, provider.Options{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
		Retries: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	primary := searchBackend(cfg.Search, cfg.Search.Primary, logger)
	secondary := searchBackend(cfg.Search, cfg.Search.Secondary, logger)
	if primary == nil && secondary == nil {
		logger.Warn("no search backend configured; analyses will use fallback context")
	}
	coll := collector.New(primary, secondary, collector.Options{
		ResultsPerQuery: cfg.Search.ResultsPerQuery,
		MaxSources:      cfg.Analysis.MaxSources,
		Retry:           cfg.Search.Retry,
		Logger:          logger,
		Recorder:        a.metrics,
	})

	a.orch = analysis.NewOrchestrator(coll, llm, analysis.Options{
		Models:          cfg.LLM.Models,
		MaxIterations:   cfg.Analysis.MaxRefinementIterations,
		MinReportLength: cfg.Analysis.MinReportLength,
		ExposedSources:  cfg.Analysis.ExposedSources,
		Logger:          logger,
		Recorder:        a.metrics,
	})

	if !withStorage {
		return a, nil
	}
	if cfg.Storage.Redis.Enabled() {
		r := cfg.Storage.Redis
		client, err := redis_repository.Conn(ctx, r.Address(), r.Password, r.DB, r.Timeout)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
	}
	if cfg.Storage.Postgres.Enabled() {
		pg := cfg.Storage.Postgres
		if err := store.Migrate(pg.Migrations, pg.DSN(), "up", 0); err != nil {
			logger.Warn("migrations not applied", zap.Error(err))
		}
		st, err := store.New(ctx, pg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.store = st
	}
	return a, nil
}

func searchBackend(cfg config.SearchConfig, name string, logger *zap.Logger) *collector.Backend {
	if name == "" {
		return nil
	}
	s, err := web_search.NewWebSearcher(web_search.Provider(name), web_search.Options{
		APIKey:            cfg.KeyFor(name),
		Endpoint:          endpointFor(cfg, name),
		Language:          cfg.Language,
		Region:            cfg.Region,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if errors.Is(err, web_search.ErrMissingAPIKey) {
		logger.Warn("search backend disabled: no api key", zap.String("provider", name))
		return nil
	}
	if err != nil {
		logger.Warn("search backend disabled", zap.String("provider", name), zap.Error(err))
		return nil
	}
	return &collector.Backend{Name: name, Searcher: s}
}

func endpointFor(cfg config.SearchConfig, name string) string {
	if web_search.Provider(name) == web_search.NewsAPIProvider {
		return cfg.NewsAPIEndpoint
	}
	return ""
}

func (a *app) limiter() ratelimit.Limiter {
	limits := ratelimit.Limits{PerMinute: a.cfg.RateLimit.PerMinute, PerHour: a.cfg.RateLimit.PerHour}
	if a.cfg.RateLimit.Backend == "redis" && a.redis != nil {
		return ratelimit.NewRedis(a.redis, limits, nil)
	}
	if a.cfg.RateLimit.Backend == "redis" {
		a.logger.Warn("rate_limit.backend is redis but redis is not configured; using memory")
	}
	return ratelimit.NewMemory(limits, nil)
}

func (a *app) keys() apikeys.Registry {
	if a.store != nil {
		return apikeys.NewPersistent(a.store)
	}
	return apikeys.NewMemory()
}

func (a *app) reports() (repository.ReportRepository, error) {
	if a.redis != nil {
		return repository.NewReportRepository(repository.RepoTypeRedis, a.redis, a.cfg.Analysis.CacheTTL)
	}
	return repository.NewReportRepository(repository.RepoTypeMemory, nil, a.cfg.Analysis.CacheTTL)
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logger.Sync()
}
