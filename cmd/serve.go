package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	srv "github.com/mohammad-safakhou/tradescope/internal/server"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cfg, logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			reports, err := a.reports()
			if err != nil {
				return err
			}
			deps := srv.Deps{
				Config:         cfg,
				Logger:         logger,
				Analyzer:       a.orch,
				Limiter:        a.limiter(),
				Keys:           a.keys(),
				Reports:        reports,
				Metrics:        a.metrics,
			}
			if cfg.Telemetry.Enabled {
				deps.MetricsHandler = a.metrics.Handler()
			}
			if a.store != nil {
				deps.History = a.store
			}

			logger.Info("listening",
				zap.String("addr", cfg.Server.Address),
				zap.Int("per_minute", cfg.RateLimit.PerMinute),
				zap.Int("per_hour", cfg.RateLimit.PerHour),
				zap.Int("max_refinement_iterations", a.orch.MaxIterations()),
				zap.Bool("redis", a.redis != nil),
				zap.Bool("postgres", a.store != nil))
			return srv.Serve(ctx, srv.New(deps), cfg.Server.Address, 15*time.Second)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")

	return serve
}
