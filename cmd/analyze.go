package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/tradescope/internal/analysis"
)

func analyzeCMD(cfgPath *string) *cobra.Command {
	var country, format, outDir string
	var parallel int
	var analyze = &cobra.Command{
		Use:   "analyze <sector> [sector...]",
		Short: "Run the analysis workflow once per sector without the HTTP server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "markdown" && format != "json" {
				return fmt.Errorf("--format must be markdown or json, got %q", format)
			}
			cfg, logger, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if country == "" {
				country = cfg.Analysis.DefaultCountry
			}
			a, err := newApp(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			results := make([]analysis.Result, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(parallel, 1))
			for i, raw := range args {
				sector := strings.ToLower(strings.TrimSpace(raw))
				g.Go(func() error {
					runCtx, cancel := contextWithTimeout(ctx, cfg.General.RequestTimeout)
					defer cancel()
					results[i] = a.orch.Run(runCtx, sector, country)
					return nil
				})
			}
			_ = g.Wait()

			for _, res := range results {
				if err := emit(cmd.OutOrStdout(), outDir, format, res); err != nil {
					return err
				}
			}
			for _, res := range results {
				if res.Status == analysis.StatusError {
					return fmt.Errorf("analysis for %s failed", res.Sector)
				}
			}
			return nil
		},
	}
	analyze.Flags().StringVar(&country, "country", "", "target market (default analysis.default_country)")
	analyze.Flags().StringVar(&format, "format", "markdown", "output format: markdown or json")
	analyze.Flags().StringVar(&outDir, "out", "", "write one file per sector into this directory instead of stdout")
	analyze.Flags().IntVar(&parallel, "parallel", 1, "sectors analysed concurrently")

	return analyze
}

func emit(stdout io.Writer, outDir, format string, res analysis.Result) error {
	var body []byte
	ext := "md"
	if format == "json" {
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		body, ext = append(b, '\n'), "json"
	} else {
		body = []byte(res.Report + "\n")
	}

	if outDir == "" {
		_, err := stdout.Write(body)
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s_analysis_%s.%s", strings.ReplaceAll(res.Sector, " ", "_"), res.Timestamp.Format("20060102"), ext)
	path := filepath.Join(outDir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %s (%s, %d iterations)\n", res.Sector, path, res.Status, res.Iterations)
	return nil
}

func contextWithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
