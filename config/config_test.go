package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Analysis.MaxRefinementIterations != 1 {
		t.Fatalf("expected 1 refinement iteration by default, got %d", cfg.Analysis.MaxRefinementIterations)
	}
	if cfg.RateLimit.PerMinute != 5 || cfg.RateLimit.PerHour != 30 {
		t.Fatalf("unexpected rate limits %+v", cfg.RateLimit)
	}
	if cfg.Analysis.DefaultCountry != "India" {
		t.Fatalf("expected India default country, got %q", cfg.Analysis.DefaultCountry)
	}
	if cfg.Server.Address != ":8000" {
		t.Fatalf("expected :8000, got %q", cfg.Server.Address)
	}
	if cfg.Server.OpenAPIPath != "docs/openapi.yaml" {
		t.Fatalf("unexpected openapi path %q", cfg.Server.OpenAPIPath)
	}
	if cfg.LLM.Models.Critique != "gpt-4o-mini" {
		t.Fatalf("unexpected critique model %q", cfg.LLM.Models.Critique)
	}
	if cfg.Search.Retry.InitialInterval != 4*time.Second || cfg.Search.Retry.MaxInterval != 15*time.Second {
		t.Fatalf("unexpected retry window %+v", cfg.Search.Retry)
	}
}

func TestLoadLegacyEnvAliases(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-legacy")
	t.Setenv("GNEWS_API_KEY", "gn-legacy")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "7")
	t.Setenv("RATE_LIMIT_PER_HOUR", "70")
	t.Setenv("MAX_REFINEMENT_ITERATIONS", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.APIKey != "sk-legacy" {
		t.Fatalf("expected legacy llm key, got %q", cfg.LLM.APIKey)
	}
	if cfg.Search.KeyFor("gnews") != "gn-legacy" {
		t.Fatalf("expected gnews key from env")
	}
	if cfg.RateLimit.PerMinute != 7 || cfg.RateLimit.PerHour != 70 {
		t.Fatalf("unexpected rate limits %+v", cfg.RateLimit)
	}
	if cfg.Analysis.MaxRefinementIterations != 3 {
		t.Fatalf("expected 3 iterations, got %d", cfg.Analysis.MaxRefinementIterations)
	}
}

func TestLoadPrefixedEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"server":{"address":":9000"},"analysis":{"default_country":"Brazil"},"search":{"primary":"brave"}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("TRADESCOPE_ANALYSIS_DEFAULT_COUNTRY", "Kenya")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9000" {
		t.Fatalf("expected file address, got %q", cfg.Server.Address)
	}
	if cfg.Analysis.DefaultCountry != "Kenya" {
		t.Fatalf("expected env override, got %q", cfg.Analysis.DefaultCountry)
	}
	if cfg.Search.Primary != "brave" {
		t.Fatalf("expected brave primary, got %q", cfg.Search.Primary)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"search":{"primary":"altavista"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for unknown provider")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error for missing explicit config path")
	}
}

func TestAnalysisNormalizeClampsNegativeIterations(t *testing.T) {
	a := AnalysisConfig{MaxRefinementIterations: -4}.Normalize()
	if a.MaxRefinementIterations != 0 {
		t.Fatalf("expected clamp to 0, got %d", a.MaxRefinementIterations)
	}
	if a.MinReportLength != 500 || a.MaxSources != 8 || a.ExposedSources != 10 {
		t.Fatalf("unexpected defaults %+v", a)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "u", Password: "p", DBName: "trade"}
	if got := p.DSN(); got != "postgres://u:p@db:5432/trade?sslmode=disable" {
		t.Fatalf("unexpected dsn %q", got)
	}
	if !p.Enabled() {
		t.Fatalf("expected postgres enabled")
	}
	if (PostgresConfig{}).Enabled() {
		t.Fatalf("expected empty postgres disabled")
	}
}

func TestRedisAddress(t *testing.T) {
	if got := (RedisConfig{Host: "cache"}).Address(); got != "cache:6379" {
		t.Fatalf("unexpected address %q", got)
	}
	if got := (RedisConfig{Addr: "r:1", Host: "ignored"}).Address(); got != "r:1" {
		t.Fatalf("unexpected address %q", got)
	}
}
