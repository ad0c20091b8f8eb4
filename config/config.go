package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the analysis service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

func (g GeneralConfig) Normalize() GeneralConfig {
	g.LogLevel = strings.ToLower(strings.TrimSpace(g.LogLevel))
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	g.LogFormat = strings.ToLower(strings.TrimSpace(g.LogFormat))
	if g.LogFormat == "" {
		g.LogFormat = "json"
	}
	if g.RequestTimeout <= 0 {
		g.RequestTimeout = 5 * time.Minute
	}
	return g
}

func (g GeneralConfig) Validate() error {
	switch g.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("general.log_format must be json or console, got %q", g.LogFormat)
	}
	return nil
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	AdminToken  string   `mapstructure:"admin_token"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// OpenAPIPath is the OpenAPI document served at /api/openapi.yaml.
	OpenAPIPath string `mapstructure:"openapi_path"`
}

func (s ServerConfig) Normalize() ServerConfig {
	s.Address = strings.TrimSpace(s.Address)
	if s.Address == "" {
		s.Address = ":8000"
	}
	if len(s.CORSOrigins) == 0 {
		s.CORSOrigins = []string{"*"}
	}
	if s.OpenAPIPath == "" {
		s.OpenAPIPath = "docs/openapi.yaml"
	}
	return s
}

// LLMConfig points at an OpenAI compatible chat completions endpoint.
type LLMConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Models  LLMModels     `mapstructure:"models"`
}

// LLMModels defines which model serves each pipeline stage
type LLMModels struct {
	Analysis string `mapstructure:"analysis"`
	Critique string `mapstructure:"critique"`
	Refine   string `mapstructure:"refine"`
	Format   string `mapstructure:"format"`
}

func (l LLMConfig) Normalize() LLMConfig {
	l.BaseURL = strings.TrimRight(strings.TrimSpace(l.BaseURL), "/")
	if l.BaseURL == "" {
		l.BaseURL = "https://api.openai.com/v1"
	}
	if l.Timeout <= 0 {
		l.Timeout = 120 * time.Second
	}
	if l.Models.Analysis == "" {
		l.Models.Analysis = "gpt-4o"
	}
	if l.Models.Critique == "" {
		l.Models.Critique = "gpt-4o-mini"
	}
	if l.Models.Refine == "" {
		l.Models.Refine = "gpt-4o"
	}
	if l.Models.Format == "" {
		l.Models.Format = "gpt-4o-mini"
	}
	return l
}

// Validate is only called by commands that talk to the model.
func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return errors.New("llm.api_key required (or OPENAI_API_KEY)")
	}
	return nil
}

// SearchConfig configures the web/news search backends used by the collector
type SearchConfig struct {
	Primary           string        `mapstructure:"primary"`
	Secondary         string        `mapstructure:"secondary"`
	GNewsAPIKey       string        `mapstructure:"gnews_api_key"`
	SerperAPIKey      string        `mapstructure:"serper_api_key"`
	BraveAPIKey       string        `mapstructure:"brave_api_key"`
	NewsAPIKey        string        `mapstructure:"newsapi_api_key"`
	NewsAPIEndpoint   string        `mapstructure:"newsapi_endpoint"`
	ResultsPerQuery   int           `mapstructure:"results_per_query"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Language          string        `mapstructure:"language"`
	Region            string        `mapstructure:"region"`
	Retry             RetryConfig   `mapstructure:"retry"`
}

// RetryConfig bounds the retry loop around the secondary search backend
type RetryConfig struct {
	Attempts        int           `mapstructure:"attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

func (s SearchConfig) Normalize() SearchConfig {
	s.Primary = strings.ToLower(strings.TrimSpace(s.Primary))
	s.Secondary = strings.ToLower(strings.TrimSpace(s.Secondary))
	if s.NewsAPIEndpoint == "" {
		s.NewsAPIEndpoint = "https://newsapi.org/v2/everything"
	}
	if s.ResultsPerQuery <= 0 {
		s.ResultsPerQuery = 3
	}
	if s.Timeout <= 0 {
		s.Timeout = 20 * time.Second
	}
	if s.RequestsPerSecond <= 0 {
		s.RequestsPerSecond = 1
	}
	if s.Language == "" {
		s.Language = "en"
	}
	if s.Region == "" {
		s.Region = "in"
	}
	if s.Retry.Attempts <= 0 {
		s.Retry.Attempts = 2
	}
	if s.Retry.InitialInterval <= 0 {
		s.Retry.InitialInterval = 4 * time.Second
	}
	if s.Retry.MaxInterval <= 0 {
		s.Retry.MaxInterval = 15 * time.Second
	}
	if s.Retry.Multiplier < 1 {
		s.Retry.Multiplier = 2
	}
	return s
}

// KeyFor returns the credential configured for a search provider name.
func (s SearchConfig) KeyFor(provider string) string {
	switch provider {
	case "gnews":
		return s.GNewsAPIKey
	case "serper":
		return s.SerperAPIKey
	case "brave":
		return s.BraveAPIKey
	case "newsapi":
		return s.NewsAPIKey
	}
	return ""
}

func (s SearchConfig) Validate() error {
	for _, p := range []string{s.Primary, s.Secondary} {
		switch p {
		case "", "gnews", "serper", "brave", "newsapi":
		default:
			return fmt.Errorf("search: unknown provider %q", p)
		}
	}
	if s.Retry.InitialInterval > s.Retry.MaxInterval {
		return errors.New("search.retry.initial_interval cannot exceed max_interval")
	}
	return nil
}

// AnalysisConfig tunes the report pipeline
type AnalysisConfig struct {
	DefaultCountry          string        `mapstructure:"default_country"`
	MaxRefinementIterations int           `mapstructure:"max_refinement_iterations"`
	MinReportLength         int           `mapstructure:"min_report_length"`
	MaxSources              int           `mapstructure:"max_sources"`
	ExposedSources          int           `mapstructure:"exposed_sources"`
	CacheTTL                time.Duration `mapstructure:"cache_ttl"`
}

func (a AnalysisConfig) Normalize() AnalysisConfig {
	a.DefaultCountry = strings.TrimSpace(a.DefaultCountry)
	if a.DefaultCountry == "" {
		a.DefaultCountry = "India"
	}
	if a.MaxRefinementIterations < 0 {
		a.MaxRefinementIterations = 0
	}
	if a.MinReportLength <= 0 {
		a.MinReportLength = 500
	}
	if a.MaxSources <= 0 {
		a.MaxSources = 8
	}
	if a.ExposedSources <= 0 {
		a.ExposedSources = 10
	}
	if a.CacheTTL <= 0 {
		a.CacheTTL = 30 * time.Minute
	}
	return a
}

// RateLimitConfig holds per-user sliding window quotas
type RateLimitConfig struct {
	PerMinute int    `mapstructure:"per_minute"`
	PerHour   int    `mapstructure:"per_hour"`
	Backend   string `mapstructure:"backend"`
}

func (r RateLimitConfig) Normalize() RateLimitConfig {
	if r.PerMinute <= 0 {
		r.PerMinute = 5
	}
	if r.PerHour <= 0 {
		r.PerHour = 30
	}
	r.Backend = strings.ToLower(strings.TrimSpace(r.Backend))
	if r.Backend == "" {
		r.Backend = "memory"
	}
	return r
}

func (r RateLimitConfig) Validate() error {
	switch r.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("rate_limit.backend must be memory or redis, got %q", r.Backend)
	}
	if r.PerHour < r.PerMinute {
		return errors.New("rate_limit.per_hour must be >= per_minute")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether any Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != "" || strings.TrimSpace(r.Host) != ""
}

// Address returns host:port, preferring an explicit addr.
func (r RedisConfig) Address() string {
	if a := strings.TrimSpace(r.Addr); a != "" {
		return a
	}
	port := strings.TrimSpace(r.Port)
	if port == "" {
		port = "6379"
	}
	return strings.TrimSpace(r.Host) + ":" + port
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL        string        `mapstructure:"url"`
	Host       string        `mapstructure:"host"`
	Port       string        `mapstructure:"port"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	DBName     string        `mapstructure:"dbname"`
	SSLMode    string        `mapstructure:"sslmode"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Migrations string        `mapstructure:"migrations"`
}

// Enabled reports whether Postgres persistence was configured.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

func (p PostgresConfig) Validate() error {
	if !p.Enabled() || strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// legacyEnv maps config keys to the bare environment variable names older
// deployments export.
var legacyEnv = map[string]string{
	"llm.api_key":                        "OPENAI_API_KEY",
	"search.gnews_api_key":               "GNEWS_API_KEY",
	"search.serper_api_key":              "SERPER_API_KEY",
	"search.brave_api_key":               "BRAVE_API_KEY",
	"search.newsapi_api_key":             "NEWSAPI_API_KEY",
	"rate_limit.per_minute":              "RATE_LIMIT_PER_MINUTE",
	"rate_limit.per_hour":                "RATE_LIMIT_PER_HOUR",
	"analysis.max_refinement_iterations": "MAX_REFINEMENT_ITERATIONS",
	"analysis.default_country":           "DEFAULT_COUNTRY",
	"storage.postgres.url":               "DATABASE_URL",
	"storage.redis.addr":                 "REDIS_ADDR",
	"server.admin_token":                 "ADMIN_TOKEN",
}

// Load reads config from path (or the usual search locations when empty),
// overlays TRADESCOPE_* and legacy environment variables, then normalizes
// and validates every section. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("TRADESCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "TRADESCOPE_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	if err := bindAddress(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path == "" && os.IsNotExist(err)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize applies defaults to every section in place.
func (c *Config) Normalize() {
	c.General = c.General.Normalize()
	c.Server = c.Server.Normalize()
	c.LLM = c.LLM.Normalize()
	c.Search = c.Search.Normalize()
	c.Analysis = c.Analysis.Normalize()
	c.RateLimit = c.RateLimit.Normalize()
	if c.Storage.Postgres.Migrations == "" {
		c.Storage.Postgres.Migrations = "file://migrations"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "tradescope"
	}
}

func (c *Config) Validate() error {
	if err := c.General.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}
	if c.RateLimit.Backend == "redis" && !c.Storage.Redis.Enabled() {
		return errors.New("rate_limit.backend=redis requires storage.redis.addr")
	}
	return c.Storage.Postgres.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "json")
	v.SetDefault("general.request_timeout", "5m")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("search.primary", "gnews")
	v.SetDefault("search.secondary", "serper")
	v.SetDefault("search.results_per_query", 3)
	v.SetDefault("analysis.default_country", "India")
	v.SetDefault("analysis.max_refinement_iterations", 1)
	v.SetDefault("analysis.min_report_length", 500)
	v.SetDefault("analysis.max_sources", 8)
	v.SetDefault("analysis.exposed_sources", 10)
	v.SetDefault("analysis.cache_ttl", "30m")
	v.SetDefault("rate_limit.per_minute", 5)
	v.SetDefault("rate_limit.per_hour", 30)
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", "tradescope")
}

// bindAddress honours HOST/PORT when no explicit server.address is set.
func bindAddress(v *viper.Viper) error {
	host, port := os.Getenv("HOST"), os.Getenv("PORT")
	if port == "" && host == "" {
		return nil
	}
	if os.Getenv("TRADESCOPE_SERVER_ADDRESS") != "" {
		return nil
	}
	if port == "" {
		port = "8000"
	}
	v.SetDefault("server.address", host+":"+port)
	return nil
}
