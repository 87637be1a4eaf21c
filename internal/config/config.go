package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Query strategies accepted by engine.query_strategy.
const (
	QueryTableFunction             = "table_function"
	QueryDirect                    = "direct"
	QueryTableFunctionWithFallback = "table_function_with_fallback"
)

// Catalog names accepted by engine.catalog.
const (
	CatalogReporting      = "reporting"
	CatalogContactProfile = "contact_profile"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Engine   EngineConfig   `yaml:"engine"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the pool connection lifetime.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds the optional Redis settings. Redis backs the lookup
// cache, the snapshot store and the job lock.
type RedisConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// CacheTTL returns the lookup cache TTL.
func (c RedisConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// EngineConfig tunes scoring and row composition.
type EngineConfig struct {
	FanOut          int    `yaml:"fan_out"`
	LookupTimeoutMS int    `yaml:"lookup_timeout_ms"`
	Timezone        string `yaml:"timezone"`
	Catalog         string `yaml:"catalog"`
	QueryStrategy   string `yaml:"query_strategy"`
	TopMissingLimit int    `yaml:"top_missing_limit"`
	AlertLimit      int    `yaml:"alert_limit"`
	PageSize        int    `yaml:"page_size"`
	// FetchRetries is how often a failed base fetch is retried. Zero means
	// the default of 2; a negative value disables retries.
	FetchRetries int `yaml:"fetch_retries"`
}

// Retries returns the effective base fetch retry count.
func (c EngineConfig) Retries() int {
	if c.FetchRetries < 0 {
		return 0
	}
	return c.FetchRetries
}

// LookupTimeout returns the per-row ancillary lookup timeout.
func (c EngineConfig) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutMS) * time.Millisecond
}

// Location resolves Timezone. Validate has already rejected bad names.
func (c EngineConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SnapshotConfig controls the periodic quality snapshot worker.
type SnapshotConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
	LockTTLSeconds  int  `yaml:"lock_ttl_seconds"`
	TrendWindowDays int  `yaml:"trend_window_days"`
}

// Interval returns the time between snapshot runs.
func (c SnapshotConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// LockTTL returns the distributed lock TTL.
func (c SnapshotConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// TrendWindow returns the trend partition window.
func (c SnapshotConfig) TrendWindow() time.Duration {
	return time.Duration(c.TrendWindowDays) * 24 * time.Hour
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on. It defaults to true.
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied, for running
// without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.CacheTTLSeconds == 0 {
		cfg.Redis.CacheTTLSeconds = 60
	}
	if cfg.Engine.FanOut == 0 {
		cfg.Engine.FanOut = 8
	}
	if cfg.Engine.LookupTimeoutMS == 0 {
		cfg.Engine.LookupTimeoutMS = 2000
	}
	if cfg.Engine.Timezone == "" {
		cfg.Engine.Timezone = "UTC"
	}
	if cfg.Engine.Catalog == "" {
		cfg.Engine.Catalog = CatalogReporting
	}
	if cfg.Engine.QueryStrategy == "" {
		cfg.Engine.QueryStrategy = QueryTableFunctionWithFallback
	}
	if cfg.Engine.TopMissingLimit == 0 {
		cfg.Engine.TopMissingLimit = 5
	}
	if cfg.Engine.AlertLimit == 0 {
		cfg.Engine.AlertLimit = 5
	}
	if cfg.Engine.PageSize == 0 {
		cfg.Engine.PageSize = 25
	}
	if cfg.Engine.FetchRetries == 0 {
		cfg.Engine.FetchRetries = 2
	}
	if cfg.Snapshot.IntervalMinutes == 0 {
		cfg.Snapshot.IntervalMinutes = 10
	}
	if cfg.Snapshot.LockTTLSeconds == 0 {
		cfg.Snapshot.LockTTLSeconds = 120
	}
	if cfg.Snapshot.TrendWindowDays == 0 {
		cfg.Snapshot.TrendWindowDays = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads a .env file if present, then the YAML file (if path is
// non-empty and exists), then applies environment overrides.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist):
			// run on defaults plus env
		default:
			return nil, err
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CRMQ_TIMEZONE"); v != "" {
		cfg.Engine.Timezone = v
	}
	if v := os.Getenv("CRMQ_FAN_OUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("CRMQ_FAN_OUT: %w", err)
		}
		cfg.Engine.FanOut = n
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (cfg *Config) Validate() error {
	var problems []string
	if cfg.Engine.FanOut < 1 {
		problems = append(problems, fmt.Sprintf("engine.fan_out must be >= 1, got %d", cfg.Engine.FanOut))
	}
	if cfg.Engine.LookupTimeoutMS < 0 {
		problems = append(problems, "engine.lookup_timeout_ms must not be negative")
	}
	switch strings.ToLower(cfg.Engine.Catalog) {
	case CatalogReporting, CatalogContactProfile:
	default:
		problems = append(problems, fmt.Sprintf("engine.catalog %q is unknown", cfg.Engine.Catalog))
	}
	switch cfg.Engine.QueryStrategy {
	case QueryTableFunction, QueryDirect, QueryTableFunctionWithFallback:
	default:
		problems = append(problems, fmt.Sprintf("engine.query_strategy %q is unknown", cfg.Engine.QueryStrategy))
	}
	if _, err := time.LoadLocation(cfg.Engine.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("engine.timezone %q: %v", cfg.Engine.Timezone, err))
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", cfg.Server.Port))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
