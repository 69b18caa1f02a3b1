package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/healthmetrics/healthmetrics/internal/platform/db"
)

type Config struct {
	Port                string   `mapstructure:"PORT"`
	Env                 string   `mapstructure:"ENV"`
	LogLevel            string   `mapstructure:"LOG_LEVEL"`
	DBDriver            string   `mapstructure:"DB_DRIVER"`
	DatabaseURL         string   `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32    `mapstructure:"DB_MIN_CONNS"`
	SQLiteBusyTimeoutMS int      `mapstructure:"SQLITE_BUSY_TIMEOUT_MS"`
	BodyLimit           string   `mapstructure:"BODY_LIMIT"`
	UploadLimit         string   `mapstructure:"UPLOAD_LIMIT"`
	ImageMaxBytes       int      `mapstructure:"IMAGE_MAX_BYTES"`
	DefaultPageSize     int      `mapstructure:"DEFAULT_PAGE_SIZE"`
	MetricsNamespace    string   `mapstructure:"METRICS_NAMESPACE"`
	CORSOrigins         []string `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DB_DRIVER", "DATABASE_URL", "DB_MAX_CONNS",
	"DB_MIN_CONNS", "SQLITE_BUSY_TIMEOUT_MS", "BODY_LIMIT", "UPLOAD_LIMIT",
	"IMAGE_MAX_BYTES", "DEFAULT_PAGE_SIZE", "METRICS_NAMESPACE", "CORS_ORIGINS",
}

// Load reads configuration from the environment, falling back to a .env
// file in the working directory and then to defaults. The default store is
// a SQLite file next to the binary.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "health_metrics.db")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("SQLITE_BUSY_TIMEOUT_MS", 5000)
	v.SetDefault("BODY_LIMIT", "2M")
	v.SetDefault("UPLOAD_LIMIT", "32M")
	v.SetDefault("IMAGE_MAX_BYTES", 10<<20)
	v.SetDefault("DEFAULT_PAGE_SIZE", 50)
	v.SetDefault("METRICS_NAMESPACE", "healthmetrics")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind explicitly so Unmarshal sees variables that have no default.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// The env value is a comma-separated list; viper's slice hook leaves the
	// spaces in, so split it ourselves.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("PORT must be a TCP port number, got %q", c.Port)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	dialect, err := db.ParseDialect(c.DBDriver)
	if err != nil {
		return fmt.Errorf("DB_DRIVER: %w", err)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if dialect == db.Postgres {
		if !strings.HasPrefix(c.DatabaseURL, "postgres://") && !strings.HasPrefix(c.DatabaseURL, "postgresql://") {
			return fmt.Errorf("DATABASE_URL must be a postgres:// URL when DB_DRIVER is postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) and DB_MAX_CONNS (%d) are inconsistent", c.DBMinConns, c.DBMaxConns)
		}
	}
	if c.SQLiteBusyTimeoutMS < 0 {
		return fmt.Errorf("SQLITE_BUSY_TIMEOUT_MS must not be negative")
	}
	if c.ImageMaxBytes <= 0 {
		return fmt.Errorf("IMAGE_MAX_BYTES must be positive")
	}
	if c.DefaultPageSize <= 0 || c.DefaultPageSize > 500 {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be between 1 and 500, got %d", c.DefaultPageSize)
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// DBOptions maps the store settings onto db.Options.
func (c *Config) DBOptions() db.Options {
	return db.Options{
		Driver:      c.DBDriver,
		URL:         c.DatabaseURL,
		MaxConns:    c.DBMaxConns,
		MinConns:    c.DBMinConns,
		BusyTimeout: time.Duration(c.SQLiteBusyTimeoutMS) * time.Millisecond,
	}
}
