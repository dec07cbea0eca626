// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as the bot token, database driver and location, logging, wizard limits,
// rate limiting, and maintenance schedules.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the application.
type Config struct {
	// Transport
	BotToken    string // BOT_TOKEN; required outside test mode
	PollTimeout int    // long-poll timeout in seconds

	// Database
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path (sqlite driver)
	DatabaseURL string // Postgres DSN (postgres driver)

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Marketplace
	MaxPhotos     int // photos accepted per listing
	DefaultAdDays int // publication days granted to a new listing
	PageSize      int // listings per catalog page

	// Rate limiting
	RateRPS   float64 // tokens per second per sender (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Maintenance
	IntakeTTL time.Duration // idle wizard sessions older than this are evicted
	DedupTTL  time.Duration // processed-update records older than this are purged
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Transport
		BotToken:    getenv("BOT_TOKEN", ""),
		PollTimeout: getint("POLL_TIMEOUT", 60),

		// Database
		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:      getenv("DB_PATH", "carmarket.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Marketplace
		MaxPhotos:     getint("MAX_PHOTOS", 3),
		DefaultAdDays: getint("DEFAULT_AD_DAYS", 7),
		PageSize:      getint("PAGE_SIZE", 5),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 1.0),
		RateBurst: getint("RATE_BURST", 5),

		// Maintenance
		IntakeTTL: getdur("INTAKE_TTL", 24*time.Hour),
		DedupTTL:  getdur("DEDUP_TTL", 72*time.Hour),
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty with the sqlite driver")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL must not be empty with the postgres driver")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be sqlite or postgres")
	}
	if cfg.PollTimeout <= 0 {
		return cfg, errors.New("POLL_TIMEOUT must be > 0")
	}
	if cfg.MaxPhotos < 1 {
		return cfg, errors.New("MAX_PHOTOS must be >= 1")
	}
	if cfg.DefaultAdDays < 1 {
		return cfg, errors.New("DEFAULT_AD_DAYS must be >= 1")
	}
	if cfg.PageSize < 1 {
		return cfg, errors.New("PAGE_SIZE must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.IntakeTTL <= 0 {
		return cfg, errors.New("INTAKE_TTL must be > 0")
	}
	if cfg.DedupTTL <= 0 {
		return cfg, errors.New("DEDUP_TTL must be > 0")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
