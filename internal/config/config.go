package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	// Server
	Port        int    `koanf:"port"`
	Host        string `koanf:"host"`
	BaseURL     string `koanf:"base_url"`
	AdminSecret string `koanf:"admin_secret"`

	// Database
	DatabaseDriver string `koanf:"database_driver"` // "sqlite" or "postgres"
	DatabasePath   string `koanf:"database_path"`
	DatabaseURL    string `koanf:"database_url"`

	// Redis backs sessions and rate limiting when set
	RedisURL       string        `koanf:"redis_url"`
	SessionBackend string        `koanf:"session_backend"` // "sql" or "redis"
	SessionTTL     time.Duration `koanf:"session_ttl"`

	// Rate Limiting
	SubmissionRateLimit int           `koanf:"submission_rate_limit"` // per window
	VoteRateLimit       int           `koanf:"vote_rate_limit"`
	FlagRateLimit       int           `koanf:"flag_rate_limit"`
	MeTooRateLimit      int           `koanf:"metoo_rate_limit"`
	RateLimitWindow     time.Duration `koanf:"rate_limit_window"`

	// Logging
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// Moderation
	Moderation Moderation `koanf:"moderation"`
}

type Moderation struct {
	FlagWeight        int  `koanf:"flag_weight"`
	HideBelow         int  `koanf:"hide_below"`
	WhiningFlagLimit  int  `koanf:"whining_flag_limit"`
	RecomputeOnUpvote bool `koanf:"recompute_on_upvote"`
	ConflictRetries   int  `koanf:"conflict_retries"`
	RescoreWorkers    int  `koanf:"rescore_workers"`
}

func defaults() *Config {
	return &Config{
		Port:                8080,
		Host:                "0.0.0.0",
		BaseURL:             "http://localhost:8080",
		DatabaseDriver:      "sqlite",
		DatabasePath:        "gripeboard.db",
		SessionBackend:      "sql",
		SessionTTL:          30 * 24 * time.Hour,
		SubmissionRateLimit: 10,
		VoteRateLimit:       120,
		FlagRateLimit:       30,
		MeTooRateLimit:      60,
		RateLimitWindow:     time.Hour,
		LogLevel:            "info",
		LogFormat:           "console",
		Moderation: Moderation{
			FlagWeight:       2,
			HideBelow:        -5,
			WhiningFlagLimit: 3,
			ConflictRetries:  5,
			RescoreWorkers:   4,
		},
	}
}

// Load returns the defaults overridden by environment variables.
func Load() *Config {
	return applyEnv(defaults())
}

// LoadFile reads a TOML config file on top of the defaults, then applies
// environment overrides. An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		if err := k.Unmarshal("", cfg); err != nil {
			return nil, fmt.Errorf("error unmarshaling config: %w", err)
		}
	}
	return applyEnv(cfg), nil
}

func applyEnv(cfg *Config) *Config {
	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.Host = getEnv("HOST", cfg.Host)
	cfg.BaseURL = getEnv("BASE_URL", cfg.BaseURL)
	cfg.AdminSecret = getEnv("ADMIN_SECRET", cfg.AdminSecret)
	cfg.DatabaseDriver = getEnv("DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabasePath = getEnv("DATABASE_PATH", cfg.DatabasePath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.SessionBackend = getEnv("SESSION_BACKEND", cfg.SessionBackend)
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.SubmissionRateLimit = getEnvInt("SUBMISSION_RATE_LIMIT", cfg.SubmissionRateLimit)
	cfg.VoteRateLimit = getEnvInt("VOTE_RATE_LIMIT", cfg.VoteRateLimit)
	cfg.FlagRateLimit = getEnvInt("FLAG_RATE_LIMIT", cfg.FlagRateLimit)
	cfg.MeTooRateLimit = getEnvInt("METOO_RATE_LIMIT", cfg.MeTooRateLimit)
	cfg.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", cfg.RateLimitWindow)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	m := &cfg.Moderation
	m.FlagWeight = getEnvInt("FLAG_WEIGHT", m.FlagWeight)
	m.HideBelow = getEnvInt("HIDE_BELOW", m.HideBelow)
	m.WhiningFlagLimit = getEnvInt("WHINING_FLAG_LIMIT", m.WhiningFlagLimit)
	m.RecomputeOnUpvote = getEnvBool("RECOMPUTE_ON_UPVOTE", m.RecomputeOnUpvote)
	m.ConflictRetries = getEnvInt("CONFLICT_RETRIES", m.ConflictRetries)
	m.RescoreWorkers = getEnvInt("RESCORE_WORKERS", m.RescoreWorkers)

	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
