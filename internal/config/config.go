package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProgressBackendRedis    = "redis"
	ProgressBackendPostgres = "postgres"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL        string
	ProgressBackend string
	DatabaseURL     string

	// LevelsDir, when set, adds or overrides levels from YAML files and is
	// watched for changes.
	LevelsDir string

	StepDelay      time.Duration
	HitPulse       time.Duration
	CompileTimeout time.Duration
	SessionTTL     time.Duration
	MaxActions     int
}

func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
		ProgressBackend: strings.ToLower(getEnv("PROGRESS_BACKEND", ProgressBackendRedis)),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		LevelsDir:       getEnv("LEVELS_DIR", ""),
	}

	cfg.StepDelay = parseDuration("STEP_DELAY", "500ms", &errs)
	cfg.HitPulse = parseDuration("HIT_PULSE", "300ms", &errs)
	cfg.CompileTimeout = parseDuration("COMPILE_TIMEOUT", "2s", &errs)
	cfg.SessionTTL = parseDuration("SESSION_TTL", "24h", &errs)

	maxActions, err := strconv.Atoi(getEnv("MAX_ACTIONS", "10000"))
	if err != nil || maxActions <= 0 {
		errs = append(errs, fmt.Errorf("MAX_ACTIONS must be a positive integer"))
	}
	cfg.MaxActions = maxActions

	switch cfg.ProgressBackend {
	case ProgressBackendRedis:
	case ProgressBackendPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when PROGRESS_BACKEND is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("PROGRESS_BACKEND must be %q or %q, got %q",
			ProgressBackendRedis, ProgressBackendPostgres, cfg.ProgressBackend))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parseDuration(key, defaultValue string, errs *[]error) time.Duration {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return 0
	}
	return d
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
