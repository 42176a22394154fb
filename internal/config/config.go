package config

import (
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type AppConfig struct {
	Port string

	// Fault injection defaults for the forecast path.
	DelayMs  int64
	FailRate float64

	StoreDriver    string
	DatabaseURL    string
	BreakerEnabled bool

	// Retention sweep. RetentionMaxAge of 0 disables it.
	RetentionMaxAge   time.Duration
	RetentionInterval time.Duration

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from .env and the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{
		Port:        getenvDefault("PORT", "5010"),
		StoreDriver: getenvDefault("STORE_DRIVER", DriverMemory),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getenvDefault("LOG_LEVEL", "info"),
		LogFormat:   getenvDefault("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.DelayMs, err = getenvInt64("WEATHER_DELAY_MS", 0); err != nil {
		return nil, err
	}

	if cfg.FailRate, err = getenvFloat("WEATHER_FAIL_RATE", 0); err != nil {
		return nil, err
	}
	if math.IsNaN(cfg.FailRate) || cfg.FailRate < 0 || cfg.FailRate > 1 {
		return nil, fmt.Errorf("invalid WEATHER_FAIL_RATE: %v is outside [0,1]", cfg.FailRate)
	}

	switch cfg.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.BreakerEnabled, err = getenvBool("STORE_BREAKER_ENABLED", true); err != nil {
		return nil, err
	}

	if cfg.RetentionMaxAge, err = getenvDuration("RETENTION_MAX_AGE", "0s"); err != nil {
		return nil, err
	}
	if cfg.RetentionInterval, err = getenvDuration("RETENTION_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout <= 0 {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: must be positive")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}
