package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	StoreBackend       string
	DatabaseURL        string
	LocalStorePath     string
	LocalCharitiesFile string
	JWTSecret          string
	PollInterval       time.Duration
	CharityCacheSize   int
	WatchUserID        string
	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		LocalStorePath:     getEnv("LOCAL_STORE_PATH", "./data/ledger.db"),
		LocalCharitiesFile: strings.TrimSpace(os.Getenv("LOCAL_CHARITIES_FILE")),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		PollInterval:       time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 30)),
		CharityCacheSize:   getEnvInt("CHARITY_CACHE_SIZE", 256),
		WatchUserID:        strings.TrimSpace(os.Getenv("WATCH_USER_ID")),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	defaultBackend := BackendLocal
	if cfg.DatabaseURL != "" {
		defaultBackend = BackendRemote
	}
	cfg.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", defaultBackend))

	switch cfg.StoreBackend {
	case BackendRemote:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the remote store backend")
		}
	case BackendLocal:
		if strings.TrimSpace(cfg.LocalStorePath) == "" {
			return nil, fmt.Errorf("LOCAL_STORE_PATH is required for the local store backend")
		}
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendRemote, BackendLocal, cfg.StoreBackend)
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.CharityCacheSize < 0 {
		cfg.CharityCacheSize = 0
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
