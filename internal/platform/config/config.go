package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAPIURL          = "/admin"
	DefaultAPIOrigin       = "http://localhost:8080"
	DefaultTimeout         = 30 * time.Second
	DefaultRetryAttempts   = 3
	DefaultTokenStorageKey = "margem_admin_token"
	UserStorageKey         = "margem_admin_user"
)

// Client captures the admin API client configuration.
type Client struct {
	// APIURL is the base path of the admin API. Relative values are resolved
	// against APIOrigin so a reverse proxy can route them.
	APIURL          string
	APIOrigin       string
	Timeout         time.Duration
	RetryAttempts   int
	TokenStorageKey string
	StateDir        string
	RedisURL        string
	LogLevel        slog.Level
	Debug           bool
}

// MockServer captures the mock admin API configuration.
type MockServer struct {
	Addr      string
	JWTSecret string
	// TokenTTL of zero issues tokens without an exp claim.
	TokenTTL time.Duration
	// Latency is added to every admin API response.
	Latency time.Duration
}

// FromEnv builds a Client config from environment variables so main stays lean.
func FromEnv() Client {
	cfg := Client{
		APIURL:          getEnv("VITE_API_URL", DefaultAPIURL),
		APIOrigin:       getEnv("MARGEM_API_ORIGIN", DefaultAPIOrigin),
		Timeout:         DefaultTimeout,
		RetryAttempts:   DefaultRetryAttempts,
		TokenStorageKey: getEnv("VITE_JWT_STORAGE_KEY", DefaultTokenStorageKey),
		StateDir:        os.Getenv("MARGEM_STATE_DIR"),
		RedisURL:        os.Getenv("MARGEM_REDIS_URL"),
		LogLevel:        parseLevel(os.Getenv("MARGEM_LOG_LEVEL")),
		Debug:           os.Getenv("MARGEM_DEBUG") == "true",
	}

	if ms, ok := getEnvInt("VITE_API_TIMEOUT"); ok && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	if n, ok := getEnvInt("VITE_API_RETRY_ATTEMPTS"); ok && n >= 0 {
		cfg.RetryAttempts = n
	}
	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}
	return cfg
}

// MockFromEnv builds the mock server config.
func MockFromEnv() MockServer {
	cfg := MockServer{
		Addr:      getEnv("MOCK_API_ADDR", ":8080"),
		JWTSecret: getEnv("MOCK_JWT_SECRET", "dev-secret-key-change-in-production"),
		TokenTTL:  8 * time.Hour,
	}
	if ttl := os.Getenv("MOCK_TOKEN_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d >= 0 {
			cfg.TokenTTL = d
		}
	}
	if ms, ok := getEnvInt("MOCK_LATENCY_MS"); ok && ms > 0 {
		cfg.Latency = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".margem-admin"
	}
	return filepath.Join(home, ".margem-admin")
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
