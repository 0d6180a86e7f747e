package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Fetcher modes select where verification records are read from.
const (
	FetcherModeHTTP     = "http"
	FetcherModePostgres = "postgres"
	FetcherModeMock     = "mock"
)

// Server captures the full service configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	// Status cache tuning. See Validate for the accepted ranges.
	CacheTTL        time.Duration
	CacheMaxEntries int
	Debounce        time.Duration
	FetchDelay      time.Duration

	// Record fetching.
	FetcherMode  string
	BackendURL   string
	FetchTimeout time.Duration

	// Optional infrastructure. Empty values disable the component.
	DatabaseURL string
	RedisURL    string

	KafkaBrokers     string
	KafkaStatusTopic string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:          envOr("VERISTAT_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),

		CacheTTL:        envDuration("STATUS_CACHE_TTL", 5*time.Minute),
		CacheMaxEntries: envInt("STATUS_CACHE_MAX_ENTRIES", 10000),
		Debounce:        envDuration("STATUS_DEBOUNCE", 500*time.Millisecond),
		FetchDelay:      envDuration("STATUS_FETCH_DELAY", 100*time.Millisecond),

		FetcherMode:  envOr("FETCHER_MODE", FetcherModeHTTP),
		BackendURL:   os.Getenv("KYC_BACKEND_URL"),
		FetchTimeout: envDuration("KYC_FETCH_TIMEOUT", 10*time.Second),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		KafkaBrokers:     os.Getenv("KAFKA_BROKERS"),
		KafkaStatusTopic: envOr("KAFKA_STATUS_TOPIC", "veristat.status.resolved"),
	}
}

// Validate rejects configurations the status pipeline cannot run with.
// Called once at startup; a failure here is fatal and not recoverable.
func (c Server) Validate() error {
	if c.CacheTTL <= 0 {
		return fmt.Errorf("STATUS_CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("STATUS_CACHE_MAX_ENTRIES must be positive, got %d", c.CacheMaxEntries)
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("STATUS_DEBOUNCE must be positive, got %s", c.Debounce)
	}
	if c.FetchDelay < 0 {
		return fmt.Errorf("STATUS_FETCH_DELAY must not be negative, got %s", c.FetchDelay)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("KYC_FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	switch c.FetcherMode {
	case FetcherModeHTTP:
		if c.BackendURL == "" {
			return fmt.Errorf("KYC_BACKEND_URL is required in http fetcher mode")
		}
	case FetcherModePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in postgres fetcher mode")
		}
	case FetcherModeMock:
	default:
		return fmt.Errorf("unknown FETCHER_MODE %q", c.FetcherMode)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
