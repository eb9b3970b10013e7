// Package config loads the server configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backends accepted by CACHE_BACKEND.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

// Config holds all server settings.
type Config struct {
	Port       string
	BaseURL    string
	UserAgent  string
	LogLevel   string
	LogPretty  bool
	CORSOrigin []string

	CacheBackend    string
	RedisURL        string
	CacheDefaultTTL time.Duration
	MemoryEntries   int

	MaxConcurrency int
	FetchTimeout   time.Duration
	HTTPTimeout    time.Duration
	// RequestTimeout bounds one inbound request, including every upstream
	// call made for it.
	RequestTimeout time.Duration
	MaxRetries     int

	// MaxLimit caps the page size accepted from clients. 0 means uncapped.
	MaxLimit int

	ShutdownTimeout time.Duration
}

// Load reads the configuration from the environment, applying defaults for
// unset variables. Malformed values are reported as errors.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		BaseURL:      getEnv("CATALOG_BASE_URL", "https://pokeapi.co/api/v2/pokemon"),
		UserAgent:    getEnv("USER_AGENT", "pokedex-proxy/0.1.0"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		CacheBackend: strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory)),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CORSOrigin:   splitList(getEnv("CORS_ORIGINS", "*")),
	}

	var err error
	if cfg.LogPretty, err = getBool("LOG_PRETTY", false); err != nil {
		return nil, err
	}
	if cfg.CacheDefaultTTL, err = getDuration("CACHE_DEFAULT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MemoryEntries, err = getInt("CACHE_MEMORY_ENTRIES", 4096); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrency, err = getInt("MAX_CONCURRENCY", 10); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getDuration("FETCH_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = getInt("MAX_RETRIES", 0); err != nil {
		return nil, err
	}
	if cfg.MaxLimit, err = getInt("MAX_LIMIT", 0); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("USER_AGENT must not be empty")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid CATALOG_BASE_URL %q: must be an absolute URL", c.BaseURL)
	}

	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendNone:
	case CacheBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q: want memory, redis or none", c.CacheBackend)
	}

	if c.CacheDefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be positive (got %s)", c.CacheDefaultTTL)
	}
	if c.MemoryEntries <= 0 {
		return fmt.Errorf("CACHE_MEMORY_ENTRIES must be positive (got %d)", c.MemoryEntries)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("MAX_CONCURRENCY must be positive (got %d)", c.MaxConcurrency)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive (got %s)", c.FetchTimeout)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive (got %s)", c.HTTPTimeout)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive (got %s)", c.RequestTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be >= 0 (got %d)", c.MaxRetries)
	}
	if c.MaxLimit < 0 {
		return fmt.Errorf("MAX_LIMIT must be >= 0 (got %d)", c.MaxLimit)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
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
