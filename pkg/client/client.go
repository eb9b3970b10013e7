// Package client provides the HTTP client for the upstream catalog API with
// response caching, conditional revalidation, error classification and
// optional retries.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/pokedex-proxy/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for upstream client operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_upstream_requests_total",
		Help: "Total upstream requests by outcome",
	}, []string{"status"})

	upstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds, cache hits included",
		Buckets: []float64{0.005, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// Client talks to the upstream catalog API.
type Client struct {
	httpClient *http.Client
	cache      cache.Store
	retry      RetryConfig
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Cache stores upstream responses. Nil disables caching.
	Cache cache.Store

	// UserAgent is sent with every upstream request.
	UserAgent string

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration

	// DefaultTTL applies when a response carries no freshness headers.
	DefaultTTL time.Duration

	// Retry
	MaxRetries     int // additional attempts after the first; 0 disables retries
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig(store cache.Store, userAgent string) Config {
	retry := DefaultRetryConfig()
	return Config{
		Cache:          store,
		UserAgent:      userAgent,
		Timeout:        30 * time.Second,
		DefaultTTL:     cache.DefaultTTL,
		MaxRetries:     0,
		InitialBackoff: retry.InitialBackoff,
		MaxBackoff:     retry.MaxBackoff,
	}
}

// New creates a new upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		retry.MaxBackoff = cfg.MaxBackoff
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  cfg.Cache,
		retry:  retry,
		config: cfg,
		logger: log.With().Str("component", "catalog-client").Logger(),
	}, nil
}

// Do performs an HTTP request with caching, conditional revalidation and
// error handling.
//
// A fresh cache entry is returned without touching the network. A stale
// entry with a validator turns the request into a conditional one; a 304
// answer refreshes the entry and returns it. Retriable failures (5xx, 429,
// transport) are retried according to the retry configuration and surface
// as *UpstreamError once attempts run out. Other non-2xx responses are
// returned to the caller unchanged.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	target := req.URL.String()

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	// Cache lookup
	cacheKey := cache.KeyForURL(req.URL)
	var cachedEntry *cache.CacheEntry
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			cachedEntry = entry
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("url", target).Msg("Cache get error")
		}
	}

	if cachedEntry != nil && !cachedEntry.IsExpired() {
		c.logger.Debug().Str("url", target).Dur("ttl", cachedEntry.TTL()).Msg("Serving from cache")
		upstreamRequestsTotal.WithLabelValues("cache_hit").Inc()
		return cache.EntryToResponse(cachedEntry), nil
	}

	if cachedEntry != nil && cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		c.logger.Debug().
			Str("url", target).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Trace().Str("url", target).Str("method", req.Method).Msg("Executing upstream request")

	var resp *http.Response

	retryErr := retryWithBackoff(ctx, c.retry, func() (ErrorClass, error) {
		var reqErr error
		resp, reqErr = c.httpClient.Do(req)

		if reqErr != nil {
			upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			upstreamRequestsTotal.WithLabelValues("network_error").Inc()
			c.logger.Warn().Err(reqErr).Str("url", target).Msg("Upstream request failed")
			return ErrorClassNetwork, &UpstreamError{
				URL:        target,
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        reqErr,
			}
		}

		upstreamRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusNotModified {
			return "", nil
		}

		if errClass := classifyStatus(resp.StatusCode); errClass != "" {
			upstreamErrorsTotal.WithLabelValues(string(errClass)).Inc()
			c.logger.Warn().
				Str("url", target).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Upstream returned error status")

			if shouldRetry(errClass) {
				resp.Body.Close()
				return errClass, &UpstreamError{
					URL:        target,
					StatusCode: resp.StatusCode,
					ErrorClass: errClass,
					Message:    resp.Status,
				}
			}
		}

		return "", nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		resp.Body.Close()
		cache.NotModifiedResponses.Inc()

		cachedEntry.Expires = cache.FreshUntil(resp.Header, c.config.DefaultTTL)
		if err := c.cache.UpdateTTL(ctx, cacheKey, cachedEntry.Expires); err != nil {
			c.logger.Warn().Err(err).Str("url", target).Msg("Failed to update cache TTL")
		}

		c.logger.Debug().Str("url", target).Msg("304 Not Modified - using cache")
		return cache.EntryToResponse(cachedEntry), nil
	}

	if resp.StatusCode == http.StatusOK && c.cache != nil {
		entry, err := cache.ResponseToEntry(resp, c.config.DefaultTTL)
		if err != nil {
			// ResponseToEntry has consumed the body.
			resp.Body.Close()
			return nil, &UpstreamError{
				URL:        target,
				StatusCode: resp.StatusCode,
				ErrorClass: ErrorClassNetwork,
				Message:    "read body",
				Err:        err,
			}
		}
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Str("url", target).Msg("Failed to cache response")
		} else {
			c.logger.Debug().Str("url", target).Dur("ttl", entry.TTL()).Msg("Cached response")
		}
	}

	return resp, nil
}

// Get performs a GET request to an absolute upstream URL.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &UpstreamError{
			URL:        rawURL,
			ErrorClass: ErrorClassClient,
			Message:    "create request",
			Err:        err,
		}
	}

	return c.Do(req)
}

// GetJSON GETs rawURL and decodes a 200 response body into v.
// Every failure is returned as (or wraps) an *UpstreamError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		if IsUpstreamError(err) {
			return err
		}
		return &UpstreamError{URL: rawURL, ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errClass := classifyStatus(resp.StatusCode)
		if errClass == "" {
			errClass = ErrorClassClient
		}
		return &UpstreamError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return &UpstreamError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode response",
			Err:        err,
		}
	}

	return nil
}

// Ping checks the cache backend, if any.
func (c *Client) Ping(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Ping(ctx)
}

// Close releases idle upstream connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
