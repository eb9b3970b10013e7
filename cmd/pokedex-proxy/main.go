package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/pokedex-proxy/internal/api"
	"github.com/Sternrassler/pokedex-proxy/internal/config"
	"github.com/Sternrassler/pokedex-proxy/pkg/cache"
	"github.com/Sternrassler/pokedex-proxy/pkg/catalog"
	"github.com/Sternrassler/pokedex-proxy/pkg/client"
	"github.com/Sternrassler/pokedex-proxy/pkg/logging"
	"github.com/Sternrassler/pokedex-proxy/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.LogLevel)
	logCfg.Pretty = cfg.LogPretty
	logging.Setup(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}

// writeMargin is the time left to write a response after the request
// timeout has fired.
const writeMargin = 5 * time.Second

// run listens on the configured address and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}
	return serve(ctx, cfg, ln)
}

// serve serves on ln until ctx is cancelled, then shuts down gracefully.
func serve(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	handler, cleanup, err := buildHandler(ctx, cfg)
	if err != nil {
		ln.Close()
		return err
	}
	defer cleanup()

	server := newHTTPServer(cfg, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", ln.Addr().String()).
			Str("base_url", cfg.BaseURL).
			Str("cache_backend", cfg.CacheBackend).
			Str("user_agent", cfg.UserAgent).
			Dur("request_timeout", cfg.RequestTimeout).
			Msg("Starting pokedex proxy")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newHTTPServer returns a server whose write deadline outlasts the request
// timeout, so a timed-out page still gets its error response written.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + writeMargin,
		IdleTimeout:  120 * time.Second,
	}
}

// buildHandler wires cache, upstream client, aggregator and router.
func buildHandler(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	store, closeStore, err := newCacheStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	clientCfg := client.DefaultConfig(store, cfg.UserAgent)
	clientCfg.Timeout = cfg.HTTPTimeout
	clientCfg.DefaultTTL = cfg.CacheDefaultTTL
	clientCfg.MaxRetries = cfg.MaxRetries

	upstream, err := client.New(clientCfg)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("create upstream client: %w", err)
	}

	fetcher := pagination.NewBatchFetcher(pagination.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		Timeout:        cfg.FetchTimeout,
	})
	agg := catalog.NewAggregator(upstream,
		catalog.WithBaseURL(cfg.BaseURL),
		catalog.WithBatchFetcher(fetcher),
	)

	handler := api.New(agg, upstream, api.Options{
		MaxLimit:       cfg.MaxLimit,
		AllowedOrigins: cfg.CORSOrigin,
		RequestTimeout: cfg.RequestTimeout,
	})

	cleanup := func() {
		upstream.Close()
		closeStore()
	}
	return handler, cleanup, nil
}

// newCacheStore creates the configured cache backend. The returned store is
// nil for the "none" backend.
func newCacheStore(ctx context.Context, cfg *config.Config) (cache.Store, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheBackendNone:
		log.Warn().Msg("Upstream response cache disabled")
		return nil, func() {}, nil

	case config.CacheBackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Connected to Redis")

		return cache.NewManager(redisClient), func() { redisClient.Close() }, nil

	default:
		log.Info().Int("max_entries", cfg.MemoryEntries).Msg("Using in-memory response cache")
		return cache.NewMemoryStore(cfg.MemoryEntries), func() {}, nil
	}
}
