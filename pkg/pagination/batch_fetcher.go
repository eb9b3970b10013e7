package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	fanoutInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_fanout_inflight",
		Help: "Detail fetches currently in flight across all requests",
	})

	fanoutBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_fanout_batch_duration_seconds",
		Help:    "Duration of a full detail fan-out by outcome",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
	}, []string{"outcome"})
)

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches per batch.
	MaxConcurrency int
	// Timeout bounds each individual fetch.
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
	}
}

// FetchFunc fetches item i. It must honor ctx and write its result to a
// slot owned by index i.
type FetchFunc func(ctx context.Context, i int) error

// BatchFetcher runs a bounded, fail-fast fan-out.
type BatchFetcher struct {
	config Config
}

// NewBatchFetcher creates a new batch fetcher. Non-positive settings fall
// back to DefaultConfig values.
func NewBatchFetcher(config Config) *BatchFetcher {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &BatchFetcher{config: config}
}

// Config returns the effective configuration.
func (bf *BatchFetcher) Config() Config {
	return bf.config
}

// FetchAll calls fn for every index in [0, n). The first error cancels the
// context passed to the other calls and is returned once they have exited.
// A cancelled ctx is reported even if no call failed.
func (bf *BatchFetcher) FetchAll(ctx context.Context, n int, fn FetchFunc) error {
	if n <= 0 {
		return nil
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)

	for i := 0; i < n; i++ {
		// Stop scheduling once a sibling has failed.
		if gctx.Err() != nil {
			break
		}

		i := i // per-iteration copy (go.mod targets go 1.21)
		g.Go(func() error {
			fanoutInFlight.Inc()
			defer fanoutInFlight.Dec()

			fetchCtx, cancel := context.WithTimeout(gctx, bf.config.Timeout)
			defer cancel()

			if err := fn(fetchCtx, i); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		// Parent cancelled before every item was scheduled.
		err = ctx.Err()
	}
	if err != nil {
		fanoutBatchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		log.Debug().
			Err(err).
			Int("items", n).
			Dur("duration", time.Since(start)).
			Msg("Fan-out aborted")
		return err
	}

	fanoutBatchDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	log.Debug().
		Int("items", n).
		Int("max_concurrency", bf.config.MaxConcurrency).
		Dur("duration", time.Since(start)).
		Msg("Fan-out complete")

	return nil
}
