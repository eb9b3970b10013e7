package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/pokedex-proxy/pkg/client"
	"github.com/Sternrassler/pokedex-proxy/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the public PokeAPI list endpoint.
	DefaultBaseURL = "https://pokeapi.co/api/v2/pokemon"

	// DefaultLimit is used when a request carries no usable limit.
	DefaultLimit = 20
)

var (
	pagesServedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_pages_served_total",
		Help: "Catalog pages served by outcome",
	}, []string{"outcome"})

	pageDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_page_duration_seconds",
		Help:    "Time to assemble one catalog page",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
	})

	itemsFilteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_items_filtered_total",
		Help: "Items dropped by the name filter",
	})
)

// JSONGetter fetches and decodes one upstream document.
// *client.Client satisfies it.
type JSONGetter interface {
	GetJSON(ctx context.Context, rawURL string, v any) error
}

// Aggregator assembles catalog pages.
type Aggregator struct {
	upstream JSONGetter
	fetcher  *pagination.BatchFetcher
	baseURL  string
	logger   zerolog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithBaseURL overrides the upstream list endpoint.
func WithBaseURL(baseURL string) Option {
	return func(a *Aggregator) {
		a.baseURL = baseURL
	}
}

// WithBatchFetcher overrides the detail fan-out.
func WithBatchFetcher(bf *pagination.BatchFetcher) Option {
	return func(a *Aggregator) {
		a.fetcher = bf
	}
}

// NewAggregator creates an aggregator reading from upstream.
func NewAggregator(upstream JSONGetter, opts ...Option) *Aggregator {
	if upstream == nil {
		panic("upstream cannot be nil")
	}

	a := &Aggregator{
		upstream: upstream,
		fetcher:  pagination.NewBatchFetcher(pagination.DefaultConfig()),
		baseURL:  DefaultBaseURL,
		logger:   log.With().Str("component", "catalog").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// FetchPage fetches, enriches and filters one page of the catalog.
//
// The list endpoint is called once; if it fails no detail calls are made.
// Every entry's detail is then fetched through the batch fetcher, and the
// first failure aborts the page. Items keep the upstream list order. A
// non-positive limit is replaced by DefaultLimit.
//
// All failures are returned as (or wrap) *client.UpstreamError.
func (a *Aggregator) FetchPage(ctx context.Context, req PageRequest) (*Envelope, error) {
	start := time.Now()
	defer func() {
		pageDuration.Observe(time.Since(start).Seconds())
	}()

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	listURL, err := a.listURL(req.Limit, req.Offset)
	if err != nil {
		pagesServedTotal.WithLabelValues("error").Inc()
		return nil, &client.UpstreamError{
			URL:        a.baseURL,
			ErrorClass: client.ErrorClassClient,
			Message:    "invalid catalog base url",
			Err:        err,
		}
	}

	var list ListResponse
	if err := a.upstream.GetJSON(ctx, listURL, &list); err != nil {
		pagesServedTotal.WithLabelValues("list_error").Inc()
		return nil, fmt.Errorf("list fetch failed: %w", asUpstream(err, listURL))
	}

	// The envelope never holds more than limit items.
	entries := list.Results
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	details := make([]DetailRecord, len(entries))
	err = a.fetcher.FetchAll(ctx, len(entries), func(ctx context.Context, i int) error {
		return a.upstream.GetJSON(ctx, entries[i].URL, &details[i])
	})
	if err != nil {
		pagesServedTotal.WithLabelValues("detail_error").Inc()
		return nil, fmt.Errorf("detail fetch failed: %w", asUpstream(err, ""))
	}

	items := make([]ViewModel, 0, len(entries))
	for i, entry := range entries {
		items = append(items, project(entry, details[i]))
	}

	if req.Search != "" {
		before := len(items)
		items = FilterByName(items, req.Search)
		itemsFilteredTotal.Add(float64(before - len(items)))
	}

	meta := pagination.Compute(list.Count, req.Limit, req.Offset)

	pagesServedTotal.WithLabelValues("ok").Inc()
	a.logger.Info().
		Int("limit", req.Limit).
		Int("offset", req.Offset).
		Str("search", req.Search).
		Int("items", len(items)).
		Int("total", list.Count).
		Dur("duration", time.Since(start)).
		Msg("Catalog page served")

	return &Envelope{
		Items:      items,
		Total:      list.Count,
		Search:     req.Search,
		Pagination: &meta,
	}, nil
}

// listURL appends limit, and offset when positive, to the base URL.
func (a *Aggregator) listURL(limit, offset int) (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base url %q is not absolute", a.baseURL)
	}

	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// project builds the view model for entry from its detail record.
func project(entry ListEntry, detail DetailRecord) ViewModel {
	name := detail.Name
	if name == "" {
		name = entry.Name
	}

	var image string
	if detail.Sprites.FrontDefault != nil {
		image = *detail.Sprites.FrontDefault
	}

	types := make([]string, 0, len(detail.Types))
	for _, slot := range detail.Types {
		types = append(types, slot.Type.Name)
	}

	return ViewModel{
		Name:  name,
		URL:   entry.URL,
		ID:    detail.ID,
		Image: image,
		Types: types,
	}
}

// FilterByName keeps the items whose name contains search, ignoring case.
// An empty search keeps everything.
func FilterByName(items []ViewModel, search string) []ViewModel {
	if search == "" {
		return items
	}

	needle := strings.ToLower(search)
	filtered := make([]ViewModel, 0, len(items))
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), needle) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// asUpstream guarantees err carries an *client.UpstreamError.
func asUpstream(err error, rawURL string) error {
	var ue *client.UpstreamError
	if errors.As(err, &ue) {
		return err
	}

	return &client.UpstreamError{
		URL:        rawURL,
		ErrorClass: client.ErrorClassNetwork,
		Message:    "request failed",
		Err:        err,
	}
}
