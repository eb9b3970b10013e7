// Package api exposes the catalog over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Sternrassler/pokedex-proxy/pkg/catalog"
	"github.com/Sternrassler/pokedex-proxy/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PageFetcher assembles one catalog page. *catalog.Aggregator satisfies it.
type PageFetcher interface {
	FetchPage(ctx context.Context, req catalog.PageRequest) (*catalog.Envelope, error)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tune the HTTP surface.
type Options struct {
	// MaxLimit caps the page size. 0 leaves it uncapped.
	MaxLimit int

	// AllowedOrigins lists CORS origins. Empty disables the CORS middleware.
	AllowedOrigins []string

	// RequestTimeout bounds a whole request. 0 disables the timeout.
	RequestTimeout time.Duration
}

// Server holds the HTTP dependencies.
type Server struct {
	pages  PageFetcher
	ready  Pinger
	opts   Options
	router chi.Router
	logger zerolog.Logger
}

// New creates the API server. ready may be nil, in which case /ready
// always succeeds.
func New(pages PageFetcher, ready Pinger, opts Options) *Server {
	s := &Server{
		pages:  pages,
		ready:  ready,
		opts:   opts,
		router: chi.NewRouter(),
		logger: log.With().Str("component", "api").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(instrument)
	if s.opts.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.opts.RequestTimeout))
	}
	if len(s.opts.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/pokemons", s.handleGetPokemons)
	})

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	s.router.Get("/ready", s.handleReady)
	s.router.Handle("/metrics", metrics.Handler())
}

// --- Response helpers ---

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
