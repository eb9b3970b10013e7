package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Sternrassler/pokedex-proxy/pkg/catalog"
	"github.com/Sternrassler/pokedex-proxy/pkg/client"
	"github.com/Sternrassler/pokedex-proxy/pkg/pagination"
	"github.com/go-chi/chi/v5/middleware"
)

// handleGetPokemons serves one page of the catalog.
//
// Query parameters: limit (positive integer, default 20), search, page
// (1-based) and offset. An explicit offset takes precedence over page.
func (s *Server) handleGetPokemons(w http.ResponseWriter, r *http.Request) {
	req := s.parsePageRequest(r)

	env, err := s.pages.FetchPage(r.Context(), req)
	if err != nil {
		event := s.logger.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("limit", req.Limit).
			Int("offset", req.Offset).
			Str("search", req.Search)

		var ue *client.UpstreamError
		if errors.As(err, &ue) {
			event = event.Str("url", ue.URL).Int("status", ue.StatusCode).Str("error_class", string(ue.ErrorClass))
		}
		event.Msg("Failed to fetch catalog page")

		respondError(w, http.StatusInternalServerError, "Failed to fetch pokemons")
		return
	}

	respondJSON(w, http.StatusOK, env)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready.Ping(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) parsePageRequest(r *http.Request) catalog.PageRequest {
	query := r.URL.Query()

	limit := positiveInt(query.Get("limit"), catalog.DefaultLimit)
	if s.opts.MaxLimit > 0 && limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}

	offset := 0
	if raw := query.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	} else if page := positiveInt(query.Get("page"), 1); page > 1 {
		offset = pagination.OffsetForPage(page, limit)
	}

	return catalog.PageRequest{
		Limit:  limit,
		Offset: offset,
		Search: query.Get("search"),
	}
}

// positiveInt parses raw, returning fallback for anything that is not a
// positive integer.
func positiveInt(raw string, fallback int) int {
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
