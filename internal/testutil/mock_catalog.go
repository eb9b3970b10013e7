// Package testutil provides a mock PokeAPI server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ListPath is the list endpoint served by MockCatalog.
const ListPath = "/api/v2/pokemon"

// Pokemon describes one catalog entry served by MockCatalog.
type Pokemon struct {
	ID     int
	Name   string
	Types  []string
	Sprite string // empty encodes front_default as null

	// DetailStatus overrides the detail response status (0 = 200).
	DetailStatus int
	// DetailBody overrides the detail response body.
	DetailBody string
	// Delay is applied before the detail response is written.
	Delay time.Duration
}

// MockCatalogResponse defines a canned response for a path.
type MockCatalogResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCatalog is a configurable PokeAPI stand-in.
type MockCatalog struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	pokemon  []Pokemon
	total    int
	etags    bool

	// Tracking
	requestCount     int
	listCount        int
	detailCount      int
	conditionalCount int
	inFlight         int
	maxInFlight      int
	lastListQuery    url.Values
	cancelledDetails int
}

// NewMockCatalog starts a server listing the given pokemon in order.
// The reported total defaults to len(pokemon).
func NewMockCatalog(pokemon ...Pokemon) *MockCatalog {
	mock := &MockCatalog{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pokemon:  pokemon,
		total:    len(pokemon),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.conditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// ListURL returns the list endpoint URL.
func (m *MockCatalog) ListURL() string {
	return m.server.URL + ListPath
}

// DetailURL returns the detail endpoint URL for an id.
func (m *MockCatalog) DetailURL(id int) string {
	return fmt.Sprintf("%s%s/%d/", m.server.URL, ListPath, id)
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// SetTotal overrides the count reported by the list endpoint.
func (m *MockCatalog) SetTotal(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = total
}

// EnableETags makes every 200 carry an ETag and answers matching
// If-None-Match requests with 304.
func (m *MockCatalog) EnableETags() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags = true
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCatalog) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a canned response for a path.
func (m *MockCatalog) SetResponse(path string, resp MockCatalogResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// Reset clears all tracking counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.listCount = 0
	m.detailCount = 0
	m.conditionalCount = 0
	m.maxInFlight = 0
	m.cancelledDetails = 0
	m.lastListQuery = nil
}

// RequestCount returns the number of requests made to the server.
func (m *MockCatalog) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// ListCount returns the number of list requests handled by the default handler.
func (m *MockCatalog) ListCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCount
}

// DetailCount returns the number of detail requests handled by the default handler.
func (m *MockCatalog) DetailCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.detailCount
}

// ConditionalCount returns the number of conditional requests.
func (m *MockCatalog) ConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditionalCount
}

// MaxInFlight returns the highest number of concurrent detail requests seen.
func (m *MockCatalog) MaxInFlight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxInFlight
}

// CancelledDetails returns how many delayed detail requests were abandoned
// by the client before the delay elapsed.
func (m *MockCatalog) CancelledDetails() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancelledDetails
}

// LastListQuery returns the query of the most recent list request.
func (m *MockCatalog) LastListQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastListQuery
}

func (m *MockCatalog) defaultHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == ListPath:
		m.serveList(w, r)
	case strings.HasPrefix(path, ListPath+"/"):
		id, err := strconv.Atoi(strings.TrimPrefix(path, ListPath+"/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		m.serveDetail(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockCatalog) serveList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(query.Get("offset"))

	m.mu.Lock()
	m.listCount++
	m.lastListQuery = query
	all := m.pokemon
	total := m.total
	m.mu.Unlock()

	type result struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	results := []result{}
	for i := offset; i < len(all) && i < offset+limit; i++ {
		results = append(results, result{Name: all[i].Name, URL: m.DetailURL(all[i].ID)})
	}

	m.writeJSON(w, r, map[string]any{
		"count":    total,
		"next":     nil,
		"previous": nil,
		"results":  results,
	})
}

func (m *MockCatalog) serveDetail(w http.ResponseWriter, r *http.Request, id int) {
	m.mu.Lock()
	m.detailCount++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	var (
		p     Pokemon
		found bool
	)
	for _, candidate := range m.pokemon {
		if candidate.ID == id {
			p, found = candidate, true
			break
		}
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-r.Context().Done():
			m.mu.Lock()
			m.cancelledDetails++
			m.mu.Unlock()
			return
		}
	}

	if !found {
		http.NotFound(w, r)
		return
	}
	if p.DetailStatus != 0 && p.DetailStatus != http.StatusOK {
		w.WriteHeader(p.DetailStatus)
		w.Write([]byte(`{"detail":"error"}`))
		return
	}
	if p.DetailBody != "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(p.DetailBody))
		return
	}

	m.writeJSON(w, r, DetailJSON(p))
}

func (m *MockCatalog) writeJSON(w http.ResponseWriter, r *http.Request, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.mu.RLock()
	etags := m.etags
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if etags {
		etag := fmt.Sprintf(`"%x"`, len(body))
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// DetailJSON renders the PokeAPI detail payload for p.
func DetailJSON(p Pokemon) map[string]any {
	types := make([]map[string]any, 0, len(p.Types))
	for i, name := range p.Types {
		types = append(types, map[string]any{
			"slot": i + 1,
			"type": map[string]string{"name": name, "url": "https://pokeapi.co/api/v2/type/" + name + "/"},
		})
	}

	var sprite any
	if p.Sprite != "" {
		sprite = p.Sprite
	}

	return map[string]any{
		"id":      p.ID,
		"name":    p.Name,
		"sprites": map[string]any{"front_default": sprite, "back_default": nil},
		"types":   types,
	}
}

// Starters returns the first nine catalog entries.
func Starters() []Pokemon {
	sprite := func(id int) string {
		return fmt.Sprintf("https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/%d.png", id)
	}
	return []Pokemon{
		{ID: 1, Name: "bulbasaur", Types: []string{"grass", "poison"}, Sprite: sprite(1)},
		{ID: 2, Name: "ivysaur", Types: []string{"grass", "poison"}, Sprite: sprite(2)},
		{ID: 3, Name: "venusaur", Types: []string{"grass", "poison"}, Sprite: sprite(3)},
		{ID: 4, Name: "charmander", Types: []string{"fire"}, Sprite: sprite(4)},
		{ID: 5, Name: "charmeleon", Types: []string{"fire"}, Sprite: sprite(5)},
		{ID: 6, Name: "charizard", Types: []string{"fire", "flying"}, Sprite: sprite(6)},
		{ID: 7, Name: "squirtle", Types: []string{"water"}, Sprite: sprite(7)},
		{ID: 8, Name: "wartortle", Types: []string{"water"}, Sprite: sprite(8)},
		{ID: 9, Name: "blastoise", Types: []string{"water"}, Sprite: sprite(9)},
	}
}
