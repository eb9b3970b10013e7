// Package catalog aggregates one page of the upstream creature catalog:
// the list call, the per-entry detail fan-out, the projection into view
// models and the optional name filter.
package catalog

import "github.com/Sternrassler/pokedex-proxy/pkg/pagination"

// ListEntry is one summary row of the upstream list endpoint.
type ListEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListResponse is the upstream list payload.
type ListResponse struct {
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  []ListEntry `json:"results"`
}

// NamedResource is an upstream {name, url} reference.
type NamedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TypeSlot is one entry of a detail record's types list.
type TypeSlot struct {
	Slot int           `json:"slot"`
	Type NamedResource `json:"type"`
}

// Sprites holds the image URLs of a detail record. Upstream sends null for
// missing sprites.
type Sprites struct {
	FrontDefault *string `json:"front_default"`
}

// DetailRecord is the subset of the upstream detail payload the aggregator uses.
type DetailRecord struct {
	ID      int        `json:"id"`
	Name    string     `json:"name"`
	Sprites Sprites    `json:"sprites"`
	Types   []TypeSlot `json:"types"`
}

// ViewModel is the compact card returned to the presentation layer.
type ViewModel struct {
	Name  string   `json:"name"`
	URL   string   `json:"url"`
	ID    int      `json:"id"`
	Image string   `json:"image"`
	Types []string `json:"types"`
}

// Envelope is the response body for one page.
//
// Total is the upstream whole-catalog count. It is not reduced by the name
// filter, which only sees the current page.
type Envelope struct {
	Items      []ViewModel      `json:"items"`
	Total      int              `json:"total"`
	Search     string           `json:"search,omitempty"`
	Pagination *pagination.Meta `json:"pagination,omitempty"`
}

// PageRequest selects one page of the catalog.
type PageRequest struct {
	Limit  int
	Offset int
	Search string
}
