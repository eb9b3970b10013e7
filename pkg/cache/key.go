package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every key written by this package.
const KeyPrefix = "catalog"

// CacheKey identifies one cached upstream response.
type CacheKey struct {
	// Endpoint is host plus path (e.g., "pokeapi.co/api/v2/pokemon/")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"limit": "20"})
	QueryParams url.Values
}

// KeyForURL builds the cache key for an upstream URL.
func KeyForURL(u *url.URL) CacheKey {
	if u == nil {
		return CacheKey{}
	}
	return CacheKey{
		Endpoint:    u.Host + u.EscapedPath(),
		QueryParams: u.Query(),
	}
}

// String generates a deterministic cache key string.
// Format: catalog:endpoint:query1=val1:query2=val2a,val2b
//
// Example:
//
//	catalog:pokeapi.co/api/v2/pokemon:limit=20:offset=40
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, key+"="+strings.Join(k.QueryParams[key], ","))
		}
	}

	return strings.Join(parts, ":")
}
