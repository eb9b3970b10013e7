package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTTL is the fallback freshness when the upstream sends no caching headers.
	DefaultTTL = 24 * time.Hour

	// StaleGrace is how long a stale entry is retained for revalidation.
	StaleGrace = 1 * time.Hour
)

// ResponseToEntry converts an HTTP response to a CacheEntry.
// fallback is used when the response carries no freshness information;
// values <= 0 select DefaultTTL. The response body is restored after reading.
func ResponseToEntry(resp *http.Response, fallback time.Duration) (*CacheEntry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}
	if resp.Body == nil {
		return nil, fmt.Errorf("response body cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()

	resp.Body = io.NopCloser(bytes.NewReader(body))

	if fallback <= 0 {
		fallback = DefaultTTL
	}

	entry := &CacheEntry{
		Data:       body,
		ETag:       resp.Header.Get("ETag"),
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		CachedAt:   time.Now(),
		Expires:    parseExpires(resp.Header, fallback),
	}

	if lastModStr := resp.Header.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil {
			entry.LastModified = lastMod
		}
	}

	return entry, nil
}

// FreshUntil returns the freshness deadline announced by response headers.
// Values of fallback <= 0 select DefaultTTL.
func FreshUntil(headers http.Header, fallback time.Duration) time.Time {
	if fallback <= 0 {
		fallback = DefaultTTL
	}
	return parseExpires(headers, fallback)
}

// parseExpires derives the freshness deadline from response headers.
// Cache-Control wins over Expires. no-store and no-cache yield an already
// stale entry.
func parseExpires(headers http.Header, fallback time.Duration) time.Time {
	now := time.Now()

	if cc := headers.Get("Cache-Control"); cc != "" {
		for _, directive := range strings.Split(cc, ",") {
			directive = strings.ToLower(strings.TrimSpace(directive))
			switch {
			case directive == "no-store" || directive == "no-cache":
				return now
			case strings.HasPrefix(directive, "max-age="):
				secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
				if err == nil && secs >= 0 {
					return now.Add(time.Duration(secs) * time.Second)
				}
			}
		}
	}

	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return now.Add(fallback)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return now.Add(fallback)
	}

	if expires.Before(now) {
		return now
	}

	return expires
}

// noStore reports whether Cache-Control forbids keeping the response at all.
// no-cache still allows storing for revalidation.
func noStore(headers http.Header) bool {
	for _, directive := range strings.Split(headers.Get("Cache-Control"), ",") {
		if strings.EqualFold(strings.TrimSpace(directive), "no-store") {
			return true
		}
	}
	return false
}

// ShouldMakeConditionalRequest reports whether the entry carries a validator
// (ETag or Last-Modified) usable for revalidation.
func ShouldMakeConditionalRequest(entry *CacheEntry) bool {
	if entry == nil {
		return false
	}
	return entry.ETag != "" || !entry.LastModified.IsZero()
}

// AddConditionalHeaders adds If-None-Match or If-Modified-Since to req.
// ETag is preferred when both validators are present.
func AddConditionalHeaders(req *http.Request, entry *CacheEntry) {
	if entry == nil || req == nil {
		return
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}

	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
	}
}

// EntryToResponse rebuilds an HTTP response from a cache entry.
func EntryToResponse(entry *CacheEntry) *http.Response {
	if entry == nil {
		return nil
	}

	status := entry.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	header := entry.Headers.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set("X-Cache", "HIT")

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
	}
}
