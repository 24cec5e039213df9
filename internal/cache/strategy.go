// Package cache provides the read-through cache strategy router: per request
// it decides network-first, cache-first or network-only and applies the
// decision against the persistent store.
package cache

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// Strategy selects how a read is satisfied.
type Strategy string

const (
	// StrategyNetworkFirst fetches, falling back to the cache on failure.
	StrategyNetworkFirst Strategy = "network-first"
	// StrategyCacheFirst serves an unexpired entry, fetching only on a miss.
	StrategyCacheFirst Strategy = "cache-first"
	// StrategyNetworkOnly never reads or writes the cache. Used for live
	// endpoints whose results must never be stale.
	StrategyNetworkOnly Strategy = "network-only"
)

// Rule binds a URL path pattern to a strategy.
type Rule struct {
	Pattern  string
	Strategy Strategy
	// Critical requests degrade to a typed offline payload instead of
	// propagating the raw network error.
	Critical bool
	// Image requests get a synthesized placeholder on total failure.
	Image bool
	// TTL overrides the default entry time-to-live when positive.
	TTL time.Duration
}

// matches reports whether the rule pattern covers the request path.
// Patterns use path.Match semantics; a trailing "*" also matches nested
// segments, e.g. "/api/dashboard/*" covers "/api/dashboard/a/b".
func (r Rule) matches(requestPath string) bool {
	if strings.HasSuffix(r.Pattern, "*") {
		prefix := strings.TrimSuffix(r.Pattern, "*")
		if strings.HasPrefix(requestPath, prefix) {
			return true
		}
	}
	ok, err := path.Match(r.Pattern, requestPath)
	return err == nil && ok
}

// Key returns the canonical cache identity for a GET request: the method
// plus the normalized URL (lowercased scheme and host, fragment dropped,
// query parameters sorted).
func Key(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid request URL: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	// Encode sorts query keys, giving a stable identity
	u.RawQuery = u.Query().Encode()

	return "GET " + u.String(), nil
}
