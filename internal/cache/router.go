package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/agrilink/agrisync/internal/db"
	"github.com/agrilink/agrisync/internal/errors"
	"github.com/agrilink/agrisync/internal/logging"
	"github.com/agrilink/agrisync/internal/models"
)

// Response is the result of a routed read. FromCache marks replayed entries;
// Offline marks synthesized degraded responses (fallback payload or image
// placeholder) produced when both network and cache were unavailable.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	FromCache  bool
	Offline    bool
}

// offlineFallbackBody is the typed degraded payload returned for critical
// requests when the network is down and nothing is cached, so the UI can
// render a degraded state instead of crashing.
var offlineFallbackBody = []byte(`{"offline":true,"cached":false}`)

// placeholderPNG is a 1x1 transparent PNG served for image-class requests on
// total failure.
var placeholderPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
	0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41, 0x54,
	0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00, 0x05,
	0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4,
	0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44,
	0xae, 0x42, 0x60, 0x82,
}

// Router decides per read how to satisfy it and applies the decision.
// Only GET requests are routed; the cache never stores anything else.
type Router struct {
	store      *db.Store
	client     *http.Client
	rules      []Rule
	defaultTTL time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// NewRouter creates a Router. When client is nil a pooled default is used.
// The default strategy for unmatched URLs is network-first.
func NewRouter(store *db.Store, client *http.Client, rules []Rule, defaultTTL time.Duration) *Router {
	if client == nil {
		client = NewHTTPClient(30 * time.Second)
	}
	if defaultTTL <= 0 {
		defaultTTL = 7 * 24 * time.Hour
	}
	return &Router{
		store:      store,
		client:     client,
		rules:      rules,
		defaultTTL: defaultTTL,
		log:        logging.Component("cache"),
		now:        time.Now,
	}
}

// ruleFor returns the first matching rule, or the network-first default.
func (r *Router) ruleFor(rawURL string) Rule {
	u, err := url.Parse(rawURL)
	if err == nil {
		for _, rule := range r.rules {
			if rule.matches(u.Path) {
				return rule
			}
		}
	}
	return Rule{Strategy: StrategyNetworkFirst}
}

// Get satisfies a GET read according to the configured strategy.
func (r *Router) Get(ctx context.Context, rawURL string) (*Response, error) {
	rule := r.ruleFor(rawURL)

	switch rule.Strategy {
	case StrategyCacheFirst:
		return r.cacheFirst(ctx, rawURL, rule)
	case StrategyNetworkOnly:
		return r.networkOnly(ctx, rawURL)
	default:
		return r.networkFirst(ctx, rawURL, rule)
	}
}

// networkFirst fetches, refreshing the cache on success. On network failure
// it serves the cached entry when one is present and unexpired, then the
// degraded fallbacks.
func (r *Router) networkFirst(ctx context.Context, rawURL string, rule Rule) (*Response, error) {
	resp, fetchErr := r.fetch(ctx, rawURL)
	if fetchErr == nil {
		r.storeResponse(rawURL, resp, rule)
		return resp, nil
	}

	if cached := r.lookup(rawURL); cached != nil {
		r.log.Debug().Str("url", rawURL).Msg("network down, serving cached response")
		return cached, nil
	}

	return r.degrade(rawURL, rule, fetchErr)
}

// cacheFirst serves an unexpired entry immediately; otherwise it fetches,
// stores and returns the fresh value.
func (r *Router) cacheFirst(ctx context.Context, rawURL string, rule Rule) (*Response, error) {
	if cached := r.lookup(rawURL); cached != nil {
		return cached, nil
	}

	resp, fetchErr := r.fetch(ctx, rawURL)
	if fetchErr == nil {
		r.storeResponse(rawURL, resp, rule)
		return resp, nil
	}

	return r.degrade(rawURL, rule, fetchErr)
}

// networkOnly never touches the cache in either direction.
func (r *Router) networkOnly(ctx context.Context, rawURL string) (*Response, error) {
	return r.fetch(ctx, rawURL)
}

// lookup returns the cached response for the URL, purging and ignoring
// expired entries. Expired entries are never served.
func (r *Router) lookup(rawURL string) *Response {
	key, err := Key(rawURL)
	if err != nil {
		return nil
	}

	entry, err := r.store.GetCacheEntry(key)
	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("cache read failed")
		return nil
	}
	if entry == nil {
		return nil
	}

	if entry.Expired(r.now()) {
		if err := r.store.DeleteCacheEntry(key); err != nil {
			r.log.Error().Err(err).Str("key", key).Msg("failed to purge expired entry")
		}
		return nil
	}

	headers := make(map[string]string)
	if entry.Headers != "" {
		if err := json.Unmarshal([]byte(entry.Headers), &headers); err != nil {
			headers = map[string]string{}
		}
	}

	return &Response{
		StatusCode: entry.StatusCode,
		Headers:    headers,
		Body:       entry.Body,
		FromCache:  true,
	}
}

// storeResponse refreshes the cache entry for a successful read. Only
// cacheable statuses are stored; failures to store never fail the read.
func (r *Router) storeResponse(rawURL string, resp *Response, rule Rule) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return
	}

	key, err := Key(rawURL)
	if err != nil {
		return
	}

	headersJSON, err := json.Marshal(resp.Headers)
	if err != nil {
		headersJSON = []byte("{}")
	}

	ttl := r.defaultTTL
	if rule.TTL > 0 {
		ttl = rule.TTL
	}

	entry := &models.CacheEntry{
		Key:        key,
		Body:       resp.Body,
		Headers:    string(headersJSON),
		StatusCode: resp.StatusCode,
		StoredAt:   r.now().UnixMilli(),
		TTLMs:      ttl.Milliseconds(),
	}

	if err := r.store.PutCacheEntry(entry); err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("failed to store cache entry")
	}
}

// degrade produces the typed fallbacks for total failure: a placeholder for
// image-class requests, the offline payload for critical ones, otherwise the
// original error.
func (r *Router) degrade(rawURL string, rule Rule, cause error) (*Response, error) {
	if rule.Image {
		r.log.Debug().Str("url", rawURL).Msg("serving image placeholder")
		return &Response{
			StatusCode: http.StatusOK,
			Headers:    map[string]string{"Content-Type": "image/png"},
			Body:       placeholderPNG,
			Offline:    true,
		}, nil
	}

	if rule.Critical {
		r.log.Debug().Str("url", rawURL).Msg("serving offline fallback payload")
		return &Response{
			StatusCode: http.StatusServiceUnavailable,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       offlineFallbackBody,
			Offline:    true,
		}, nil
	}

	return nil, cause
}

// Invalidate removes the entry for one URL.
func (r *Router) Invalidate(rawURL string) error {
	key, err := Key(rawURL)
	if err != nil {
		return errors.Wrap(errors.ErrInvalid, "invalid URL", err)
	}
	return r.store.DeleteCacheEntry(key)
}

// InvalidatePrefix removes all entries under a URL prefix.
func (r *Router) InvalidatePrefix(rawPrefix string) (int64, error) {
	key, err := Key(rawPrefix)
	if err != nil {
		return 0, errors.Wrap(errors.ErrInvalid, "invalid URL prefix", err)
	}
	return r.store.DeleteCacheByPrefix(key)
}

// PurgeExpired removes every entry past its TTL.
func (r *Router) PurgeExpired() (int64, error) {
	return r.store.PurgeExpiredCache(r.now())
}
