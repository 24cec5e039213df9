package cache

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/agrilink/agrisync/internal/errors"
)

// maxCachedBody bounds how much of a response body is read and stored.
const maxCachedBody = 4 << 20 // 4 MiB

// replayHeaders is the minimal header subset stored alongside a cached body.
var replayHeaders = []string{"Content-Type", "ETag", "Last-Modified", "Cache-Control"}

// NewHTTPClient returns a pooled HTTP client tuned for constrained networks.
func NewHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// fetch performs the network GET. Transport errors and 5xx responses are both
// reported as NETWORK_FAILURE so the caller can take its fallback path.
func (r *Router) fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalid, "failed to build request", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrNetworkFailure, "network fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, errors.New(errors.ErrNetworkFailure,
			"remote returned "+resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCachedBody))
	if err != nil {
		return nil, errors.Wrap(errors.ErrNetworkFailure, "failed to read response body", err)
	}

	headers := make(map[string]string, len(replayHeaders))
	for _, h := range replayHeaders {
		if v := resp.Header.Get(h); v != "" {
			headers[h] = v
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       body,
	}, nil
}
