// Package syncer provides the sync orchestrator: it drains the offline queue
// through registered deliverers, applies retry and conflict policy, and
// reports progress through an event bus.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/agrilink/agrisync/internal/errors"
	"github.com/agrilink/agrisync/internal/models"
)

// Receipt is the outcome of a successful delivery exchange. Conflict marks a
// delivery the remote refused because its state diverged; ServerState then
// carries the remote's version of the record.
type Receipt struct {
	Conflict    bool
	ServerState json.RawMessage
}

// Deliverer pushes one queued item to the remote system. Implementations must
// be safe for concurrent use and must honor ctx cancellation. Returned errors
// are classified by code: transient codes are retried with backoff, permanent
// codes exhaust the item immediately.
type Deliverer interface {
	Deliver(ctx context.Context, item *models.OfflineItem) (*Receipt, error)
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, item *models.OfflineItem) (*Receipt, error)

func (f DelivererFunc) Deliver(ctx context.Context, item *models.OfflineItem) (*Receipt, error) {
	return f(ctx, item)
}

// maxReceiptBody bounds how much of a conflict response body is retained.
const maxReceiptBody = 1 << 20 // 1 MiB

// HTTPDeliverer posts queue items to a remote sync endpoint as JSON. The item
// id rides along as an idempotency key so remote-side retries deduplicate.
type HTTPDeliverer struct {
	BaseURL string
	Client  *http.Client
	// Headers are added to every request, e.g. authorization.
	Headers map[string]string
}

// NewHTTPDeliverer creates an HTTPDeliverer for the given base URL.
func NewHTTPDeliverer(baseURL string, client *http.Client) *HTTPDeliverer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDeliverer{BaseURL: baseURL, Client: client}
}

// Deliver posts the item payload to <base>/sync/<itemType>. Status mapping:
// 2xx success, 409/412 conflict with the response body as server state,
// 408/429/5xx transient, any other 4xx permanent rejection.
func (d *HTTPDeliverer) Deliver(ctx context.Context, item *models.OfflineItem) (*Receipt, error) {
	endpoint := d.BaseURL + "/sync/" + string(item.ItemType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(item.Payload))
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalid, "failed to build delivery request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", item.ID)
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(errors.ErrDeliveryTimeout, "delivery attempt timed out", err)
		}
		return nil, errors.Wrap(errors.ErrTransientDelivery, "delivery request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &Receipt{}, nil

	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusPreconditionFailed:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxReceiptBody))
		return &Receipt{Conflict: true, ServerState: body}, nil

	case resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode >= 500:
		return nil, errors.New(errors.ErrTransientDelivery,
			fmt.Sprintf("remote returned %s", resp.Status))

	default:
		return nil, errors.New(errors.ErrPermanentRejection,
			fmt.Sprintf("remote rejected item: %s", resp.Status))
	}
}
