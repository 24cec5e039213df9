// Package queue provides the durable offline action queue: pending mutations
// recorded locally while disconnected, drained later by the sync orchestrator.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agrilink/agrisync/internal/db"
	"github.com/agrilink/agrisync/internal/errors"
	"github.com/agrilink/agrisync/internal/logging"
	"github.com/agrilink/agrisync/internal/models"
)

// Config holds queue retry tunables.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultConfig returns the default retry policy.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 5,
		BaseDelay:  2 * time.Second,
		MaxDelay:   5 * time.Minute,
	}
}

// Queue manages pending offline mutations with retry accounting. All state
// lives in the persistent store; the queue itself is stateless and safe for
// concurrent use.
type Queue struct {
	store *db.Store
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time
}

// New creates a Queue over the given store.
func New(store *db.Store, cfg Config) *Queue {
	if cfg.MaxRetries <= 0 {
		cfg = DefaultConfig()
	}
	return &Queue{
		store: store,
		cfg:   cfg,
		log:   logging.Component("queue"),
		now:   time.Now,
	}
}

// MaxRetries returns the configured retry budget.
func (q *Queue) MaxRetries() int {
	return q.cfg.MaxRetries
}

// NewItemID generates a queue item id: type, capture time, random suffix.
// IDs double as idempotency keys for remote delivery and are never reused.
func NewItemID(itemType models.ItemType, at time.Time) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s-%d-%s", itemType, at.UnixMilli(), suffix)
}

// Enqueue records a new mutation in pending state and returns its id.
// It never touches the network and never blocks on delivery; failures are
// storage failures only.
func (q *Queue) Enqueue(itemType models.ItemType, payload json.RawMessage, ownerID, scopeID string) (string, error) {
	if !itemType.Valid() {
		return "", errors.New(errors.ErrInvalid, fmt.Sprintf("unknown item type %q", itemType))
	}
	if len(payload) == 0 {
		return "", errors.New(errors.ErrInvalid, "payload must not be empty")
	}

	now := q.now()
	item := &models.OfflineItem{
		ID:          NewItemID(itemType, now),
		ItemType:    itemType,
		Payload:     payload,
		OwnerID:     ownerID,
		ScopeID:     scopeID,
		SyncStatus:  models.SyncStatusPending,
		NextRetryAt: now.UnixMilli(),
		CreatedAt:   now.UnixMilli(),
		UpdatedAt:   now.UnixMilli(),
	}

	if err := q.store.PutItem(item); err != nil {
		return "", err
	}

	q.log.Debug().
		Str("item_id", item.ID).
		Str("item_type", string(itemType)).
		Msg("enqueued offline item")

	return item.ID, nil
}

// ClaimDue atomically claims every item currently eligible for delivery.
func (q *Queue) ClaimDue(now time.Time) ([]*models.OfflineItem, error) {
	return q.store.ClaimDue(now, q.cfg.MaxRetries)
}

// ClaimForce atomically claims all pending or failed items of one type,
// ignoring backoff windows and retry exhaustion.
func (q *Queue) ClaimForce(itemType models.ItemType, now time.Time) ([]*models.OfflineItem, error) {
	if !itemType.Valid() {
		return nil, errors.New(errors.ErrInvalid, fmt.Sprintf("unknown item type %q", itemType))
	}
	return q.store.ClaimByType(itemType, now)
}

// Backoff returns the delay before the retry following the given count:
// min(baseDelay * 2^retryCount, maxDelay).
func (q *Queue) Backoff(retryCount int) time.Duration {
	if retryCount > 30 {
		return q.cfg.MaxDelay
	}
	delay := q.cfg.BaseDelay << uint(retryCount)
	if delay <= 0 || delay > q.cfg.MaxDelay {
		return q.cfg.MaxDelay
	}
	return delay
}

// MarkSynced records a successful delivery for the item.
func (q *Queue) MarkSynced(id string, now time.Time) error {
	if err := q.store.MarkSynced(id, now); err != nil {
		return err
	}
	q.log.Debug().Str("item_id", id).Msg("item synced")
	return nil
}

// MarkTransientFailure records a retryable failure, scheduling the next
// attempt with exponential backoff. Returns the item's updated retry count.
func (q *Queue) MarkTransientFailure(id string, cause error, now time.Time) (int, error) {
	item, err := q.store.GetItem(id)
	if err != nil {
		return 0, err
	}
	if item == nil {
		return 0, errors.New(errors.ErrNotFound, fmt.Sprintf("item %s not found", id))
	}

	retries := item.RetryCount + 1
	nextRetry := now.Add(q.Backoff(retries))

	if err := q.store.MarkFailed(id, cause.Error(), nextRetry, now); err != nil {
		return retries, err
	}

	evt := q.log.Warn().
		Str("item_id", id).
		Int("retry_count", retries).
		Int("max_retries", q.cfg.MaxRetries).
		Err(cause)
	if retries >= q.cfg.MaxRetries {
		evt.Msg("item failed permanently, retries exhausted")
	} else {
		evt.Dur("next_retry_in", q.Backoff(retries)).Msg("item delivery failed, will retry")
	}
	return retries, nil
}

// MarkConflict records a conflict outcome: the item stays failed and is not
// retried automatically until its conflict is resolved.
func (q *Queue) MarkConflict(id string, cause error, now time.Time) error {
	if err := q.store.MarkConflicted(id, cause.Error(), now); err != nil {
		return err
	}
	q.log.Warn().Str("item_id", id).Err(cause).Msg("item delivery conflicted")
	return nil
}

// MarkPermanentFailure records a non-retryable rejection: the retry budget
// is spent immediately and the item surfaces as needing manual attention.
func (q *Queue) MarkPermanentFailure(id string, cause error, now time.Time) error {
	if err := q.store.MarkExhausted(id, cause.Error(), q.cfg.MaxRetries, now); err != nil {
		return err
	}
	q.log.Error().Str("item_id", id).Err(cause).Msg("item rejected permanently")
	return nil
}

// Discard removes an item from the queue entirely. Intended for manual
// intervention on permanently failed items.
func (q *Queue) Discard(id string) error {
	if err := q.store.DeleteItem(id); err != nil {
		return err
	}
	q.log.Info().Str("item_id", id).Msg("item discarded")
	return nil
}

// Pending returns all items awaiting delivery.
func (q *Queue) Pending() ([]*models.OfflineItem, error) {
	return q.store.ItemsByStatus(models.SyncStatusPending)
}

// Failed returns all items in failed state.
func (q *Queue) Failed() ([]*models.OfflineItem, error) {
	return q.store.ItemsByStatus(models.SyncStatusFailed)
}
