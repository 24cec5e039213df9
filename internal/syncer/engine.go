package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/agrilink/agrisync/internal/cache"
	"github.com/agrilink/agrisync/internal/db"
	"github.com/agrilink/agrisync/internal/errors"
	"github.com/agrilink/agrisync/internal/logging"
	"github.com/agrilink/agrisync/internal/models"
	"github.com/agrilink/agrisync/internal/queue"
)

// MergeFunc combines a local mutation with the remote state it conflicted
// with. There is no built-in merge policy; callers that want merge resolution
// must register one.
type MergeFunc func(local, remote json.RawMessage) (json.RawMessage, error)

// Config holds orchestrator tunables.
type Config struct {
	// Concurrency bounds parallel delivery attempts per drain.
	Concurrency int
	// AttemptTimeout bounds a single delivery attempt.
	AttemptTimeout time.Duration
	// StaleAttemptThreshold is how long an item may sit in syncing before
	// startup reconciliation treats its attempt as interrupted.
	StaleAttemptThreshold time.Duration
	// SyncedRetention is how long synced items are kept before the sweep
	// removes them.
	SyncedRetention time.Duration
	// BreakerTimeout is how long a tripped delivery circuit stays open
	// before probing the remote again.
	BreakerTimeout time.Duration
}

// DefaultConfig returns the default orchestrator tunables.
func DefaultConfig() Config {
	return Config{
		Concurrency:           4,
		AttemptTimeout:        30 * time.Second,
		StaleAttemptThreshold: 5 * time.Minute,
		SyncedRetention:       24 * time.Hour,
		BreakerTimeout:        30 * time.Second,
	}
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Claimed   int
	Synced    int
	Failed    int
	Conflicts int
}

// Engine is the sync orchestrator. It owns the drain loop semantics: claim
// eligible items, deliver them through the registered deliverers under a
// circuit breaker, and record each outcome back into the queue.
type Engine struct {
	store  *db.Store
	queue  *queue.Queue
	router *cache.Router
	bus    *Bus
	cfg    Config
	log    zerolog.Logger
	now    func() time.Time

	mu         sync.RWMutex
	deliverers map[models.ItemType]Deliverer
	breakers   map[models.ItemType]*gobreaker.CircuitBreaker
	mergeFn    MergeFunc
}

// New creates an Engine and reconciles items left in syncing by a previous
// run: any attempt older than the stale threshold is converted to a failed
// attempt so the item becomes claimable again.
func New(store *db.Store, q *queue.Queue, router *cache.Router, cfg Config) (*Engine, error) {
	defaults := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaults.AttemptTimeout
	}
	if cfg.StaleAttemptThreshold <= 0 {
		cfg.StaleAttemptThreshold = defaults.StaleAttemptThreshold
	}
	if cfg.SyncedRetention <= 0 {
		cfg.SyncedRetention = defaults.SyncedRetention
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaults.BreakerTimeout
	}

	e := &Engine{
		store:      store,
		queue:      q,
		router:     router,
		bus:        NewBus(),
		cfg:        cfg,
		log:        logging.Component("syncer"),
		now:        time.Now,
		deliverers: make(map[models.ItemType]Deliverer),
		breakers:   make(map[models.ItemType]*gobreaker.CircuitBreaker),
	}

	now := e.now()
	n, err := store.FailStaleSyncing(now.Add(-cfg.StaleAttemptThreshold), now)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		e.log.Warn().Int64("count", n).Msg("reconciled items stuck in syncing")
	}
	return e, nil
}

// RegisterDeliverer binds a deliverer to an item type, replacing any previous
// binding. Each type gets its own circuit breaker so one failing remote
// endpoint does not starve the others.
func (e *Engine) RegisterDeliverer(itemType models.ItemType, d Deliverer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deliverers[itemType] = d
	e.breakers[itemType] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(itemType),
		MaxRequests: uint32(e.cfg.Concurrency),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		Timeout: e.cfg.BreakerTimeout,
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.log.Warn().
				Str("item_type", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("delivery circuit breaker state changed")
		},
	})
}

// RegisterMergeFunc installs the merge policy used by merge conflict
// resolution. Without one, merge resolution returns MERGE_UNSUPPORTED.
func (e *Engine) RegisterMergeFunc(fn MergeFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mergeFn = fn
}

// Subscribe registers a sync event listener.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	return e.bus.Subscribe(buffer)
}

// Enqueue records a mutation locally and returns immediately; delivery
// happens on a later drain.
func (e *Engine) Enqueue(itemType models.ItemType, payload json.RawMessage, ownerID, scopeID string) (string, error) {
	id, err := e.queue.Enqueue(itemType, payload, ownerID, scopeID)
	if err != nil {
		return "", err
	}
	e.bus.Publish(Event{Kind: EventEnqueued, ItemID: id, ItemType: itemType, At: e.now()})
	return id, nil
}

// ReadThroughCache satisfies a GET read through the cache strategy router.
func (e *Engine) ReadThroughCache(ctx context.Context, rawURL string) (*cache.Response, error) {
	return e.router.Get(ctx, rawURL)
}

// DrainOnce claims every currently eligible item and attempts delivery, then
// sweeps old synced rows. Concurrent drains are safe: claiming is atomic per
// item, so no item is delivered twice.
func (e *Engine) DrainOnce(ctx context.Context) (DrainResult, error) {
	items, err := e.queue.ClaimDue(e.now())
	if err != nil {
		return DrainResult{}, err
	}

	result := e.deliverBatch(ctx, items)

	if e.cfg.SyncedRetention > 0 {
		if n, err := e.store.SweepSynced(e.now().Add(-e.cfg.SyncedRetention)); err != nil {
			e.log.Error().Err(err).Msg("synced sweep failed")
		} else if n > 0 {
			e.log.Debug().Int64("count", n).Msg("swept synced items")
		}
	}

	return result, nil
}

// ForceSync claims and delivers every pending or failed item of one type,
// ignoring backoff windows and retry exhaustion. Items with an unresolved
// conflict remain blocked until resolved.
func (e *Engine) ForceSync(ctx context.Context, itemType models.ItemType) (DrainResult, error) {
	items, err := e.queue.ClaimForce(itemType, e.now())
	if err != nil {
		return DrainResult{}, err
	}
	return e.deliverBatch(ctx, items), nil
}

// deliverBatch delivers claimed items with bounded concurrency.
func (e *Engine) deliverBatch(ctx context.Context, items []*models.OfflineItem) DrainResult {
	result := DrainResult{Claimed: len(items)}
	if len(items) == 0 {
		return result
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, e.cfg.Concurrency)
	)

	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(item *models.OfflineItem) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := e.deliverOne(ctx, item)

			mu.Lock()
			switch outcome {
			case outcomeSynced:
				result.Synced++
			case outcomeConflict:
				result.Conflicts++
			default:
				result.Failed++
			}
			mu.Unlock()
		}(item)
	}
	wg.Wait()

	e.log.Info().
		Int("claimed", result.Claimed).
		Int("synced", result.Synced).
		Int("failed", result.Failed).
		Int("conflicts", result.Conflicts).
		Msg("drain pass complete")
	return result
}

type deliveryOutcome int

const (
	outcomeSynced deliveryOutcome = iota
	outcomeFailed
	outcomeConflict
)

// deliverOne attempts delivery for a single claimed item and records the
// outcome. Every path out of a claim writes a terminal-or-retryable state
// back; items never linger in syncing.
func (e *Engine) deliverOne(ctx context.Context, item *models.OfflineItem) deliveryOutcome {
	e.bus.Publish(Event{
		Kind: EventSyncing, ItemID: item.ID, ItemType: item.ItemType,
		RetryCount: item.RetryCount, At: e.now(),
	})

	e.mu.RLock()
	d, ok := e.deliverers[item.ItemType]
	cb := e.breakers[item.ItemType]
	e.mu.RUnlock()

	if !ok {
		err := errors.New(errors.ErrNoDeliverer,
			fmt.Sprintf("no deliverer registered for %s", item.ItemType))
		return e.recordFailure(item, err)
	}

	attemptCtx := ctx
	if e.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.cfg.AttemptTimeout)
		defer cancel()
	}

	res, err := cb.Execute(func() (interface{}, error) {
		return d.Deliver(attemptCtx, item)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		err = errors.Wrap(errors.ErrTransientDelivery, "delivery circuit open", err)
	}
	if err != nil {
		return e.recordFailure(item, err)
	}

	// A deliverer returning (nil, nil) counts as plain success
	receipt, _ := res.(*Receipt)
	if receipt != nil && receipt.Conflict {
		return e.recordConflict(item, receipt)
	}

	now := e.now()
	if err := e.queue.MarkSynced(item.ID, now); err != nil {
		e.log.Error().Err(err).Str("item_id", item.ID).Msg("failed to record synced state")
		return outcomeFailed
	}
	e.bus.Publish(Event{Kind: EventSynced, ItemID: item.ID, ItemType: item.ItemType, At: now})
	return outcomeSynced
}

// recordFailure routes a delivery error to the right queue transition.
func (e *Engine) recordFailure(item *models.OfflineItem, cause error) deliveryOutcome {
	now := e.now()

	if errors.IsPermanent(cause) {
		if err := e.queue.MarkPermanentFailure(item.ID, cause, now); err != nil {
			e.log.Error().Err(err).Str("item_id", item.ID).Msg("failed to record rejection")
		}
		e.bus.Publish(Event{
			Kind: EventExhausted, ItemID: item.ID, ItemType: item.ItemType,
			RetryCount: e.queue.MaxRetries(), Error: cause.Error(), At: now,
		})
		return outcomeFailed
	}

	retries, err := e.queue.MarkTransientFailure(item.ID, cause, now)
	if err != nil {
		e.log.Error().Err(err).Str("item_id", item.ID).Msg("failed to record failure")
		return outcomeFailed
	}

	kind := EventFailed
	if retries >= e.queue.MaxRetries() {
		kind = EventExhausted
	}
	e.bus.Publish(Event{
		Kind: kind, ItemID: item.ID, ItemType: item.ItemType,
		RetryCount: retries, Error: cause.Error(), At: now,
	})
	return outcomeFailed
}

// recordConflict parks the item behind a conflict record awaiting explicit
// resolution.
func (e *Engine) recordConflict(item *models.OfflineItem, receipt *Receipt) deliveryOutcome {
	now := e.now()
	cause := errors.New(errors.ErrDeliveryConflict, "remote state diverged from local mutation")

	conflict := &models.SyncConflict{
		ID:            uuid.New().String(),
		SourceItemID:  item.ID,
		LocalPayload:  item.Payload,
		RemotePayload: receipt.ServerState,
		DetectedAt:    now.UnixMilli(),
	}
	if err := e.store.PutConflict(conflict); err != nil {
		e.log.Error().Err(err).Str("item_id", item.ID).Msg("failed to record conflict")
	}
	if err := e.queue.MarkConflict(item.ID, cause, now); err != nil {
		e.log.Error().Err(err).Str("item_id", item.ID).Msg("failed to park conflicted item")
	}

	e.bus.Publish(Event{
		Kind: EventConflict, ItemID: item.ID, ItemType: item.ItemType,
		RetryCount: item.RetryCount, Error: cause.Error(), At: now,
	})
	return outcomeConflict
}

// ListConflicts returns conflict records, optionally only unresolved ones.
func (e *Engine) ListConflicts(unresolvedOnly bool) ([]*models.SyncConflict, error) {
	return e.store.ListConflicts(unresolvedOnly)
}

// ResolveConflict applies a resolution strategy to an open conflict:
//
//   - local: the local mutation wins; its item returns to pending with a
//     fresh retry budget and is redelivered on the next drain.
//   - server: the remote state wins; the local item is discarded.
//   - merge: the registered merge function combines both payloads and the
//     merged result is redelivered. Requires RegisterMergeFunc.
//
// Resolving an already-resolved conflict returns CONFLICT_RESOLVED.
func (e *Engine) ResolveConflict(conflictID string, strategy models.ResolutionStrategy) error {
	if !strategy.Valid() {
		return errors.New(errors.ErrInvalid, fmt.Sprintf("unknown resolution strategy %q", strategy))
	}

	conflict, err := e.store.GetConflict(conflictID)
	if err != nil {
		return err
	}
	if conflict == nil {
		return errors.New(errors.ErrNotFound, fmt.Sprintf("conflict %s not found", conflictID))
	}
	if conflict.Resolved {
		return errors.New(errors.ErrConflictResolved,
			fmt.Sprintf("conflict %s is already resolved", conflictID))
	}

	now := e.now()

	var merged json.RawMessage
	if strategy == models.ResolutionMerge {
		e.mu.RLock()
		fn := e.mergeFn
		e.mu.RUnlock()
		if fn == nil {
			return errors.New(errors.ErrMergeUnsupported,
				"merge resolution requires a registered merge function")
		}
		merged, err = fn(conflict.LocalPayload, conflict.RemotePayload)
		if err != nil {
			return errors.Wrap(errors.ErrMergeUnsupported, "merge function failed", err)
		}
	}

	applied, err := e.store.MarkConflictResolved(conflictID, strategy, now)
	if err != nil {
		return err
	}
	if !applied {
		return errors.New(errors.ErrConflictResolved,
			fmt.Sprintf("conflict %s is already resolved", conflictID))
	}

	switch strategy {
	case models.ResolutionLocal:
		err = e.store.ResetForRetry(conflict.SourceItemID, now)

	case models.ResolutionServer:
		err = e.store.DeleteItem(conflict.SourceItemID)

	case models.ResolutionMerge:
		var item *models.OfflineItem
		item, err = e.store.GetItem(conflict.SourceItemID)
		if err == nil && item != nil {
			item.Payload = merged
			item.UpdatedAt = now.UnixMilli()
			err = e.store.PutItem(item)
		}
		if err == nil {
			err = e.store.ResetForRetry(conflict.SourceItemID, now)
		}
	}
	if err != nil {
		return err
	}

	e.log.Info().
		Str("conflict_id", conflictID).
		Str("item_id", conflict.SourceItemID).
		Str("strategy", string(strategy)).
		Msg("conflict resolved")
	e.bus.Publish(Event{Kind: EventResolved, ItemID: conflict.SourceItemID, At: now})
	return nil
}

// DiscardItem removes a queued item without delivering it.
func (e *Engine) DiscardItem(id string) error {
	item, err := e.store.GetItem(id)
	if err != nil {
		return err
	}
	if item == nil {
		return errors.New(errors.ErrNotFound, fmt.Sprintf("item %s not found", id))
	}
	if err := e.queue.Discard(id); err != nil {
		return err
	}
	e.bus.Publish(Event{Kind: EventDiscarded, ItemID: id, ItemType: item.ItemType, At: e.now()})
	return nil
}

// Close releases engine resources.
func (e *Engine) Close() {
	e.bus.Close()
}
