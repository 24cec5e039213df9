// Package trigger schedules background sync drains: on a fixed interval, on
// connectivity regained, and on explicit request.
package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agrilink/agrisync/internal/logging"
)

// DrainFunc runs one sync drain pass.
type DrainFunc func(ctx context.Context) error

// WakeSource is an external signal that the app resumed or the platform asks
// for a sync, e.g. a push notification hook. Registered sources fire
// best-effort drains.
type WakeSource interface {
	OnWake(fire func())
}

// Trigger drives periodic and event-driven drains. It deduplicates: a drain
// already in flight absorbs further requests instead of stacking them.
// The periodic tick always attempts a drain, even when the last connectivity
// signal said offline: connectivity signals can be missed, and a drain while
// truly offline just fails fast through the normal transient path. The
// offline flag exists only to fire an immediate drain on the offline-to-online
// edge.
type Trigger struct {
	drain    DrainFunc
	interval time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	isOnline bool
	running  bool

	kick   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Trigger that calls drain every interval while online.
func New(drain DrainFunc, interval time.Duration) *Trigger {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Trigger{
		drain:    drain,
		interval: interval,
		log:      logging.Component("trigger"),
		isOnline: true,
		kick:     make(chan struct{}, 1),
	}
}

// Start launches the background loop. Calling Start on a running trigger is
// a no-op.
func (t *Trigger) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.stopCh = make(chan struct{})

	t.wg.Add(1)
	go t.loop(ctx, t.stopCh)
	t.log.Info().Dur("interval", t.interval).Msg("sync trigger started")
}

// Stop halts the background loop and waits for any in-flight drain.
func (t *Trigger) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stopCh)
	t.mu.Unlock()

	t.wg.Wait()
	t.log.Info().Msg("sync trigger stopped")
}

func (t *Trigger) loop(ctx context.Context, stopCh chan struct{}) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.runDrain(ctx)
		case <-t.kick:
			t.runDrain(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (t *Trigger) runDrain(ctx context.Context) {
	if err := t.drain(ctx); err != nil {
		t.log.Error().Err(err).Msg("background drain failed")
	}
}

// SetOnline records the connectivity state. An offline-to-online transition
// fires an immediate drain so queued work does not wait for the next tick.
func (t *Trigger) SetOnline(online bool) {
	t.mu.Lock()
	wasOnline := t.isOnline
	t.isOnline = online
	t.mu.Unlock()

	if online && !wasOnline {
		t.log.Info().Msg("connectivity regained, triggering sync")
		t.TriggerNow()
	}
}

// Online reports the last recorded connectivity state.
func (t *Trigger) Online() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isOnline
}

// TriggerNow requests an immediate drain. Requests made while one is already
// queued coalesce.
func (t *Trigger) TriggerNow() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// Register hooks a wake source up to the trigger.
func (t *Trigger) Register(src WakeSource) {
	src.OnWake(t.TriggerNow)
}
