package syncer

import (
	"sync"
	"time"

	"github.com/agrilink/agrisync/internal/models"
)

// EventKind names a sync lifecycle transition.
type EventKind string

const (
	EventEnqueued  EventKind = "enqueued"
	EventSyncing   EventKind = "syncing"
	EventSynced    EventKind = "synced"
	EventFailed    EventKind = "failed"
	EventConflict  EventKind = "conflict"
	EventExhausted EventKind = "exhausted"
	EventDiscarded EventKind = "discarded"
	EventResolved  EventKind = "resolved"
)

// Event is a sync progress notification.
type Event struct {
	Kind       EventKind
	ItemID     string
	ItemType   models.ItemType
	RetryCount int
	Error      string
	At         time.Time
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses events rather than stalling the drain loop, so
// consumers needing exact state read the status reporter instead.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener with the given buffer size and returns the
// channel plus a cancel function. Cancel closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber whose buffer has room.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Close cancels all subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
