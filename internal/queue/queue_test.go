// Package queue tests for the durable offline action queue.
package queue

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/agrilink/agrisync/internal/db"
	"github.com/agrilink/agrisync/internal/errors"
	"github.com/agrilink/agrisync/internal/models"
)

// newTestQueue opens a migrated store and a queue over it.
func newTestQueue(t *testing.T) (*Queue, *db.Store) {
	t.Helper()

	database, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.Migrate(database.DB); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	store := db.NewStore(database, 0)
	t.Cleanup(func() { store.Close() })

	return New(store, Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   time.Minute,
	}), store
}

// TestEnqueue verifies a new item lands in pending with a generated id.
func TestEnqueue(t *testing.T) {
	q, store := newTestQueue(t)

	id, err := q.Enqueue(models.ItemTypeSensorReading, []byte(`{"moisture":0.31}`), "owner-1", "farm-9")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if id == "" {
		t.Fatal("Enqueue returned empty id")
	}
	if !strings.HasPrefix(id, "sensor_reading-") {
		t.Errorf("id = %q, want sensor_reading prefix", id)
	}

	item, err := store.GetItem(id)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item == nil {
		t.Fatal("enqueued item not persisted")
	}
	if item.SyncStatus != models.SyncStatusPending {
		t.Errorf("status = %s, want pending", item.SyncStatus)
	}
	if item.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", item.RetryCount)
	}
	if item.OwnerID != "owner-1" || item.ScopeID != "farm-9" {
		t.Errorf("scoping = (%s, %s)", item.OwnerID, item.ScopeID)
	}
}

// TestEnqueueRejectsUnknownType verifies the item type set is closed.
func TestEnqueueRejectsUnknownType(t *testing.T) {
	q, _ := newTestQueue(t)

	_, err := q.Enqueue("selfie", []byte(`{}`), "o", "s")
	if !errors.Is(err, errors.ErrInvalid) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}

	_, err = q.Enqueue(models.ItemTypeActivity, nil, "o", "s")
	if !errors.Is(err, errors.ErrInvalid) {
		t.Errorf("expected INVALID_INPUT for empty payload, got %v", err)
	}
}

// TestNewItemIDUnique verifies generated ids never collide.
func TestNewItemIDUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewItemID(models.ItemTypeActivity, now)
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

// TestBackoff verifies the exponential schedule and its cap.
func TestBackoff(t *testing.T) {
	q, _ := newTestQueue(t)

	cases := []struct {
		retries int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 32 * time.Second},
		{6, time.Minute},  // capped
		{40, time.Minute}, // shift overflow guard
	}

	for _, tc := range cases {
		if got := q.Backoff(tc.retries); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.retries, got, tc.want)
		}
	}
}

// TestTransientFailureSchedulesRetry verifies backoff scheduling on failure.
func TestTransientFailureSchedulesRetry(t *testing.T) {
	q, store := newTestQueue(t)
	now := time.Now()

	id, _ := q.Enqueue(models.ItemTypeActivity, []byte(`{}`), "o", "s")

	retries, err := q.MarkTransientFailure(id, stderrors.New("connection reset"), now)
	if err != nil {
		t.Fatalf("MarkTransientFailure failed: %v", err)
	}
	if retries != 1 {
		t.Errorf("retries = %d, want 1", retries)
	}

	item, _ := store.GetItem(id)
	if item.SyncStatus != models.SyncStatusFailed {
		t.Errorf("status = %s, want failed", item.SyncStatus)
	}
	if item.LastError != "connection reset" {
		t.Errorf("LastError = %q", item.LastError)
	}

	// next_retry_at = now + baseDelay * 2^1
	wantRetry := now.Add(2 * time.Second).UnixMilli()
	if item.NextRetryAt != wantRetry {
		t.Errorf("NextRetryAt = %d, want %d", item.NextRetryAt, wantRetry)
	}

	// Not claimable inside the backoff window
	claimed, _ := q.ClaimDue(now.Add(time.Second))
	if len(claimed) != 0 {
		t.Error("item should not be claimable inside its backoff window")
	}

	// Claimable once the window elapses
	claimed, _ = q.ClaimDue(now.Add(3 * time.Second))
	if len(claimed) != 1 {
		t.Error("item should be claimable after its backoff window")
	}
}

// TestExhaustionExcludesFromClaim verifies items past the retry budget stay
// failed until forced.
func TestExhaustionExcludesFromClaim(t *testing.T) {
	q, _ := newTestQueue(t)
	now := time.Now()

	id, _ := q.Enqueue(models.ItemTypeSensorReading, []byte(`{}`), "o", "s")

	for i := 0; i < 3; i++ {
		q.MarkTransientFailure(id, stderrors.New("offline"), now)
	}

	// Even far in the future the item is not auto-reclaimed
	claimed, _ := q.ClaimDue(now.Add(24 * time.Hour))
	if len(claimed) != 0 {
		t.Error("exhausted item should be excluded from automatic claim")
	}

	// ForceSync path still reaches it
	forced, _ := q.ClaimForce(models.ItemTypeSensorReading, now)
	if len(forced) != 1 {
		t.Errorf("forced claim = %d items, want 1", len(forced))
	}
}

// TestMarkPermanentFailure verifies immediate exhaustion on rejection.
func TestMarkPermanentFailure(t *testing.T) {
	q, store := newTestQueue(t)
	now := time.Now()

	id, _ := q.Enqueue(models.ItemTypeFormSubmission, []byte(`{}`), "o", "s")

	if err := q.MarkPermanentFailure(id, stderrors.New("422 unprocessable"), now); err != nil {
		t.Fatalf("MarkPermanentFailure failed: %v", err)
	}

	item, _ := store.GetItem(id)
	if item.SyncStatus != models.SyncStatusFailed {
		t.Errorf("status = %s, want failed", item.SyncStatus)
	}
	if item.RetryCount != q.MaxRetries() {
		t.Errorf("RetryCount = %d, want %d", item.RetryCount, q.MaxRetries())
	}

	claimed, _ := q.ClaimDue(now.Add(time.Hour))
	if len(claimed) != 0 {
		t.Error("permanently rejected item should not be auto-reclaimed")
	}
}

// TestDiscard verifies manual removal.
func TestDiscard(t *testing.T) {
	q, store := newTestQueue(t)

	id, _ := q.Enqueue(models.ItemTypeImageUpload, []byte(`{"path":"x.jpg"}`), "o", "s")
	if err := q.Discard(id); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if item, _ := store.GetItem(id); item != nil {
		t.Error("discarded item should be gone")
	}

	// Discarding twice is idempotent
	if err := q.Discard(id); err != nil {
		t.Errorf("second Discard should not error: %v", err)
	}
}
