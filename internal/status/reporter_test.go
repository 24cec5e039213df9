// Package status tests for the snapshot reporter.
package status

import (
	"testing"
	"time"

	"github.com/agrilink/agrisync/internal/db"
	"github.com/agrilink/agrisync/internal/models"
)

func newTestStore(t *testing.T) *db.Store {
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
	return store
}

func putItem(t *testing.T, store *db.Store, id string, status models.SyncStatus, lastAttempt time.Time) {
	t.Helper()
	now := time.Now()
	item := &models.OfflineItem{
		ID:            id,
		ItemType:      models.ItemTypeActivity,
		Payload:       []byte(`{}`),
		SyncStatus:    status,
		LastAttemptAt: lastAttempt.UnixMilli(),
		CreatedAt:     now.UnixMilli(),
		UpdatedAt:     now.UnixMilli(),
	}
	if err := store.PutItem(item); err != nil {
		t.Fatalf("PutItem failed: %v", err)
	}
}

// TestSnapshotEmpty verifies the zero state: no counts, no last sync time.
func TestSnapshotEmpty(t *testing.T) {
	store := newTestStore(t)
	r := New(store)

	snap, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.PendingCount != 0 || snap.FailedCount != 0 || snap.SyncedCount != 0 {
		t.Errorf("counts = %+v, want all zero", snap)
	}
	if snap.LastSyncTime != nil {
		t.Errorf("LastSyncTime = %v, want nil before any sync", snap.LastSyncTime)
	}
	if snap.StorageBytes <= 0 {
		t.Errorf("StorageBytes = %d, want positive", snap.StorageBytes)
	}
}

// TestSnapshotCounts verifies per-status counting and conflict counting.
func TestSnapshotCounts(t *testing.T) {
	store := newTestStore(t)
	r := New(store)
	now := time.Now()

	putItem(t, store, "activity-1-a", models.SyncStatusPending, time.Time{})
	putItem(t, store, "activity-2-b", models.SyncStatusPending, time.Time{})
	putItem(t, store, "activity-3-c", models.SyncStatusFailed, now)
	putItem(t, store, "activity-4-d", models.SyncStatusSynced, now)

	conflict := &models.SyncConflict{
		ID:            "c1",
		SourceItemID:  "activity-3-c",
		LocalPayload:  []byte(`{}`),
		RemotePayload: []byte(`{}`),
		DetectedAt:    now.UnixMilli(),
	}
	if err := store.PutConflict(conflict); err != nil {
		t.Fatalf("PutConflict failed: %v", err)
	}

	snap, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.PendingCount != 2 {
		t.Errorf("PendingCount = %d, want 2", snap.PendingCount)
	}
	if snap.FailedCount != 1 {
		t.Errorf("FailedCount = %d, want 1", snap.FailedCount)
	}
	if snap.SyncedCount != 1 {
		t.Errorf("SyncedCount = %d, want 1", snap.SyncedCount)
	}
	if snap.ConflictCount != 1 {
		t.Errorf("ConflictCount = %d, want 1", snap.ConflictCount)
	}
}

// TestSnapshotLastSyncTime verifies the last sync time derives from the most
// recent synced item.
func TestSnapshotLastSyncTime(t *testing.T) {
	store := newTestStore(t)
	r := New(store)

	older := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	newer := time.Now().Truncate(time.Millisecond)

	putItem(t, store, "activity-1-a", models.SyncStatusSynced, older)
	putItem(t, store, "activity-2-b", models.SyncStatusSynced, newer)
	putItem(t, store, "activity-3-c", models.SyncStatusFailed, newer.Add(time.Minute))

	snap, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.LastSyncTime == nil {
		t.Fatal("LastSyncTime = nil, want newest synced attempt")
	}
	if !snap.LastSyncTime.Equal(newer) {
		t.Errorf("LastSyncTime = %v, want %v", snap.LastSyncTime, newer)
	}
}

// TestSnapshotResolvedConflictsExcluded verifies resolved conflicts do not
// count toward the open conflict total.
func TestSnapshotResolvedConflictsExcluded(t *testing.T) {
	store := newTestStore(t)
	r := New(store)
	now := time.Now()

	putItem(t, store, "activity-1-a", models.SyncStatusFailed, now)
	conflict := &models.SyncConflict{
		ID:            "c1",
		SourceItemID:  "activity-1-a",
		LocalPayload:  []byte(`{}`),
		RemotePayload: []byte(`{}`),
		DetectedAt:    now.UnixMilli(),
	}
	if err := store.PutConflict(conflict); err != nil {
		t.Fatalf("PutConflict failed: %v", err)
	}
	if _, err := store.MarkConflictResolved("c1", models.ResolutionServer, now); err != nil {
		t.Fatalf("MarkConflictResolved failed: %v", err)
	}

	snap, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.ConflictCount != 0 {
		t.Errorf("ConflictCount = %d, want 0 after resolution", snap.ConflictCount)
	}
}
