// Package status computes read-only sync status snapshots from the
// persistent store. There is no second source of truth: every field is
// derived from stored state at call time.
package status

import (
	"time"

	"github.com/agrilink/agrisync/internal/db"
	"github.com/agrilink/agrisync/internal/models"
)

// Snapshot is a point-in-time view of sync health.
type Snapshot struct {
	PendingCount  int        `json:"pending_count"`
	SyncingCount  int        `json:"syncing_count"`
	FailedCount   int        `json:"failed_count"`
	SyncedCount   int        `json:"synced_count"`
	ConflictCount int        `json:"conflict_count"`
	LastSyncTime  *time.Time `json:"last_sync_time,omitempty"`
	StorageBytes  int64      `json:"storage_bytes"`
	CacheEntries  int        `json:"cache_entries"`
}

// Reporter derives status snapshots. It never mutates anything.
type Reporter struct {
	store *db.Store
}

// New creates a Reporter over the store.
func New(store *db.Store) *Reporter {
	return &Reporter{store: store}
}

// Snapshot computes the current status.
func (r *Reporter) Snapshot() (*Snapshot, error) {
	counts, err := r.store.CountByStatus()
	if err != nil {
		return nil, err
	}

	conflicts, err := r.store.CountUnresolvedConflicts()
	if err != nil {
		return nil, err
	}

	lastSync, err := r.store.LastSyncTime()
	if err != nil {
		return nil, err
	}

	size, err := r.store.StorageSize()
	if err != nil {
		return nil, err
	}

	cacheEntries, err := r.store.CacheCount()
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		PendingCount:  counts[models.SyncStatusPending],
		SyncingCount:  counts[models.SyncStatusSyncing],
		FailedCount:   counts[models.SyncStatusFailed],
		SyncedCount:   counts[models.SyncStatusSynced],
		ConflictCount: conflicts,
		LastSyncTime:  lastSync,
		StorageBytes:  size,
		CacheEntries:  cacheEntries,
	}, nil
}
