// Package db provides the persistent store for the agrisync core: the
// offline action queue, the response cache and the conflict table.
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agrilink/agrisync/internal/errors"
	"github.com/agrilink/agrisync/internal/models"
)

// Store provides durable operations over the three engine tables. Reads never
// fail for "not found": they return nil. Writes are short atomic
// read-modify-write statements; no long-lived locks are held.
type Store struct {
	db       *sql.DB
	queueCap int

	// Prepared statement cache for frequently used queries.
	// Statements are prepared on first use and cached for reuse.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewStore creates a Store over an opened database. queueCap bounds the
// number of rows in the offline queue; 0 means unbounded.
func NewStore(database *DB, queueCap int) *Store {
	return &Store{db: database.DB, queueCap: queueCap}
}

// PrepareStmt gets or creates a prepared statement from the cache.
func (s *Store) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := s.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := s.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes all cached prepared statements.
func (s *Store) Close() error {
	var firstErr error
	s.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// OfflineItem Operations
// =====================================================

const itemColumns = `id, item_type, payload, owner_id, scope_id, sync_status,
	retry_count, last_attempt_at, next_retry_at, last_error, created_at, updated_at`

// scanItem scans a single offline queue row.
func scanItem(row interface{ Scan(...interface{}) error }) (*models.OfflineItem, error) {
	var item models.OfflineItem
	var payload string
	err := row.Scan(
		&item.ID, &item.ItemType, &payload, &item.OwnerID, &item.ScopeID,
		&item.SyncStatus, &item.RetryCount, &item.LastAttemptAt,
		&item.NextRetryAt, &item.LastError, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Payload = []byte(payload)
	return &item, nil
}

// execer is the subset of *sql.DB and *sql.Tx the cap-checked insert needs.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// PutItem inserts or replaces an offline item. The write is idempotent on
// the item id. Returns STORAGE_FULL when the queue cap is still exceeded
// after evicting already-synced rows. With a cap, the check, the eviction
// and the insert run in one transaction so concurrent writers cannot race
// past the cap.
func (s *Store) PutItem(item *models.OfflineItem) error {
	if s.queueCap <= 0 {
		return putItem(s.db, item)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := s.enforceQueueCap(tx, item.ID); err != nil {
		return err
	}
	if err := putItem(tx, item); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to store offline item", err)
	}
	return nil
}

func putItem(q execer, item *models.OfflineItem) error {
	query := `
	INSERT OR REPLACE INTO offline_queue
		(id, item_type, payload, owner_id, scope_id, sync_status,
		 retry_count, last_attempt_at, next_retry_at, last_error, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.Exec(query,
		item.ID, item.ItemType, string(item.Payload), item.OwnerID, item.ScopeID,
		item.SyncStatus, item.RetryCount, item.LastAttemptAt,
		item.NextRetryAt, item.LastError, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to store offline item", err)
	}
	return nil
}

// enforceQueueCap evicts synced rows when the cap is reached. Replacing an
// existing id never counts against the cap.
func (s *Store) enforceQueueCap(q execer, id string) error {
	var exists int
	if err := q.QueryRow("SELECT COUNT(*) FROM offline_queue WHERE id = ?", id).Scan(&exists); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to check queue", err)
	}
	if exists > 0 {
		return nil
	}

	var count int
	if err := q.QueryRow("SELECT COUNT(*) FROM offline_queue").Scan(&count); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to count queue", err)
	}
	if count < s.queueCap {
		return nil
	}

	// Evict oldest synced rows first; they are retained only for status reporting.
	evict := count - s.queueCap + 1
	_, err := q.Exec(`
	DELETE FROM offline_queue WHERE id IN (
		SELECT id FROM offline_queue WHERE sync_status = 'synced'
		ORDER BY updated_at ASC LIMIT ?
	)`, evict)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to evict synced items", err)
	}

	if err := q.QueryRow("SELECT COUNT(*) FROM offline_queue").Scan(&count); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to count queue", err)
	}
	if count >= s.queueCap {
		return errors.New(errors.ErrStorageFull,
			fmt.Sprintf("offline queue cap reached (%d items)", s.queueCap))
	}
	return nil
}

// GetItem retrieves an offline item by id, or nil when absent.
func (s *Store) GetItem(id string) (*models.OfflineItem, error) {
	stmt, err := s.PrepareStmt("SELECT " + itemColumns + " FROM offline_queue WHERE id = ?")
	if err != nil {
		return nil, err
	}

	item, err := scanItem(stmt.QueryRow(id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to read offline item", err)
	}
	return item, nil
}

// ListItems returns all offline items ordered by creation time.
func (s *Store) ListItems() ([]*models.OfflineItem, error) {
	return s.queryItems("SELECT "+itemColumns+" FROM offline_queue ORDER BY created_at ASC, rowid ASC")
}

// ItemsByStatus returns items with the given sync status.
func (s *Store) ItemsByStatus(status models.SyncStatus) ([]*models.OfflineItem, error) {
	return s.queryItems(
		"SELECT "+itemColumns+" FROM offline_queue WHERE sync_status = ? ORDER BY created_at ASC, rowid ASC",
		status)
}

// ItemsByType returns items of the given item type.
func (s *Store) ItemsByType(itemType models.ItemType) ([]*models.OfflineItem, error) {
	return s.queryItems(
		"SELECT "+itemColumns+" FROM offline_queue WHERE item_type = ? ORDER BY created_at ASC, rowid ASC",
		itemType)
}

func (s *Store) queryItems(query string, args ...interface{}) ([]*models.OfflineItem, error) {
	stmt, err := s.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to query offline items", err)
	}
	defer rows.Close()

	var items []*models.OfflineItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrStorage, "failed to scan offline item", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteItem removes an offline item. Deleting a non-existent id is not an error.
func (s *Store) DeleteItem(id string) error {
	_, err := s.db.Exec("DELETE FROM offline_queue WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to delete offline item", err)
	}
	return nil
}

// CountByStatus returns item counts grouped by sync status.
func (s *Store) CountByStatus() (map[models.SyncStatus]int, error) {
	rows, err := s.db.Query("SELECT sync_status, COUNT(*) FROM offline_queue GROUP BY sync_status")
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to count items", err)
	}
	defer rows.Close()

	counts := make(map[models.SyncStatus]int)
	for rows.Next() {
		var status models.SyncStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(errors.ErrStorage, "failed to scan count", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// =====================================================
// Claiming
// =====================================================

// claimCandidates returns items eligible for delivery without claiming them.
// Items with an unresolved conflict are never eligible; they wait for
// explicit resolution.
func (s *Store) claimCandidates(now time.Time, maxRetries int) ([]*models.OfflineItem, error) {
	query := `
	SELECT ` + itemColumns + ` FROM offline_queue q
	WHERE q.sync_status IN ('pending','failed')
	  AND q.next_retry_at <= ?
	  AND q.retry_count < ?
	  AND NOT EXISTS (
		SELECT 1 FROM sync_conflicts c
		WHERE c.source_item_id = q.id AND c.resolved = 0)
	ORDER BY q.created_at ASC, q.rowid ASC
	`
	return s.queryItems(query, now.UnixMilli(), maxRetries)
}

// forceCandidates returns items of a type eligible for a forced sync:
// backoff windows and retry exhaustion are ignored, unresolved conflicts
// still block.
func (s *Store) forceCandidates(itemType models.ItemType) ([]*models.OfflineItem, error) {
	query := `
	SELECT ` + itemColumns + ` FROM offline_queue q
	WHERE q.sync_status IN ('pending','failed')
	  AND q.item_type = ?
	  AND NOT EXISTS (
		SELECT 1 FROM sync_conflicts c
		WHERE c.source_item_id = q.id AND c.resolved = 0)
	ORDER BY q.created_at ASC, q.rowid ASC
	`
	return s.queryItems(query, itemType)
}

// claimOne atomically moves one item to syncing. This is the compare-and-set
// that prevents two concurrent drains from claiming the same item: the update
// only matches while the row is still pending or failed.
func (s *Store) claimOne(id string, now time.Time) (bool, error) {
	res, err := s.db.Exec(`
	UPDATE offline_queue
	SET sync_status = 'syncing', last_attempt_at = ?, updated_at = ?
	WHERE id = ? AND sync_status IN ('pending','failed')
	`, now.UnixMilli(), now.UnixMilli(), id)
	if err != nil {
		return false, errors.Wrap(errors.ErrStorage, "failed to claim item", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(errors.ErrStorage, "failed to claim item", err)
	}
	return n == 1, nil
}

// ClaimDue claims all currently eligible items and returns them in
// created_at order. Items another caller claimed first are skipped.
func (s *Store) ClaimDue(now time.Time, maxRetries int) ([]*models.OfflineItem, error) {
	candidates, err := s.claimCandidates(now, maxRetries)
	if err != nil {
		return nil, err
	}
	return s.claimAll(candidates, now)
}

// ClaimByType claims all pending or failed items of one type, ignoring
// backoff and exhaustion. Used for explicit "sync now" user action.
func (s *Store) ClaimByType(itemType models.ItemType, now time.Time) ([]*models.OfflineItem, error) {
	candidates, err := s.forceCandidates(itemType)
	if err != nil {
		return nil, err
	}
	return s.claimAll(candidates, now)
}

func (s *Store) claimAll(candidates []*models.OfflineItem, now time.Time) ([]*models.OfflineItem, error) {
	var claimed []*models.OfflineItem
	for _, item := range candidates {
		ok, err := s.claimOne(item.ID, now)
		if err != nil {
			return claimed, err
		}
		if !ok {
			continue
		}
		item.SyncStatus = models.SyncStatusSyncing
		item.LastAttemptAt = now.UnixMilli()
		item.UpdatedAt = now.UnixMilli()
		claimed = append(claimed, item)
	}
	return claimed, nil
}

// =====================================================
// Delivery outcomes
// =====================================================

// MarkSynced records a successful delivery.
func (s *Store) MarkSynced(id string, now time.Time) error {
	_, err := s.db.Exec(`
	UPDATE offline_queue
	SET sync_status = 'synced', last_error = '', updated_at = ?
	WHERE id = ?
	`, now.UnixMilli(), id)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to mark item synced", err)
	}
	return nil
}

// MarkFailed records a transient delivery failure: the retry count is
// incremented and the item becomes claimable again at nextRetry.
func (s *Store) MarkFailed(id, errMsg string, nextRetry, now time.Time) error {
	_, err := s.db.Exec(`
	UPDATE offline_queue
	SET sync_status = 'failed', retry_count = retry_count + 1,
	    last_error = ?, next_retry_at = ?, updated_at = ?
	WHERE id = ?
	`, errMsg, nextRetry.UnixMilli(), now.UnixMilli(), id)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to mark item failed", err)
	}
	return nil
}

// MarkConflicted records a conflict outcome: the item is failed but its
// retry count is untouched since retries do not apply until resolution.
func (s *Store) MarkConflicted(id, errMsg string, now time.Time) error {
	_, err := s.db.Exec(`
	UPDATE offline_queue
	SET sync_status = 'failed', last_error = ?, updated_at = ?
	WHERE id = ?
	`, errMsg, now.UnixMilli(), id)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to mark item conflicted", err)
	}
	return nil
}

// MarkExhausted records a permanent rejection: the retry count jumps to the
// configured maximum so the item is excluded from automatic re-claim.
func (s *Store) MarkExhausted(id, errMsg string, maxRetries int, now time.Time) error {
	_, err := s.db.Exec(`
	UPDATE offline_queue
	SET sync_status = 'failed', retry_count = ?, last_error = ?, updated_at = ?
	WHERE id = ?
	`, maxRetries, errMsg, now.UnixMilli(), id)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to mark item exhausted", err)
	}
	return nil
}

// ResetForRetry returns an item to pending with a fresh retry budget.
// Used after a conflict is resolved in favor of the local mutation.
func (s *Store) ResetForRetry(id string, now time.Time) error {
	_, err := s.db.Exec(`
	UPDATE offline_queue
	SET sync_status = 'pending', retry_count = 0, next_retry_at = ?,
	    last_error = '', updated_at = ?
	WHERE id = ?
	`, now.UnixMilli(), now.UnixMilli(), id)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to reset item", err)
	}
	return nil
}

// FailStaleSyncing converts items stuck in syncing since before the given
// cutoff to failed. Run once at startup so a crash mid-attempt never leaves
// an item permanently stuck.
func (s *Store) FailStaleSyncing(before, now time.Time) (int64, error) {
	res, err := s.db.Exec(`
	UPDATE offline_queue
	SET sync_status = 'failed', last_error = 'delivery attempt interrupted',
	    next_retry_at = ?, updated_at = ?
	WHERE sync_status = 'syncing' AND last_attempt_at < ?
	`, now.UnixMilli(), now.UnixMilli(), before.UnixMilli())
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to reconcile stale items", err)
	}
	return res.RowsAffected()
}

// SweepSynced deletes synced items last touched before the cutoff.
func (s *Store) SweepSynced(before time.Time) (int64, error) {
	res, err := s.db.Exec(
		"DELETE FROM offline_queue WHERE sync_status = 'synced' AND updated_at < ?",
		before.UnixMilli())
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to sweep synced items", err)
	}
	return res.RowsAffected()
}

// LastSyncTime returns the most recent successful delivery time, or nil when
// nothing has synced yet.
func (s *Store) LastSyncTime() (*time.Time, error) {
	var ms sql.NullInt64
	err := s.db.QueryRow(
		"SELECT MAX(last_attempt_at) FROM offline_queue WHERE sync_status = 'synced'").Scan(&ms)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to read last sync time", err)
	}
	if !ms.Valid || ms.Int64 == 0 {
		return nil, nil
	}
	t := time.UnixMilli(ms.Int64)
	return &t, nil
}

// StorageSize returns the approximate database size in bytes.
func (s *Store) StorageSize() (int64, error) {
	var pageCount, pageSize int64
	if err := s.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to read page count", err)
	}
	if err := s.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to read page size", err)
	}
	return pageCount * pageSize, nil
}

// =====================================================
// CacheEntry Operations
// =====================================================

// PutCacheEntry inserts or refreshes a cache entry.
func (s *Store) PutCacheEntry(entry *models.CacheEntry) error {
	_, err := s.db.Exec(`
	INSERT OR REPLACE INTO cache_entries (key, body, headers, status_code, stored_at, ttl_ms)
	VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Key, entry.Body, entry.Headers, entry.StatusCode, entry.StoredAt, entry.TTLMs)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to store cache entry", err)
	}
	return nil
}

// GetCacheEntry retrieves a cache entry by key, or nil when absent.
func (s *Store) GetCacheEntry(key string) (*models.CacheEntry, error) {
	stmt, err := s.PrepareStmt(
		"SELECT key, body, headers, status_code, stored_at, ttl_ms FROM cache_entries WHERE key = ?")
	if err != nil {
		return nil, err
	}

	var entry models.CacheEntry
	err = stmt.QueryRow(key).Scan(
		&entry.Key, &entry.Body, &entry.Headers, &entry.StatusCode,
		&entry.StoredAt, &entry.TTLMs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to read cache entry", err)
	}
	return &entry, nil
}

// DeleteCacheEntry removes a cache entry. Missing keys are not an error.
func (s *Store) DeleteCacheEntry(key string) error {
	_, err := s.db.Exec("DELETE FROM cache_entries WHERE key = ?", key)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to delete cache entry", err)
	}
	return nil
}

// DeleteCacheByPrefix removes all cache entries whose key starts with prefix.
func (s *Store) DeleteCacheByPrefix(prefix string) (int64, error) {
	// Escape LIKE wildcards in the prefix
	escaped := strings.NewReplacer("%", `\%`, "_", `\_`).Replace(prefix)
	res, err := s.db.Exec(`DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'`, escaped+"%")
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to invalidate cache prefix", err)
	}
	return res.RowsAffected()
}

// PurgeExpiredCache deletes all entries past their TTL at now.
func (s *Store) PurgeExpiredCache(now time.Time) (int64, error) {
	res, err := s.db.Exec(
		"DELETE FROM cache_entries WHERE stored_at + ttl_ms < ?", now.UnixMilli())
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to purge expired cache", err)
	}
	return res.RowsAffected()
}

// CacheCount returns the number of cache entries.
func (s *Store) CacheCount() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM cache_entries").Scan(&n); err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to count cache entries", err)
	}
	return n, nil
}

// =====================================================
// SyncConflict Operations
// =====================================================

// PutConflict inserts a conflict record. Records are append-only: an
// existing id is never overwritten.
func (s *Store) PutConflict(c *models.SyncConflict) error {
	_, err := s.db.Exec(`
	INSERT INTO sync_conflicts
		(id, source_item_id, local_payload, remote_payload,
		 resolution_strategy, resolved, detected_at, resolved_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.SourceItemID, string(c.LocalPayload), string(c.RemotePayload),
		c.ResolutionStrategy, c.Resolved, c.DetectedAt, c.ResolvedAt)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to store conflict", err)
	}
	return nil
}

// GetConflict retrieves a conflict by id, or nil when absent.
func (s *Store) GetConflict(id string) (*models.SyncConflict, error) {
	stmt, err := s.PrepareStmt(`
	SELECT id, source_item_id, local_payload, remote_payload,
	       resolution_strategy, resolved, detected_at, resolved_at
	FROM sync_conflicts WHERE id = ?`)
	if err != nil {
		return nil, err
	}

	c, err := scanConflict(stmt.QueryRow(id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to read conflict", err)
	}
	return c, nil
}

func scanConflict(row interface{ Scan(...interface{}) error }) (*models.SyncConflict, error) {
	var c models.SyncConflict
	var local, remote string
	err := row.Scan(
		&c.ID, &c.SourceItemID, &local, &remote,
		&c.ResolutionStrategy, &c.Resolved, &c.DetectedAt, &c.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	c.LocalPayload = []byte(local)
	c.RemotePayload = []byte(remote)
	return &c, nil
}

// ListConflicts returns conflict records, optionally only unresolved ones,
// newest first.
func (s *Store) ListConflicts(unresolvedOnly bool) ([]*models.SyncConflict, error) {
	query := `
	SELECT id, source_item_id, local_payload, remote_payload,
	       resolution_strategy, resolved, detected_at, resolved_at
	FROM sync_conflicts`
	if unresolvedOnly {
		query += " WHERE resolved = 0"
	}
	query += " ORDER BY detected_at DESC, rowid DESC"

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to query conflicts", err)
	}
	defer rows.Close()

	var conflicts []*models.SyncConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrStorage, "failed to scan conflict", err)
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

// MarkConflictResolved flips a conflict to resolved with the chosen
// strategy. Returns false when the conflict was already resolved or absent.
func (s *Store) MarkConflictResolved(id string, strategy models.ResolutionStrategy, now time.Time) (bool, error) {
	res, err := s.db.Exec(`
	UPDATE sync_conflicts
	SET resolved = 1, resolution_strategy = ?, resolved_at = ?
	WHERE id = ? AND resolved = 0
	`, strategy, now.UnixMilli(), id)
	if err != nil {
		return false, errors.Wrap(errors.ErrStorage, "failed to resolve conflict", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(errors.ErrStorage, "failed to resolve conflict", err)
	}
	return n == 1, nil
}

// HasUnresolvedConflict reports whether an item has a pending conflict.
func (s *Store) HasUnresolvedConflict(itemID string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sync_conflicts WHERE source_item_id = ? AND resolved = 0",
		itemID).Scan(&n)
	if err != nil {
		return false, errors.Wrap(errors.ErrStorage, "failed to check conflicts", err)
	}
	return n > 0, nil
}

// CountUnresolvedConflicts returns the number of open conflicts.
func (s *Store) CountUnresolvedConflicts() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sync_conflicts WHERE resolved = 0").Scan(&n)
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to count conflicts", err)
	}
	return n, nil
}
