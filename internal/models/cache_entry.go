// Package models provides data model definitions for the agrisync core.
package models

import "time"

// CacheEntry is a cached GET response. Key is the canonical request identity
// (method plus normalized URL). Headers holds the JSON-encoded subset of
// response headers needed to replay the response.
type CacheEntry struct {
	Key        string `db:"key" json:"key"`
	Body       []byte `db:"body" json:"body"`
	Headers    string `db:"headers" json:"headers"`
	StatusCode int    `db:"status_code" json:"status_code"`
	StoredAt   int64  `db:"stored_at" json:"stored_at"` // unix ms
	TTLMs      int64  `db:"ttl_ms" json:"ttl_ms"`
}

// TableName returns the table name for CacheEntry.
func (CacheEntry) TableName() string {
	return "cache_entries"
}

// Expired reports whether the entry is past its time-to-live at now.
// Expired entries must be purged on the next read, never served.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.StoredAt+e.TTLMs < now.UnixMilli()
}

// StoredTime returns StoredAt as time.Time.
func (e *CacheEntry) StoredTime() time.Time {
	return time.UnixMilli(e.StoredAt)
}
