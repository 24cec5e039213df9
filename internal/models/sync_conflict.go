// Package models provides data model definitions for the agrisync core.
package models

import (
	"encoding/json"
	"time"
)

// ResolutionStrategy defines how a sync conflict is resolved.
type ResolutionStrategy string

const (
	ResolutionLocal  ResolutionStrategy = "local"
	ResolutionServer ResolutionStrategy = "server"
	ResolutionMerge  ResolutionStrategy = "merge"
)

// Valid reports whether s is one of the declared strategies.
func (s ResolutionStrategy) Valid() bool {
	switch s {
	case ResolutionLocal, ResolutionServer, ResolutionMerge:
		return true
	}
	return false
}

// SyncConflict records a delivery attempt whose remote state diverged from
// the assumption under which the local mutation was made. Conflict records
// are created, never silently overwritten; resolution is a separate explicit
// act that flips Resolved and disposes of the source item.
type SyncConflict struct {
	ID                 string             `db:"id" json:"id"`
	SourceItemID       string             `db:"source_item_id" json:"source_item_id"`
	LocalPayload       json.RawMessage    `db:"local_payload" json:"local_payload"`
	RemotePayload      json.RawMessage    `db:"remote_payload" json:"remote_payload"`
	ResolutionStrategy ResolutionStrategy `db:"resolution_strategy" json:"resolution_strategy,omitempty"`
	Resolved           bool               `db:"resolved" json:"resolved"`
	DetectedAt         int64              `db:"detected_at" json:"detected_at"`
	ResolvedAt         int64              `db:"resolved_at" json:"resolved_at,omitempty"`
}

// TableName returns the table name for SyncConflict.
func (SyncConflict) TableName() string {
	return "sync_conflicts"
}

// DetectedTime returns DetectedAt as time.Time.
func (c *SyncConflict) DetectedTime() time.Time {
	return time.UnixMilli(c.DetectedAt)
}
