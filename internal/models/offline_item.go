// Package models provides data model definitions for the agrisync core.
package models

import (
	"encoding/json"
	"time"
)

// ItemType identifies the kind of queued mutation. The set is closed:
// producers pass one of the declared constants, the type is never inferred
// from the payload.
type ItemType string

const (
	ItemTypeActivity         ItemType = "activity"
	ItemTypeSensorReading    ItemType = "sensor_reading"
	ItemTypeFormSubmission   ItemType = "form_submission"
	ItemTypeImageUpload      ItemType = "image_upload"
	ItemTypeMarketplaceOrder ItemType = "marketplace_order"
)

// AllItemTypes returns every declared item type.
func AllItemTypes() []ItemType {
	return []ItemType{
		ItemTypeActivity, ItemTypeSensorReading, ItemTypeFormSubmission,
		ItemTypeImageUpload, ItemTypeMarketplaceOrder,
	}
}

// Valid reports whether t is one of the declared item types.
func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeActivity, ItemTypeSensorReading, ItemTypeFormSubmission,
		ItemTypeImageUpload, ItemTypeMarketplaceOrder:
		return true
	}
	return false
}

// SyncStatus represents the delivery state of an OfflineItem.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// OfflineItem is a locally recorded mutation awaiting delivery to the remote
// authority. The payload is owned by the queue once enqueued; producers must
// not mutate it afterwards. All timestamps are unix milliseconds.
type OfflineItem struct {
	ID            string          `db:"id" json:"id"`
	ItemType      ItemType        `db:"item_type" json:"item_type"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	OwnerID       string          `db:"owner_id" json:"owner_id"`
	ScopeID       string          `db:"scope_id" json:"scope_id"`
	SyncStatus    SyncStatus      `db:"sync_status" json:"sync_status"`
	RetryCount    int             `db:"retry_count" json:"retry_count"`
	LastAttemptAt int64           `db:"last_attempt_at" json:"last_attempt_at,omitempty"` // 0 when never attempted
	NextRetryAt   int64           `db:"next_retry_at" json:"next_retry_at"`
	LastError     string          `db:"last_error" json:"last_error,omitempty"`
	CreatedAt     int64           `db:"created_at" json:"created_at"`
	UpdatedAt     int64           `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for OfflineItem.
func (OfflineItem) TableName() string {
	return "offline_queue"
}

// CreatedTime returns CreatedAt as time.Time.
func (i *OfflineItem) CreatedTime() time.Time {
	return time.UnixMilli(i.CreatedAt)
}

// LastAttemptTime returns LastAttemptAt as time.Time, or nil when the item
// has never been attempted.
func (i *OfflineItem) LastAttemptTime() *time.Time {
	if i.LastAttemptAt == 0 {
		return nil
	}
	t := time.UnixMilli(i.LastAttemptAt)
	return &t
}
