// Package db provides database schema migration management.
package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration represents a database schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of schema steps. Steps are embedded rather
// than read from a directory so the engine ships as a single binary.
var migrations = []Migration{
	{
		Version:     1,
		Description: "create offline_queue, cache_entries and sync_conflicts",
		SQL: `
		CREATE TABLE offline_queue (
			id TEXT PRIMARY KEY,
			item_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			owner_id TEXT NOT NULL DEFAULT '',
			scope_id TEXT NOT NULL DEFAULT '',
			sync_status TEXT NOT NULL DEFAULT 'pending'
				CHECK(sync_status IN ('pending','syncing','synced','failed')),
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_attempt_at INTEGER NOT NULL DEFAULT 0,
			next_retry_at INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX idx_offline_queue_item_type ON offline_queue(item_type);
		CREATE INDEX idx_offline_queue_sync_status ON offline_queue(sync_status);
		CREATE INDEX idx_offline_queue_created_at ON offline_queue(created_at);

		CREATE TABLE cache_entries (
			key TEXT PRIMARY KEY,
			body BLOB NOT NULL,
			headers TEXT NOT NULL DEFAULT '{}',
			status_code INTEGER NOT NULL DEFAULT 200,
			stored_at INTEGER NOT NULL,
			ttl_ms INTEGER NOT NULL
		);
		CREATE INDEX idx_cache_entries_stored_at ON cache_entries(stored_at);

		CREATE TABLE sync_conflicts (
			id TEXT PRIMARY KEY,
			source_item_id TEXT NOT NULL,
			local_payload TEXT NOT NULL,
			remote_payload TEXT NOT NULL,
			resolution_strategy TEXT NOT NULL DEFAULT '',
			resolved INTEGER NOT NULL DEFAULT 0,
			detected_at INTEGER NOT NULL,
			resolved_at INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX idx_sync_conflicts_source_item ON sync_conflicts(source_item_id);
		CREATE INDEX idx_sync_conflicts_resolved ON sync_conflicts(resolved);
		`,
	},
}

// Migrator handles database schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Up applies all pending migrations in order, each inside a transaction.
func (m *Migrator) Up() error {
	current, err := m.CurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, mig := range migrations {
		if mig.Version <= current {
			continue
		}

		tx, err := m.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", mig.Version, err)
		}

		if _, err := tx.Exec(mig.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", mig.Version, mig.Description, err)
		}

		sum := sha256.Sum256([]byte(mig.SQL))
		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)",
			mig.Version, time.Now().Unix(), mig.Description, hex.EncodeToString(sum[:]),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", mig.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", mig.Version, err)
		}
	}

	return nil
}

// Migrate initializes the migration table and applies pending steps.
func Migrate(db *sql.DB) error {
	m := NewMigrator(db)
	if err := m.Initialize(); err != nil {
		return err
	}
	return m.Up()
}
