// Package db tests for schema migrations.
package db

import (
	"testing"
)

// openMigrated opens a fresh migrated database for tests.
func openMigrated(t *testing.T) *DB {
	t.Helper()

	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := Migrate(database.DB); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	return database
}

// TestMigrateCreatesTables verifies all engine tables exist after migration.
func TestMigrateCreatesTables(t *testing.T) {
	database := openMigrated(t)

	for _, table := range []string{"offline_queue", "cache_entries", "sync_conflicts", "schema_migrations"} {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after migration: %v", table, err)
		}
	}
}

// TestMigrateIdempotent verifies running migrations twice is a no-op.
func TestMigrateIdempotent(t *testing.T) {
	database := openMigrated(t)

	if err := Migrate(database.DB); err != nil {
		t.Fatalf("second Migrate() failed: %v", err)
	}

	m := NewMigrator(database.DB)
	version, err := m.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() failed: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}
}

// TestMigrationRecorded verifies applied steps are recorded with checksums.
func TestMigrationRecorded(t *testing.T) {
	database := openMigrated(t)

	var description, checksum string
	err := database.QueryRow(
		"SELECT description, checksum FROM schema_migrations WHERE version = 1").Scan(&description, &checksum)
	if err != nil {
		t.Fatalf("migration row missing: %v", err)
	}

	if description == "" {
		t.Error("description should not be empty")
	}
	if len(checksum) != 64 {
		t.Errorf("checksum length = %d, want 64", len(checksum))
	}
}
