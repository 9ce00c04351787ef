// Package sqlite provides the durable journal store backed by SQLite.
//
// Records survive process restart and are visible across writer processes
// sharing the database file. The append uniqueness invariant is enforced by a
// unique index on (entity_id, version), so conflict detection needs no shared
// memory between writers.
package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/eventjournal/internal/journal"
	"github.com/louisbranch/eventjournal/internal/journal/sqlite/migrations"
	"github.com/louisbranch/eventjournal/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store is the durable journal backend.
type Store struct {
	sqlDB *sql.DB
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a journal store at the provided path and applies bundled
// migrations. Failures are reported as storage-unavailable errors so callers
// can distinguish them from conflicts.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, journal.NewStorageError("open sqlite db", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, journal.NewStorageError("ping sqlite db", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, journal.NewStorageError("run migrations", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
