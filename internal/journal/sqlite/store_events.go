package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/eventjournal/internal/journal"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const eventColumns = "id, entity_id, event_type, payload, timestamp, version"

// Append atomically persists one record. The insert is a single statement;
// the unique index on (entity_id, version) rejects the loser of a racing
// pair, which surfaces as a version conflict error.
func (s *Store) Append(ctx context.Context, rec journal.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	rec = rec.NormalizeForAppend()

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO events (id, entity_id, event_type, payload, timestamp, version)
VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.EntityID,
		string(rec.Type),
		rec.PayloadJSON,
		toMillis(rec.Timestamp),
		int64(rec.Version),
	)
	if err != nil {
		if isConstraintError(err) {
			return journal.NewConflictError(rec.EntityID, rec.Version)
		}
		return journal.NewStorageError("append event", err)
	}
	return nil
}

// GetEvents returns every record for the entity in ascending version order.
func (s *Store) GetEvents(ctx context.Context, entityID string) ([]journal.Event, error) {
	return s.queryEvents(ctx, `
SELECT `+eventColumns+`
FROM events
WHERE entity_id = ?
ORDER BY version ASC`, entityID)
}

// GetEventsSince returns the entity's records with version > version.
func (s *Store) GetEventsSince(ctx context.Context, entityID string, version uint64) ([]journal.Event, error) {
	return s.queryEvents(ctx, `
SELECT `+eventColumns+`
FROM events
WHERE entity_id = ? AND version > ?
ORDER BY version ASC`, entityID, int64(version))
}

// GetEventsByType returns records of the given type across all entities,
// ordered by timestamp. Rowid breaks ties in append order so results match
// the transient backend exactly.
func (s *Store) GetEventsByType(ctx context.Context, eventType journal.Type) ([]journal.Event, error) {
	return s.queryEvents(ctx, `
SELECT `+eventColumns+`
FROM events
WHERE event_type = ?
ORDER BY timestamp ASC, rowid ASC`, string(eventType))
}

// GetEventsInRange returns the entity's records with timestamp inside the
// inclusive [start, end] window, in ascending version order.
func (s *Store) GetEventsInRange(ctx context.Context, entityID string, start, end time.Time) ([]journal.Event, error) {
	return s.queryEvents(ctx, `
SELECT `+eventColumns+`
FROM events
WHERE entity_id = ? AND timestamp >= ? AND timestamp <= ?
ORDER BY version ASC`, entityID, toMillis(start), toMillis(end))
}

// Entities returns every entity id with at least one record, sorted.
func (s *Store) Entities(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT DISTINCT entity_id
FROM events
ORDER BY entity_id ASC`)
	if err != nil {
		return nil, journal.NewStorageError("list entities", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var entityID string
		if err := rows.Scan(&entityID); err != nil {
			return nil, journal.NewStorageError("scan entity id", err)
		}
		ids = append(ids, entityID)
	}
	if err := rows.Err(); err != nil {
		return nil, journal.NewStorageError("iterate entities", err)
	}
	return ids, nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]journal.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, journal.NewStorageError("query events", err)
	}
	defer rows.Close()

	var events []journal.Event
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, journal.NewStorageError("iterate events", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (journal.Event, error) {
	var (
		rec       journal.Event
		eventType string
		payload   []byte
		timestamp int64
		version   int64
	)
	if err := rows.Scan(&rec.ID, &rec.EntityID, &eventType, &payload, &timestamp, &version); err != nil {
		return journal.Event{}, journal.NewStorageError("scan event", err)
	}
	rec.Type = journal.Type(eventType)
	rec.PayloadJSON = payload
	rec.Timestamp = fromMillis(timestamp)
	rec.Version = uint64(version)
	return rec, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT ||
		code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
