// Package memory provides a process-lifetime journal store.
//
// Data lives only as long as the process; the store is safe for concurrent
// use from multiple goroutines but offers no cross-process visibility. The
// version-conflict check and the insert happen inside one critical section so
// racing writers on the same (entity, version) resolve to exactly one winner.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/eventjournal/internal/journal"
)

// Store is the transient journal backend.
type Store struct {
	mu sync.RWMutex
	// byEntity keeps each entity's records sorted by ascending version.
	byEntity map[string][]journal.Event
	// appended keeps records in global append order for cross-entity scans.
	appended []journal.Event
}

// New creates an empty in-memory journal store.
func New() *Store {
	return &Store{
		byEntity: make(map[string][]journal.Event),
	}
}

// Append persists one record. The duplicate-version check and the insert
// share the lock; there is no window where two writers can both pass the
// check.
func (s *Store) Append(ctx context.Context, rec journal.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	rec = rec.NormalizeForAppend()

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.byEntity[rec.EntityID]
	pos := sort.Search(len(bucket), func(i int) bool {
		return bucket[i].Version >= rec.Version
	})
	if pos < len(bucket) && bucket[pos].Version == rec.Version {
		return journal.NewConflictError(rec.EntityID, rec.Version)
	}

	bucket = append(bucket, journal.Event{})
	copy(bucket[pos+1:], bucket[pos:])
	bucket[pos] = rec
	s.byEntity[rec.EntityID] = bucket
	s.appended = append(s.appended, rec)

	return nil
}

// GetEvents returns every record for the entity in ascending version order.
func (s *Store) GetEvents(ctx context.Context, entityID string) ([]journal.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyEvents(s.byEntity[entityID]), nil
}

// GetEventsSince returns the entity's records with version > version.
func (s *Store) GetEventsSince(ctx context.Context, entityID string, version uint64) ([]journal.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.byEntity[entityID]
	pos := sort.Search(len(bucket), func(i int) bool {
		return bucket[i].Version > version
	})
	return copyEvents(bucket[pos:]), nil
}

// GetEventsByType returns records of the given type across all entities,
// ordered by timestamp with ties in append order.
func (s *Store) GetEventsByType(ctx context.Context, eventType journal.Type) ([]journal.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []journal.Event
	for _, rec := range s.appended {
		if rec.Type == eventType {
			matched = append(matched, rec)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	return matched, nil
}

// GetEventsInRange returns the entity's records with timestamp inside the
// inclusive [start, end] window, in ascending version order.
func (s *Store) GetEventsInRange(ctx context.Context, entityID string, start, end time.Time) ([]journal.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []journal.Event
	for _, rec := range s.byEntity[entityID] {
		if rec.Timestamp.Before(start) || rec.Timestamp.After(end) {
			continue
		}
		matched = append(matched, rec)
	}
	return matched, nil
}

// Entities returns every entity id with at least one record, sorted.
func (s *Store) Entities(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.byEntity))
	for entityID := range s.byEntity {
		ids = append(ids, entityID)
	}
	sort.Strings(ids)
	return ids, nil
}

// copyEvents shields internal slices from caller mutation.
func copyEvents(events []journal.Event) []journal.Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]journal.Event, len(events))
	copy(out, events)
	return out
}
