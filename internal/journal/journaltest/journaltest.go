// Package journaltest provides a conformance suite that every journal store
// backend must pass. Both backends run the identical suite so contract
// semantics cannot drift between them.
package journaltest

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/eventjournal/internal/journal"
)

// OpenFunc returns a fresh, empty store for one subtest.
type OpenFunc func(t *testing.T) journal.Store

// Record builds a journal record with a deterministic timestamp, failing the
// test on constructor errors.
func Record(t *testing.T, entityID string, typ journal.Type, version uint64, at time.Time) journal.Event {
	t.Helper()
	rec, err := journal.New(entityID, typ, version, map[string]uint64{"version": version})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	rec.Timestamp = at
	return rec
}

// RunStoreSuite exercises the full store contract against open.
func RunStoreSuite(t *testing.T, open OpenFunc) {
	base := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	t.Run("EmptyEntityYieldsNoEvents", func(t *testing.T) {
		store := open(t)

		events, err := store.GetEvents(context.Background(), "missing")
		if err != nil {
			t.Fatalf("get events: %v", err)
		}
		if len(events) != 0 {
			t.Fatalf("expected no events, got %d", len(events))
		}
	})

	t.Run("AppendAndGetEventsOrdered", func(t *testing.T) {
		store := open(t)

		// Append out of version order; reads must still come back ascending.
		for _, version := range []uint64{2, 1, 3} {
			rec := Record(t, "e1", "user.created", version, base.Add(time.Duration(version)*time.Minute))
			if err := store.Append(context.Background(), rec); err != nil {
				t.Fatalf("append version %d: %v", version, err)
			}
		}

		events, err := store.GetEvents(context.Background(), "e1")
		if err != nil {
			t.Fatalf("get events: %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("expected 3 events, got %d", len(events))
		}
		for i, evt := range events {
			if evt.Version != uint64(i+1) {
				t.Fatalf("expected ascending versions, got %d at index %d", evt.Version, i)
			}
		}
	})

	t.Run("RereadWithoutWritesIsStable", func(t *testing.T) {
		store := open(t)

		for version := uint64(1); version <= 4; version++ {
			rec := Record(t, "e1", "user.created", version, base.Add(time.Duration(version)*time.Second))
			if err := store.Append(context.Background(), rec); err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		first, err := store.GetEvents(context.Background(), "e1")
		if err != nil {
			t.Fatalf("first read: %v", err)
		}
		second, err := store.GetEvents(context.Background(), "e1")
		if err != nil {
			t.Fatalf("second read: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatal("expected identical sequences on re-read")
		}
	})

	t.Run("DuplicateVersionConflicts", func(t *testing.T) {
		store := open(t)

		if err := store.Append(context.Background(), Record(t, "e1", "user.created", 1, base)); err != nil {
			t.Fatalf("first append: %v", err)
		}

		err := store.Append(context.Background(), Record(t, "e1", "user.name_updated", 1, base.Add(time.Second)))
		if !journal.IsConflict(err) {
			t.Fatalf("expected conflict, got %v", err)
		}
		entityID, version, ok := journal.ConflictDetails(err)
		if !ok || entityID != "e1" || version != 1 {
			t.Fatalf("expected conflict naming e1/1, got %s/%d (ok=%v)", entityID, version, ok)
		}

		// The losing record must not be visible.
		events, err := store.GetEvents(context.Background(), "e1")
		if err != nil {
			t.Fatalf("get events: %v", err)
		}
		if len(events) != 1 || events[0].Type != "user.created" {
			t.Fatalf("expected only the winning record, got %+v", events)
		}
	})

	t.Run("GetEventsSinceExactSubset", func(t *testing.T) {
		store := open(t)
		const latest = uint64(5)

		for version := uint64(1); version <= latest; version++ {
			rec := Record(t, "e1", "user.created", version, base.Add(time.Duration(version)*time.Second))
			if err := store.Append(context.Background(), rec); err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		for since := uint64(0); since <= latest; since++ {
			events, err := store.GetEventsSince(context.Background(), "e1", since)
			if err != nil {
				t.Fatalf("get events since %d: %v", since, err)
			}
			if len(events) != int(latest-since) {
				t.Fatalf("since %d: expected %d events, got %d", since, latest-since, len(events))
			}
			for i, evt := range events {
				if evt.Version != since+uint64(i)+1 {
					t.Fatalf("since %d: unexpected version %d at index %d", since, evt.Version, i)
				}
			}
		}
	})

	t.Run("GetEventsByTypeOrderedByTimestamp", func(t *testing.T) {
		store := open(t)

		// Interleave entities and types with deliberately unordered timestamps.
		appends := []struct {
			entity  string
			typ     journal.Type
			version uint64
			offset  time.Duration
		}{
			{"e1", "user.created", 1, 3 * time.Minute},
			{"e2", "user.created", 1, 1 * time.Minute},
			{"e1", "user.name_updated", 2, 4 * time.Minute},
			{"e3", "user.created", 1, 2 * time.Minute},
		}
		for _, a := range appends {
			if err := store.Append(context.Background(), Record(t, a.entity, a.typ, a.version, base.Add(a.offset))); err != nil {
				t.Fatalf("append %s/%d: %v", a.entity, a.version, err)
			}
		}

		events, err := store.GetEventsByType(context.Background(), "user.created")
		if err != nil {
			t.Fatalf("get events by type: %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("expected 3 created events, got %d", len(events))
		}
		wantEntities := []string{"e2", "e3", "e1"}
		for i, evt := range events {
			if evt.EntityID != wantEntities[i] {
				t.Fatalf("expected timestamp order %v, got %s at index %d", wantEntities, evt.EntityID, i)
			}
		}
	})

	t.Run("GetEventsInRangeInclusiveWindow", func(t *testing.T) {
		store := open(t)

		for version := uint64(1); version <= 5; version++ {
			rec := Record(t, "e1", "user.created", version, base.Add(time.Duration(version)*time.Minute))
			if err := store.Append(context.Background(), rec); err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		start := base.Add(2 * time.Minute)
		end := base.Add(4 * time.Minute)
		events, err := store.GetEventsInRange(context.Background(), "e1", start, end)
		if err != nil {
			t.Fatalf("get events in range: %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("expected versions 2..4 in window, got %d events", len(events))
		}
		for i, evt := range events {
			if evt.Version != uint64(i+2) {
				t.Fatalf("expected version-ordered window, got %d at index %d", evt.Version, i)
			}
			if evt.Timestamp.Before(start) || evt.Timestamp.After(end) {
				t.Fatalf("event %d outside window: %v", evt.Version, evt.Timestamp)
			}
		}
	})

	t.Run("RacingSameVersionHasOneWinner", func(t *testing.T) {
		store := open(t)
		const writers = 8

		var wg sync.WaitGroup
		results := make([]error, writers)
		for i := 0; i < writers; i++ {
			rec := Record(t, "race", "user.created", 1, base.Add(time.Duration(i)*time.Millisecond))
			wg.Add(1)
			go func(i int, rec journal.Event) {
				defer wg.Done()
				results[i] = store.Append(context.Background(), rec)
			}(i, rec)
		}
		wg.Wait()

		var wins, conflicts int
		for i, err := range results {
			switch {
			case err == nil:
				wins++
			case journal.IsConflict(err):
				conflicts++
				if entityID, version, ok := journal.ConflictDetails(err); !ok || entityID != "race" || version != 1 {
					t.Fatalf("writer %d: conflict missing identity: %v", i, err)
				}
			default:
				t.Fatalf("writer %d: unexpected error %v", i, err)
			}
		}
		if wins != 1 || conflicts != writers-1 {
			t.Fatalf("expected 1 winner and %d conflicts, got %d/%d", writers-1, wins, conflicts)
		}
	})

	t.Run("DistinctEntitiesNeverConflict", func(t *testing.T) {
		store := open(t)
		const writers = 8

		var wg sync.WaitGroup
		errs := make([]error, writers)
		for i := 0; i < writers; i++ {
			entityID := fmt.Sprintf("entity-%d", i)
			rec := Record(t, entityID, "user.created", 1, base)
			wg.Add(1)
			go func(i int, rec journal.Event) {
				defer wg.Done()
				errs[i] = store.Append(context.Background(), rec)
			}(i, rec)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Fatalf("writer %d: %v", i, err)
			}
		}
	})

	t.Run("CancelledContextAbortsReads", func(t *testing.T) {
		store := open(t)

		if err := store.Append(context.Background(), Record(t, "e1", "user.created", 1, base)); err != nil {
			t.Fatalf("append: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := store.GetEvents(ctx, "e1"); err == nil {
			t.Fatal("expected error from cancelled context")
		}
	})
}
