package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/eventjournal/internal/journal"
	"github.com/louisbranch/eventjournal/internal/journal/journaltest"
)

func TestStoreConformance(t *testing.T) {
	journaltest.RunStoreSuite(t, func(t *testing.T) journal.Store {
		return New()
	})
}

func TestResultsAreIsolatedFromInternalState(t *testing.T) {
	store := New()
	base := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	if err := store.Append(context.Background(), journaltest.Record(t, "e1", "user.created", 1, base)); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := store.GetEvents(context.Background(), "e1")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	events[0].EntityID = "mutated"

	again, err := store.GetEvents(context.Background(), "e1")
	if err != nil {
		t.Fatalf("get events again: %v", err)
	}
	if again[0].EntityID != "e1" {
		t.Fatal("expected internal state to be unaffected by caller mutation")
	}
}

func TestEntities(t *testing.T) {
	store := New()
	base := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	for _, entityID := range []string{"b", "a", "c"} {
		if err := store.Append(context.Background(), journaltest.Record(t, entityID, "user.created", 1, base)); err != nil {
			t.Fatalf("append %s: %v", entityID, err)
		}
	}

	ids, err := store.Entities(context.Background())
	if err != nil {
		t.Fatalf("entities: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("expected sorted entity ids, got %v", ids)
	}
}

func TestConcurrentMixedReadersAndWriters(t *testing.T) {
	store := New()
	base := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			entityID := []string{"e1", "e2"}[w%2]
			for version := uint64(1); version <= 50; version++ {
				rec := journaltest.Record(t, entityID, "user.created", version, base)
				// Two writers share each entity; one of them loses every version.
				_ = store.Append(context.Background(), rec)
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				events, err := store.GetEvents(context.Background(), "e1")
				if err != nil {
					t.Errorf("get events: %v", err)
					return
				}
				for j := 1; j < len(events); j++ {
					if events[j].Version <= events[j-1].Version {
						t.Error("observed unordered snapshot")
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	for _, entityID := range []string{"e1", "e2"} {
		events, err := store.GetEvents(context.Background(), entityID)
		if err != nil {
			t.Fatalf("get events: %v", err)
		}
		if len(events) != 50 {
			t.Fatalf("expected every version recorded exactly once for %s, got %d", entityID, len(events))
		}
	}
}
