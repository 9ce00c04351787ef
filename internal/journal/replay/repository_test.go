package replay

import (
	"context"
	"testing"
	"time"

	"github.com/louisbranch/eventjournal/internal/journal"
	"github.com/louisbranch/eventjournal/internal/journal/memory"
)

func newCounterRepository(store journal.Store, opts ...RepositoryOption[*counter]) *Repository[*counter] {
	return NewRepository(store, newCounterRouter(), func() *counter { return &counter{} }, opts...)
}

func TestExecuteAppendsNextVersion(t *testing.T) {
	store := memory.New()
	repo := newCounterRepository(store)

	for i := 1; i <= 3; i++ {
		rec, err := repo.Execute(context.Background(), "c1", func(c *counter) (Decision, error) {
			return Decision{Type: "counter.incremented", Payload: incrementPayload{Amount: c.Total + 1}}, nil
		})
		if err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
		if rec.Version != uint64(i) {
			t.Fatalf("expected version %d, got %d", i, rec.Version)
		}
	}

	agg, err := repo.Load(context.Background(), "c1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if agg.Version() != 3 {
		t.Fatalf("expected version 3, got %d", agg.Version())
	}
}

// conflictingStore rejects the first n appends with a version conflict while
// still recording the colliding records in the wrapped store, simulating a
// concurrent writer winning the race.
type conflictingStore struct {
	journal.Store
	remaining int
	interlope func() error
}

func (s *conflictingStore) Append(ctx context.Context, rec journal.Event) error {
	if s.remaining > 0 {
		s.remaining--
		if s.interlope != nil {
			if err := s.interlope(); err != nil {
				return err
			}
		}
		return journal.NewConflictError(rec.EntityID, rec.Version)
	}
	return s.Store.Append(ctx, rec)
}

func TestExecuteRetriesAfterConflict(t *testing.T) {
	inner := memory.New()

	// A rival writer claims version 1 before our first attempt lands.
	rivalRecorded := false
	store := &conflictingStore{
		Store:     inner,
		remaining: 1,
		interlope: func() error {
			if rivalRecorded {
				return nil
			}
			rivalRecorded = true
			rec, err := journal.New("c1", "counter.incremented", 1, incrementPayload{Amount: 10})
			if err != nil {
				return err
			}
			return inner.Append(context.Background(), rec)
		},
	}

	repo := newCounterRepository(store)

	decisions := 0
	rec, err := repo.Execute(context.Background(), "c1", func(c *counter) (Decision, error) {
		decisions++
		return Decision{Type: "counter.incremented", Payload: incrementPayload{Amount: c.Total + 1}}, nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if decisions != 2 {
		t.Fatalf("expected decision recomputed after refresh, got %d calls", decisions)
	}
	if rec.Version != 2 {
		t.Fatalf("expected retry to append version 2, got %d", rec.Version)
	}

	agg, err := repo.Load(context.Background(), "c1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Rival appended 10, our recomputed decision added 11 on top.
	if agg.Total != 21 {
		t.Fatalf("expected decision against refreshed state, total %d", agg.Total)
	}
}

func TestExecuteSurfacesConflictAfterRetryBudget(t *testing.T) {
	store := &conflictingStore{Store: memory.New(), remaining: 100}
	repo := newCounterRepository(store, WithMaxRetries[*counter](2))

	start := time.Now()
	_, err := repo.Execute(context.Background(), "c1", func(c *counter) (Decision, error) {
		return Decision{Type: "counter.incremented", Payload: incrementPayload{Amount: 1}}, nil
	})
	if !journal.IsConflict(err) {
		t.Fatalf("expected conflict after retry budget, got %v", err)
	}
	if store.remaining != 100-3 {
		t.Fatalf("expected initial attempt plus 2 retries, %d appends consumed", 100-store.remaining)
	}
	if time.Since(start) > time.Second {
		t.Fatal("expected bounded retries, not a retry loop")
	}
}

func TestExecutePropagatesStorageErrors(t *testing.T) {
	store := memory.New()
	repo := newCounterRepository(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := repo.Execute(ctx, "c1", func(c *counter) (Decision, error) {
		return Decision{Type: "counter.incremented", Payload: incrementPayload{Amount: 1}}, nil
	}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
