package replay

import (
	"context"

	"github.com/louisbranch/eventjournal/internal/journal"
)

// defaultMaxRetries bounds how many times Execute retries a conflicting
// append before surfacing the conflict to the caller.
const defaultMaxRetries = 3

// Decision is the outcome of a business decision: the next event to append.
type Decision struct {
	Type    journal.Type
	Payload any
}

// DecideFunc computes the next event from current aggregate state. It runs
// again after every conflict-triggered refresh, so the decision is always
// made against the latest known state.
type DecideFunc[A Aggregate] func(agg A) (Decision, error)

// Repository implements the optimistic-concurrency caller protocol against a
// journal store: load via replay, decide, append with version = current + 1,
// and on conflict refresh incrementally and retry a bounded number of times.
type Repository[A Aggregate] struct {
	store        journal.Store
	router       *Router[A]
	newAggregate func() A
	maxRetries   int
}

// RepositoryOption configures a Repository.
type RepositoryOption[A Aggregate] func(*Repository[A])

// WithMaxRetries overrides the bounded conflict retry count.
func WithMaxRetries[A Aggregate](retries int) RepositoryOption[A] {
	return func(r *Repository[A]) {
		if retries >= 0 {
			r.maxRetries = retries
		}
	}
}

// NewRepository creates a repository over store using router for replay and
// newAggregate to produce empty aggregates.
func NewRepository[A Aggregate](store journal.Store, router *Router[A], newAggregate func() A, opts ...RepositoryOption[A]) *Repository[A] {
	r := &Repository[A]{
		store:        store,
		router:       router,
		newAggregate: newAggregate,
		maxRetries:   defaultMaxRetries,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Load rebuilds the entity's aggregate from its full history. Entities with
// no records come back empty at version 0.
func (r *Repository[A]) Load(ctx context.Context, entityID string) (A, error) {
	agg := r.newAggregate()
	if err := Run(ctx, r.store, entityID, r.router, agg); err != nil {
		var zero A
		return zero, err
	}
	return agg, nil
}

// Execute runs one load/decide/append cycle for entityID and returns the
// accepted record.
//
// On a version conflict the repository fetches the records it has not seen,
// re-applies them, recomputes the decision against the fresh state, and
// retries. Conflicts are never retried past the bound; the last conflict is
// returned so the caller can treat it as a business-level conflict.
func (r *Repository[A]) Execute(ctx context.Context, entityID string, decide DecideFunc[A]) (journal.Event, error) {
	agg, err := r.Load(ctx, entityID)
	if err != nil {
		return journal.Event{}, err
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		decision, err := decide(agg)
		if err != nil {
			return journal.Event{}, err
		}

		rec, err := journal.New(entityID, decision.Type, agg.Root().Version()+1, decision.Payload)
		if err != nil {
			return journal.Event{}, err
		}

		err = r.store.Append(ctx, rec)
		if err == nil {
			agg.Root().track(rec)
			return rec, nil
		}
		if !journal.IsConflict(err) {
			return journal.Event{}, err
		}
		lastErr = err

		// Another writer won this version. Catch up from the store and
		// let the caller's decision run against the fresh state.
		missed, err := r.store.GetEventsSince(ctx, entityID, agg.Root().Version())
		if err != nil {
			return journal.Event{}, err
		}
		if err := Events(r.router, agg, missed); err != nil {
			return journal.Event{}, err
		}
	}

	return journal.Event{}, lastErr
}
