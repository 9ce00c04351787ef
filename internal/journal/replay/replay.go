// Package replay reconstructs aggregate state by folding ordered journal
// records through typed handlers.
//
// Replay is a lazy, re-computable projection: running the same sequence
// through the same router any number of times produces identical state. A
// replay that hits a record it cannot apply fails as a whole; callers must
// discard the aggregate rather than treat it as partially current.
package replay

import (
	"context"

	"github.com/louisbranch/eventjournal/internal/journal"
	"github.com/louisbranch/eventjournal/internal/platform/errors"
)

// State carries the replay bookkeeping every aggregate embeds: the entity
// identity and the version of the last applied record. A zero State is the
// "empty, version 0" starting point.
type State struct {
	entityID string
	version  uint64
}

// Root returns the embedded replay state; it satisfies Aggregate for any
// struct embedding State.
func (s *State) Root() *State {
	return s
}

// EntityID returns the entity this aggregate was rebuilt from.
func (s *State) EntityID() string {
	return s.entityID
}

// Version returns the version of the last applied record, 0 when empty.
func (s *State) Version() uint64 {
	return s.version
}

// track records a successfully applied event.
func (s *State) track(evt journal.Event) {
	s.entityID = evt.EntityID
	s.version = evt.Version
}

// Aggregate is any domain state object that embeds State.
type Aggregate interface {
	Root() *State
}

// Router dispatches journal records to typed handlers by event type. The
// registered set is closed: applying a record whose type has no handler is an
// error, never a silent skip.
type Router[A Aggregate] struct {
	handlers map[journal.Type]func(A, journal.Event) error
	types    []journal.Type
}

// NewRouter creates an empty Router.
func NewRouter[A Aggregate]() *Router[A] {
	return &Router[A]{
		handlers: make(map[journal.Type]func(A, journal.Event) error),
	}
}

// Handle registers a typed handler for the given event type. The handler
// receives a pre-unmarshalled payload; the journal.Event is passed through
// for envelope fields (EntityID, Timestamp, Version).
func Handle[A Aggregate, P any](r *Router[A], t journal.Type, fn func(A, journal.Event, P) error) {
	r.handlers[t] = func(agg A, evt journal.Event) error {
		var payload P
		if err := evt.DecodePayload(&payload); err != nil {
			return err
		}
		return fn(agg, evt, payload)
	}
	r.types = append(r.types, t)
}

// HandleRaw registers a handler that does not unmarshal a payload. Use for
// event types whose handler needs no payload data.
func HandleRaw[A Aggregate](r *Router[A], t journal.Type, fn func(A, journal.Event) error) {
	r.handlers[t] = fn
	r.types = append(r.types, t)
}

// HandledTypes returns all registered event types in registration order.
func (r *Router[A]) HandledTypes() []journal.Type {
	return append([]journal.Type(nil), r.types...)
}

// Apply dispatches one record to its handler and updates the aggregate's
// replay state on success.
func (r *Router[A]) Apply(agg A, evt journal.Event) error {
	h, ok := r.handlers[evt.Type]
	if !ok {
		return errors.WithMetadata(errors.CodeUnknownEventType,
			"no handler for event type "+string(evt.Type),
			map[string]string{
				"event_id":   evt.ID,
				"event_type": string(evt.Type),
				"entity_id":  evt.EntityID,
			})
	}
	if err := h(agg, evt); err != nil {
		return err
	}
	agg.Root().track(evt)
	return nil
}

// Events folds an already-fetched ordered sequence into agg. The first
// failing record aborts the fold; the aggregate must then be discarded.
func Events[A Aggregate](r *Router[A], agg A, events []journal.Event) error {
	for _, evt := range events {
		if err := r.Apply(agg, evt); err != nil {
			return err
		}
	}
	return nil
}

// Run fetches the entity's full history from the store and folds it into
// agg. An entity with no records leaves agg in its zero state at version 0.
func Run[A Aggregate](ctx context.Context, store journal.Store, entityID string, r *Router[A], agg A) error {
	events, err := store.GetEvents(ctx, entityID)
	if err != nil {
		return err
	}
	return Events(r, agg, events)
}
