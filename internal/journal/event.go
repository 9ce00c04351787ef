// Package journal defines the append-only, per-entity event log: the record
// model, the store contract, and its error taxonomy. State is reconstructed by
// replaying a record sequence, never by mutating stored rows.
package journal

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/eventjournal/internal/platform/errors"
	"github.com/louisbranch/eventjournal/internal/platform/id"
)

// Type identifies the kind of a journal event.
type Type string

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g. "user" for
// "user.created").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}

// Event is one immutable record in the journal.
//
// Records are ordered within an entity by Version, never by Timestamp;
// wall clocks may skew across writers. A record is either accepted or
// rejected atomically by Store.Append and never changes afterwards.
type Event struct {
	// ID is the globally unique record identity, assigned at creation.
	ID string
	// EntityID is the entity this record belongs to.
	EntityID string
	// Type identifies the kind of event.
	Type Type
	// PayloadJSON holds event-specific data as JSON. The store treats it
	// as an opaque document owned by the event type's definition.
	PayloadJSON []byte
	// Timestamp is when the event occurred (UTC, millisecond precision).
	Timestamp time.Time
	// Version is the per-entity sequence number used for ordering and
	// conflict detection.
	Version uint64
}

// New builds an event record for entityID at the given version, marshalling
// payload into the opaque document. The record ID and timestamp are assigned
// here; the caller decides the version (normally current aggregate version + 1).
func New(entityID string, typ Type, version uint64, payload any) (Event, error) {
	if strings.TrimSpace(entityID) == "" {
		return Event{}, errors.New(errors.CodeEventInvalid, "entity id is required")
	}
	if !typ.IsValid() {
		return Event{}, errors.New(errors.CodeEventInvalid, "event type is required")
	}

	var data []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return Event{}, errors.Wrap(errors.CodeSerialization, "encode event payload", err)
		}
		data = encoded
	}

	eventID, err := id.NewID()
	if err != nil {
		return Event{}, errors.Wrap(errors.CodeUnknown, "generate event id", err)
	}

	return Event{
		ID:          eventID,
		EntityID:    entityID,
		Type:        typ,
		PayloadJSON: data,
		Timestamp:   time.Now().UTC().Truncate(time.Millisecond),
		Version:     version,
	}, nil
}

// Validate reports whether the record is complete enough to append.
func (e Event) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New(errors.CodeEventInvalid, "event id is required")
	}
	if strings.TrimSpace(e.EntityID) == "" {
		return errors.New(errors.CodeEventInvalid, "entity id is required")
	}
	if !e.Type.IsValid() {
		return errors.New(errors.CodeEventInvalid, "event type is required")
	}
	return nil
}

// DecodePayload unmarshals the opaque document into target.
func (e Event) DecodePayload(target any) error {
	if len(e.PayloadJSON) == 0 {
		return errors.WithMetadata(errors.CodeSerialization, "event has no payload", map[string]string{
			"event_id":   e.ID,
			"event_type": string(e.Type),
		})
	}
	if err := json.Unmarshal(e.PayloadJSON, target); err != nil {
		return errors.WrapWithMetadata(errors.CodeSerialization, "decode event payload", map[string]string{
			"event_id":   e.ID,
			"event_type": string(e.Type),
		}, err)
	}
	return nil
}

// normalizeTimestamp defaults a zero timestamp to now and truncates to the
// millisecond precision both backends persist. Keeping normalization in one
// place makes backend results byte-for-byte comparable.
func normalizeTimestamp(ts time.Time) time.Time {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return ts.UTC().Truncate(time.Millisecond)
}

// NormalizeForAppend returns the record as a backend will persist it.
func (e Event) NormalizeForAppend() Event {
	e.Timestamp = normalizeTimestamp(e.Timestamp)
	return e
}

func formatVersion(version uint64) string {
	return strconv.FormatUint(version, 10)
}
