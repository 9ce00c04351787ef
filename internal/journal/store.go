package journal

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/louisbranch/eventjournal/internal/platform/errors"
)

// Store is the append/query contract every journal backend satisfies.
//
// Callers treat the store as a capability: multiple consumers may share one
// Store value concurrently. Append is the only mutation; reads never observe
// a record whose append did not complete.
type Store interface {
	// Append persists one record atomically. A record whose
	// (entity, version) pair already exists is rejected with a version
	// conflict error naming the entity and version; the store never
	// retries conflicts on the caller's behalf.
	Append(ctx context.Context, rec Event) error

	// GetEvents returns every record for the entity in ascending version
	// order. Unknown entities yield an empty slice, not an error.
	GetEvents(ctx context.Context, entityID string) ([]Event, error)

	// GetEventsSince returns the records with version > version, in
	// ascending version order. Used for incremental replay after a
	// conflict.
	GetEventsSince(ctx context.Context, entityID string, version uint64) ([]Event, error)

	// GetEventsByType returns every record of the given type across all
	// entities, ordered by timestamp (ties break in append order). There
	// is no single version axis across entities.
	GetEventsByType(ctx context.Context, eventType Type) ([]Event, error)

	// GetEventsInRange returns the entity's records whose timestamp falls
	// within the inclusive [start, end] window, still in ascending
	// version order.
	GetEventsInRange(ctx context.Context, entityID string, start, end time.Time) ([]Event, error)
}

// Sentinel values for errors.Is checks; matching is by code, so any error
// produced by the constructors below matches the corresponding sentinel.
var (
	// ErrConflict matches version conflicts on append.
	ErrConflict = errors.New(errors.CodeVersionConflict, "version conflict")
	// ErrStorageUnavailable matches transient or fatal backend failures.
	ErrStorageUnavailable = errors.New(errors.CodeStorageUnavailable, "storage unavailable")
	// ErrUnknownEventType matches replay failures on unregistered types.
	ErrUnknownEventType = errors.New(errors.CodeUnknownEventType, "unknown event type")
)

// NewConflictError builds the append rejection for a duplicate
// (entity, version) pair. The metadata identifies the collision so callers
// can recompute their version decision.
func NewConflictError(entityID string, version uint64) error {
	return errors.WithMetadata(
		errors.CodeVersionConflict,
		"version conflict for entity "+entityID+": version "+formatVersion(version)+" already exists",
		map[string]string{
			"entity_id": entityID,
			"version":   formatVersion(version),
		},
	)
}

// NewStorageError wraps a backend failure (connectivity, I/O) that is not a
// version conflict.
func NewStorageError(op string, cause error) error {
	return errors.Wrap(errors.CodeStorageUnavailable, op, cause)
}

// IsConflict reports whether err is a version conflict.
func IsConflict(err error) bool {
	return stderrors.Is(err, ErrConflict)
}

// ConflictDetails extracts the colliding entity and version from a conflict
// error. ok is false when err is not a conflict or lacks metadata.
func ConflictDetails(err error) (entityID string, version uint64, ok bool) {
	var domainErr *errors.Error
	if !stderrors.As(err, &domainErr) || domainErr.Code != errors.CodeVersionConflict {
		return "", 0, false
	}
	entityID = domainErr.Metadata["entity_id"]
	raw, found := domainErr.Metadata["version"]
	if entityID == "" || !found {
		return "", 0, false
	}
	version, parseErr := strconv.ParseUint(raw, 10, 64)
	if parseErr != nil {
		return "", 0, false
	}
	return entityID, version, true
}
