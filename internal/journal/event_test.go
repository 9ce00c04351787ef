package journal

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/louisbranch/eventjournal/internal/platform/errors"
)

func TestNewAssignsIDAndTimestamp(t *testing.T) {
	evt, err := New("u1", "user.created", 1, map[string]string{"name": "Ada"})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}

	if evt.ID == "" {
		t.Fatal("expected assigned id")
	}
	if evt.EntityID != "u1" || evt.Version != 1 {
		t.Fatalf("unexpected identity fields: %+v", evt)
	}
	if evt.Timestamp.IsZero() {
		t.Fatal("expected assigned timestamp")
	}
	if evt.Timestamp.Location() != time.UTC {
		t.Fatal("expected UTC timestamp")
	}
	if !evt.Timestamp.Equal(evt.Timestamp.Truncate(time.Millisecond)) {
		t.Fatal("expected millisecond precision")
	}

	var payload map[string]string
	if err := evt.DecodePayload(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["name"] != "Ada" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestNewRejectsMissingFields(t *testing.T) {
	if _, err := New("", "user.created", 1, nil); !stderrors.Is(err, errors.New(errors.CodeEventInvalid, "")) {
		t.Fatalf("expected invalid-event error for empty entity, got %v", err)
	}
	if _, err := New("u1", "  ", 1, nil); !stderrors.Is(err, errors.New(errors.CodeEventInvalid, "")) {
		t.Fatalf("expected invalid-event error for blank type, got %v", err)
	}
}

func TestNewReportsSerializationFailure(t *testing.T) {
	_, err := New("u1", "user.created", 1, make(chan int))
	if !stderrors.Is(err, errors.New(errors.CodeSerialization, "")) {
		t.Fatalf("expected serialization error, got %v", err)
	}
}

func TestTypeDomain(t *testing.T) {
	cases := []struct {
		typ  Type
		want string
	}{
		{"user.created", "user"},
		{"user.name_updated", "user"},
		{"orphan", "orphan"},
	}
	for _, tc := range cases {
		if got := tc.typ.Domain(); got != tc.want {
			t.Fatalf("Domain(%q) = %q, want %q", tc.typ, got, tc.want)
		}
	}
}

func TestConflictDetails(t *testing.T) {
	err := NewConflictError("u2", 7)

	if !IsConflict(err) {
		t.Fatal("expected conflict match")
	}

	entityID, version, ok := ConflictDetails(err)
	if !ok {
		t.Fatal("expected conflict details")
	}
	if entityID != "u2" || version != 7 {
		t.Fatalf("unexpected details %s/%d", entityID, version)
	}

	if _, _, ok := ConflictDetails(NewStorageError("append", stderrors.New("down"))); ok {
		t.Fatal("expected no details from a storage error")
	}
}

func TestNormalizeForAppend(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	evt := Event{Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 123456789, loc)}

	normalized := evt.NormalizeForAppend()
	if normalized.Timestamp.Location() != time.UTC {
		t.Fatal("expected UTC after normalization")
	}
	if normalized.Timestamp.Nanosecond()%int(time.Millisecond) != 0 {
		t.Fatal("expected millisecond truncation")
	}

	var zero Event
	if zero.NormalizeForAppend().Timestamp.IsZero() {
		t.Fatal("expected zero timestamp to default to now")
	}
}
