package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorMatchesByCode(t *testing.T) {
	err := WithMetadata(CodeVersionConflict, "version conflict for entity u1", map[string]string{
		"entity_id": "u1",
	})

	if !stderrors.Is(err, New(CodeVersionConflict, "version conflict")) {
		t.Fatal("expected errors with the same code to match")
	}
	if stderrors.Is(err, New(CodeNotFound, "not found")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestErrorMatchesThroughWrapping(t *testing.T) {
	inner := New(CodeStorageUnavailable, "db closed")
	err := fmt.Errorf("append event: %w", inner)

	if !stderrors.Is(err, New(CodeStorageUnavailable, "storage unavailable")) {
		t.Fatal("expected code match through fmt wrapping")
	}

	var domainErr *Error
	if !stderrors.As(err, &domainErr) {
		t.Fatal("expected to extract domain error")
	}
	if domainErr.Code != CodeStorageUnavailable {
		t.Fatalf("unexpected code %s", domainErr.Code)
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeStorageUnavailable, "append failed", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
	if err.Error() != "append failed" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
