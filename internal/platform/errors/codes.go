// Package errors provides structured error handling for the event journal.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Journal errors
	CodeVersionConflict  Code = "JOURNAL_VERSION_CONFLICT"
	CodeUnknownEventType Code = "JOURNAL_UNKNOWN_EVENT_TYPE"
	CodeEventInvalid     Code = "JOURNAL_EVENT_INVALID"

	// Storage errors
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeSerialization      Code = "STORAGE_SERIALIZATION"
	CodeNotFound           Code = "NOT_FOUND"
)
