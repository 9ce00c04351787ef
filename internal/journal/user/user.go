// Package user provides the user aggregate rebuilt from journal records.
package user

import (
	"github.com/louisbranch/eventjournal/internal/journal"
	"github.com/louisbranch/eventjournal/internal/journal/replay"
)

// User lifecycle events.
const (
	// TypeCreated records the creation of a user.
	TypeCreated journal.Type = "user.created"
	// TypeNameUpdated records a display-name change.
	TypeNameUpdated journal.Type = "user.name_updated"
	// TypeEmailUpdated records an email change.
	TypeEmailUpdated journal.Type = "user.email_updated"
	// TypeDeactivated records a user deactivation.
	TypeDeactivated journal.Type = "user.deactivated"
)

// CreatedPayload captures the payload for user.created events.
type CreatedPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NameUpdatedPayload captures the payload for user.name_updated events.
type NameUpdatedPayload struct {
	Name string `json:"name"`
}

// EmailUpdatedPayload captures the payload for user.email_updated events.
type EmailUpdatedPayload struct {
	Email string `json:"email"`
}

// DeactivatedPayload captures the payload for user.deactivated events.
type DeactivatedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// User is the replayed aggregate state. It is never constructed from storage
// rows directly; every field below is set by applying records in order.
type User struct {
	replay.State

	Name        string
	Email       string
	Deactivated bool
}

// NewRouter returns the closed routing table for user events. Records with
// any other type fail replay instead of being skipped.
func NewRouter() *replay.Router[*User] {
	r := replay.NewRouter[*User]()

	replay.Handle(r, TypeCreated, func(u *User, _ journal.Event, p CreatedPayload) error {
		u.Name = p.Name
		u.Email = p.Email
		return nil
	})
	replay.Handle(r, TypeNameUpdated, func(u *User, _ journal.Event, p NameUpdatedPayload) error {
		u.Name = p.Name
		return nil
	})
	replay.Handle(r, TypeEmailUpdated, func(u *User, _ journal.Event, p EmailUpdatedPayload) error {
		u.Email = p.Email
		return nil
	})
	replay.HandleRaw(r, TypeDeactivated, func(u *User, _ journal.Event) error {
		u.Deactivated = true
		return nil
	})

	return r
}

// NewRepository wires a user repository over the given store.
func NewRepository(store journal.Store, opts ...replay.RepositoryOption[*User]) *replay.Repository[*User] {
	return replay.NewRepository(store, NewRouter(), func() *User { return &User{} }, opts...)
}
