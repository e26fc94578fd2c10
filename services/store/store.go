// Package store persists monitored users and their seen listings in
// SQLite. Everything downstream of registration reads and writes through
// the Store interface; the worker and the HTTP front door receive an
// injected handle and never open their own.
package store

import (
	"context"
	"errors"

	"mkobal/avtowatch/internal/model"
)

// ErrNotFound is returned when the requested user does not exist or is
// no longer active.
var ErrNotFound = errors.New("store: user not found")

// UpsertOutcome reports what an upsert did to the user record.
type UpsertOutcome struct {
	// Created is true when no record existed for the user id yet.
	Created bool

	// Reactivated is true when a previously deactivated record came back.
	Reactivated bool

	// FiltersChanged is true when an existing record's filters were
	// replaced with different ones.
	FiltersChanged bool
}

// Store is the persistence boundary of the monitor.
type Store interface {
	// UpsertUser creates or replaces the record for u.UserID and always
	// leaves it active. A filter change clears the user's seen set,
	// resets the seeded flag and forces NotifyOnFirstCycle on, so the
	// next cycle announces the new baseline.
	UpsertUser(ctx context.Context, u *model.User) (UpsertOutcome, error)

	// GetUser returns the active user with the given id, or ErrNotFound.
	GetUser(ctx context.Context, userID string) (*model.User, error)

	// ActiveUsers returns all active users ordered by id. The worker
	// snapshots this once per cycle.
	ActiveUsers(ctx context.Context) ([]model.User, error)

	// DeactivateUser soft-deletes the user, or returns ErrNotFound.
	// Seen listings are kept in case the user re-registers.
	DeactivateUser(ctx context.Context, userID string) error

	// SetNotifyOnFirstCycle flips the first-cycle notification flag.
	SetNotifyOnFirstCycle(ctx context.Context, userID string, v bool) error

	// MarkSeeded records that the user's first cycle completed.
	MarkSeeded(ctx context.Context, userID string) error

	// SeenHashes returns the user's seen set keyed by listing hash.
	SeenHashes(ctx context.Context, userID string) (map[string]struct{}, error)

	// RecordSeen adds listings to the user's seen set. Hashes already
	// present are left untouched, so replaying a batch is harmless.
	RecordSeen(ctx context.Context, userID string, listings []model.Listing) error

	// SeenCount returns the size of the user's seen set.
	SeenCount(ctx context.Context, userID string) (int, error)

	Close() error
}
