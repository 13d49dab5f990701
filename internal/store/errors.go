package store

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist in the
	// store, or exists but is not owned by the requesting account.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint (username or key hash).
	ErrDuplicate = errors.New("already exists")
)
