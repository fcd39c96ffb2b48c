package core

import "errors"

// Common errors.
var (
	// ErrNotFound reports that a requested document is absent. It is
	// surfaced to callers and never retried.
	ErrNotFound = errors.New("document not found")

	// ErrConflict reports an optimistic-concurrency violation: the
	// revision supplied with a write no longer matches the stored one.
	// Stores retry conflicts internally; callers should not see it
	// except through Upsert mutators that choose to propagate it.
	ErrConflict = errors.New("document update conflict")

	// ErrNoChange is the sentinel an Upsert mutator returns to skip the
	// write entirely. No revision bump occurs and no change event fires.
	ErrNoChange = errors.New("no change")

	// ErrInvalidServer reports a malformed sync target. It is surfaced
	// immediately; no replication is attempted.
	ErrInvalidServer = errors.New("invalid sync server")
)
