package session

import "errors"

var (
	// ErrNotFound is returned by stores when no record exists for a key.
	ErrNotFound = errors.New("session record not found")
	// ErrBackend wraps transport, auth, or validation failures on a single store call.
	ErrBackend = errors.New("session backend request failed")
	// ErrProvisioning is returned when the session table cannot be created
	// or does not become ready within the bounded wait.
	ErrProvisioning = errors.New("session table provisioning failed")
	// ErrPersistFailed is returned when a save could not complete.
	// The session stays dirty so a later save can retry.
	ErrPersistFailed = errors.New("failed to persist session")
	// ErrEmptyKey is returned when an operation requires a session key and none is set.
	// A save with an empty key is aborted and never produces a keyless record.
	ErrEmptyKey = errors.New("session key is empty")
	// ErrNoStore is returned when a manager is constructed without a store.
	ErrNoStore = errors.New("session store is required")
)
