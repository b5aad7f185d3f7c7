package session

import (
	"context"
	"time"
)

// Store is the persistence contract the session engine requires from a
// key-value backend. Implementations must be safe for concurrent use by
// many engine instances; per-key atomicity of Put/Delete/Get is the
// backend's responsibility. No operation retries automatically except the
// bounded readiness wait inside EnsureTable.
type Store interface {
	// EnsureTable provisions the backing table or collection if it does not
	// exist and blocks until it is ready, bounded by the implementation's
	// wait policy. Idempotent. Returns an error wrapping ErrProvisioning on
	// creation or readiness failure; backends without provisioning verify
	// connectivity instead.
	EnsureTable(ctx context.Context) error

	// Get returns the record stored under key, or an error wrapping
	// ErrNotFound when absent.
	Get(ctx context.Context, key string) (*Record, error)

	// Put upserts the record, overwriting any existing payload for its key.
	Put(ctx context.Context, rec Record) error

	// Delete removes the record under key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Touch updates only the expiry of an existing record without rewriting
	// its payload. Returns an error wrapping ErrNotFound when no record
	// exists for the key.
	Touch(ctx context.Context, key string, expiresAt int64) error

	// ScanExpired returns the keys of all records whose expiry elapsed
	// before now, materialized from one or more backend scan pages.
	// Ordering is unspecified. Side-effect free.
	ScanExpired(ctx context.Context, now time.Time) ([]string, error)
}

// Backend is the capability interface the hosting framework depends on to
// plug the engine in as its active session backend. Manager is the
// canonical implementation; any adapter providing these operations can be
// substituted.
type Backend interface {
	Load(ctx context.Context, key string) *Session
	Save(ctx context.Context, sess *Session) error
	Destroy(ctx context.Context, sess *Session) error
	Touch(ctx context.Context, key string, at time.Time) error
	Cleanup(ctx context.Context) (int, error)
}
