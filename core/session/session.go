package session

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Session holds the working state of one visitor's session while it is
// attached to a request. A session is owned by a single goroutine for its
// lifetime; the hosting framework's request scoping enforces that no two
// engines hold the same key's working state concurrently.
type Session struct {
	key       string
	values    map[string]any
	expiresAt int64

	// dirty tracks whether working state changed since the last persist
	dirty bool

	// existed is true when the session was loaded from a stored record,
	// giving it an identity even if its payload is empty
	existed bool
}

// Key returns the session identifier. Empty for anonymous visitors that
// have not been assigned a key yet.
func (s *Session) Key() string {
	return s.key
}

// Get returns the value stored under name, or fallback when absent.
// Reads never touch the dirty flag.
func (s *Session) Get(name string, fallback any) any {
	if v, ok := s.values[name]; ok {
		return v
	}
	return fallback
}

// Set stores a value under name and marks the session dirty. Repeated
// writes before a save coalesce into a single persisted payload.
func (s *Session) Set(name string, value any) {
	s.values[name] = value
	s.dirty = true
}

// Unset removes a value and marks the session dirty.
func (s *Session) Unset(name string) {
	if _, ok := s.values[name]; ok {
		delete(s.values, name)
		s.dirty = true
	}
}

// Values returns a copy of the working state. Mutations of the returned
// map do not affect the session.
func (s *Session) Values() map[string]any {
	return maps.Clone(s.values)
}

// ExpiresAt returns the session expiry as a Unix timestamp in seconds.
func (s *Session) ExpiresAt() int64 {
	return s.expiresAt
}

// IsDirty reports whether working state changed since the last persist.
func (s *Session) IsDirty() bool {
	return s.dirty
}

// IsExpired reports whether the session expiry has elapsed.
func (s *Session) IsExpired() bool {
	return s.expiresAt < time.Now().Unix()
}

// active reports whether the session is worth persisting: it has either
// accumulated working state or an identity from a stored record.
func (s *Session) active() bool {
	return len(s.values) > 0 || s.existed
}

// GenerateKey returns a fresh session key for a first-contact visitor.
// The hosting framework normally derives keys from a stable customer or
// visitor identifier; this helper covers visitors that have none yet.
func GenerateKey() string {
	return uuid.NewString()
}
