package session

import "time"

// Record is the backend-agnostic persisted shape of a session.
// Key is the primary key, Value holds the serialized payload as an opaque
// string, and ExpiresAt is a Unix timestamp in seconds backed by a range
// index in production stores.
type Record struct {
	Key       string
	Value     string
	ExpiresAt int64
}

// Expired reports whether the record's expiry has elapsed relative to now.
func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt < now.Unix()
}

// NormalizeExpiry is the single self-healing rule for session expiry.
// Any non-positive value (covering missing and non-numeric values, which
// adapters surface as zero) is replaced with now+ttl. Valid values pass
// through unchanged, so the function is idempotent and safe to apply at
// load, save, and touch.
func NormalizeExpiry(expiry int64, now time.Time, ttl time.Duration) int64 {
	if expiry > 0 {
		return expiry
	}
	return now.Add(ttl).Unix()
}
