package session

import (
	"log/slog"
	"time"
)

// DefaultTTL is the session lifetime applied when no override is
// configured and whenever an invalid expiry has to be healed.
const DefaultTTL = 48 * time.Hour

// Option is a functional option for configuring the session manager.
type Option func(*Manager)

// WithTTL overrides the default session time-to-live.
// Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger sets the logger for lifecycle diagnostics.
// Nil loggers are ignored.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithNow overrides the clock used for expiry computation. Test hook.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}
