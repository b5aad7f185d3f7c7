package logger

import (
	"log/slog"
	"time"
)

// Attribute helpers use the empty Attr pattern for nil safety, so calls
// like log.Error("msg", logger.Error(err)) need no explicit nil checks.

// Error creates an attribute for a single error under the key "error".
// Returns empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// SessionKey creates an attribute for the session identifier.
// Returns empty Attr for empty keys to keep anonymous-session logs clean.
func SessionKey(key string) slog.Attr {
	if key == "" {
		return slog.Attr{}
	}
	return slog.String("session_key", key)
}

// Component creates an attribute for component names.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed calculates and logs the duration since the start time.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Table creates an attribute for the backing table or collection name.
func Table(name string) slog.Attr {
	return slog.String("table", name)
}
