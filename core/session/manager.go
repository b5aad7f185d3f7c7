package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessionstore/pkg/logger"
)

// Compile-time check that Manager satisfies the Backend capability.
var _ Backend = (*Manager)(nil)

// Manager orchestrates the session lifecycle against a Store: load on
// request start, save on response finalize, destroy on logout, and the
// periodic reclamation sweep. Persistence is best-effort: a backend outage
// degrades sessions to per-request-only state instead of failing the
// request, so every operation logs and returns rather than panicking or
// propagating past its own error value.
type Manager struct {
	store Store
	log   *slog.Logger
	ttl   time.Duration
	now   func() time.Time
}

// New creates a session manager backed by store.
func New(store Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrNoStore
	}

	m := &Manager{
		store: store,
		log:   slog.Default(),
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Load fetches the record stored under key and deserializes it into a new
// working-state session. An empty key, a missing record, or a backend
// failure all yield an empty session; the failure case is logged so the
// degradation is visible. Expiry is normalized immediately, and a healed
// expiry on an existing record marks the session dirty so the corrected
// value persists on the next save even without further mutation.
func (m *Manager) Load(ctx context.Context, key string) *Session {
	sess := &Session{key: key, values: make(map[string]any)}

	if key != "" {
		rec, err := m.store.Get(ctx, key)
		switch {
		case err == nil && rec != nil:
			sess.existed = true
			sess.expiresAt = rec.ExpiresAt
			if rec.Value != "" {
				if err := json.Unmarshal([]byte(rec.Value), &sess.values); err != nil {
					m.log.WarnContext(ctx, "discarding corrupt session payload",
						logger.SessionKey(key), logger.Error(err))
					sess.values = make(map[string]any)
				}
			}
		case errors.Is(err, ErrNotFound):
			m.log.DebugContext(ctx, "no stored session", logger.SessionKey(key))
		default:
			m.log.ErrorContext(ctx, "session load failed, starting empty",
				logger.SessionKey(key), logger.Error(err))
		}
	}

	if normalized := NormalizeExpiry(sess.expiresAt, m.now(), m.ttl); normalized != sess.expiresAt {
		if sess.existed {
			m.log.WarnContext(ctx, "healed invalid session expiry", logger.SessionKey(key))
			sess.dirty = true
		}
		sess.expiresAt = normalized
	}

	return sess
}

// Save persists dirty working state through the store and clears the
// dirty flag. It is a no-op for clean or inactive sessions. A save with an
// empty key is aborted with ErrEmptyKey; it never creates a keyless
// record. On a store failure the session stays dirty so a later save can
// retry, and the error wraps ErrPersistFailed.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	if sess == nil || !sess.dirty || !sess.active() {
		return nil
	}

	if sess.key == "" {
		m.log.ErrorContext(ctx, "refusing to save session without a key")
		return ErrEmptyKey
	}

	sess.expiresAt = NormalizeExpiry(sess.expiresAt, m.now(), m.ttl)

	payload, err := json.Marshal(sess.values)
	if err != nil {
		m.log.ErrorContext(ctx, "session payload serialization failed",
			logger.SessionKey(sess.key), logger.Error(err))
		return errors.Join(ErrPersistFailed, err)
	}

	rec := Record{Key: sess.key, Value: string(payload), ExpiresAt: sess.expiresAt}
	if err := m.store.Put(ctx, rec); err != nil {
		m.log.ErrorContext(ctx, "session save failed, will retry on next save",
			logger.SessionKey(sess.key), logger.Error(err))
		return errors.Join(ErrPersistFailed, err)
	}

	sess.dirty = false
	m.log.DebugContext(ctx, "session saved", logger.SessionKey(sess.key))
	return nil
}

// Destroy deletes the stored record and clears working state. Idempotent;
// destroying a session that was never persisted only resets its state.
// Store failures are logged and returned, but the in-memory state is
// cleared regardless so the request continues without the session.
func (m *Manager) Destroy(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}

	var err error
	if sess.key != "" {
		if err = m.store.Delete(ctx, sess.key); err != nil {
			m.log.ErrorContext(ctx, "session delete failed",
				logger.SessionKey(sess.key), logger.Error(err))
		}
	}

	sess.values = make(map[string]any)
	sess.dirty = false
	sess.existed = false
	return err
}

// Touch extends the stored session's life by updating only its expiry,
// without a full payload round-trip. The timestamp goes through the same
// normalization rule as every other write, so a caller-supplied zero or
// negative value falls back to now+TTL.
func (m *Manager) Touch(ctx context.Context, key string, at time.Time) error {
	if key == "" {
		return ErrEmptyKey
	}

	expiresAt := NormalizeExpiry(at.Unix(), m.now(), m.ttl)
	if err := m.store.Touch(ctx, key, expiresAt); err != nil {
		m.log.WarnContext(ctx, "session touch failed",
			logger.SessionKey(key), logger.Error(err))
		return err
	}
	return nil
}

// Cleanup is the reclamation sweep: it scans the store for expired keys
// and deletes them one by one. A failure deleting one key is logged and
// does not abort the rest of the sweep. Returns the number of records
// deleted. Intended to be invoked by an out-of-band scheduler.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	now := m.now()
	keys, err := m.store.ScanExpired(ctx, now)
	if err != nil {
		m.log.ErrorContext(ctx, "expired session scan failed", logger.Error(err))
		return 0, err
	}

	deleted := 0
	var failed error
	for _, key := range keys {
		if err := m.store.Delete(ctx, key); err != nil {
			m.log.WarnContext(ctx, "failed to reclaim expired session",
				logger.SessionKey(key), logger.Error(err))
			failed = errors.Join(failed, err)
			continue
		}
		deleted++
	}

	if deleted > 0 || len(keys) > 0 {
		m.log.InfoContext(ctx, "expired session sweep finished",
			slog.Int("expired", len(keys)), slog.Int("deleted", deleted))
	}
	return deleted, failed
}

// TTL returns the configured session time-to-live.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
