package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionstore/core/session"
)

// mockStore implements session.Store for failure-path testing.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) EnsureTable(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Get(ctx context.Context, key string) (*session.Record, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Record), args.Error(1)
}

func (m *mockStore) Put(ctx context.Context, rec session.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockStore) Touch(ctx context.Context, key string, expiresAt int64) error {
	args := m.Called(ctx, key, expiresAt)
	return args.Error(0)
}

func (m *mockStore) ScanExpired(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires a store", func(t *testing.T) {
		t.Parallel()

		_, err := session.New(nil)
		require.ErrorIs(t, err, session.ErrNoStore)
	})
}

func TestManagerRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("save then load restores working state", func(t *testing.T) {
		t.Parallel()

		store := session.NewMemoryStore()
		m := newTestManager(t, store)
		ctx := context.Background()

		sess := m.Load(ctx, "cust-7")
		sess.Set("theme", "dark")
		sess.Set("locale", "de_DE")
		require.NoError(t, m.Save(ctx, sess))

		restored := m.Load(ctx, "cust-7")
		assert.Equal(t, "dark", restored.Get("theme", ""))
		assert.Equal(t, "de_DE", restored.Get("locale", ""))
		assert.False(t, restored.IsDirty())
	})

	t.Run("cart scenario persists record shape", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		ttl := 172800 * time.Second

		store := session.NewMemoryStore()
		m := newTestManager(t, store,
			session.WithTTL(ttl),
			session.WithNow(func() time.Time { return now }),
		)
		ctx := context.Background()

		sess := m.Load(ctx, "cust-42")
		assert.Empty(t, sess.Values())
		assert.Equal(t, now.Add(ttl).Unix(), sess.ExpiresAt())

		sess.Set("cart_total", 59.99)
		require.NoError(t, m.Save(ctx, sess))

		rec, err := store.Get(ctx, "cust-42")
		require.NoError(t, err)
		assert.Equal(t, "cust-42", rec.Key)
		assert.Equal(t, now.Add(ttl).Unix(), rec.ExpiresAt)

		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(rec.Value), &payload))
		assert.Equal(t, 59.99, payload["cart_total"])

		restored := m.Load(ctx, "cust-42")
		assert.Equal(t, 59.99, restored.Get("cart_total", 0.0))
	})
}

func TestManagerLoad(t *testing.T) {
	t.Parallel()

	t.Run("empty key yields empty session without backend call", func(t *testing.T) {
		t.Parallel()

		store := &mockStore{}
		m := newTestManager(t, store)

		sess := m.Load(context.Background(), "")

		assert.Empty(t, sess.Key())
		assert.Empty(t, sess.Values())
		assert.False(t, sess.IsDirty())
		store.AssertExpectations(t)
	})

	t.Run("backend failure degrades to empty session", func(t *testing.T) {
		t.Parallel()

		store := &mockStore{}
		m := newTestManager(t, store)
		ctx := context.Background()

		store.On("Get", ctx, "cust-1").Return(nil, session.ErrBackend)

		sess := m.Load(ctx, "cust-1")

		assert.Empty(t, sess.Values())
		assert.False(t, sess.IsDirty())

		// inactive and clean, so the follow-up save must not write
		require.NoError(t, m.Save(ctx, sess))
		store.AssertExpectations(t)
	})

	t.Run("corrupt expiry is healed and marked dirty", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		ttl := 48 * time.Hour

		store := session.NewMemoryStore()
		ctx := context.Background()
		require.NoError(t, store.Put(ctx, session.Record{
			Key:   "cust-9",
			Value: `{"theme":"dark"}`,
		}))

		m := newTestManager(t, store,
			session.WithTTL(ttl),
			session.WithNow(func() time.Time { return now }),
		)

		sess := m.Load(ctx, "cust-9")
		assert.True(t, sess.IsDirty(), "healed expiry must persist on next save without mutation")
		assert.Equal(t, now.Add(ttl).Unix(), sess.ExpiresAt())
		assert.Equal(t, "dark", sess.Get("theme", ""))

		require.NoError(t, m.Save(ctx, sess))
		rec, err := store.Get(ctx, "cust-9")
		require.NoError(t, err)
		assert.Equal(t, now.Add(ttl).Unix(), rec.ExpiresAt)
	})

	t.Run("corrupt payload is discarded, identity kept", func(t *testing.T) {
		t.Parallel()

		store := session.NewMemoryStore()
		ctx := context.Background()
		require.NoError(t, store.Put(ctx, session.Record{
			Key:       "cust-10",
			Value:     "{not json",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		}))

		m := newTestManager(t, store)
		sess := m.Load(ctx, "cust-10")

		assert.Empty(t, sess.Values())
	})
}

func TestManagerSave(t *testing.T) {
	t.Parallel()

	t.Run("no-op when session is clean", func(t *testing.T) {
		t.Parallel()

		store := &mockStore{}
		m := newTestManager(t, store)
		ctx := context.Background()

		store.On("Get", ctx, "cust-1").Return(&session.Record{
			Key:       "cust-1",
			Value:     `{"theme":"dark"}`,
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		}, nil)

		sess := m.Load(ctx, "cust-1")
		require.NoError(t, m.Save(ctx, sess))

		store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
		store.AssertExpectations(t)
	})

	t.Run("empty key aborts the save", func(t *testing.T) {
		t.Parallel()

		store := &mockStore{}
		m := newTestManager(t, store)
		ctx := context.Background()

		sess := m.Load(ctx, "")
		sess.Set("cart_total", 59.99)

		err := m.Save(ctx, sess)
		require.ErrorIs(t, err, session.ErrEmptyKey)
		store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	})

	t.Run("persisted expiry is always positive", func(t *testing.T) {
		t.Parallel()

		store := session.NewMemoryStore()
		m := newTestManager(t, store)
		ctx := context.Background()

		sess := m.Load(ctx, "cust-2")
		sess.Set("theme", "dark")
		require.NoError(t, m.Save(ctx, sess))

		rec, err := store.Get(ctx, "cust-2")
		require.NoError(t, err)
		assert.Positive(t, rec.ExpiresAt)
	})

	t.Run("store failure keeps session dirty for retry", func(t *testing.T) {
		t.Parallel()

		store := &mockStore{}
		m := newTestManager(t, store)
		ctx := context.Background()

		store.On("Get", ctx, "cust-3").Return(nil, session.ErrNotFound)
		store.On("Put", ctx, mock.AnythingOfType("session.Record")).Return(session.ErrBackend).Once()
		store.On("Put", ctx, mock.AnythingOfType("session.Record")).Return(nil).Once()

		sess := m.Load(ctx, "cust-3")
		sess.Set("cart_total", 59.99)

		err := m.Save(ctx, sess)
		require.ErrorIs(t, err, session.ErrPersistFailed)
		assert.True(t, sess.IsDirty())

		require.NoError(t, m.Save(ctx, sess))
		assert.False(t, sess.IsDirty())
		store.AssertExpectations(t)
	})
}

func TestManagerDestroy(t *testing.T) {
	t.Parallel()

	t.Run("destroy then load yields empty state", func(t *testing.T) {
		t.Parallel()

		store := session.NewMemoryStore()
		m := newTestManager(t, store)
		ctx := context.Background()

		sess := m.Load(ctx, "cust-5")
		sess.Set("cart_total", 59.99)
		require.NoError(t, m.Save(ctx, sess))

		require.NoError(t, m.Destroy(ctx, sess))
		assert.Empty(t, sess.Values())
		assert.False(t, sess.IsDirty())

		restored := m.Load(ctx, "cust-5")
		assert.Empty(t, restored.Values())
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		store := session.NewMemoryStore()
		m := newTestManager(t, store)
		ctx := context.Background()

		sess := m.Load(ctx, "cust-6")
		require.NoError(t, m.Destroy(ctx, sess))
		require.NoError(t, m.Destroy(ctx, sess))
	})

	t.Run("clears state even when delete fails", func(t *testing.T) {
		t.Parallel()

		store := &mockStore{}
		m := newTestManager(t, store)
		ctx := context.Background()

		store.On("Get", ctx, "cust-7").Return(nil, session.ErrNotFound)
		store.On("Delete", ctx, "cust-7").Return(session.ErrBackend)

		sess := m.Load(ctx, "cust-7")
		sess.Set("theme", "dark")

		err := m.Destroy(ctx, sess)
		require.ErrorIs(t, err, session.ErrBackend)
		assert.Empty(t, sess.Values())
		store.AssertExpectations(t)
	})
}

func TestManagerTouch(t *testing.T) {
	t.Parallel()

	t.Run("updates only the expiry", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store := session.NewMemoryStore()
		m := newTestManager(t, store, session.WithNow(func() time.Time { return now }))
		ctx := context.Background()

		sess := m.Load(ctx, "cust-8")
		sess.Set("theme", "dark")
		require.NoError(t, m.Save(ctx, sess))

		at := now.Add(72 * time.Hour)
		require.NoError(t, m.Touch(ctx, "cust-8", at))

		rec, err := store.Get(ctx, "cust-8")
		require.NoError(t, err)
		assert.Equal(t, at.Unix(), rec.ExpiresAt)
		assert.Equal(t, `{"theme":"dark"}`, rec.Value, "payload must not be rewritten")
	})

	t.Run("zero timestamp falls back to default ttl", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		ttl := 48 * time.Hour
		store := &mockStore{}
		m := newTestManager(t, store,
			session.WithTTL(ttl),
			session.WithNow(func() time.Time { return now }),
		)
		ctx := context.Background()

		store.On("Touch", ctx, "cust-8", now.Add(ttl).Unix()).Return(nil)

		require.NoError(t, m.Touch(ctx, "cust-8", time.Time{}))
		store.AssertExpectations(t)
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(t, session.NewMemoryStore())
		require.ErrorIs(t, m.Touch(context.Background(), "", time.Now()), session.ErrEmptyKey)
	})
}

func TestManagerCleanup(t *testing.T) {
	t.Parallel()

	t.Run("deletes expired and keeps live records", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store := session.NewMemoryStore()
		m := newTestManager(t, store, session.WithNow(func() time.Time { return now }))
		ctx := context.Background()

		require.NoError(t, store.Put(ctx, session.Record{Key: "dead-1", Value: "{}", ExpiresAt: now.Add(-time.Hour).Unix()}))
		require.NoError(t, store.Put(ctx, session.Record{Key: "dead-2", Value: "{}", ExpiresAt: now.Add(-time.Minute).Unix()}))
		require.NoError(t, store.Put(ctx, session.Record{Key: "live-1", Value: "{}", ExpiresAt: now.Add(time.Hour).Unix()}))

		deleted, err := m.Cleanup(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)

		_, err = store.Get(ctx, "dead-1")
		assert.ErrorIs(t, err, session.ErrNotFound)
		_, err = store.Get(ctx, "dead-2")
		assert.ErrorIs(t, err, session.ErrNotFound)
		_, err = store.Get(ctx, "live-1")
		assert.NoError(t, err)
	})

	t.Run("one failed delete does not abort the sweep", func(t *testing.T) {
		t.Parallel()

		store := &mockStore{}
		m := newTestManager(t, store)
		ctx := context.Background()

		store.On("ScanExpired", ctx, mock.AnythingOfType("time.Time")).
			Return([]string{"k1", "k2", "k3"}, nil)
		store.On("Delete", ctx, "k1").Return(nil)
		store.On("Delete", ctx, "k2").Return(session.ErrBackend)
		store.On("Delete", ctx, "k3").Return(nil)

		deleted, err := m.Cleanup(ctx)
		assert.Equal(t, 2, deleted)
		require.ErrorIs(t, err, session.ErrBackend)
		store.AssertExpectations(t)
	})

	t.Run("scan failure returns without deletes", func(t *testing.T) {
		t.Parallel()

		store := &mockStore{}
		m := newTestManager(t, store)
		ctx := context.Background()

		store.On("ScanExpired", ctx, mock.AnythingOfType("time.Time")).
			Return(nil, errors.Join(session.ErrBackend, errors.New("throttled")))

		deleted, err := m.Cleanup(ctx)
		assert.Zero(t, deleted)
		require.ErrorIs(t, err, session.ErrBackend)
		store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}
