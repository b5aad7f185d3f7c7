package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/sessionstore/core/session"
)

const (
	defaultKeyPrefix = "session:"
	defaultIndexKey  = "session:expiry"
)

// Compile-time check that Store implements session.Store.
var _ session.Store = (*Store)(nil)

// Store implements session.Store on Redis. The payload lives under
// prefix+key with a Redis-side expiry, and a sorted set indexed by expiry
// timestamp backs ScanExpired. Redis drops expired values on its own; the
// sweep keeps the index honest and is the authoritative reclamation path.
type Store struct {
	client redis.UniversalClient
	prefix string
	index  string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKeyPrefix overrides the "session:" key prefix.
func WithKeyPrefix(prefix string) StoreOption {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithIndexKey overrides the sorted-set key holding the expiry index.
func WithIndexKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.index = key
		}
	}
}

// NewStore creates a Redis-backed session store over an established client.
func NewStore(client redis.UniversalClient, opts ...StoreOption) *Store {
	s := &Store{
		client: client,
		prefix: defaultKeyPrefix,
		index:  defaultIndexKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(sessionKey string) string {
	return s.prefix + sessionKey
}

// EnsureTable verifies connectivity; Redis needs no table provisioning.
func (s *Store) EnsureTable(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %v", session.ErrProvisioning, err)
	}
	return nil
}

// Get returns the record stored under key, or session.ErrNotFound. A key
// whose value Redis already expired but whose index entry survives also
// reads as not found. A missing index score surfaces as zero expiry and is
// healed by the engine.
func (s *Store) Get(ctx context.Context, key string) (*session.Record, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %v", session.ErrBackend, err)
	}

	rec := &session.Record{Key: key, Value: val}
	score, err := s.client.ZScore(ctx, s.index, key).Result()
	switch {
	case err == redis.Nil:
		// index entry lost, engine heals the expiry
	case err != nil:
		return nil, fmt.Errorf("%w: get session expiry: %v", session.ErrBackend, err)
	default:
		rec.ExpiresAt = int64(score)
	}
	return rec, nil
}

// Put upserts the record and its expiry index entry atomically.
func (s *Store) Put(ctx context.Context, rec session.Record) error {
	if rec.Key == "" {
		return fmt.Errorf("%w: record without a key", session.ErrBackend)
	}
	if rec.ExpiresAt <= 0 {
		return fmt.Errorf("%w: record with non-positive expiry", session.ErrBackend)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(rec.Key), rec.Value, 0)
	pipe.ExpireAt(ctx, s.key(rec.Key), time.Unix(rec.ExpiresAt, 0))
	pipe.ZAdd(ctx, s.index, redis.Z{Score: float64(rec.ExpiresAt), Member: rec.Key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: put session: %v", session.ErrBackend, err)
	}
	return nil
}

// Delete removes the record and its index entry. Absent keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(key))
	pipe.ZRem(ctx, s.index, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: delete session: %v", session.ErrBackend, err)
	}
	return nil
}

// Touch moves the record's Redis expiry and index score without rewriting
// the payload.
func (s *Store) Touch(ctx context.Context, key string, expiresAt int64) error {
	ok, err := s.client.ExpireAt(ctx, s.key(key), time.Unix(expiresAt, 0)).Result()
	if err != nil {
		return fmt.Errorf("%w: touch session: %v", session.ErrBackend, err)
	}
	if !ok {
		return session.ErrNotFound
	}

	if err := s.client.ZAdd(ctx, s.index, redis.Z{Score: float64(expiresAt), Member: key}).Err(); err != nil {
		return fmt.Errorf("%w: touch session index: %v", session.ErrBackend, err)
	}
	return nil
}

// ScanExpired returns keys whose indexed expiry elapsed before now,
// including keys whose values Redis already dropped, so the sweep can
// clear their index entries.
func (s *Store) ScanExpired(ctx context.Context, now time.Time) ([]string, error) {
	keys, err := s.client.ZRangeByScore(ctx, s.index, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: scan expired sessions: %v", session.ErrBackend, err)
	}
	return keys, nil
}
