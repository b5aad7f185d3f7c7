package pg

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/sessionstore/core/session"
)

const defaultTable = "sessions"

// identifierPattern guards table names interpolated into DDL and queries;
// they cannot go through bind parameters.
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Compile-time check that Store implements session.Store.
var _ session.Store = (*Store)(nil)

// Store implements session.Store on PostgreSQL. It is the compatibility
// path for deployments keeping sessions in the relational database the
// key-value backends replace. Safe for concurrent use through the pool.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTable overrides the "sessions" table name. Invalid identifiers are ignored.
func WithTable(name string) StoreOption {
	return func(s *Store) {
		if identifierPattern.MatchString(name) {
			s.table = name
		}
	}
}

// NewStore creates a PostgreSQL-backed session store over an established pool.
func NewStore(pool *pgxpool.Pool, opts ...StoreOption) *Store {
	s := &Store{pool: pool, table: defaultTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureTable creates the sessions table and expiry index if absent.
// Postgres DDL is synchronous, so no readiness wait is needed.
func (s *Store) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		session_key    text PRIMARY KEY,
		session_value  text NOT NULL,
		session_expiry bigint NOT NULL
	)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("%w: create table %q: %v", session.ErrProvisioning, s.table, err)
	}

	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_expiry_idx ON %s (session_expiry)`, s.table, s.table)
	if _, err := s.pool.Exec(ctx, idx); err != nil {
		return fmt.Errorf("%w: create expiry index on %q: %v", session.ErrProvisioning, s.table, err)
	}
	return nil
}

// Get returns the record stored under key, or session.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (*session.Record, error) {
	rec := &session.Record{Key: key}
	query := fmt.Sprintf(`SELECT session_value, session_expiry FROM %s WHERE session_key = $1`, s.table)
	err := s.pool.QueryRow(ctx, query, key).Scan(&rec.Value, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %v", session.ErrBackend, err)
	}
	return rec, nil
}

// Put upserts the record, overwriting any existing row for its key.
func (s *Store) Put(ctx context.Context, rec session.Record) error {
	if rec.Key == "" {
		return fmt.Errorf("%w: record without a key", session.ErrBackend)
	}
	if rec.ExpiresAt <= 0 {
		return fmt.Errorf("%w: record with non-positive expiry", session.ErrBackend)
	}

	query := fmt.Sprintf(`INSERT INTO %s (session_key, session_value, session_expiry)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_key) DO UPDATE
		SET session_value = EXCLUDED.session_value, session_expiry = EXCLUDED.session_expiry`, s.table)
	if _, err := s.pool.Exec(ctx, query, rec.Key, rec.Value, rec.ExpiresAt); err != nil {
		return fmt.Errorf("%w: put session: %v", session.ErrBackend, err)
	}
	return nil
}

// Delete removes the record under key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE session_key = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("%w: delete session: %v", session.ErrBackend, err)
	}
	return nil
}

// Touch updates only the expiry column of an existing row.
func (s *Store) Touch(ctx context.Context, key string, expiresAt int64) error {
	query := fmt.Sprintf(`UPDATE %s SET session_expiry = $2 WHERE session_key = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, key, expiresAt)
	if err != nil {
		return fmt.Errorf("%w: touch session: %v", session.ErrBackend, err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

// ScanExpired returns keys of all rows whose expiry elapsed before now.
func (s *Store) ScanExpired(ctx context.Context, now time.Time) ([]string, error) {
	query := fmt.Sprintf(`SELECT session_key FROM %s WHERE session_expiry < $1`, s.table)
	rows, err := s.pool.Query(ctx, query, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("%w: scan expired sessions: %v", session.ErrBackend, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%w: scan expired sessions: %v", session.ErrBackend, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan expired sessions: %v", session.ErrBackend, err)
	}
	return keys, nil
}
