package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrFailedToParseConfig    = errors.New("failed to parse postgres connection config")
	ErrFailedToOpenConnection = errors.New("failed to open postgres connection")
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	ConnectionString string        `env:"PG_CONN_URL,required"`              // Standard postgres:// connection URL
	MaxOpenConns     int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"` // Pool upper bound
	MinIdleConns     int32         `env:"PG_MIN_IDLE_CONNS" envDefault:"2"`  // Pool lower bound
	RetryAttempts    int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`  // Connection attempts before giving up
	RetryInterval    time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"` // Base delay between connection attempts
}

// Connect establishes a PostgreSQL connection pool with linear backoff
// between attempts. This retry covers connection establishment only;
// individual store calls stay single-attempt.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	connConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConfig, err)
	}
	connConfig.MaxConns = cfg.MaxOpenConns
	connConfig.MinConns = cfg.MinIdleConns

	for i := 0; i < cfg.RetryAttempts; i++ {
		pool, err := pgxpool.NewWithConfig(ctx, connConfig)
		if err == nil {
			if err := pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrFailedToOpenConnection, ctx.Err())
		case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
		}
	}

	return nil, ErrFailedToOpenConnection
}
