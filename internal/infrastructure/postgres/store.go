// Package postgres implements the action store on PostgreSQL through a pgx
// connection pool.
//
// Transactions run at READ COMMITTED. Loads inside a transaction take a row
// lock (SELECT ... FOR UPDATE) and writes are single-statement upserts on the
// unique name index, so concurrent writers on one name serialize on that row.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store owns the pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Option configures a Store.
type Option func(*storeConfig)

type storeConfig struct {
	pool          *pgxpool.Pool
	maxConns      int32
	skipMigration bool
}

// WithPool uses an existing pool instead of dialing the DSN.
func WithPool(pool *pgxpool.Pool) Option {
	return func(c *storeConfig) {
		c.pool = pool
	}
}

// WithMaxConns bounds the pool size when the Store creates the pool.
func WithMaxConns(n int32) Option {
	return func(c *storeConfig) {
		c.maxConns = n
	}
}

// WithoutMigrations skips schema migration on open.
func WithoutMigrations() Option {
	return func(c *storeConfig) {
		c.skipMigration = true
	}
}

// NewStore connects to dsn and migrates the schema to the latest version.
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	pool := cfg.pool
	if pool == nil {
		if dsn == "" {
			return nil, errors.New("missing connection: provide a DSN or a pool")
		}
		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse connection config: %w", err)
		}
		if cfg.maxConns > 0 {
			poolCfg.MaxConns = cfg.maxConns
		}
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("create connection pool: %w", err)
		}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if !cfg.skipMigration {
		if err := runMigrations(pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	log.Info(log.CatDB, "Opened action store", "driver", "postgres")
	return &Store{pool: pool}, nil
}

func runMigrations(pool *pgxpool.Pool) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	// Closing the stdlib handle leaves the pool open.
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("init migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// ActionRepository returns the action store backed by this pool.
func (s *Store) ActionRepository() domain.ActionRepository {
	return newActionRepository(s.pool)
}

// Pool returns the underlying pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
