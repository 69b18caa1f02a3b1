package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options selects and tunes the backing relational store.
type Options struct {
	Driver      string
	URL         string
	MaxConns    int32
	MinConns    int32
	BusyTimeout time.Duration
}

// Store is the handle every repository shares: a database/sql pool plus the
// dialect its queries must be rebound to.
type Store struct {
	db      *sql.DB
	dialect Dialect
	pool    *pgxpool.Pool
}

// NewStore wraps an already opened *sql.DB. Tests use it with sqlmock.
func NewStore(sqlDB *sql.DB, dialect Dialect) *Store {
	return &Store{db: sqlDB, dialect: dialect}
}

// Open connects to the store named by opts.Driver.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dialect, err := ParseDialect(opts.Driver)
	if err != nil {
		return nil, err
	}
	switch dialect {
	case Postgres:
		return OpenPostgres(ctx, opts.URL, opts.MaxConns, opts.MinConns)
	default:
		return OpenSQLite(ctx, opts.URL, opts.BusyTimeout)
	}
}

func (s *Store) DB() *sql.DB      { return s.db }
func (s *Store) Dialect() Dialect { return s.dialect }

// Rebind rewrites '?' placeholders for the store's dialect.
func (s *Store) Rebind(query string) string { return s.dialect.Rebind(query) }

// Conn returns the transaction carried by ctx, or the pool.
func (s *Store) Conn(ctx context.Context) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database/sql handle and, for Postgres, the pgx pool.
func (s *Store) Close() error {
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
