package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const (
	DefaultSQLitePath  = "health_metrics.db"
	DefaultBusyTimeout = 5 * time.Second
)

// sqliteDSN enables write-ahead logging on every pooled connection so page
// reads are not blocked by an ingestion in flight. Transactions take the
// write lock at BEGIN so concurrent writers wait on busy_timeout instead of
// failing on upgrade.
func sqliteDSN(path string, busyTimeout time.Duration) string {
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		path, busyTimeout.Milliseconds())
}

// OpenSQLite opens (creating if needed) the SQLite file at path in WAL mode.
func OpenSQLite(ctx context.Context, path string, busyTimeout time.Duration) (*Store, error) {
	if path == "" {
		path = DefaultSQLitePath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", sqliteDSN(path, busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return NewStore(sqlDB, SQLite), nil
}

// JournalMode reports the active SQLite journal mode ("wal" when durable
// concurrent reads are enabled). Postgres always reports "wal".
func (s *Store) JournalMode(ctx context.Context) (string, error) {
	if s.dialect == Postgres {
		return "wal", nil
	}
	var mode string
	if err := s.db.QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&mode); err != nil {
		return "", fmt.Errorf("read journal mode: %w", err)
	}
	return mode, nil
}
