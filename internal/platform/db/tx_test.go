package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func createCounter(t *testing.T, s *Store) {
	t.Helper()
	if _, err := s.DB().Exec(`CREATE TABLE counter (n INTEGER)`); err != nil {
		t.Fatalf("create counter: %v", err)
	}
}

func countRows(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM counter`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWithTx_Commit(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)
	createCounter(t, store)

	err := store.WithTx(ctx, func(ctx context.Context) error {
		if TxFromContext(ctx) == nil {
			t.Error("expected a transaction in context")
		}
		_, err := store.Conn(ctx).ExecContext(ctx, `INSERT INTO counter (n) VALUES (1), (2)`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if n := countRows(t, store); n != 2 {
		t.Errorf("expected 2 rows, got %d", n)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)
	createCounter(t, store)

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := store.Conn(ctx).ExecContext(ctx, `INSERT INTO counter (n) VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if n := countRows(t, store); n != 0 {
		t.Errorf("expected rollback, got %d rows", n)
	}
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)
	createCounter(t, store)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = store.WithTx(ctx, func(ctx context.Context) error {
			_, _ = store.Conn(ctx).ExecContext(ctx, `INSERT INTO counter (n) VALUES (1)`)
			panic("halfway")
		})
	}()

	if n := countRows(t, store); n != 0 {
		t.Errorf("expected rollback, got %d rows", n)
	}
}

func TestWithTx_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)
	createCounter(t, store)

	boom := errors.New("outer fails")
	err := store.WithTx(ctx, func(ctx context.Context) error {
		outer := TxFromContext(ctx)
		inner := store.WithTx(ctx, func(ctx context.Context) error {
			if TxFromContext(ctx) != outer {
				t.Error("nested WithTx should reuse the outer transaction")
			}
			_, err := store.Conn(ctx).ExecContext(ctx, `INSERT INTO counter (n) VALUES (1)`)
			return err
		})
		if inner != nil {
			return inner
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected outer error, got %v", err)
	}
	if n := countRows(t, store); n != 0 {
		t.Errorf("inner write should roll back with outer, got %d rows", n)
	}
}

func TestConn_WithoutTx(t *testing.T) {
	store := openTestSQLite(t)
	if store.Conn(context.Background()) != store.DB() {
		t.Error("expected Conn to fall back to the pool")
	}
}

func TestOpen_DispatchesByDriver(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, Options{Driver: "sqlite", URL: filepath.Join(t.TempDir(), "nested", "h.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if store.Dialect() != SQLite {
		t.Errorf("expected sqlite dialect, got %s", store.Dialect())
	}

	if _, err := Open(ctx, Options{Driver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
	if _, err := Open(ctx, Options{Driver: "postgres"}); err == nil {
		t.Error("expected error for postgres without url")
	}
}
