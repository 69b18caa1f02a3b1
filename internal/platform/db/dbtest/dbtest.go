// Package dbtest opens throwaway SQLite stores for package tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/healthmetrics/healthmetrics/internal/platform/db"
)

// Open returns a migrated store backed by a file in t.TempDir.
func Open(t testing.TB) *db.Store {
	t.Helper()
	store := OpenEmpty(t)
	m, err := db.NewDefaultMigrator(store)
	if err != nil {
		t.Fatalf("dbtest: migrator: %v", err)
	}
	if err := m.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("dbtest: ensure schema: %v", err)
	}
	return store
}

// OpenEmpty returns a store with no tables.
func OpenEmpty(t testing.TB) *db.Store {
	t.Helper()
	store, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "health_metrics.db"), 0)
	if err != nil {
		t.Fatalf("dbtest: open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
