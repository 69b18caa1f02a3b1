package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestOpenSQLite_WALMode(t *testing.T) {
	store := openTestSQLite(t)

	mode, err := store.JournalMode(context.Background())
	if err != nil {
		t.Fatalf("JournalMode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("expected journal mode wal, got %q", mode)
	}
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)

	if _, err := store.DB().ExecContext(ctx, `CREATE TABLE u (name TEXT); CREATE UNIQUE INDEX u_name ON u(name)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.DB().ExecContext(ctx, `INSERT INTO u (name) VALUES ('A')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err := store.DB().ExecContext(ctx, `INSERT INTO u (name) VALUES ('A')`)
	if err == nil {
		t.Fatal("expected unique violation")
	}
	if !IsUniqueViolation(fmt.Errorf("wrapped: %w", err)) {
		t.Errorf("expected IsUniqueViolation for %v", err)
	}
}

func TestIsUniqueViolation_Other(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Error("nil is not a unique violation")
	}
	if IsUniqueViolation(errors.New("UNIQUE constraint failed")) {
		t.Error("plain errors are not classified by message")
	}
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Error("expected pg 23505 to be a unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("pg foreign key violation is not a unique violation")
	}
}
