package db

import (
	"context"
	"fmt"
)

// Column is a column added after the baseline schema. Additive columns are
// probed and created on every EnsureSchema so stores created by older builds
// (including ones that never had schema_migrations) catch up.
type Column struct {
	Table      string
	Name       string
	Definition string
}

// AdditiveColumns lists, in order of introduction, the columns that postdate
// the baseline. Append only.
var AdditiveColumns = []Column{
	{Table: "health_reports", Name: "fft_magnitude", Definition: "TEXT"},
	{Table: "health_reports", Name: "correlation_summary", Definition: "TEXT"},
}

// EnsureSchema creates the tables if absent and applies every outstanding
// column addition. Calling it repeatedly converges on one schema state.
func (m *Migrator) EnsureSchema(ctx context.Context) error {
	if _, err := m.Up(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	for _, col := range AdditiveColumns {
		if err := m.EnsureColumn(ctx, col); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ColumnExists probes the catalog for table.column.
func (m *Migrator) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	var n int
	if err := m.store.DB().QueryRowContext(ctx, m.store.Dialect().columnProbeQuery(), table, column).Scan(&n); err != nil {
		return false, fmt.Errorf("probe column %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}

// EnsureColumn adds col as a NULL-able column when it is missing.
func (m *Migrator) EnsureColumn(ctx context.Context, col Column) error {
	exists, err := m.ColumnExists(ctx, col.Table, col.Name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", col.Table, col.Name, col.Definition)
	if _, err := m.store.DB().ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("add column %s.%s: %w", col.Table, col.Name, err)
	}
	return nil
}
