package db

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavour behind a Store. Queries are written
// once with '?' placeholders and rebound per dialect.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Rebind rewrites '?' placeholders into the dialect's bind syntax.
// Queries in this module never carry '?' inside string literals.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// columnProbeQuery is the cheap catalog read used to decide whether an
// additive column still has to be created.
func (d Dialect) columnProbeQuery() string {
	if d == Postgres {
		return d.Rebind(`SELECT COUNT(*) FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = ? AND column_name = ?`)
	}
	return `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`
}
