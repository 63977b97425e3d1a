// Package repository provides a resource.Gateway over database/sql. Query plans are compiled
// to parameterized SQL for PostgreSQL or MySQL, with column names checked against the columns
// the entity mapper declares.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLExecutor defines the interface for executing SQL queries.
// This can be a *sql.DB, *sql.Tx, or any adapter that provides these methods.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Dialect captures the syntax differences between supported databases.
type Dialect struct {
	// Name is reported as db.system on spans, e.g. "postgresql".
	Name string
	// Placeholder renders the n-th bind parameter, starting at 1.
	Placeholder func(n int) string
	// Quote renders an identifier.
	Quote func(ident string) string
	// Returning reports whether INSERT ... RETURNING yields generated identifiers. When false
	// the driver's LastInsertId is used.
	Returning bool
}

// Postgres uses $n placeholders, double-quoted identifiers and RETURNING.
var Postgres = Dialect{
	Name:        "postgresql",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	Quote:       func(ident string) string { return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"` },
	Returning:   true,
}

// MySQL uses ? placeholders, backquoted identifiers and LastInsertId.
var MySQL = Dialect{
	Name:        "mysql",
	Placeholder: func(int) string { return "?" },
	Quote:       func(ident string) string { return "`" + strings.ReplaceAll(ident, "`", "``") + "`" },
}

// DialectFor returns the dialect for a database type name.
func DialectFor(dbType string) (Dialect, error) {
	switch dbType {
	case "postgres", "postgresql":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	}
	return Dialect{}, fmt.Errorf("unsupported sql dialect %q", dbType)
}
