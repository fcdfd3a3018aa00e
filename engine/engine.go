// Package engine wraps the embedded DuckDB analytic engine used both by the
// schema registry (table/column discovery over local files and object-store
// parquet/csv data) and by the executor (running validated SQL). Grounded on
// the original system's engine/connector.py, which opens a single shared
// DuckDB connection and issues DESCRIBE/COUNT/sample queries against it.
package engine

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/pkg/errors"
)

// Column is a single column reported by DESCRIBE.
type Column struct {
	Name     string
	DuckType string
	Nullable bool
}

// Engine is a thin, concurrency-safe wrapper around a DuckDB database/sql handle.
type Engine struct {
	db *sql.DB
}

// Config configures the embedded DuckDB instance.
type Config struct {
	// Path is the DuckDB database file, or ":memory:" for an in-process instance.
	Path string `yaml:"path" env:"PATH" default:":memory:"`
	// MemoryLimit is passed to DuckDB's memory_limit setting, e.g. "4GB".
	MemoryLimit string `yaml:"memory_limit" env:"MEMORY_LIMIT" default:"2GB"`
	// Threads caps DuckDB's internal parallelism.
	Threads int `yaml:"threads" env:"THREADS" default:"4"`
}

// Open creates a new Engine from Config, installing the httpfs extension
// used for object-store (s3://) table discovery and query execution.
func Open(c Config) (*Engine, error) {
	db, err := sql.Open("duckdb", c.Path)
	if err != nil {
		return nil, errors.Wrap(err, "can't open duckdb database")
	}

	pragmas := []string{
		fmt.Sprintf("SET memory_limit='%s'", c.MemoryLimit),
		fmt.Sprintf("SET threads=%d", c.Threads),
		"INSTALL httpfs",
		"LOAD httpfs",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			// httpfs may be unavailable in restricted/offline environments; discovery
			// of local files still works without it, so don't fail Open over this.
			if p == "INSTALL httpfs" || p == "LOAD httpfs" {
				continue
			}
			_ = db.Close()
			return nil, errors.Wrapf(err, "can't apply duckdb setting %q", p)
		}
	}

	return &Engine{db: db}, nil
}

// Close releases the underlying DuckDB connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// QueryContext runs an arbitrary read query, honoring ctx cancellation/timeout.
func (e *Engine) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return e.db.QueryContext(ctx, query, args...)
}

// ExecContext runs a statement that returns no rows (DDL, SET, etc).
func (e *Engine) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return e.db.ExecContext(ctx, query, args...)
}

// Describe runs DESCRIBE against the given relation expression (a table name,
// or a table function call such as read_parquet('path')) and returns its columns.
func (e *Engine) Describe(ctx context.Context, relation string) ([]Column, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf("DESCRIBE SELECT * FROM %s", relation))
	if err != nil {
		return nil, errors.Wrapf(err, "can't describe %q", relation)
	}
	defer func() { _ = rows.Close() }()

	var cols []Column
	for rows.Next() {
		var name, colType, null string
		var key, def, extra sql.NullString
		if err := rows.Scan(&name, &colType, &null, &key, &def, &extra); err != nil {
			return nil, errors.Wrap(err, "can't scan DESCRIBE row")
		}
		cols = append(cols, Column{Name: name, DuckType: colType, Nullable: null == "YES"})
	}

	return cols, rows.Err()
}

// RegisterView creates or replaces a logical view name over the given relation
// expression, so generated SQL can reference name without knowing its physical path.
func (e *Engine) RegisterView(ctx context.Context, name, relation string) error {
	_, err := e.db.ExecContext(ctx, fmt.Sprintf(`CREATE OR REPLACE VIEW "%s" AS SELECT * FROM %s`, name, relation))
	return errors.Wrapf(err, "can't register view %q", name)
}

// CountRows returns COUNT(*) for the given relation expression.
func (e *Engine) CountRows(ctx context.Context, relation string) (int64, error) {
	var n int64
	err := e.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", relation)).Scan(&n)
	return n, errors.Wrapf(err, "can't count rows of %q", relation)
}

// SampleValues returns up to limit distinct, stringified values of column from relation.
func (e *Engine) SampleValues(ctx context.Context, relation, column string, limit int) ([]string, error) {
	q := fmt.Sprintf(
		`SELECT DISTINCT CAST("%s" AS VARCHAR) FROM %s WHERE "%s" IS NOT NULL LIMIT %d`,
		column, relation, column, limit,
	)
	rows, err := e.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "can't sample column %q", column)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, rows.Err()
}
