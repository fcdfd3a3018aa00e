package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/s1v4-d/nlsql-mas/workflow"
)

// maxSampledColumns bounds how many columns get DISTINCT-value sampling per
// table, mirroring the original system's _add_sample_values (first 5 columns).
const maxSampledColumns = 5

// sampleLimit is the number of distinct sample values fetched per column.
const sampleLimit = 10

// discoverFiles handles both local_file and object_store sources: it globs
// src.Path+src.FilePattern, and for each matched file, describes it via the
// DuckDB table function appropriate to its extension.
func (r *Registry) discoverFiles(ctx context.Context, src workflow.DataSource) ([]workflow.TableSchema, error) {
	pattern := strings.TrimRight(src.Path, "/") + "/" + src.FilePattern

	files, err := r.globFiles(ctx, src, pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "can't list files matching %q", pattern)
	}

	var tables []workflow.TableSchema
	for _, f := range files {
		t, err := r.describeFile(ctx, src, f)
		if err != nil {
			r.logger.Warnw("Skipping unreadable table file", "file", f, "error", err)
			continue
		}
		tables = append(tables, t)
	}

	return tables, nil
}

// globFiles lists files matching pattern. Object-store sources (s3://...) rely
// on DuckDB's httpfs glob support; local_file sources use the OS filepath.Glob
// directly so discovery keeps working in environments where the httpfs
// extension failed to load.
func (r *Registry) globFiles(ctx context.Context, src workflow.DataSource, pattern string) ([]string, error) {
	if src.Type == workflow.SourceLocalFile {
		return filepath.Glob(pattern)
	}

	rows, err := r.engine.QueryContext(ctx, fmt.Sprintf("SELECT file FROM glob('%s')", escapeSQLLiteral(pattern)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

func (r *Registry) describeFile(ctx context.Context, src workflow.DataSource, path string) (workflow.TableSchema, error) {
	relation, format := relationExprFor(path)

	cols, err := r.engine.Describe(ctx, relation)
	if err != nil {
		return workflow.TableSchema{}, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	schema := workflow.TableSchema{
		Name:       name,
		SourceType: src.Type,
		SourcePath: path,
		FileFormat: format,
	}

	for i, c := range cols {
		col := workflow.ColumnSchema{Name: c.Name, DataType: c.DuckType, Nullable: c.Nullable}

		if i < maxSampledColumns {
			if samples, err := r.engine.SampleValues(ctx, relation, c.Name, sampleLimit); err == nil {
				col.SampleValues = samples
			}
		}

		schema.Columns = append(schema.Columns, col)
	}

	if n, err := r.engine.CountRows(ctx, relation); err == nil {
		schema.RowCount = &n
	}

	if src.Type == workflow.SourceLocalFile {
		if fi, err := os.Stat(path); err == nil {
			mt := fi.ModTime()
			schema.LastModified = &mt
		}
	}

	if err := r.engine.RegisterView(ctx, name, relation); err != nil {
		r.logger.Warnw("Could not register logical view for discovered table", "table", name, "error", err)
	}

	return schema, nil
}

func relationExprFor(path string) (relation, format string) {
	switch {
	case strings.HasSuffix(path, ".parquet"):
		return fmt.Sprintf("read_parquet('%s')", escapeSQLLiteral(path)), "parquet"
	case strings.HasSuffix(path, ".csv"):
		return fmt.Sprintf("read_csv_auto('%s')", escapeSQLLiteral(path)), "csv"
	default:
		return fmt.Sprintf("read_csv_auto('%s')", escapeSQLLiteral(path)), "csv"
	}
}

func escapeSQLLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// discoverRelational introspects information_schema.tables/columns for every
// table in the connected relational database, grounded on the original
// system's _discover_pg_tables.
func (r *Registry) discoverRelational(ctx context.Context, src workflow.DataSource) ([]workflow.TableSchema, error) {
	if r.relDB == nil {
		return nil, errors.New("no relational database connection configured")
	}

	type tableRow struct {
		TableName string `db:"table_name"`
	}
	var tableRows []tableRow
	if err := r.relDB.SelectContext(ctx, &tableRows, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
	`); err != nil {
		return nil, errors.Wrap(err, "can't list relational tables")
	}

	type columnRow struct {
		ColumnName string `db:"column_name"`
		DataType   string `db:"data_type"`
		IsNullable string `db:"is_nullable"`
	}

	var tables []workflow.TableSchema
	for _, tr := range tableRows {
		var colRows []columnRow
		err := r.relDB.SelectContext(ctx, &colRows, r.relDB.Rebind(`
			SELECT column_name, data_type, is_nullable FROM information_schema.columns
			WHERE table_name = ? ORDER BY ordinal_position
		`), tr.TableName)
		if err != nil {
			r.logger.Warnw("Skipping table with unreadable columns", "table", tr.TableName, "error", err)
			continue
		}

		t := workflow.TableSchema{
			Name:       tr.TableName,
			SourceType: workflow.SourceRelational,
			SourcePath: src.Path,
		}
		for _, c := range colRows {
			t.Columns = append(t.Columns, workflow.ColumnSchema{
				Name:     c.ColumnName,
				DataType: c.DataType,
				Nullable: strings.EqualFold(c.IsNullable, "YES"),
			})
		}

		tables = append(tables, t)
	}

	return tables, nil
}
