package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/s1v4-d/nlsql-mas/engine"
	"github.com/s1v4-d/nlsql-mas/logging"
	"github.com/s1v4-d/nlsql-mas/workflow"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewLogger(zaptest.NewLogger(t).Sugar(), time.Second)
}

func writeCSV(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestRegistry(t *testing.T, cfg Config) (*Registry, *engine.Engine) {
	t.Helper()
	eng, err := engine.Open(engine.Config{Path: ":memory:", MemoryLimit: "512MB", Threads: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	return New(cfg, eng, nil, testLogger(t)), eng
}

func TestRegistry_RefreshDiscoversLocalFileTable(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "orders.csv", "id,amount\n1,10.5\n2,20.0\n3,5.25\n")

	reg, _ := newTestRegistry(t, Config{CacheTTL: time.Minute, MaxTables: 10, ContextLimit: 10})
	reg.AddSource(workflow.DataSource{Type: workflow.SourceLocalFile, Path: dir, FilePattern: "*.csv", Enabled: true})

	require.NoError(t, reg.Refresh(context.Background()))

	tbl, ok := reg.GetTable("orders")
	require.True(t, ok)
	require.Equal(t, workflow.SourceLocalFile, tbl.SourceType)
	require.Contains(t, tbl.ColumnNames(), "id")
	require.Contains(t, tbl.ColumnNames(), "amount")
	require.NotNil(t, tbl.RowCount)
	require.Equal(t, int64(3), *tbl.RowCount)
}

func TestRegistry_GetTableIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "Customers.csv", "id,name\n1,alice\n")

	reg, _ := newTestRegistry(t, Config{CacheTTL: time.Minute, MaxTables: 10, ContextLimit: 10})
	reg.AddSource(workflow.DataSource{Type: workflow.SourceLocalFile, Path: dir, FilePattern: "*.csv", Enabled: true})
	require.NoError(t, reg.Refresh(context.Background()))

	_, ok := reg.GetTable("customers")
	require.True(t, ok)
	_, ok = reg.GetTable("CUSTOMERS")
	require.True(t, ok)
}

func TestRegistry_GetValidTablesAndColumnsAreSorted(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "zebra.csv", "z,a\n1,2\n")
	writeCSV(t, dir, "apple.csv", "c,b,a\n1,2,3\n")

	reg, _ := newTestRegistry(t, Config{CacheTTL: time.Minute, MaxTables: 10, ContextLimit: 10})
	reg.AddSource(workflow.DataSource{Type: workflow.SourceLocalFile, Path: dir, FilePattern: "*.csv", Enabled: true})
	require.NoError(t, reg.Refresh(context.Background()))

	require.Equal(t, []string{"apple", "zebra"}, reg.GetValidTables())
	require.Equal(t, []string{"a", "b", "c"}, reg.GetValidColumns("apple"))
	require.Nil(t, reg.GetValidColumns("does_not_exist"))
}

func TestRegistry_GetStateServesStaleSnapshotWhenRefreshFails(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "orders.csv", "id\n1\n")

	reg, _ := newTestRegistry(t, Config{CacheTTL: time.Minute, MaxTables: 10, ContextLimit: 10})
	reg.AddSource(workflow.DataSource{Type: workflow.SourceLocalFile, Path: dir, FilePattern: "*.csv", Enabled: true})
	require.NoError(t, reg.Refresh(context.Background()))

	_, ok := reg.GetTable("orders")
	require.True(t, ok)

	// Swap in a relational source that can't be discovered (no DB connection
	// configured): Refresh now fails outright, but GetState must still serve
	// the previously cached snapshot rather than surfacing the error.
	reg.sources = []workflow.DataSource{{Type: workflow.SourceRelational, Path: "unused", Enabled: true}}

	st, err := reg.GetState(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 1, st.TableCount())
}

func TestRegistry_GetSchemaContextRendersMarkdownTable(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "orders.csv", "id,amount\n1,10.5\n")

	reg, _ := newTestRegistry(t, Config{CacheTTL: time.Minute, MaxTables: 10, ContextLimit: 10})
	reg.AddSource(workflow.DataSource{Type: workflow.SourceLocalFile, Path: dir, FilePattern: "*.csv", Enabled: true})
	require.NoError(t, reg.Refresh(context.Background()))

	ctxStr, err := reg.GetSchemaContext(context.Background())
	require.NoError(t, err)
	require.Contains(t, ctxStr, "## Table: orders")
	require.Contains(t, ctxStr, "| Column | Type | Sample Values |")
}

func TestRegistry_RefreshIsolatesPerSourceFailures(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "good.csv", "id\n1\n")

	reg, _ := newTestRegistry(t, Config{CacheTTL: time.Minute, MaxTables: 10, ContextLimit: 10})
	reg.AddSource(workflow.DataSource{Type: workflow.SourceRelational, Path: "unused", Enabled: true})
	reg.AddSource(workflow.DataSource{Type: workflow.SourceLocalFile, Path: dir, FilePattern: "*.csv", Enabled: true})

	require.NoError(t, reg.Refresh(context.Background()))

	_, ok := reg.GetTable("good")
	require.True(t, ok, "a failing relational source must not prevent the local_file source's tables from being cached")
}

func TestRegistry_DisabledSourceIsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "orders.csv", "id\n1\n")

	reg, _ := newTestRegistry(t, Config{CacheTTL: time.Minute, MaxTables: 10, ContextLimit: 10})
	reg.AddSource(workflow.DataSource{Type: workflow.SourceLocalFile, Path: dir, FilePattern: "*.csv", Enabled: false})

	require.NoError(t, reg.Refresh(context.Background()))
	require.Equal(t, 0, len(reg.GetValidTables()))
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{CacheTTL: time.Minute, MaxTables: 10, ContextLimit: 10}
	require.NoError(t, valid.Validate())

	zeroTTL := valid
	zeroTTL.CacheTTL = 0
	require.Error(t, zeroTTL.Validate())

	zeroTables := valid
	zeroTables.MaxTables = 0
	require.Error(t, zeroTables.Validate())
}
