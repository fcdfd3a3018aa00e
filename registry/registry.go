// Package registry implements the dynamic schema registry: a TTL-cached,
// thread-safe map of table name to TableSchema, refreshed from one or more
// configured DataSources (local files, object-store files, relational
// databases). Grounded on the original system's engine/schema_registry.py.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/s1v4-d/nlsql-mas/com"
	"github.com/s1v4-d/nlsql-mas/database"
	"github.com/s1v4-d/nlsql-mas/engine"
	"github.com/s1v4-d/nlsql-mas/logging"
	"github.com/s1v4-d/nlsql-mas/workflow"
)

// Config configures TTL and capacity for the registry's cache.
type Config struct {
	CacheTTL     time.Duration `yaml:"cache_ttl" env:"CACHE_TTL" default:"300s"`
	MaxTables    int           `yaml:"max_tables" env:"MAX_TABLES" default:"100"`
	ContextLimit int           `yaml:"context_limit" env:"CONTEXT_LIMIT" default:"20"`
}

// Validate checks the registry configuration.
func (c *Config) Validate() error {
	if c.CacheTTL <= 0 {
		return errors.New("cache_ttl must be positive")
	}
	if c.MaxTables < 1 {
		return errors.New("max_tables must be at least 1")
	}
	return nil
}

// Registry is the process-wide, singleton-per-engine dynamic schema registry.
// Reads go through an atomic snapshot (Registry.snapshot) so GetTable, and
// GetState on a fresh snapshot, never block on a concurrent Refresh (a stale
// or forced GetState runs Refresh itself); only one Refresh runs at a time thanks
// to refreshMu, and the snapshot swap at the end of a refresh is atomic, so
// readers never observe a partially rebuilt table map.
type Registry struct {
	cfg     Config
	engine  *engine.Engine
	relDB   *database.DB
	logger  *logging.Logger
	sources []workflow.DataSource

	snapshot com.Atomic[workflow.RegistryState]
	refreshMu sync.Mutex
}

// New constructs a Registry. relDB may be nil if no relational source is configured.
func New(cfg Config, eng *engine.Engine, relDB *database.DB, logger *logging.Logger) *Registry {
	r := &Registry{cfg: cfg, engine: eng, relDB: relDB, logger: logger}
	r.snapshot.Store(workflow.RegistryState{
		Tables:      map[string]workflow.TableSchema{},
		SourceStats: map[string]int{},
		IsStale:     true,
	})
	return r
}

// AddSource registers a new DataSource to be included in future refreshes.
// It does not itself trigger a refresh.
func (r *Registry) AddSource(src workflow.DataSource) {
	r.sources = append(r.sources, src)
}

// IsStale reports whether the cached snapshot is older than CacheTTL or has never been populated.
func (r *Registry) IsStale() bool {
	st, _ := r.snapshot.Load()
	if st.LastRefresh == nil {
		return true
	}
	return time.Since(*st.LastRefresh) > r.cfg.CacheTTL
}

// GetState returns the current schema snapshot, refreshing first if forceRefresh
// is set or the cache has gone stale.
func (r *Registry) GetState(ctx context.Context, forceRefresh bool) (workflow.RegistryState, error) {
	if forceRefresh || r.IsStale() {
		if err := r.Refresh(ctx); err != nil {
			// Serve the stale snapshot rather than failing the whole request if we have one.
			stale, _ := r.snapshot.Load()
			if stale.TableCount() == 0 {
				return workflow.RegistryState{}, err
			}
			r.logger.Warnw("Schema refresh failed, serving stale cache", "error", err)
		}
	}

	st, _ := r.snapshot.Load()
	return st, nil
}

// GetTable looks up a single table by name, case-insensitively.
func (r *Registry) GetTable(name string) (workflow.TableSchema, bool) {
	st, _ := r.snapshot.Load()
	if t, ok := st.Tables[name]; ok {
		return t, true
	}

	lower := strings.ToLower(name)
	for n, t := range st.Tables {
		if strings.ToLower(n) == lower {
			return t, true
		}
	}

	return workflow.TableSchema{}, false
}

// GetValidTables returns the sorted names of every table currently known.
func (r *Registry) GetValidTables() []string {
	st, _ := r.snapshot.Load()
	names := make([]string, 0, len(st.Tables))
	for n := range st.Tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetValidColumns returns the sorted column names of the given table, or nil if unknown.
func (r *Registry) GetValidColumns(table string) []string {
	t, ok := r.GetTable(table)
	if !ok {
		return nil
	}
	names := t.ColumnNames()
	sort.Strings(names)
	return names
}

// Refresh rediscovers schema from every configured source. Per-source failures
// are isolated: one broken source does not prevent the others' tables from
// being cached. The rebuilt table map replaces the old one atomically.
func (r *Registry) Refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	tables := map[string]workflow.TableSchema{}
	stats := map[string]int{}
	var firstErr error

	for _, src := range r.sources {
		if !src.Enabled {
			continue
		}

		discovered, err := r.discover(ctx, src)
		if err != nil {
			r.logger.Warnw("Schema discovery failed for source, skipping", "source", src.Path, "type", src.Type, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for _, t := range discovered {
			tables[t.Name] = t
		}
		stats[string(src.Type)] += len(discovered)
	}

	if len(tables) == 0 && firstErr != nil {
		return errors.Wrap(firstErr, "schema discovery failed for all sources")
	}

	now := time.Now()
	r.snapshot.Store(workflow.RegistryState{
		Tables:      tables,
		LastRefresh: &now,
		SourceStats: stats,
		IsStale:     false,
	})

	return nil
}

func (r *Registry) discover(ctx context.Context, src workflow.DataSource) ([]workflow.TableSchema, error) {
	switch src.Type {
	case workflow.SourceLocalFile, workflow.SourceObjectStore:
		return r.discoverFiles(ctx, src)
	case workflow.SourceRelational:
		return r.discoverRelational(ctx, src)
	default:
		return nil, errors.Errorf("unknown data source type %q", src.Type)
	}
}

// GetSchemaContext renders up to ContextLimit tables (or the full set, if
// fewer) as a markdown summary suitable for an LLM prompt.
func (r *Registry) GetSchemaContext(ctx context.Context) (string, error) {
	st, err := r.GetState(ctx, false)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(st.Tables))
	for n := range st.Tables {
		names = append(names, n)
	}
	sort.Strings(names)

	if len(names) > r.cfg.ContextLimit {
		names = names[:r.cfg.ContextLimit]
	}

	var b strings.Builder
	for _, name := range names {
		t := st.Tables[name]
		b.WriteString(fmt.Sprintf("## Table: %s\n", t.Name))
		if t.RowCount != nil {
			b.WriteString(fmt.Sprintf("Rows: %s\n", strconv.FormatInt(*t.RowCount, 10)))
		}
		b.WriteString("| Column | Type | Sample Values |\n|---|---|---|\n")
		for _, c := range t.Columns {
			b.WriteString(fmt.Sprintf("| %s | %s | %s |\n", c.Name, c.DataType, strings.Join(c.SampleValues, ", ")))
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}
