package workflow

import "time"

// SourceType identifies which kind of backing store a TableSchema came from.
type SourceType string

const (
	SourceLocalFile    SourceType = "local_file"
	SourceObjectStore  SourceType = "object_store"
	SourceRelational   SourceType = "relational"
)

// ColumnSchema describes a single column discovered in a table.
type ColumnSchema struct {
	Name         string   `json:"name"`
	DataType     string   `json:"data_type"`
	Nullable     bool     `json:"nullable"`
	Description  string   `json:"description,omitempty"`
	SampleValues []string `json:"sample_values,omitempty"`
}

// TableSchema describes one discovered table, regardless of source kind.
type TableSchema struct {
	Name         string         `json:"name"`
	SourceType   SourceType     `json:"source_type"`
	SourcePath   string         `json:"source_path"`
	Columns      []ColumnSchema `json:"columns"`
	RowCount     *int64         `json:"row_count,omitempty"`
	LastModified *time.Time     `json:"last_modified,omitempty"`
	FileFormat   string         `json:"file_format,omitempty"`
}

// ColumnNames returns the names of every column in the table.
func (t TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name, case-sensitively (callers normalize case beforehand).
func (t TableSchema) Column(name string) (ColumnSchema, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSchema{}, false
}

// DataSource configures one schema-discoverable location.
type DataSource struct {
	Type        SourceType `yaml:"type" json:"type"`
	Path        string     `yaml:"path" json:"path"`
	FilePattern string     `yaml:"file_pattern" json:"file_pattern" default:"*.parquet"`
	Enabled     bool       `yaml:"enabled" json:"enabled" default:"true"`
}

// RegistryState is a point-in-time snapshot of the schema registry's contents.
type RegistryState struct {
	Tables      map[string]TableSchema `json:"tables"`
	LastRefresh *time.Time             `json:"last_refresh,omitempty"`
	SourceStats map[string]int         `json:"source_stats"`
	IsStale     bool                   `json:"is_stale"`
}

// TableCount returns the number of tables currently known to the registry.
func (s RegistryState) TableCount() int {
	return len(s.Tables)
}

// TablesBySource returns every table discovered from the given source type.
func (s RegistryState) TablesBySource(t SourceType) []TableSchema {
	var out []TableSchema
	for _, tbl := range s.Tables {
		if tbl.SourceType == t {
			out = append(out, tbl)
		}
	}
	return out
}
