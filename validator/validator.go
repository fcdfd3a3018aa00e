// Package validator enforces that LLM-generated SQL is read-only,
// schema-conformant, and resource-capped before it ever reaches the
// executor. Grounded on the original system's agents/nodes/validator.py.
package validator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dolthub/vitess/go/vt/sqlparser"
	"github.com/s1v4-d/nlsql-mas/workflow"
)

// SchemaLookup is the subset of the schema registry the validator needs.
// Satisfied by *registry.Registry; kept as an interface so tests can supply
// a fixed in-memory schema without standing up a real registry.
type SchemaLookup interface {
	GetValidTables() []string
	GetValidColumns(table string) []string
}

// Config bounds the validator's behavior.
type Config struct {
	MaxRetries  int `yaml:"max_retries" env:"MAX_RETRIES" default:"3"`
	DefaultLimit int `yaml:"default_limit" env:"DEFAULT_LIMIT" default:"100"`
	MaxLimit     int `yaml:"max_limit" env:"MAX_LIMIT" default:"1000"`
}

// dangerousKeywords are matched as whole words against the raw SQL text by
// checkSecurity, after the text has parsed as a read statement, as
// defense-in-depth for write keywords the parsed statement type does not show.
var dangerousKeywords = []string{
	"insert", "update", "delete", "drop", "create", "alter", "truncate",
	"grant", "revoke", "attach", "detach", "copy", "exec", "execute", "call",
	"pragma", "vacuum", "merge", "replace",
}

// Validator runs the parse -> security -> select-only -> table/column ->
// limit pipeline against one generated SQL candidate.
type Validator struct {
	cfg Config
	reg SchemaLookup
}

// New constructs a Validator bound to a schema registry for table/column checks.
func New(cfg Config, reg SchemaLookup) *Validator {
	return &Validator{cfg: cfg, reg: reg}
}

// Validate runs the full pipeline and returns a ValidationResult. It never
// returns a Go error for SQL-shaped problems — those become ValidationResult.Errors;
// a Go error is reserved for infrastructure failures (e.g. the registry being unreachable).
func (v *Validator) Validate(ctx context.Context, sql string, retryCount int) (workflow.ValidationResult, error) {
	result := workflow.ValidationResult{}

	// Stage 1: retry-budget check.
	if retryCount > v.cfg.MaxRetries {
		result.Errors = append(result.Errors, fmt.Sprintf("exceeded maximum retry attempts (%d)", v.cfg.MaxRetries))
		return result, nil
	}

	// Stage 2: presence check.
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		result.Errors = append(result.Errors, "no SQL query was generated")
		return result, nil
	}

	// Stage 3: dialect-aware parse.
	stmt, err := sqlparser.Parse(trimmed)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("SQL does not parse: %s", err))
		return result, nil
	}

	// Stage 4: security / statement-type block list.
	if errs := checkSecurity(trimmed, stmt); len(errs) > 0 {
		result.Errors = append(result.Errors, errs...)
		return result, nil
	}

	// Stage 5: SELECT-only enforcement.
	selectStmt, errs := checkSelectOnly(stmt)
	if len(errs) > 0 {
		result.Errors = append(result.Errors, errs...)
		return result, nil
	}

	tablesUsed, aliasedCols := extractTablesAndAliases(selectStmt)

	// Stage 6: table existence.
	tableErrs := v.checkTables(tablesUsed)
	result.Errors = append(result.Errors, tableErrs...)

	// Stage 7: column existence.
	colErrs := v.checkColumns(selectStmt, tablesUsed, aliasedCols)
	result.Errors = append(result.Errors, colErrs...)

	if len(result.Errors) > 0 {
		return result, nil
	}

	// Stage 8: LIMIT enforcement/rewrite.
	corrected, warning := v.enforceLimit(trimmed, selectStmt)
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}

	result.IsValid = true
	result.CorrectedSQL = corrected
	result.TablesValidated = tablesUsed
	result.ColumnsValidated = sortedKeys(aliasedCols)

	return result, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
