package agents

import (
	"context"

	"github.com/s1v4-d/nlsql-mas/llm"
	"github.com/s1v4-d/nlsql-mas/logging"
	"github.com/s1v4-d/nlsql-mas/workflow"
)

// SchemaSource gives the schema-discovery node access to the full schema
// text and the list of valid table names produced by the registry, without
// depending on its concrete type.
type SchemaSource interface {
	GetSchemaContext(ctx context.Context) (string, error)
	GetValidTables() []string
}

// SchemaDiscovery narrows the full schema catalog down to the tables
// relevant to one user question, grounded on the original system's
// schema_discovery.py tool-calling loop. The original drove an LLM tool
// loop (get_table_schema, sample_column_values, ...) turn by turn; this
// port collapses that into a single structured-output call over the full
// catalog, since the registry already holds every table's schema text and
// no further tool round-trip is needed to retrieve it.
type SchemaDiscovery struct {
	client llm.Client
	schema SchemaSource
	logger *logging.Logger
}

// NewSchemaDiscovery constructs a SchemaDiscovery bound to client and schema.
func NewSchemaDiscovery(client llm.Client, schema SchemaSource, logger *logging.Logger) *SchemaDiscovery {
	return &SchemaDiscovery{client: client, schema: schema, logger: logger}
}

var schemaDiscoverySchema = map[string]any{
	"properties": map[string]any{
		"relevant_tables": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"schema_summary":  map[string]any{"type": "string"},
		"reasoning":       map[string]any{"type": "string"},
	},
	"required": []string{"relevant_tables", "schema_summary"},
}

type schemaDiscoveryResult struct {
	RelevantTables []string `json:"relevant_tables"`
	SchemaSummary  string   `json:"schema_summary"`
	Reasoning      string   `json:"reasoning"`
}

// Discover narrows the schema for state.UserQuery. On failure it falls back
// to the full, unrefined schema context, matching the original's
// schema_discovery_no_tools_used fallback.
func (d *SchemaDiscovery) Discover(ctx context.Context, state workflow.WorkflowState) workflow.Patch {
	d.logger.Infow("schema discovery started", "user_query", state.UserQuery, "thread_id", state.ThreadID)

	fullContext, err := d.schema.GetSchemaContext(ctx)
	if err != nil {
		d.logger.Errorw("schema discovery can't load catalog", "error", err)
		return workflow.Patch{RefinedSchemaContext: &state.SchemaContext}
	}

	system, user := schemaDiscoveryPrompt(state.UserQuery, fullContext)

	var result schemaDiscoveryResult
	if err := d.client.InvokeStructured(ctx, system, user, schemaDiscoverySchema, &result); err != nil {
		d.logger.Warnw("schema discovery invocation failed; using full catalog", "error", err)
		return workflow.Patch{RefinedSchemaContext: &fullContext}
	}

	refined := result.SchemaSummary
	if refined == "" {
		refined = fullContext
	}

	d.logger.Infow("schema discovery complete", "relevant_tables", result.RelevantTables)

	return workflow.Patch{
		RefinedSchemaContext: &refined,
		DiscoveredTables:     dedupe(result.RelevantTables),
	}
}

func dedupe(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
