package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/s1v4-d/nlsql-mas/llm"
	"github.com/s1v4-d/nlsql-mas/logging"
	"github.com/s1v4-d/nlsql-mas/workflow"
)

// SQLGenerator translates a natural-language question into DuckDB SQL,
// incorporating validation feedback on retries. Grounded on the original
// system's sql_generator.py.
type SQLGenerator struct {
	client llm.Client
	logger *logging.Logger
	now    func() time.Time
}

// NewSQLGenerator constructs a SQLGenerator bound to client.
func NewSQLGenerator(client llm.Client, logger *logging.Logger) *SQLGenerator {
	return &SQLGenerator{client: client, logger: logger, now: time.Now}
}

var sqlGenerationSchema = map[string]any{
	"properties": map[string]any{
		"sql_query":   map[string]any{"type": "string"},
		"explanation": map[string]any{"type": "string"},
		"tables_used": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"columns_used": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"assumptions": map[string]any{"type": "string"},
	},
	"required": []string{"sql_query", "explanation", "tables_used"},
}

// Generate produces one SQL candidate for state.UserQuery, incrementing
// RetryCount. On LLM failure it returns an empty SQL marked invalid with
// status failed; the validator then rejects it like any other bad candidate,
// so the graph retries until MaxRetries is reached and then summarizes.
func (g *SQLGenerator) Generate(ctx context.Context, state workflow.WorkflowState) workflow.Patch {
	isRetry := state.RetryCount > 0

	g.logger.Infow("generating sql",
		"user_query", state.UserQuery,
		"thread_id", state.ThreadID,
		"retry_count", state.RetryCount,
		"is_retry", isRetry,
	)

	schemaContext := state.RefinedSchemaContext
	if schemaContext == "" {
		schemaContext = state.SchemaContext
	}

	var previousSQL string
	var validationErrors []string
	if isRetry {
		previousSQL = state.GeneratedSQL
		validationErrors = state.ValidationErrors
	}

	system, user := sqlGeneratorPrompt(state.UserQuery, schemaContext, g.now().Format("2006-01-02"), previousSQL, validationErrors)

	var result workflow.SQLGenerationResult
	retryCount := state.RetryCount + 1

	if err := g.client.InvokeStructured(ctx, system, user, sqlGenerationSchema, &result); err != nil {
		g.logger.Errorw("sql generation failed", "error", err, "retry_count", state.RetryCount)

		explanation := fmt.Sprintf("failed to generate SQL: %s", err)
		isValid := false
		status := workflow.ValidationFailed

		return workflow.Patch{
			GeneratedSQL:     stringPtr(""),
			SQLExplanation:   &explanation,
			TablesUsed:       []string{},
			RetryCount:       &retryCount,
			ValidationErrors: []string{fmt.Sprintf("SQL generation failed: %s", err)},
			SQLIsValid:       &isValid,
			ValidationStatus: &status,
		}
	}

	g.logger.Infow("sql generated",
		"tables_used", result.TablesUsed,
		"columns_used", result.ColumnsUsed,
		"retry_count", retryCount,
	)

	return workflow.Patch{
		GeneratedSQL:   &result.SQLQuery,
		SQLExplanation: &result.Explanation,
		TablesUsed:     result.TablesUsed,
		ColumnsUsed:    result.ColumnsUsed,
		RetryCount:     &retryCount,
	}
}

func stringPtr(s string) *string { return &s }
