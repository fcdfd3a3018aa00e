package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/s1v4-d/nlsql-mas/llm"
	"github.com/s1v4-d/nlsql-mas/logging"
	"github.com/s1v4-d/nlsql-mas/workflow"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewLogger(zaptest.NewLogger(t).Sugar(), time.Second)
}

type erroringClient struct{}

func (erroringClient) Invoke(context.Context, string, string) (string, error) {
	return "", errors.New("boom")
}
func (erroringClient) InvokeStructured(context.Context, string, string, map[string]any, any) error {
	return errors.New("boom")
}

func TestRouter_HappyPath(t *testing.T) {
	fake := &llm.FakeClient{StructuredResponses: []any{
		map[string]any{"intent": "query", "confidence": 0.95, "reasoning": "clear data request"},
	}}
	router := NewRouter(fake, testLogger(t))

	patch := router.Route(context.Background(), workflow.WorkflowState{UserQuery: "total sales last month"})
	require.NotNil(t, patch.Intent)
	assert.Equal(t, workflow.IntentQuery, *patch.Intent)
	assert.InDelta(t, 0.95, *patch.RouterConfidence, 0.0001)
}

func TestRouter_FallsBackToQueryOnError(t *testing.T) {
	router := NewRouter(erroringClient{}, testLogger(t))

	patch := router.Route(context.Background(), workflow.WorkflowState{UserQuery: "anything"})
	require.NotNil(t, patch.Intent)
	assert.Equal(t, workflow.IntentQuery, *patch.Intent)
	assert.InDelta(t, 0.5, *patch.RouterConfidence, 0.0001)
}

type fakeSchemaSource struct {
	context string
	tables  []string
	err     error
}

func (f fakeSchemaSource) GetSchemaContext(context.Context) (string, error) { return f.context, f.err }
func (f fakeSchemaSource) GetValidTables() []string                        { return f.tables }

func TestSchemaDiscovery_NarrowsToRelevantTables(t *testing.T) {
	fake := &llm.FakeClient{StructuredResponses: []any{
		map[string]any{
			"relevant_tables": []string{"amazon_sales"},
			"schema_summary":  "Table: amazon_sales (Amount, Category)",
			"reasoning":       "only sales data is needed",
		},
	}}
	src := fakeSchemaSource{context: "Table: amazon_sales (...)\nTable: customers (...)", tables: []string{"amazon_sales", "customers"}}
	disc := NewSchemaDiscovery(fake, src, testLogger(t))

	patch := disc.Discover(context.Background(), workflow.WorkflowState{UserQuery: "total sales"})
	assert.Equal(t, []string{"amazon_sales"}, patch.DiscoveredTables)
	require.NotNil(t, patch.RefinedSchemaContext)
	assert.Contains(t, *patch.RefinedSchemaContext, "amazon_sales")
}

func TestSchemaDiscovery_FallsBackToFullCatalogOnError(t *testing.T) {
	src := fakeSchemaSource{context: "Table: amazon_sales (...)"}
	disc := NewSchemaDiscovery(erroringClient{}, src, testLogger(t))

	patch := disc.Discover(context.Background(), workflow.WorkflowState{UserQuery: "total sales"})
	require.NotNil(t, patch.RefinedSchemaContext)
	assert.Equal(t, "Table: amazon_sales (...)", *patch.RefinedSchemaContext)
}

func TestSQLGenerator_HappyPath(t *testing.T) {
	fake := &llm.FakeClient{StructuredResponses: []any{
		map[string]any{
			"sql_query":   "SELECT SUM(Amount) FROM amazon_sales",
			"explanation": "sums the amount column",
			"tables_used": []string{"amazon_sales"},
		},
	}}
	gen := NewSQLGenerator(fake, testLogger(t))

	patch := gen.Generate(context.Background(), workflow.WorkflowState{UserQuery: "total sales", SchemaContext: "Table: amazon_sales (Amount)"})
	require.NotNil(t, patch.GeneratedSQL)
	assert.Equal(t, "SELECT SUM(Amount) FROM amazon_sales", *patch.GeneratedSQL)
	require.NotNil(t, patch.RetryCount)
	assert.Equal(t, 1, *patch.RetryCount)
}

func TestSQLGenerator_FailureProducesInvalidFailedPatch(t *testing.T) {
	gen := NewSQLGenerator(erroringClient{}, testLogger(t))

	patch := gen.Generate(context.Background(), workflow.WorkflowState{UserQuery: "total sales", RetryCount: 1})
	require.NotNil(t, patch.SQLIsValid)
	assert.False(t, *patch.SQLIsValid)
	require.NotNil(t, patch.ValidationStatus)
	assert.Equal(t, workflow.ValidationFailed, *patch.ValidationStatus)
	require.NotNil(t, patch.RetryCount)
	assert.Equal(t, 2, *patch.RetryCount)
}

func TestSummarizer_DataBranch(t *testing.T) {
	fake := &llm.FakeClient{TextResponses: []string{"Total sales were $123,456."}}
	s := NewSummarizer(fake, testLogger(t))

	state := workflow.WorkflowState{
		UserQuery: "total sales",
		ExecutionResult: &workflow.ExecutionResult{
			Success:  true,
			RowCount: 1,
			Columns:  []string{"total"},
			Data:     []map[string]any{{"total": 123456}},
		},
	}

	patch := s.Summarize(context.Background(), state)
	require.NotNil(t, patch.FinalAnswer)
	assert.Equal(t, "Total sales were $123,456.", *patch.FinalAnswer)
}

func TestSummarizer_FallsBackOnInvocationFailure(t *testing.T) {
	s := NewSummarizer(erroringClient{}, testLogger(t))

	state := workflow.WorkflowState{
		UserQuery: "total sales",
		ExecutionResult: &workflow.ExecutionResult{
			Success: false, ErrorKind: "schema_error", ErrorMessage: "table not found",
		},
	}

	patch := s.Summarize(context.Background(), state)
	require.NotNil(t, patch.FinalAnswer)
	assert.Contains(t, *patch.FinalAnswer, "issue processing your request")
}

func TestSummarizer_ChatFallback(t *testing.T) {
	s := NewSummarizer(erroringClient{}, testLogger(t))

	state := workflow.WorkflowState{UserQuery: "hello", Intent: workflow.IntentChat}
	patch := s.Summarize(context.Background(), state)
	require.NotNil(t, patch.FinalAnswer)
	assert.Contains(t, *patch.FinalAnswer, "retail insights assistant")
}
