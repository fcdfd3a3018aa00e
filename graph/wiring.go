package graph

import (
	"context"

	"github.com/s1v4-d/nlsql-mas/agents"
	"github.com/s1v4-d/nlsql-mas/executor"
	"github.com/s1v4-d/nlsql-mas/registry"
	"github.com/s1v4-d/nlsql-mas/validator"
	"github.com/s1v4-d/nlsql-mas/workflow"
)

// BuildNodes adapts the concrete agent/validator/executor implementations
// into the Node signature this package's runtime expects. Splitting this
// out of Graph itself keeps the runtime's control flow (Run, next) testable
// against fake nodes without constructing a real LLM client or DuckDB engine.
func BuildNodes(router *agents.Router, schemaDiscovery *agents.SchemaDiscovery, sqlGenerator *agents.SQLGenerator, v *validator.Validator, reg *registry.Registry, exec *executor.Executor, summarizer *agents.Summarizer) map[NodeName]Node {
	return map[NodeName]Node{
		NodeRouter: func(ctx context.Context, state workflow.WorkflowState) (workflow.Patch, error) {
			return router.Route(ctx, state), nil
		},
		NodeSchemaDiscovery: func(ctx context.Context, state workflow.WorkflowState) (workflow.Patch, error) {
			return schemaDiscovery.Discover(ctx, state), nil
		},
		NodeSQLGenerator: func(ctx context.Context, state workflow.WorkflowState) (workflow.Patch, error) {
			return sqlGenerator.Generate(ctx, state), nil
		},
		NodeValidator: func(ctx context.Context, state workflow.WorkflowState) (workflow.Patch, error) {
			result, err := v.Validate(ctx, state.GeneratedSQL, state.RetryCount)
			if err != nil {
				return workflow.Patch{}, err
			}

			isValid := result.IsValid
			status := workflow.ValidationInvalid
			switch {
			case result.IsValid && result.CorrectedSQL != state.GeneratedSQL:
				status = workflow.ValidationCorrected
			case result.IsValid:
				status = workflow.ValidationValid
			}

			patch := workflow.Patch{
				SQLIsValid:         &isValid,
				ValidationStatus:   &status,
				ValidationErrors:   result.Errors,
				ValidationWarnings: result.Warnings,
			}
			if result.IsValid {
				corrected := result.CorrectedSQL
				patch.GeneratedSQL = &corrected
			}
			return patch, nil
		},
		NodeExecutor: func(ctx context.Context, state workflow.WorkflowState) (workflow.Patch, error) {
			result, err := exec.Execute(ctx, state.GeneratedSQL)
			if err != nil {
				return workflow.Patch{}, err
			}
			return workflow.Patch{ExecutionResult: &result}, nil
		},
		NodeSummarizer: func(ctx context.Context, state workflow.WorkflowState) (workflow.Patch, error) {
			return summarizer.Summarize(ctx, state), nil
		},
	}
}
