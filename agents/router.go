// Package agents implements the LLM-backed workflow nodes: router, schema
// discovery, SQL generator, and summarizer. Each is grounded on the
// corresponding node in the original system's agents/nodes package, ported
// from a LangChain/structured-output call into the llm.Client contract.
package agents

import (
	"context"

	"github.com/s1v4-d/nlsql-mas/llm"
	"github.com/s1v4-d/nlsql-mas/logging"
	"github.com/s1v4-d/nlsql-mas/workflow"
)

// Router classifies user intent to pick a workflow path.
type Router struct {
	client llm.Client
	logger *logging.Logger
}

// NewRouter constructs a Router bound to client.
func NewRouter(client llm.Client, logger *logging.Logger) *Router {
	return &Router{client: client, logger: logger}
}

var routerSchema = map[string]any{
	"properties": map[string]any{
		"intent":                 map[string]any{"type": "string", "enum": []string{"query", "summarize", "chat", "clarify"}},
		"confidence":             map[string]any{"type": "number"},
		"reasoning":              map[string]any{"type": "string"},
		"clarification_question": map[string]any{"type": "string"},
	},
	"required": []string{"intent", "confidence", "reasoning"},
}

// Route classifies state.UserQuery and returns a Patch carrying the decision.
// On LLM failure it degrades to Intent query at confidence 0.5, matching the
// original router's except-branch fallback.
func (r *Router) Route(ctx context.Context, state workflow.WorkflowState) workflow.Patch {
	r.logger.Infow("routing query", "user_query", state.UserQuery, "thread_id", state.ThreadID)

	system, user := routerPrompt(state.UserQuery, state.DiscoveredTables)

	var decision workflow.RouterDecision
	if err := r.client.InvokeStructured(ctx, system, user, routerSchema, &decision); err != nil {
		r.logger.Errorw("router invocation failed", "error", err)
		intent := workflow.IntentQuery
		confidence := 0.5
		return workflow.Patch{Intent: &intent, RouterConfidence: &confidence}
	}

	r.logger.Infow("router decision",
		"intent", decision.Intent,
		"confidence", decision.Confidence,
		"reasoning", decision.Reasoning,
	)

	patch := workflow.Patch{
		Intent:           &decision.Intent,
		RouterConfidence: &decision.Confidence,
	}
	if decision.ClarificationQuestion != "" {
		q := decision.ClarificationQuestion
		patch.ClarificationQuestion = &q
	}
	return patch
}
