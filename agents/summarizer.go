package agents

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/s1v4-d/nlsql-mas/llm"
	"github.com/s1v4-d/nlsql-mas/logging"
	"github.com/s1v4-d/nlsql-mas/workflow"
)

// Summarizer turns a query result, an error, or a chat turn into a
// user-facing narrative. Grounded on the original system's summarizer.py,
// including its four-branch prompt selection and deterministic fallback.
type Summarizer struct {
	client llm.Client
	logger *logging.Logger
}

// NewSummarizer constructs a Summarizer bound to client.
func NewSummarizer(client llm.Client, logger *logging.Logger) *Summarizer {
	return &Summarizer{client: client, logger: logger}
}

const sampleRowLimit = 20

// Summarize narrates state's execution result (or, for chat intent, just
// responds conversationally) and returns a Patch carrying FinalAnswer.
func (s *Summarizer) Summarize(ctx context.Context, state workflow.WorkflowState) workflow.Patch {
	hasError := state.ExecutionResult != nil && !state.ExecutionResult.Success
	isChat := state.Intent == workflow.IntentChat

	rowCount := 0
	var sampleJSON string
	if state.ExecutionResult != nil && state.ExecutionResult.Success {
		rowCount = state.ExecutionResult.RowCount
		rows := state.ExecutionResult.Data
		if len(rows) > sampleRowLimit {
			rows = rows[:sampleRowLimit]
		}
		if raw, err := json.Marshal(rows); err == nil {
			sampleJSON = string(raw)
		}
	}

	s.logger.Infow("summarizing results",
		"user_query", state.UserQuery,
		"row_count", rowCount,
		"has_error", hasError,
		"intent", state.Intent,
		"thread_id", state.ThreadID,
	)

	system, user := summarizerPrompt(state.UserQuery, hasError, rowCount, sampleJSON, isChat)

	answer, err := s.client.Invoke(ctx, system, user)
	if err != nil || answer == "" {
		s.logger.Errorw("summarizer invocation failed", "error", err, "thread_id", state.ThreadID)
		fallback := fallbackAnswer(state, hasError, rowCount, isChat)
		return workflow.Patch{FinalAnswer: &fallback}
	}

	return workflow.Patch{FinalAnswer: &answer}
}

func fallbackAnswer(state workflow.WorkflowState, hasError bool, rowCount int, isChat bool) string {
	switch {
	case hasError:
		return "I encountered an issue processing your request. Could you try rephrasing your question?"
	case rowCount > 0:
		suffix := "s"
		if rowCount == 1 {
			suffix = ""
		}
		return "I found " + strconv.Itoa(rowCount) + " result" + suffix + " for your query. Please review the data below."
	case isChat:
		return "Hello! I'm your retail insights assistant. I can help you analyze sales data, orders, and more. What would you like to know?"
	default:
		return "I wasn't able to find any matching data for your query. Try asking about sales, orders, products, or shipping information."
	}
}
