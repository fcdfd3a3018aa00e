// Package workflow holds the data model shared across every node of the
// natural-language-to-SQL graph: the immutable WorkflowState record, the
// patch type nodes return, and the value objects (schema, agent results)
// that flow through it. Field names and shapes are grounded on the
// original system's pydantic models (models/schema.py, models/agents.py).
package workflow

import (
	"encoding/json"
	"time"
)

// Intent classifies what the user's message is asking for.
type Intent string

const (
	IntentQuery     Intent = "query"
	IntentSummarize Intent = "summarize"
	IntentChat      Intent = "chat"
	IntentClarify   Intent = "clarify"
)

// ValidationStatus tracks where generated SQL is in the validator's pipeline.
type ValidationStatus string

const (
	ValidationPending   ValidationStatus = "pending"
	ValidationValid     ValidationStatus = "valid"
	ValidationInvalid   ValidationStatus = "invalid"
	ValidationCorrected ValidationStatus = "corrected"
	ValidationFailed    ValidationStatus = "failed"
)

// RouterDecision is the router node's structured LLM output.
type RouterDecision struct {
	Intent                 Intent  `json:"intent"`
	Confidence             float64 `json:"confidence"`
	Reasoning              string  `json:"reasoning"`
	ClarificationQuestion  string  `json:"clarification_question,omitempty"`
}

// SQLGenerationResult is the sql_generator node's structured LLM output.
type SQLGenerationResult struct {
	SQLQuery     string   `json:"sql_query"`
	Explanation  string   `json:"explanation"`
	TablesUsed   []string `json:"tables_used"`
	ColumnsUsed  []string `json:"columns_used"`
	Assumptions  string   `json:"assumptions,omitempty"`
}

// ValidationResult is the validator node's outcome for one SQL candidate.
type ValidationResult struct {
	IsValid          bool     `json:"is_valid"`
	Errors           []string `json:"errors"`
	Warnings         []string `json:"warnings"`
	CorrectedSQL     string   `json:"corrected_sql,omitempty"`
	TablesValidated  []string `json:"tables_validated"`
	ColumnsValidated []string `json:"columns_validated"`
}

// ExecutionResult is the executor node's outcome for one SQL query run.
type ExecutionResult struct {
	Success         bool             `json:"success"`
	RowCount        int              `json:"row_count"`
	Columns         []string         `json:"columns"`
	Data            []map[string]any `json:"data"`
	ExecutionTimeMs float64          `json:"execution_time_ms"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	ErrorKind       string           `json:"error_kind,omitempty"`
}

// SummarizerOutput is the summarizer node's structured LLM output.
type SummarizerOutput struct {
	Answer              string   `json:"answer"`
	Confidence          float64  `json:"confidence"`
	FollowUpSuggestions []string `json:"follow_up_suggestions,omitempty"`
}

// WorkflowState is the single immutable record threaded through every node.
// Nodes never mutate a WorkflowState in place; they return a Patch that the
// runtime merges into a fresh copy (see Patch.Apply).
type WorkflowState struct {
	ThreadID string `json:"thread_id"`
	UserQuery string `json:"user_query"`

	Intent                Intent  `json:"intent,omitempty"`
	RouterConfidence       float64 `json:"router_confidence,omitempty"`
	ClarificationQuestion  string  `json:"clarification_question,omitempty"`

	SchemaContext        string   `json:"schema_context,omitempty"`
	RefinedSchemaContext string   `json:"refined_schema_context,omitempty"`
	DiscoveredTables     []string `json:"discovered_tables,omitempty"`

	GeneratedSQL    string   `json:"generated_sql,omitempty"`
	SQLExplanation  string   `json:"sql_explanation,omitempty"`
	TablesUsed      []string `json:"tables_used,omitempty"`
	ColumnsUsed     []string `json:"columns_used,omitempty"`

	SQLIsValid       bool             `json:"sql_is_valid"`
	ValidationStatus ValidationStatus `json:"validation_status,omitempty"`
	ValidationErrors []string         `json:"validation_errors,omitempty"`
	ValidationWarnings []string       `json:"validation_warnings,omitempty"`
	RetryCount       int              `json:"retry_count"`

	ExecutionResult *ExecutionResult `json:"execution_result,omitempty"`

	FinalAnswer         string   `json:"final_answer,omitempty"`
	FollowUpSuggestions []string `json:"follow_up_suggestions,omitempty"`

	NodeVisits int       `json:"node_visits"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Clone returns a deep-enough copy of s for a node to build a Patch from
// without risking aliasing slices/maps shared with the original.
func (s WorkflowState) Clone() WorkflowState {
	c := s
	c.DiscoveredTables = append([]string(nil), s.DiscoveredTables...)
	c.TablesUsed = append([]string(nil), s.TablesUsed...)
	c.ColumnsUsed = append([]string(nil), s.ColumnsUsed...)
	c.ValidationErrors = append([]string(nil), s.ValidationErrors...)
	c.ValidationWarnings = append([]string(nil), s.ValidationWarnings...)
	c.FollowUpSuggestions = append([]string(nil), s.FollowUpSuggestions...)
	if s.ExecutionResult != nil {
		er := *s.ExecutionResult
		c.ExecutionResult = &er
	}
	return c
}

// Patch describes a partial update to a WorkflowState. Only non-nil fields
// are merged by Apply; this mirrors the original system's dict-based partial
// state updates while keeping WorkflowState itself immutable from a node's
// point of view.
type Patch struct {
	Intent                *Intent
	RouterConfidence      *float64
	ClarificationQuestion *string

	SchemaContext        *string
	RefinedSchemaContext *string
	DiscoveredTables     []string

	GeneratedSQL   *string
	SQLExplanation *string
	TablesUsed     []string
	ColumnsUsed    []string

	SQLIsValid         *bool
	ValidationStatus   *ValidationStatus
	ValidationErrors   []string
	ValidationWarnings []string
	RetryCount         *int

	ExecutionResult *ExecutionResult

	FinalAnswer         *string
	FollowUpSuggestions []string
}

// Apply merges p onto a clone of s and returns the resulting new state.
// s itself is never mutated.
func (p Patch) Apply(s WorkflowState) WorkflowState {
	next := s.Clone()

	if p.Intent != nil {
		next.Intent = *p.Intent
	}
	if p.RouterConfidence != nil {
		next.RouterConfidence = *p.RouterConfidence
	}
	if p.ClarificationQuestion != nil {
		next.ClarificationQuestion = *p.ClarificationQuestion
	}
	if p.SchemaContext != nil {
		next.SchemaContext = *p.SchemaContext
	}
	if p.RefinedSchemaContext != nil {
		next.RefinedSchemaContext = *p.RefinedSchemaContext
	}
	if p.DiscoveredTables != nil {
		next.DiscoveredTables = p.DiscoveredTables
	}
	if p.GeneratedSQL != nil {
		next.GeneratedSQL = *p.GeneratedSQL
	}
	if p.SQLExplanation != nil {
		next.SQLExplanation = *p.SQLExplanation
	}
	if p.TablesUsed != nil {
		next.TablesUsed = p.TablesUsed
	}
	if p.ColumnsUsed != nil {
		next.ColumnsUsed = p.ColumnsUsed
	}
	if p.SQLIsValid != nil {
		next.SQLIsValid = *p.SQLIsValid
	}
	if p.ValidationStatus != nil {
		next.ValidationStatus = *p.ValidationStatus
	}
	if p.ValidationErrors != nil {
		next.ValidationErrors = p.ValidationErrors
	}
	if p.ValidationWarnings != nil {
		next.ValidationWarnings = p.ValidationWarnings
	}
	if p.RetryCount != nil {
		next.RetryCount = *p.RetryCount
	}
	if p.ExecutionResult != nil {
		next.ExecutionResult = p.ExecutionResult
	}
	if p.FinalAnswer != nil {
		next.FinalAnswer = *p.FinalAnswer
	}
	if p.FollowUpSuggestions != nil {
		next.FollowUpSuggestions = p.FollowUpSuggestions
	}

	next.NodeVisits++
	next.UpdatedAt = timeNow()

	return next
}

// timeNow is a var so tests can freeze it.
var timeNow = time.Now

// ToJSON and FromJSON round-trip a WorkflowState for checkpoint storage.
func (s WorkflowState) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// FromJSON parses a checkpointed WorkflowState.
func FromJSON(data []byte) (WorkflowState, error) {
	var s WorkflowState
	err := json.Unmarshal(data, &s)
	return s, err
}
