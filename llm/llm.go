// Package llm provides the narrow completion contract the agent nodes need
// — plain-text and tool-forced structured invocation — and a concrete
// binding onto Anthropic's Messages API. Keeping the contract as an
// interface lets graph/agents tests run against a fake instead of a live
// API, the same DI pattern used for validator.SchemaLookup.
package llm

import "context"

// Client is the completion contract agent nodes depend on.
type Client interface {
	// Invoke returns the model's free-form text reply to user under system.
	Invoke(ctx context.Context, system, user string) (string, error)

	// InvokeStructured forces the model to produce output conforming to
	// schema (a JSON Schema document) and unmarshals it into out.
	InvokeStructured(ctx context.Context, system, user string, schema map[string]any, out any) error
}

// Config controls the concrete Anthropic binding.
type Config struct {
	APIKey      string  `yaml:"-" env:"ANTHROPIC_API_KEY"`
	Model       string  `yaml:"model" env:"MODEL" default:"claude-sonnet-4-5"`
	MaxTokens   int     `yaml:"max_tokens" env:"MAX_TOKENS" default:"4096"`
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE" default:"0"`
}
