package llm

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
)

// structuredOutputTool is the name forced via ToolChoice whenever the caller
// needs a schema-conformant reply instead of free text.
const structuredOutputTool = "emit_structured_output"

// AnthropicClient implements Client against Anthropic's Messages API.
type AnthropicClient struct {
	cfg    Config
	client anthropic.Client
}

// NewAnthropicClient builds a Client bound to cfg.APIKey.
func NewAnthropicClient(cfg Config) *AnthropicClient {
	return &AnthropicClient{
		cfg:    cfg,
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
	}
}

// Invoke sends a single-turn completion request and returns the first text block.
func (c *AnthropicClient) Invoke(ctx context.Context, system, user string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(c.cfg.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "anthropic: message creation failed")
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", errors.New("anthropic: response contained no text block")
}

// InvokeStructured forces tool use against a single tool whose input_schema
// is schema, and unmarshals the tool call's input into out.
func (c *AnthropicClient) InvokeStructured(ctx context.Context, system, user string, schema map[string]any, out any) error {
	tool := anthropic.ToolParam{
		Name:        structuredOutputTool,
		Description: anthropic.String("Emit the final structured result for this turn."),
		InputSchema: anthropic.ToolInputSchemaParam{Properties: schema["properties"], Required: schema["required"]},
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(c.cfg.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		Tools:      []anthropic.ToolUnionParam{{OfTool: &tool}},
		ToolChoice: anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: structuredOutputTool}},
	})
	if err != nil {
		return errors.Wrap(err, "anthropic: structured message creation failed")
	}

	for _, block := range msg.Content {
		if block.Type != "tool_use" {
			continue
		}
		raw, err := block.Input.MarshalJSON()
		if err != nil {
			return errors.Wrap(err, "anthropic: can't marshal tool input")
		}
		return json.Unmarshal(raw, out)
	}

	return errors.New("anthropic: response contained no tool_use block")
}
