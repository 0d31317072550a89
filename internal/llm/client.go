// Package llm defines the minimal model-client interface the engine needs
// and a Google GenAI implementation of it. The engine treats the model as an
// external collaborator: timeouts and transport concerns live here, and a
// failed call simply means no decision this tick.
package llm

import (
	"context"
)

// ToolDefinition describes a tool the model can invoke.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// Response contains text and tool calls from the model.
type Response struct {
	// Text response (may be empty if only tool calls).
	Text string `json:"text"`

	// ToolCalls requested by the model, in emission order.
	ToolCalls []ToolCall `json:"tool_calls"`
}

// Client defines the interface for model interactions.
type Client interface {
	// Complete sends a prompt and returns the text response.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// CompleteWithTools sends a prompt with tool definitions and returns the
	// response with any tool calls the model made.
	CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []ToolDefinition) (*Response, error)
}
