package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"presence/internal/logging"
)

// GenAIClient talks to Google's Gemini API.
type GenAIClient struct {
	client *genai.Client
	model  string
}

// NewGenAIClient creates a new Gemini-backed client.
func NewGenAIClient(apiKey, model string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{
		client: client,
		model:  model,
	}, nil
}

// Complete sends a prompt and returns the text response.
func (c *GenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	timer := logging.StartTimer(logging.CategoryAPI, fmt.Sprintf("complete model=%s", c.model))
	defer timer.Stop()

	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt, genai.RoleUser),
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("GenAI completion failed: %w", err)
	}

	return result.Text(), nil
}

// CompleteWithTools sends a prompt with tool definitions and returns the
// response with any tool calls the model made.
func (c *GenAIClient) CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []ToolDefinition) (*Response, error) {
	timer := logging.StartTimer(logging.CategoryAPI, fmt.Sprintf("complete_with_tools model=%s tools=%d", c.model, len(tools)))
	defer timer.Stop()

	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: t.InputSchema,
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("GenAI completion failed: %w", err)
	}

	resp := &Response{Text: result.Text()}
	for _, fc := range result.FunctionCalls() {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:    fc.ID,
			Name:  fc.Name,
			Input: fc.Args,
		})
	}

	logging.API("model=%s text_len=%d tool_calls=%d", c.model, len(resp.Text), len(resp.ToolCalls))
	return resp, nil
}

// Model returns the configured model name.
func (c *GenAIClient) Model() string {
	return c.model
}
