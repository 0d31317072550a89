package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes its input",
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			s, _ := args["text"].(string)
			return s, nil
		},
		Schema: ToolSchema{
			Required: []string{"text"},
			Properties: map[string]Property{
				"text": {Type: "string", Description: "Text to echo."},
			},
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(echoTool("echo")))
	assert.True(t, r.Has("echo"))
	assert.Equal(t, 1, r.Count())

	t.Run("duplicate rejected", func(t *testing.T) {
		err := r.Register(echoTool("echo"))
		assert.ErrorIs(t, err, ErrToolAlreadyRegistered)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		bad := echoTool("")
		assert.ErrorIs(t, r.Register(bad), ErrToolNameEmpty)
	})

	t.Run("nil execute rejected", func(t *testing.T) {
		bad := echoTool("broken")
		bad.Execute = nil
		assert.ErrorIs(t, r.Register(bad), ErrToolExecuteNil)
	})
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("echo"))
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		res, err := r.Execute(ctx, "echo", map[string]any{"text": "hi"})
		require.NoError(t, err)
		assert.True(t, res.IsSuccess())
		assert.Equal(t, "hi", res.Result)
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := r.Execute(ctx, "nope", nil)
		assert.ErrorIs(t, err, ErrToolNotFound)
	})

	t.Run("missing required arg", func(t *testing.T) {
		res, err := r.Execute(ctx, "echo", map[string]any{})
		assert.ErrorIs(t, err, ErrMissingRequiredArg)
		require.NotNil(t, res)
		assert.False(t, res.IsSuccess())
	})

	t.Run("tool error propagates", func(t *testing.T) {
		r.MustRegister(&Tool{
			Name: "fail",
			Execute: func(context.Context, map[string]any) (string, error) {
				return "", fmt.Errorf("boom")
			},
		})
		res, err := r.Execute(ctx, "fail", nil)
		assert.Error(t, err)
		assert.Error(t, res.Error)
	})
}

func TestRegistry_AllSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.MustRegister(echoTool(name))
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Name)
}

func TestToolSchema_InputSchema(t *testing.T) {
	s := ToolSchema{
		Required: []string{"items"},
		Properties: map[string]Property{
			"items": {Type: "array", Description: "ids", Items: &PropertyItems{Type: "string"}},
			"limit": {Type: "integer", Description: "max results", Default: 10},
		},
	}

	rendered := s.InputSchema()
	assert.Equal(t, "object", rendered["type"])
	assert.Equal(t, []string{"items"}, rendered["required"])

	props, ok := rendered["properties"].(map[string]any)
	require.True(t, ok)

	items, ok := props["items"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"type": "string"}, items["items"])

	limit, ok := props["limit"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 10, limit["default"])

	t.Run("nil required renders as empty list", func(t *testing.T) {
		empty := ToolSchema{}.InputSchema()
		assert.Equal(t, []string{}, empty["required"])
	})
}
