package roles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"presence/internal/memory"
	"presence/internal/social"
	"presence/internal/tools"
)

// registerReplyTools wires the outbound-send tool and the read-only lookups
// the reply role is allowed. The group profile and social memory are prompt
// context here, not tools: only Observer may touch them.
func registerReplyTools(reg *tools.Registry, agent social.Agent, target social.Target, deps Deps) {
	// One send per evaluation. The closure lives only for this toolset, so
	// the guard resets naturally on the next tick.
	sent := false

	reg.MustRegister(&tools.Tool{
		Name:        "send_message",
		Description: "Send your reply to the current chat. Call this exactly once; merge everything you want to say into one call.",
		Mutating:    true,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			if sent {
				return "", fmt.Errorf("send_message already called this turn; merge content into a single call")
			}
			content, _ := args["content"].(string)
			if strings.TrimSpace(content) == "" {
				return "", fmt.Errorf("content must not be empty")
			}
			chunks := intArg(args, "num_chunks", 1)
			if chunks < 1 {
				chunks = 1
			}
			if err := deps.Sender.SendMessage(ctx, target, content, chunks); err != nil {
				return "", fmt.Errorf("send failed: %w", err)
			}
			sent = true
			return "message sent", nil
		},
		Schema: tools.ToolSchema{
			Required: []string{"content"},
			Properties: map[string]tools.Property{
				"content":    {Type: "string", Description: "The message to send."},
				"num_chunks": {Type: "integer", Description: "Split the message into this many separate chat bubbles.", Default: 1},
			},
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "reply_strategy_read",
		Description: "Read your current reply strategy notes.",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			content, err := deps.Memory.ReadOrEmpty(agent.ID, memory.ReplyStrategyPath)
			if err != nil {
				return "", err
			}
			if content == "" {
				return "(empty)", nil
			}
			return content, nil
		},
		Schema: tools.ToolSchema{Properties: map[string]tools.Property{}},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "reply_strategy_edit",
		Description: "Replace one exact occurrence of old_text with new_text in your reply strategy notes.",
		Mutating:    true,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			if !agent.CanEditStrategy {
				return "", fmt.Errorf("%w: strategy editing is disabled for this agent", memory.ErrPermissionDenied)
			}
			oldText, _ := args["old_text"].(string)
			newText, _ := args["new_text"].(string)
			res, err := deps.Memory.Edit(ctx, agent.ID, memory.ReplyStrategyPath, oldText, newText)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("edited, now %d bytes", res.Bytes), nil
		},
		Schema: tools.ToolSchema{
			Required: []string{"old_text", "new_text"},
			Properties: map[string]tools.Property{
				"old_text": {Type: "string", Description: "Exact text to replace. Must match exactly once."},
				"new_text": {Type: "string", Description: "Replacement text."},
			},
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "group_log_list",
		Description: "List the other groups you keep profile notes on.",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			ids, err := listGroupProfiles(deps.Memory, agent.ID)
			if err != nil {
				return "", err
			}
			var others []string
			for _, id := range ids {
				if id != target.ID {
					others = append(others, id)
				}
			}
			if len(others) == 0 {
				return "(no other group profiles)", nil
			}
			return strings.Join(others, "\n"), nil
		},
		Schema: tools.ToolSchema{Properties: map[string]tools.Property{}},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "group_log_read",
		Description: "Read your profile notes for other groups, optionally filtered to lines containing a query.",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			targets := stringSliceArg(args, "targets")
			if len(targets) == 0 {
				return "", fmt.Errorf("targets must name at least one group id")
			}
			query, _ := args["query"].(string)

			var b strings.Builder
			for _, id := range targets {
				content, err := deps.Memory.ReadOrEmpty(agent.ID, memory.GroupRulePath(id))
				if err != nil {
					return "", err
				}
				if query != "" {
					content = filterLines(content, query)
				}
				if content == "" {
					content = "(empty)"
				}
				fmt.Fprintf(&b, "### Group %s\n%s\n\n", id, content)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
		Schema: tools.ToolSchema{
			Required: []string{"targets"},
			Properties: map[string]tools.Property{
				"targets": {Type: "array", Description: "Group ids to read.", Items: &tools.PropertyItems{Type: "string"}},
				"query":   {Type: "string", Description: "Keep only lines containing this text."},
			},
		},
	})
}

// listGroupProfiles scans the agent's social directory for group profile
// files and returns the target ids they cover.
func listGroupProfiles(store *memory.Store, agentID string) ([]string, error) {
	dir := filepath.Join(store.AgentWorkspace(agentID), "social")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "GROUP_RULE_") || !strings.HasSuffix(name, ".md") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, "GROUP_RULE_"), ".md"))
	}
	return ids, nil
}

func filterLines(content, query string) string {
	var kept []string
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, query) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
