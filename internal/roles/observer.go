package roles

import (
	"context"
	"fmt"

	"presence/internal/memory"
	"presence/internal/social"
	"presence/internal/tools"
)

// registerObserverTools wires the note-keeping tools. Observer is the only
// role that may write the group profile or the social memory.
func registerObserverTools(reg *tools.Registry, agent social.Agent, target social.Target, deps Deps) {
	registerTierTools(reg, deps, agent.ID, tierToolOpts{
		prefix: "social",
		path:   memory.SocialMemoryPath,
		label:  "cross-group social memory (people notes, NOT group-specific facts)",
	})

	if target.Kind == social.TargetGroup {
		registerTierTools(reg, deps, agent.ID, tierToolOpts{
			prefix: "group_rule",
			path:   memory.GroupRulePath(target.ID),
			label:  fmt.Sprintf("group profile for %q", target.Name),
		})
	}
}

type tierToolOpts struct {
	// prefix names the tool family, e.g. "social" yields social_read,
	// social_write and social_edit.
	prefix string
	path   string
	label  string
}

func registerTierTools(reg *tools.Registry, deps Deps, agentID string, opts tierToolOpts) {
	reg.MustRegister(&tools.Tool{
		Name:        opts.prefix + "_read",
		Description: fmt.Sprintf("Read the current %s.", opts.label),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			content, err := deps.Memory.ReadOrEmpty(agentID, opts.path)
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
		Name:        opts.prefix + "_write",
		Description: fmt.Sprintf("Overwrite the %s with new content. Prefer %s_edit for small changes.", opts.label, opts.prefix),
		Mutating:    true,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			content, _ := args["content"].(string)
			res, err := deps.Memory.Write(ctx, agentID, opts.path, content)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("wrote %d bytes", res.Bytes), nil
		},
		Schema: tools.ToolSchema{
			Required: []string{"content"},
			Properties: map[string]tools.Property{
				"content": {Type: "string", Description: "The full replacement content."},
			},
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        opts.prefix + "_edit",
		Description: fmt.Sprintf("Replace one exact occurrence of old_text with new_text in the %s.", opts.label),
		Mutating:    true,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			oldText, _ := args["old_text"].(string)
			newText, _ := args["new_text"].(string)
			res, err := deps.Memory.Edit(ctx, agentID, opts.path, oldText, newText)
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
}
