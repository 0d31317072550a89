// Package roles builds the per-role tool surfaces.
//
// Each evaluation constructs a fresh toolset for exactly one role, so a write
// tool can never reach a role that is not permitted to use it. Role
// restrictions are enforced structurally here; capability flags (such as
// reply-strategy editing) are checked before any I/O and fail with
// ErrPermissionDenied.
package roles

import (
	"context"
	"fmt"
	"strings"

	"presence/internal/history"
	"presence/internal/logging"
	"presence/internal/memory"
	"presence/internal/social"
	"presence/internal/tools"
)

// Sender delivers outbound chat messages. The chat-platform connector
// implements this; target and target type are filled in by the engine, never
// by the model.
type Sender interface {
	SendMessage(ctx context.Context, target social.Target, content string, numChunks int) error
}

// Deps carries the services the toolsets operate on.
type Deps struct {
	Memory  *memory.Store
	History *history.Store
	Sender  Sender
}

// Toolset is the tool surface for one role evaluation.
type Toolset struct {
	Registry *tools.Registry

	// Notes is the prompt text describing the available tools.
	Notes string
}

// Build constructs the toolset for the given role, agent and target.
func Build(role social.Role, agent social.Agent, target social.Target, deps Deps) (*Toolset, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	reg := tools.NewRegistry()

	switch role {
	case social.RoleObserver:
		registerObserverTools(reg, agent, target, deps)
	case social.RoleIntent:
		// Intent is strictly read-only. It gets the shared history tools
		// below and nothing else.
	case social.RoleReply:
		registerReplyTools(reg, agent, target, deps)
	}

	// History search and daily digests are available to every role.
	registerHistoryTools(reg, target, deps)

	logging.Roles("toolset built: agent=%s target=%s role=%s tools=%v",
		agent.ID, target.ID, role, reg.Names())

	return &Toolset{
		Registry: reg,
		Notes:    renderNotes(reg),
	}, nil
}

// renderNotes produces the tool listing included in the prompt.
func renderNotes(reg *tools.Registry) string {
	all := reg.All()
	if len(all) == 0 {
		return "No tools are available in this role."
	}

	var b strings.Builder
	for _, t := range all {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
