// Package social defines the shared domain types of the presence engine:
// agents, targets, roles, lurk modes, and chat messages. Kept free of
// dependencies so every subsystem can import it.
package social

import "time"

// Role selects which variant of the engine runs for a tick.
type Role string

const (
	// RoleObserver records group observations; its only side effects are
	// GroupProfile/SocialMemory writes. It can never send messages.
	RoleObserver Role = "observer"

	// RoleIntent decides willingness; read-only against all memory tiers.
	RoleIntent Role = "intent"

	// RoleReply speaks; exposes exactly one outbound send tool and treats
	// all memory tiers as read-only context.
	RoleReply Role = "reply"
)

// Valid reports whether the role is one of the three engine roles.
func (r Role) Valid() bool {
	switch r {
	case RoleObserver, RoleIntent, RoleReply:
		return true
	}
	return false
}

// LurkMode governs whether and when the agent may actually speak.
type LurkMode string

const (
	// LurkNormal: the agent may speak proactively on any relevant topic.
	LurkNormal LurkMode = "normal"

	// LurkSemi: replies are suppressed unless the agent is directly addressed.
	LurkSemi LurkMode = "semi-lurk"

	// LurkFull: no replies are ever issued; evaluation still runs for
	// observation and bookkeeping.
	LurkFull LurkMode = "full-lurk"
)

// TargetKind distinguishes group chats from direct peers.
type TargetKind string

const (
	TargetGroup  TargetKind = "group"
	TargetDirect TargetKind = "direct"
)

// Target identifies a chat scope the agent observes.
type Target struct {
	ID   string     `yaml:"id"`
	Name string     `yaml:"name"`
	Kind TargetKind `yaml:"kind"`
}

// Agent is an AI persona with its own memory workspace.
type Agent struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// CanEditStrategy gates reply_strategy_edit; without it a built-in
	// default strategy is used.
	CanEditStrategy bool `yaml:"can_edit_strategy"`

	// PersonaAddendum is optional free text appended to the persona section,
	// supplied by configuration.
	PersonaAddendum string `yaml:"persona_addendum"`

	// LurkModes maps target IDs to their lurk mode; absent targets default
	// to LurkNormal.
	LurkModes map[string]LurkMode `yaml:"lurk_modes"`

	// Disabled stops scheduling new evaluations for all targets.
	Disabled bool `yaml:"disabled"`
}

// LurkModeFor returns the lurk mode for a target, defaulting to LurkNormal.
func (a Agent) LurkModeFor(targetID string) LurkMode {
	if m, ok := a.LurkModes[targetID]; ok && m != "" {
		return m
	}
	return LurkNormal
}

// Message is one chat message as seen by the engine. ID is the
// connector-assigned message id and is treated as opaque.
type Message struct {
	ID         string
	TargetID   string
	SenderID   string
	SenderName string
	Content    string
	Timestamp  time.Time

	// FromSelf marks messages the agent itself sent.
	FromSelf bool
}
