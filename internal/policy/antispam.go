// Package policy implements the anti-spam / anti-domination rules keeping an
// agent from flooding a group. It is stateless: every decision is a pure
// function over the last-N-messages view the chat history already provides.
package policy

import (
	"presence/internal/logging"
	"presence/internal/social"
)

const (
	// recentWindow is how many trailing messages the suppression rule inspects.
	recentWindow = 3

	// selfLimit is the number of self-authored messages inside the window at
	// which suppression activates.
	selfLimit = 2

	// liftThreshold lifts suppression once this many messages from other
	// participants have occurred since the agent's last message.
	liftThreshold = 5
)

// ShouldSuppress reports whether the agent has been dominating the target and
// must have its willingness forced down to awaiting-response or lower.
//
// Rule: of the most recent 3 messages, 2 or more authored by the agent means
// suppression. Suppression is lifted once 5 or more other-authored messages
// have followed the agent's last message - the recent-window check is reset,
// not merely decremented.
//
// recent must be in chronological order (oldest first).
func ShouldSuppress(recent []social.Message, selfID string) bool {
	if len(recent) == 0 {
		return false
	}

	// Lift check: count other-authored messages since the agent's last one.
	lastSelf := -1
	for i := len(recent) - 1; i >= 0; i-- {
		if isSelf(recent[i], selfID) {
			lastSelf = i
			break
		}
	}
	if lastSelf == -1 {
		return false // agent hasn't spoken in view
	}
	if len(recent)-1-lastSelf >= liftThreshold {
		return false
	}

	// Window check: >=2 self-authored among the last 3.
	start := len(recent) - recentWindow
	if start < 0 {
		start = 0
	}
	selfCount := 0
	for _, m := range recent[start:] {
		if isSelf(m, selfID) {
			selfCount++
		}
	}

	suppress := selfCount >= selfLimit
	if suppress {
		logging.Policy("suppression active for %s: %d/%d recent messages self-authored",
			selfID, selfCount, len(recent[start:]))
	}
	return suppress
}

func isSelf(m social.Message, selfID string) bool {
	return m.FromSelf || m.SenderID == selfID
}
