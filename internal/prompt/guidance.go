package prompt

import (
	"fmt"

	"presence/internal/memory"
)

// consolidateThreshold is the fill ratio past which the model is told to
// prune before adding more.
const consolidateThreshold = 0.8

// guidanceFor picks the guidance policy for a writable tier from its current
// length relative to the tier cap.
func guidanceFor(length, max int) Policy {
	switch {
	case length == 0:
		return PolicyCreate
	case memory.FillRatio(length, max) > consolidateThreshold:
		return PolicyConsolidate
	default:
		return PolicyEdit
	}
}

// guidanceText renders the instruction appended after a writable tier's raw
// content. tierName is how the prompt refers to the tier ("group profile",
// "social memory").
func guidanceText(p Policy, tierName string, length, max int) string {
	switch p {
	case PolicyCreate:
		return fmt.Sprintf(
			"This %s is empty. When you notice something worth keeping, create an initial entry (max %d characters).",
			tierName, max)
	case PolicyConsolidate:
		return fmt.Sprintf(
			"This %s is at %d of %d characters. Consolidate and prune it before adding anything new - merge duplicates, drop stale entries.",
			tierName, length, max)
	default:
		return fmt.Sprintf(
			"Keep this %s current with small, targeted edits when new noteworthy information appears. Do not rewrite it wholesale (max %d characters).",
			tierName, max)
	}
}

// readOnlyText renders the reference note appended for roles that may not
// write a tier.
func readOnlyText(tierName string) string {
	return fmt.Sprintf("This %s is read-only reference for you. Another process maintains it.", tierName)
}

// isolationReminder is always appended to the group profile section for the
// writing role: group-specific facts stay here, cross-group facts go to
// social memory, never both.
const isolationReminder = "Scope rule: facts specific to THIS chat (its topics, members, in-jokes, taboos) " +
	"belong here and only here. Facts that hold across all chats belong in social memory instead. " +
	"Never record the same fact in both places."
