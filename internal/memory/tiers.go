package memory

import "fmt"

// Well-known workspace paths. Each agent workspace holds the persona tiers
// at fixed locations; per-target observations live under social/.
const (
	SoulPath          = "SOUL.md"
	UserPath          = "USER.md"
	LongTermPath      = "MEMORY.md"
	SocialMemoryPath  = "social/SOCIAL_MEMORY.md"
	ReplyStrategyPath = "social/REPLY_STRATEGY.md"
)

// GroupRulePath returns the GroupProfile path for a target.
func GroupRulePath(targetID string) string {
	return fmt.Sprintf("social/GROUP_RULE_%s.md", targetID)
}

// IsSoulPath reports whether the path addresses the Soul tier, whose writes
// require owner confirmation.
func IsSoulPath(path string) bool {
	return path == SoulPath
}

// FillRatio returns length/max, the basis for the assembler's guidance tiers.
// Returns 0 for non-positive max.
func FillRatio(length, max int) float64 {
	if max <= 0 {
		return 0
	}
	return float64(length) / float64(max)
}
