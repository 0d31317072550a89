package prompt

import (
	"fmt"
	"time"
	"unicode/utf8"

	"presence/internal/config"
	"presence/internal/identity"
	"presence/internal/logging"
	"presence/internal/memory"
	"presence/internal/social"
)

// Section titles, in document order.
const (
	SectionFormat        = "Format"
	SectionTime          = "Current Time"
	SectionPersona       = "Persona"
	SectionOwnerProfile  = "Owner Profile"
	SectionLongTerm      = "Long-Term Memory"
	SectionSocialMemory  = "Social Memory"
	SectionMessageFormat = "Message Format"
	SectionOwnerRules    = "Owner Identity"
	SectionPersonaNotes  = "Persona Notes"
	SectionRole          = "Role Instructions"
	SectionReplyStrategy = "Reply Strategy"
	SectionTools         = "Tools"
)

// GroupProfileTitle returns the per-target group profile section title.
// Each target gets its own section; profiles are never merged across targets.
func GroupProfileTitle(target social.Target) string {
	return fmt.Sprintf("Group Profile: %s", target.Name)
}

// Input carries everything Assemble needs. The clock is injected so the
// rendered document is a pure function of its input.
type Input struct {
	Agent  social.Agent
	Target social.Target
	Role   social.Role
	Lurk   social.LurkMode

	Scheme  identity.DelimiterScheme
	Session *identity.Session

	Now time.Time

	// SinceLastEvalMin feeds the intent role instructions.
	SinceLastEvalMin int

	// IntentSummary is the rendered rolling-window summary, intent role only.
	IntentSummary string

	// ToolNotes is the role-specific tool availability text supplied by the
	// active toolset.
	ToolNotes string
}

// Assembler builds prompt documents from the memory store and configuration.
type Assembler struct {
	store  *memory.Store
	limits config.LimitsConfig
}

// NewAssembler creates an assembler over the given store and tier limits.
func NewAssembler(store *memory.Store, limits config.LimitsConfig) *Assembler {
	return &Assembler{store: store, limits: limits}
}

// Assemble produces the ordered prompt document for one role evaluation.
// Given identical store contents and input, the output is byte-identical.
func (a *Assembler) Assemble(in Input) (*Document, error) {
	timer := logging.StartTimer(logging.CategoryPrompt, "Assembler.Assemble")
	defer timer.Stop()

	agentID := in.Agent.ID
	doc := &Document{}

	// 1. Format constraints
	doc.Add(Section{Title: SectionFormat, Body: formatConstraints, Policy: PolicyStatic})

	// 2. Current time
	doc.Add(Section{
		Title:  SectionTime,
		Body:   in.Now.Format("2006-01-02 15:04 Monday"),
		Policy: PolicyStatic,
	})

	// 3. Persona (Soul)
	soul, err := a.store.ReadOrEmpty(agentID, memory.SoulPath)
	if err != nil {
		return nil, err
	}
	if soul == "" {
		soul = "(none set)"
	}
	doc.Add(Section{
		Title:  SectionPersona,
		Body:   truncate(soul, a.limits.SoulMax),
		Policy: PolicyStatic,
	})

	// 4. Owner profile, only if non-empty
	owner, err := a.store.ReadOrEmpty(agentID, memory.UserPath)
	if err != nil {
		return nil, err
	}
	doc.Add(Section{Title: SectionOwnerProfile, Body: owner, Policy: PolicyReadOnly})

	// 5. Long-term memory, only if non-empty
	longTerm, err := a.store.ReadOrEmpty(agentID, memory.LongTermPath)
	if err != nil {
		return nil, err
	}
	doc.Add(Section{Title: SectionLongTerm, Body: longTerm, Policy: PolicyReadOnly})

	// 6. Group profile for this target
	groupSection, err := a.groupProfileSection(in)
	if err != nil {
		return nil, err
	}
	doc.Add(groupSection)

	// 7. Social memory (agent-global)
	socialSection, err := a.socialMemorySection(in)
	if err != nil {
		return nil, err
	}
	doc.Add(socialSection)

	// 8. Message-format explanation, only when a scheme is configured
	if in.Scheme.Configured() {
		doc.Add(Section{Title: SectionMessageFormat, Body: messageFormatText(in.Scheme), Policy: PolicyStatic})
	}

	// 9. Owner-identity rules, only when an owner is configured
	if in.Session != nil && in.Session.Owner().Configured() {
		doc.Add(Section{Title: SectionOwnerRules, Body: ownerIdentityText(in.Session), Policy: PolicyStatic})
	}

	// 10. Role-specific persona addendum from configuration
	doc.Add(Section{Title: SectionPersonaNotes, Body: in.Agent.PersonaAddendum, Policy: PolicyStatic})

	// 11. Role instructions
	role := roleInstructions(in.Role, in.Lurk, in.SinceLastEvalMin)
	if in.Role == social.RoleIntent && in.IntentSummary != "" {
		role += "\n\nYour recent evaluations of this chat:\n" + in.IntentSummary
	}
	doc.Add(Section{Title: SectionRole, Body: role, Policy: PolicyStatic})

	// 12. Reply strategy, reply role only
	if in.Role == social.RoleReply {
		strategySection, err := a.replyStrategySection(in)
		if err != nil {
			return nil, err
		}
		doc.Add(strategySection)
	}

	// 13. Tool availability
	doc.Add(Section{Title: SectionTools, Body: in.ToolNotes, Policy: PolicyStatic})

	return doc, nil
}

// groupProfileSection builds section 6. The Observer gets write guidance plus
// the isolation reminder; every other role sees the profile as read-only
// reference.
func (a *Assembler) groupProfileSection(in Input) (Section, error) {
	content, err := a.store.ReadOrEmpty(in.Agent.ID, memory.GroupRulePath(in.Target.ID))
	if err != nil {
		return Section{}, err
	}

	max := a.limits.GroupRuleMax
	title := GroupProfileTitle(in.Target)

	if in.Role != social.RoleObserver {
		if content == "" {
			content = "(no profile recorded yet)"
		}
		return Section{
			Title:  title,
			Body:   truncate(content, max) + "\n\n" + readOnlyText("group profile"),
			Policy: PolicyReadOnly,
		}, nil
	}

	policy := guidanceFor(len(content), max)
	body := truncate(content, max)
	if body != "" {
		body += "\n\n"
	}
	body += guidanceText(policy, "group profile", len(content), max)
	body += "\n\n" + isolationReminder

	return Section{Title: title, Body: body, Policy: policy}, nil
}

// socialMemorySection builds section 7, with the same writer/reader split.
func (a *Assembler) socialMemorySection(in Input) (Section, error) {
	content, err := a.store.ReadOrEmpty(in.Agent.ID, memory.SocialMemoryPath)
	if err != nil {
		return Section{}, err
	}

	max := a.limits.SocialMemoryMax

	if in.Role != social.RoleObserver {
		if content == "" {
			content = "(no social memory recorded yet)"
		}
		return Section{
			Title:  SectionSocialMemory,
			Body:   truncate(content, max) + "\n\n" + readOnlyText("social memory"),
			Policy: PolicyReadOnly,
		}, nil
	}

	policy := guidanceFor(len(content), max)
	body := truncate(content, max)
	if body != "" {
		body += "\n\n"
	}
	body += guidanceText(policy, "social memory", len(content), max)

	return Section{Title: SectionSocialMemory, Body: body, Policy: policy}, nil
}

// replyStrategySection builds section 12. Without the edit capability the
// stored strategy (or the built-in default) is read-only.
func (a *Assembler) replyStrategySection(in Input) (Section, error) {
	content, err := a.store.ReadOrEmpty(in.Agent.ID, memory.ReplyStrategyPath)
	if err != nil {
		return Section{}, err
	}

	if !in.Agent.CanEditStrategy {
		if content == "" {
			content = defaultReplyStrategy
		}
		return Section{
			Title:  SectionReplyStrategy,
			Body:   truncate(content, a.limits.ReplyStrategyMax) + "\n\n" + readOnlyText("reply strategy"),
			Policy: PolicyReadOnly,
		}, nil
	}

	if content == "" {
		content = defaultReplyStrategy
	}
	body := truncate(content, a.limits.ReplyStrategyMax) +
		"\n\nYou may refine this strategy with reply_strategy_edit when you learn what works in practice."

	return Section{Title: SectionReplyStrategy, Body: body, Policy: PolicyEdit}, nil
}

// truncate cuts s at max bytes without splitting a UTF-8 rune. Zero or
// negative max means no cap.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
