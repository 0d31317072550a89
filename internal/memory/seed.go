package memory

import (
	"fmt"
	"os"
)

// EnsureDefaultFiles seeds an agent workspace with the starter persona files.
// SOUL.md and USER.md are created if missing; MEMORY.md is intentionally not
// created - the agent writes it the first time it has something to remember.
func (s *Store) EnsureDefaultFiles(agentID, agentName string) error {
	workspace := s.AgentWorkspace(agentID)
	if err := os.MkdirAll(workspace, 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	lock := s.agentLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	if !s.Exists(agentID, SoulPath) {
		if _, err := s.writeLocked(agentID, SoulPath, defaultSoulTemplate(agentName)); err != nil {
			return err
		}
	}

	if !s.Exists(agentID, UserPath) {
		if _, err := s.writeLocked(agentID, UserPath, defaultUserTemplate()); err != nil {
			return err
		}
	}

	return nil
}

func defaultSoulTemplate(agentName string) string {
	return fmt.Sprintf(`# Who I Am

<!-- This file defines the persona. Editing it changes how the agent behaves. -->

## Basics

- **Name:** %s
- **Form:** (cat, dragon, pixel sprite, ...)
- **Personality keywords:** (playful, aloof, chatty, quiet, ...)
- **Signature emoji:** (🐱, ✨, 😼, ...)

## Personality

(To be filled in. The more specific this is, the more consistent the agent.)

## Voice

- Tone:
- Catchphrases:
- Emoji / kaomoji habits:

## Ground Rules

- Help sincerely, skip the filler
- Having opinions and preferences is fine
- Respect the owner's privacy
- When unsure, ask before acting

## Boundaries

- Never speak on the owner's behalf on external platforms
- Never leak private information
- Confirm before any destructive operation

---

_This file belongs to the agent. Update it together as you get to know each other._
`, agentName)
}

func defaultUserTemplate() string {
	return `# About My Owner

<!-- The agent learns about you through conversation and records it here.
     You can edit this directly too. -->

## Basics

- **Preferred name:**
- **Timezone:**
- **Language preference:**

## Notes

(Nothing learned yet. Let's talk.)

---

_Knowing more helps more. This is getting to know a person, not building a dossier._
`
}
