package social

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RosterEntry pairs one agent with the targets it watches.
type RosterEntry struct {
	Agent   Agent    `yaml:"agent"`
	Targets []Target `yaml:"targets"`
}

// Roster is the persisted set of agents and their targets.
type Roster struct {
	Entries []RosterEntry `yaml:"entries"`
}

// LoadRoster reads a roster file. A missing file yields an empty roster.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Roster{}, nil
		}
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	return &r, nil
}

// Save writes the roster file, creating parent directories as needed.
func (r *Roster) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create roster directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal roster: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Find returns the entry for an agent id, or nil.
func (r *Roster) Find(agentID string) *RosterEntry {
	for i := range r.Entries {
		if r.Entries[i].Agent.ID == agentID {
			return &r.Entries[i]
		}
	}
	return nil
}

// FindByName returns the entry whose agent name matches, or nil.
func (r *Roster) FindByName(name string) *RosterEntry {
	for i := range r.Entries {
		if r.Entries[i].Agent.Name == name {
			return &r.Entries[i]
		}
	}
	return nil
}

// AddAgent appends a new agent with no targets. Duplicate names are
// rejected.
func (r *Roster) AddAgent(agent Agent) error {
	if r.FindByName(agent.Name) != nil {
		return fmt.Errorf("agent named %q already exists", agent.Name)
	}
	r.Entries = append(r.Entries, RosterEntry{Agent: agent})
	return nil
}

// AddTarget attaches a target to an agent.
func (r *Roster) AddTarget(agentID string, target Target) error {
	entry := r.Find(agentID)
	if entry == nil {
		return fmt.Errorf("no agent with id %s", agentID)
	}
	for _, t := range entry.Targets {
		if t.ID == target.ID {
			return fmt.Errorf("agent %s already watches target %s", agentID, target.ID)
		}
	}
	entry.Targets = append(entry.Targets, target)
	return nil
}
