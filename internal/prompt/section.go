// Package prompt builds the ordered, bounded context document handed to the
// language model. A Document is an ordered list of typed sections assembled
// by a single deterministic renderer: given identical memory contents, target,
// role, and configuration, the rendered output is byte-identical.
package prompt

import (
	"strings"
)

// Policy names the guidance policy applied to a section. It exists so tests
// can assert on the policy mechanically instead of grepping body text.
type Policy string

const (
	// PolicyStatic - fixed or caller-supplied text, no guidance appended.
	PolicyStatic Policy = "static"

	// PolicyCreate - tier is empty; the model is told to create an entry.
	PolicyCreate Policy = "create"

	// PolicyEdit - tier has room; the model is told to make targeted edits.
	PolicyEdit Policy = "edit"

	// PolicyConsolidate - tier is past 80% of its cap; the model is told to
	// consolidate before adding more.
	PolicyConsolidate Policy = "consolidate"

	// PolicyReadOnly - tier is presented as reference the active role may
	// not write.
	PolicyReadOnly Policy = "read-only"
)

// Section is one ordered unit of the prompt document.
type Section struct {
	Title  string
	Body   string
	Policy Policy
}

// Document is an ordered list of sections.
type Document struct {
	Sections []Section
}

// Add appends a section. Sections with empty bodies are dropped.
func (d *Document) Add(s Section) {
	if strings.TrimSpace(s.Body) == "" {
		return
	}
	d.Sections = append(d.Sections, s)
}

// Section returns the section with the given title, or false.
func (d *Document) Section(title string) (Section, bool) {
	for _, s := range d.Sections {
		if s.Title == title {
			return s, true
		}
	}
	return Section{}, false
}

// Render concatenates the sections into the final prompt string.
// Rendering is pure: no randomness, no clock reads.
func (d *Document) Render() string {
	parts := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		var b strings.Builder
		b.WriteString("## ")
		b.WriteString(s.Title)
		b.WriteString("\n\n")
		b.WriteString(strings.TrimRight(s.Body, "\n"))
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n")
}
