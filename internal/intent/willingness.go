// Package intent implements the willingness machinery: the six-level
// willingness scale, the per-target rolling window of intent records, and the
// parser that turns a model's structured judgment into a record.
package intent

import (
	"fmt"
	"strings"
)

// Willingness is the six-level ordinal expressing how much the agent wants to
// respond. Ordering matters: comparisons use the numeric value.
type Willingness int

const (
	// Reject - actively does not want to speak.
	Reject Willingness = iota
	// Indifferent - nothing worth reacting to.
	Indifferent
	// AwaitingResponse - said something, waiting to see if anyone replies.
	AwaitingResponse
	// MildlyInclined - has something worth saying.
	MildlyInclined
	// Eager - really wants to join in.
	Eager
	// Irresistible - cannot stay silent.
	Irresistible
)

var willingnessNames = map[Willingness]string{
	Reject:           "reject",
	Indifferent:      "indifferent",
	AwaitingResponse: "awaiting-response",
	MildlyInclined:   "mildly-inclined",
	Eager:            "eager",
	Irresistible:     "irresistible",
}

func (w Willingness) String() string {
	if name, ok := willingnessNames[w]; ok {
		return name
	}
	return fmt.Sprintf("willingness(%d)", int(w))
}

// WantsToSpeak reports whether the tier is high enough to carry an
// output-shaping directive.
func (w Willingness) WantsToSpeak() bool {
	return w >= MildlyInclined
}

// Clamp returns the lower of w and max.
func (w Willingness) Clamp(max Willingness) Willingness {
	if w > max {
		return max
	}
	return w
}

// ParseWillingness maps a label to its tier. Unknown labels return an error;
// callers treat that as no decision rather than guessing a tier.
func ParseWillingness(label string) (Willingness, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for w, name := range willingnessNames {
		if normalized == name {
			return w, nil
		}
	}
	return Reject, fmt.Errorf("%w: %q", ErrUnknownWillingness, label)
}

// AllWillingness lists the tiers in ascending order, for prompt text.
func AllWillingness() []Willingness {
	return []Willingness{Reject, Indifferent, AwaitingResponse, MildlyInclined, Eager, Irresistible}
}
