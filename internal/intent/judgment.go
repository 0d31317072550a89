package intent

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"presence/internal/logging"
)

// Judgment tags. Role instructions require the model to emit these, in this
// order, one per line (values may continue onto following lines until the
// next tag).
const (
	tagRecap       = "RECAP:"
	tagGroup       = "GROUP:"
	tagReaction    = "REACTION:"
	tagWillingness = "WILLINGNESS:"
	tagChunks      = "CHUNKS:"
	tagLength      = "LENGTH:"
	tagMention     = "MENTION:"
)

// Judgment is the parsed form of the model's structured intent output.
type Judgment struct {
	// Recap of what the agent said previously and whether anyone responded.
	Recap string

	// Group is the objective read of the group's mood/topic/pace.
	Group string

	// Reaction is the subjective part: what the agent wants to do, including
	// self-correction when it was previously wrong.
	Reaction string

	// Willingness tier plus its free-text justification.
	Willingness   Willingness
	Justification string

	// Shaping is non-nil when the model emitted the output-shaping tags.
	Shaping *Shaping
}

// ParseJudgment parses a model response into a Judgment. The first four
// parts are mandatory; shaping tags are only expected at tiers that speak.
func ParseJudgment(raw string) (*Judgment, error) {
	fields := splitTagged(raw)

	recap, ok := fields[tagRecap]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedJudgment, tagRecap)
	}
	group, ok := fields[tagGroup]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedJudgment, tagGroup)
	}
	reaction, ok := fields[tagReaction]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedJudgment, tagReaction)
	}
	will, ok := fields[tagWillingness]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedJudgment, tagWillingness)
	}

	label, justification := will, ""
	if idx := strings.Index(will, "|"); idx >= 0 {
		label = will[:idx]
		justification = strings.TrimSpace(will[idx+1:])
	}

	tier, err := ParseWillingness(label)
	if err != nil {
		return nil, err
	}

	j := &Judgment{
		Recap:         recap,
		Group:         group,
		Reaction:      reaction,
		Willingness:   tier,
		Justification: justification,
	}

	if tier.WantsToSpeak() {
		j.Shaping = parseShaping(fields)
	}

	return j, nil
}

// parseShaping extracts the output-shaping directive, applying defaults for
// anything the model left out.
func parseShaping(fields map[string]string) *Shaping {
	s := &Shaping{Chunks: 1, TargetLength: 80}

	if v, ok := fields[tagChunks]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			s.Chunks = n
		}
	}
	if v, ok := fields[tagLength]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			s.TargetLength = n
		}
	}
	if v, ok := fields[tagMention]; ok {
		v = strings.TrimSpace(v)
		if v != "" && !strings.EqualFold(v, "none") {
			s.Mention = v
		}
	}
	return s
}

// splitTagged splits raw text into tag -> value, where a value runs until the
// next recognized tag line.
func splitTagged(raw string) map[string]string {
	tags := []string{tagRecap, tagGroup, tagReaction, tagWillingness, tagChunks, tagLength, tagMention}

	fields := make(map[string]string)
	current := ""
	var buf strings.Builder

	flush := func() {
		if current != "" {
			fields[current] = strings.TrimSpace(buf.String())
			buf.Reset()
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		matched := false
		for _, tag := range tags {
			if strings.HasPrefix(trimmed, tag) {
				flush()
				current = tag
				buf.WriteString(strings.TrimSpace(strings.TrimPrefix(trimmed, tag)))
				matched = true
				break
			}
		}
		if !matched && current != "" {
			buf.WriteString("\n")
			buf.WriteString(line)
		}
	}
	flush()

	return fields
}

// Content renders the judgment parts back into the record text stored in the
// rolling window.
func (j *Judgment) Content() string {
	var b strings.Builder
	fmt.Fprintf(&b, "recap: %s\n", j.Recap)
	fmt.Fprintf(&b, "group: %s\n", j.Group)
	fmt.Fprintf(&b, "reaction: %s\n", j.Reaction)
	fmt.Fprintf(&b, "willingness: %s", j.Willingness)
	if j.Justification != "" {
		fmt.Fprintf(&b, " (%s)", j.Justification)
	}
	return b.String()
}

// Evaluator turns parsed judgments into intent records, applying the
// anti-spam clamp.
type Evaluator struct{}

// NewEvaluator creates an evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate converts a raw model response into a Record. When suppressed is
// true the willingness tier is forced down to awaiting-response or lower and
// any shaping directive is dropped. idle marks ticks without new activity.
func (e *Evaluator) Evaluate(raw string, suppressed, idle bool, now time.Time) (Record, error) {
	j, err := ParseJudgment(raw)
	if err != nil {
		return Record{}, err
	}

	tier := j.Willingness
	if suppressed {
		clamped := tier.Clamp(AwaitingResponse)
		if clamped != tier {
			logging.Intent("anti-spam clamp: %s -> %s", tier, clamped)
		}
		tier = clamped
	}

	rec := Record{
		Timestamp:   now,
		Idle:        idle,
		Willingness: tier,
		Content:     j.Content(),
	}
	if tier.WantsToSpeak() {
		rec.Shaping = j.Shaping
	}
	return rec, nil
}
