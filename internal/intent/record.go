package intent

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Shaping is the output-shaping directive attached to a record when the tier
// is high enough to speak. Willingness and reply length are independent axes:
// a high-willingness reply can still be short.
type Shaping struct {
	// Chunks is how many messages to split the reply into.
	Chunks int

	// TargetLength is the intended reply length in characters.
	TargetLength int

	// Mention is the @-target, empty for none.
	Mention string
}

// Record is one intent evaluation outcome, appended to the per-target
// rolling window.
type Record struct {
	Timestamp time.Time

	// Idle marks ticks where no new group activity occurred since the
	// previous evaluation.
	Idle bool

	Willingness Willingness

	// Content is the model's judgment text: recap, group read, reaction,
	// and the willingness justification.
	Content string

	// Shaping is non-nil only when Willingness.WantsToSpeak().
	Shaping *Shaping
}

// Window is the bounded, per-target rolling window of intent records.
// Appends evict the oldest record once the cap is reached.
type Window struct {
	mu   sync.Mutex
	cap  int
	recs []Record
}

// NewWindow creates a window holding at most capacity records.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{cap: capacity}
}

// Append adds a record, evicting the oldest when full.
func (w *Window) Append(r Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.recs = append(w.recs, r)
	if len(w.recs) > w.cap {
		w.recs = w.recs[len(w.recs)-w.cap:]
	}
}

// Records returns a copy of the window, oldest first.
func (w *Window) Records() []Record {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Record, len(w.recs))
	copy(out, w.recs)
	return out
}

// Len returns the number of records held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.recs)
}

// Last returns the most recent record, or false when empty.
func (w *Window) Last() (Record, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.recs) == 0 {
		return Record{}, false
	}
	return w.recs[len(w.recs)-1], true
}

// Summary renders the window as prompt text: one line per record with age,
// tier, and a trimmed excerpt of the judgment.
func (w *Window) Summary(now time.Time) string {
	records := w.Records()
	if len(records) == 0 {
		return "(no prior intent history for this chat)"
	}

	var b strings.Builder
	for _, r := range records {
		age := now.Sub(r.Timestamp).Round(time.Minute)
		excerpt := r.Content
		if len(excerpt) > 200 {
			cut := 200
			for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
				cut--
			}
			excerpt = excerpt[:cut] + "..."
		}
		idle := ""
		if r.Idle {
			idle = " [idle]"
		}
		fmt.Fprintf(&b, "- %s ago%s [%s] %s\n", age, idle, r.Willingness, excerpt)
	}
	return strings.TrimRight(b.String(), "\n")
}
