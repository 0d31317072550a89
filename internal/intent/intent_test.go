package intent

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWillingness(t *testing.T) {
	cases := map[string]Willingness{
		"reject":            Reject,
		"indifferent":       Indifferent,
		"awaiting-response": AwaitingResponse,
		"mildly-inclined":   MildlyInclined,
		"eager":             Eager,
		"irresistible":      Irresistible,
		"  EAGER  ":         Eager,
	}
	for label, want := range cases {
		got, err := ParseWillingness(label)
		require.NoError(t, err, label)
		assert.Equal(t, want, got, label)
	}

	_, err := ParseWillingness("enthusiastic")
	assert.ErrorIs(t, err, ErrUnknownWillingness)
}

func TestWillingness_Ordering(t *testing.T) {
	tiers := AllWillingness()
	for i := 1; i < len(tiers); i++ {
		assert.Less(t, int(tiers[i-1]), int(tiers[i]))
	}

	assert.False(t, AwaitingResponse.WantsToSpeak())
	assert.True(t, MildlyInclined.WantsToSpeak())
	assert.Equal(t, AwaitingResponse, Eager.Clamp(AwaitingResponse))
	assert.Equal(t, Indifferent, Indifferent.Clamp(AwaitingResponse))
}

const sampleJudgment = `RECAP: I asked about the release schedule; nobody answered.
GROUP: Mood is relaxed, topic drifted to weekend plans, pace is slow.
REACTION: I was wrong that the release was this week. I want to correct myself.
WILLINGNESS: eager | the correction matters and the topic is still warm
CHUNKS: 2
LENGTH: 140
MENTION: none`

func TestParseJudgment(t *testing.T) {
	j, err := ParseJudgment(sampleJudgment)
	require.NoError(t, err)

	assert.Contains(t, j.Recap, "release schedule")
	assert.Contains(t, j.Group, "relaxed")
	assert.Contains(t, j.Reaction, "correct myself")
	assert.Equal(t, Eager, j.Willingness)
	assert.Equal(t, "the correction matters and the topic is still warm", j.Justification)

	require.NotNil(t, j.Shaping)
	assert.Equal(t, 2, j.Shaping.Chunks)
	assert.Equal(t, 140, j.Shaping.TargetLength)
	assert.Empty(t, j.Shaping.Mention)
}

func TestParseJudgment_MultilineValues(t *testing.T) {
	raw := "RECAP: line one\ncontinued line\nGROUP: fine\nREACTION: fine\nWILLINGNESS: indifferent | nothing new"
	j, err := ParseJudgment(raw)
	require.NoError(t, err)
	assert.Contains(t, j.Recap, "continued line")
	assert.Equal(t, Indifferent, j.Willingness)
	assert.Nil(t, j.Shaping)
}

func TestParseJudgment_MissingParts(t *testing.T) {
	_, err := ParseJudgment("WILLINGNESS: eager")
	assert.ErrorIs(t, err, ErrMalformedJudgment)

	_, err = ParseJudgment("RECAP: a\nGROUP: b\nREACTION: c")
	assert.ErrorIs(t, err, ErrMalformedJudgment)
}

func TestParseJudgment_LowTierHasNoShaping(t *testing.T) {
	raw := "RECAP: a\nGROUP: b\nREACTION: c\nWILLINGNESS: indifferent | quiet\nCHUNKS: 3\nLENGTH: 500"
	j, err := ParseJudgment(raw)
	require.NoError(t, err)
	assert.Nil(t, j.Shaping)
}

func TestParseJudgment_ShapingDefaults(t *testing.T) {
	raw := "RECAP: a\nGROUP: b\nREACTION: c\nWILLINGNESS: irresistible | must answer"
	j, err := ParseJudgment(raw)
	require.NoError(t, err)
	require.NotNil(t, j.Shaping)
	assert.Equal(t, 1, j.Shaping.Chunks)
	assert.Equal(t, 80, j.Shaping.TargetLength)

	raw += "\nMENTION: alice"
	j, err = ParseJudgment(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", j.Shaping.Mention)
}

func TestEvaluator_SuppressionClamp(t *testing.T) {
	e := NewEvaluator()
	now := time.Now()

	t.Run("clamped when suppressed", func(t *testing.T) {
		rec, err := e.Evaluate(sampleJudgment, true, false, now)
		require.NoError(t, err)
		assert.Equal(t, AwaitingResponse, rec.Willingness)
		assert.Nil(t, rec.Shaping, "clamped record must not carry shaping")
	})

	t.Run("untouched when not suppressed", func(t *testing.T) {
		rec, err := e.Evaluate(sampleJudgment, false, false, now)
		require.NoError(t, err)
		assert.Equal(t, Eager, rec.Willingness)
		require.NotNil(t, rec.Shaping)
		assert.Equal(t, 2, rec.Shaping.Chunks)
	})

	t.Run("low tiers pass through suppression", func(t *testing.T) {
		raw := "RECAP: a\nGROUP: b\nREACTION: c\nWILLINGNESS: reject | nope"
		rec, err := e.Evaluate(raw, true, true, now)
		require.NoError(t, err)
		assert.Equal(t, Reject, rec.Willingness)
		assert.True(t, rec.Idle)
	})
}

func TestWindow_RollingEviction(t *testing.T) {
	w := NewWindow(3)

	for i := 0; i < 5; i++ {
		w.Append(Record{Content: fmt.Sprintf("rec-%d", i), Timestamp: time.Now()})
	}

	recs := w.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "rec-2", recs[0].Content)
	assert.Equal(t, "rec-4", recs[2].Content)

	last, ok := w.Last()
	require.True(t, ok)
	assert.Equal(t, "rec-4", last.Content)
}

func TestWindow_Summary(t *testing.T) {
	now := time.Now()

	t.Run("empty window", func(t *testing.T) {
		w := NewWindow(5)
		assert.Contains(t, w.Summary(now), "no prior intent history")
	})

	t.Run("renders tier and idle flag", func(t *testing.T) {
		w := NewWindow(5)
		w.Append(Record{
			Timestamp:   now.Add(-10 * time.Minute),
			Idle:        true,
			Willingness: Indifferent,
			Content:     "nothing going on",
		})
		s := w.Summary(now)
		assert.Contains(t, s, "[indifferent]")
		assert.Contains(t, s, "[idle]")
		assert.Contains(t, s, "10m")
	})

	t.Run("long multibyte content trims on a rune boundary", func(t *testing.T) {
		w := NewWindow(5)
		w.Append(Record{
			Timestamp:   now.Add(-time.Minute),
			Willingness: Eager,
			// 70 three-byte runes is 210 bytes; byte 200 lands mid-rune.
			Content: strings.Repeat("群", 70),
		})
		s := w.Summary(now)
		assert.True(t, utf8.ValidString(s))
		assert.Contains(t, s, "...")
	})
}
