package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/social"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *Store, target, sender, content string, at time.Time) {
	t.Helper()
	_, err := s.Append(social.Message{
		TargetID:   target,
		SenderID:   sender,
		SenderName: sender,
		Content:    content,
		Timestamp:  at,
		FromSelf:   sender == "agent-1",
	})
	require.NoError(t, err)
}

func TestStore_AppendRecent(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, content := range []string{"one", "two", "three", "four"} {
		seed(t, s, "g1", "u1", content, base.Add(time.Duration(i)*time.Minute))
	}
	seed(t, s, "g2", "u9", "other group", base)

	msgs, err := s.Recent("g1", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	// Chronological order, most recent three.
	assert.Equal(t, "two", msgs[0].Content)
	assert.Equal(t, "four", msgs[2].Content)
	assert.Equal(t, "g1", msgs[0].TargetID)
}

func TestStore_PreservesConnectorMessageID(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Append(social.Message{
		ID:        "7f3a2d9e-4b61-4c08-9d15-0a6c8e572b44",
		TargetID:  "g1",
		SenderID:  "u1",
		Content:   "hello",
		Timestamp: base,
	})
	require.NoError(t, err)

	msgs, err := s.Recent("g1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "7f3a2d9e-4b61-4c08-9d15-0a6c8e572b44", msgs[0].ID)

	found, err := s.Search("g1", "hello", base.Add(-time.Minute), time.Time{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "7f3a2d9e-4b61-4c08-9d15-0a6c8e572b44", found[0].ID)
}

func TestStore_Search(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	seed(t, s, "g1", "u1", "we should deploy tomorrow", base)
	seed(t, s, "g1", "u2", "deploy is risky on fridays", base.Add(time.Hour))
	seed(t, s, "g1", "u3", "lunch anyone?", base.Add(2*time.Hour))
	seed(t, s, "g2", "u4", "deploy here too", base)

	t.Run("matches within target", func(t *testing.T) {
		msgs, err := s.Search("g1", "deploy", base.Add(-time.Hour), time.Time{})
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "we should deploy tomorrow", msgs[0].Content)
	})

	t.Run("time window bounds results", func(t *testing.T) {
		msgs, err := s.Search("g1", "deploy", base.Add(30*time.Minute), base.Add(90*time.Minute))
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "deploy is risky on fridays", msgs[0].Content)
	})

	t.Run("wildcards are literal", func(t *testing.T) {
		msgs, err := s.Search("g1", "%", base.Add(-time.Hour), time.Time{})
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}

func TestStore_CountSince(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	seed(t, s, "g1", "u1", "a", base)
	seed(t, s, "g1", "u1", "b", base.Add(time.Minute))

	n, err := s.CountSince("g1", base)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.CountSince("g1", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_Daily(t *testing.T) {
	s := newTestStore(t)

	day1 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

	seed(t, s, "g1", "u1", "good morning", day1)
	seed(t, s, "g1", "u2", "night", day1.Add(12*time.Hour))
	seed(t, s, "g2", "u3", "hello from g2", day1)
	seed(t, s, "g1", "u1", "next day", day2)

	t.Run("list", func(t *testing.T) {
		days, err := s.DailyList()
		require.NoError(t, err)
		assert.Equal(t, []string{"2026-05-02", "2026-05-01"}, days)
	})

	t.Run("digest covers all targets", func(t *testing.T) {
		digest, err := s.DailyDigest("2026-05-01")
		require.NoError(t, err)
		assert.Contains(t, digest, "g1: 2 messages")
		assert.Contains(t, digest, "g2: 1 messages")
		assert.NotContains(t, digest, "next day")
	})

	t.Run("empty day", func(t *testing.T) {
		digest, err := s.DailyDigest("2026-06-01")
		require.NoError(t, err)
		assert.Contains(t, digest, "no recorded activity")
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := s.DailyDigest("yesterday")
		assert.Error(t, err)
	})
}
