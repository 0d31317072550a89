package prompt

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/config"
	"presence/internal/identity"
	"presence/internal/memory"
	"presence/internal/social"
)

var (
	testAgent  = social.Agent{ID: "agent-1", Name: "Mochi"}
	testTarget = social.Target{ID: "12345", Name: "gophers", Kind: social.TargetGroup}
	testNow    = time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)
)

func newTestAssembler(t *testing.T) (*Assembler, *memory.Store) {
	t.Helper()
	store := memory.NewStore(t.TempDir())
	return NewAssembler(store, config.DefaultConfig().Limits), store
}

func baseInput(role social.Role) Input {
	return Input{
		Agent:  testAgent,
		Target: testTarget,
		Role:   role,
		Lurk:   social.LurkNormal,
		Now:    testNow,
	}
}

func TestAssemble_Determinism(t *testing.T) {
	asm, store := newTestAssembler(t)
	ctx := context.Background()

	_, err := store.Write(ctx, testAgent.ID, memory.SoulPath, "a curious cat")
	require.NoError(t, err)
	_, err = store.Write(ctx, testAgent.ID, memory.GroupRulePath(testTarget.ID), "they like puns")
	require.NoError(t, err)

	in := baseInput(social.RoleObserver)

	first, err := asm.Assemble(in)
	require.NoError(t, err)
	second, err := asm.Assemble(in)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Render(), second.Render()); diff != "" {
		t.Fatalf("render not deterministic (-first +second):\n%s", diff)
	}
}

func TestAssemble_SectionOrder(t *testing.T) {
	asm, store := newTestAssembler(t)
	ctx := context.Background()

	_, err := store.Write(ctx, testAgent.ID, memory.SoulPath, "soul")
	require.NoError(t, err)
	_, err = store.Write(ctx, testAgent.ID, memory.UserPath, "owner facts")
	require.NoError(t, err)
	_, err = store.Write(ctx, testAgent.ID, memory.LongTermPath, "long term")
	require.NoError(t, err)

	session, err := identity.NewSession(identity.OwnerIdentity{OwnerQQ: "1", OwnerName: "alice"})
	require.NoError(t, err)

	in := baseInput(social.RoleReply)
	in.Scheme = identity.DelimiterScheme{NameLeft: "<", NameRight: ">", MessageLeft: "[", MessageRight: "]"}
	in.Session = session
	in.ToolNotes = "you have send_message"

	doc, err := asm.Assemble(in)
	require.NoError(t, err)

	var titles []string
	for _, s := range doc.Sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{
		SectionFormat,
		SectionTime,
		SectionPersona,
		SectionOwnerProfile,
		SectionLongTerm,
		GroupProfileTitle(testTarget),
		SectionSocialMemory,
		SectionMessageFormat,
		SectionOwnerRules,
		SectionRole,
		SectionReplyStrategy,
		SectionTools,
	}, titles)
}

func TestAssemble_ConditionalSections(t *testing.T) {
	asm, _ := newTestAssembler(t)

	doc, err := asm.Assemble(baseInput(social.RoleIntent))
	require.NoError(t, err)

	_, hasOwner := doc.Section(SectionOwnerProfile)
	assert.False(t, hasOwner, "empty owner profile must be omitted")

	_, hasLongTerm := doc.Section(SectionLongTerm)
	assert.False(t, hasLongTerm, "empty long-term memory must be omitted")

	_, hasFormat := doc.Section(SectionMessageFormat)
	assert.False(t, hasFormat, "no delimiter scheme, no message-format section")

	_, hasRules := doc.Section(SectionOwnerRules)
	assert.False(t, hasRules, "no owner session, no identity rules")

	persona, ok := doc.Section(SectionPersona)
	require.True(t, ok)
	assert.Equal(t, "(none set)", persona.Body)
}

func TestAssemble_GuidanceTiers(t *testing.T) {
	ctx := context.Background()
	limits := config.DefaultConfig().Limits

	t.Run("empty profile gets create guidance", func(t *testing.T) {
		asm, _ := newTestAssembler(t)
		doc, err := asm.Assemble(baseInput(social.RoleObserver))
		require.NoError(t, err)

		sec, ok := doc.Section(GroupProfileTitle(testTarget))
		require.True(t, ok)
		assert.Equal(t, PolicyCreate, sec.Policy)
		assert.Contains(t, sec.Body, "create an initial entry")
	})

	t.Run("mid-fill profile gets targeted-edit guidance", func(t *testing.T) {
		asm, store := newTestAssembler(t)
		content := strings.Repeat("x", limits.GroupRuleMax/2)
		_, err := store.Write(ctx, testAgent.ID, memory.GroupRulePath(testTarget.ID), content)
		require.NoError(t, err)

		doc, err := asm.Assemble(baseInput(social.RoleObserver))
		require.NoError(t, err)

		sec, _ := doc.Section(GroupProfileTitle(testTarget))
		assert.Equal(t, PolicyEdit, sec.Policy)
		assert.Contains(t, sec.Body, "targeted edits")
	})

	t.Run("over-80% profile gets consolidate guidance", func(t *testing.T) {
		asm, store := newTestAssembler(t)
		content := strings.Repeat("x", limits.GroupRuleMax*9/10)
		_, err := store.Write(ctx, testAgent.ID, memory.GroupRulePath(testTarget.ID), content)
		require.NoError(t, err)

		doc, err := asm.Assemble(baseInput(social.RoleObserver))
		require.NoError(t, err)

		sec, _ := doc.Section(GroupProfileTitle(testTarget))
		assert.Equal(t, PolicyConsolidate, sec.Policy)
		assert.Contains(t, sec.Body, "Consolidate")
	})
}

func TestAssemble_IsolationReminder(t *testing.T) {
	asm, _ := newTestAssembler(t)

	observer, err := asm.Assemble(baseInput(social.RoleObserver))
	require.NoError(t, err)
	sec, _ := observer.Section(GroupProfileTitle(testTarget))
	assert.Contains(t, sec.Body, "Never record the same fact in both places")

	reply, err := asm.Assemble(baseInput(social.RoleReply))
	require.NoError(t, err)
	sec, _ = reply.Section(GroupProfileTitle(testTarget))
	assert.NotContains(t, sec.Body, "Never record the same fact in both places")
	assert.Contains(t, sec.Body, "read-only reference")
}

func TestAssemble_ObserverThenReply(t *testing.T) {
	// Observer writes a profile; the Reply prompt must carry exactly that
	// content plus the read-only note, not the write guidance.
	asm, store := newTestAssembler(t)
	ctx := context.Background()

	written := "They play chess on Fridays. Avoid spoilers for the match."
	_, err := store.Write(ctx, testAgent.ID, memory.GroupRulePath(testTarget.ID), written)
	require.NoError(t, err)

	doc, err := asm.Assemble(baseInput(social.RoleReply))
	require.NoError(t, err)

	sec, ok := doc.Section(GroupProfileTitle(testTarget))
	require.True(t, ok)
	assert.Equal(t, written+"\n\n"+readOnlyText("group profile"), sec.Body)
	assert.Equal(t, PolicyReadOnly, sec.Policy)
	assert.NotContains(t, sec.Body, "targeted edits")
}

func TestAssemble_ReplyStrategy(t *testing.T) {
	ctx := context.Background()

	t.Run("default strategy when none stored", func(t *testing.T) {
		asm, _ := newTestAssembler(t)
		doc, err := asm.Assemble(baseInput(social.RoleReply))
		require.NoError(t, err)

		sec, ok := doc.Section(SectionReplyStrategy)
		require.True(t, ok)
		assert.Contains(t, sec.Body, "Keep replies short")
		assert.Equal(t, PolicyReadOnly, sec.Policy)
	})

	t.Run("editable with capability flag", func(t *testing.T) {
		asm, store := newTestAssembler(t)
		_, err := store.Write(ctx, testAgent.ID, memory.ReplyStrategyPath, "be dramatic")
		require.NoError(t, err)

		in := baseInput(social.RoleReply)
		in.Agent.CanEditStrategy = true

		doc, err := asm.Assemble(in)
		require.NoError(t, err)

		sec, _ := doc.Section(SectionReplyStrategy)
		assert.Contains(t, sec.Body, "be dramatic")
		assert.Contains(t, sec.Body, "reply_strategy_edit")
		assert.Equal(t, PolicyEdit, sec.Policy)
	})

	t.Run("absent outside reply role", func(t *testing.T) {
		asm, _ := newTestAssembler(t)
		doc, err := asm.Assemble(baseInput(social.RoleObserver))
		require.NoError(t, err)

		_, ok := doc.Section(SectionReplyStrategy)
		assert.False(t, ok)
	})
}

func TestAssemble_OwnerRulesContainSecret(t *testing.T) {
	asm, _ := newTestAssembler(t)

	session, err := identity.NewSession(identity.OwnerIdentity{OwnerQQ: "10001", OwnerName: "alice"})
	require.NoError(t, err)

	in := baseInput(social.RoleIntent)
	in.Session = session

	doc, err := asm.Assemble(in)
	require.NoError(t, err)

	sec, ok := doc.Section(SectionOwnerRules)
	require.True(t, ok)
	assert.Contains(t, sec.Body, session.Secret())
	assert.Contains(t, sec.Body, "Never reveal the token")
}

func TestAssemble_IntentSummaryInRoleSection(t *testing.T) {
	asm, _ := newTestAssembler(t)

	in := baseInput(social.RoleIntent)
	in.SinceLastEvalMin = 12
	in.IntentSummary = "- 10m ago [indifferent] nothing going on"

	doc, err := asm.Assemble(in)
	require.NoError(t, err)

	sec, ok := doc.Section(SectionRole)
	require.True(t, ok)
	assert.Contains(t, sec.Body, "12 minutes")
	assert.Contains(t, sec.Body, "nothing going on")
	assert.Contains(t, sec.Body, "WILLINGNESS:")
}

func TestAssemble_SoulTruncation(t *testing.T) {
	store := memory.NewStore(t.TempDir())
	limits := config.DefaultConfig().Limits
	limits.SoulMax = 10
	asm := NewAssembler(store, limits)

	_, err := store.Write(context.Background(), testAgent.ID, memory.SoulPath, "0123456789ABCDEF")
	require.NoError(t, err)

	doc, err := asm.Assemble(baseInput(social.RoleIntent))
	require.NoError(t, err)

	sec, _ := doc.Section(SectionPersona)
	assert.Equal(t, "0123456789", sec.Body)
}

func TestTruncate_RuneBoundary(t *testing.T) {
	t.Run("never splits a multibyte rune", func(t *testing.T) {
		// "你好世界" is 12 bytes; a cap of 7 lands mid-rune.
		got := truncate("你好世界", 7)
		assert.Equal(t, "你好", got)
		assert.True(t, utf8.ValidString(got))
	})

	t.Run("ascii cuts exactly at the cap", func(t *testing.T) {
		assert.Equal(t, "abc", truncate("abcdef", 3))
	})

	t.Run("zero cap means no limit", func(t *testing.T) {
		assert.Equal(t, "日本語", truncate("日本語", 0))
	})
}

func TestDocument_Render(t *testing.T) {
	doc := &Document{}
	doc.Add(Section{Title: "A", Body: "first"})
	doc.Add(Section{Title: "B", Body: ""}) // dropped
	doc.Add(Section{Title: "C", Body: "third\n"})

	assert.Equal(t, "## A\n\nfirst\n\n## C\n\nthird", doc.Render())
}

func TestLurkFraming(t *testing.T) {
	asm, _ := newTestAssembler(t)

	t.Run("full lurk", func(t *testing.T) {
		in := baseInput(social.RoleIntent)
		in.Lurk = social.LurkFull
		doc, err := asm.Assemble(in)
		require.NoError(t, err)
		sec, _ := doc.Section(SectionRole)
		assert.Contains(t, sec.Body, "you never speak in this chat")
	})

	t.Run("semi lurk", func(t *testing.T) {
		in := baseInput(social.RoleIntent)
		in.Lurk = social.LurkSemi
		doc, err := asm.Assemble(in)
		require.NoError(t, err)
		sec, _ := doc.Section(SectionRole)
		assert.Contains(t, sec.Body, "directly addressed")
	})

	t.Run("normal has no lurk clause", func(t *testing.T) {
		doc, err := asm.Assemble(baseInput(social.RoleIntent))
		require.NoError(t, err)
		sec, _ := doc.Section(SectionRole)
		assert.NotContains(t, sec.Body, "Lurk policy")
	})
}
