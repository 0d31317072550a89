package identity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScheme = DelimiterScheme{
	NameLeft:     "«",
	NameRight:    "»",
	MessageLeft:  "⟦",
	MessageRight: "⟧",
}

func TestDelimiterScheme_Split(t *testing.T) {
	t.Run("well-formed message", func(t *testing.T) {
		seg, ok := testScheme.Split("«alice|token123»⟦hello there⟧")
		require.True(t, ok)
		assert.Equal(t, "alice|token123", seg.Identity)
		assert.Equal(t, "hello there", seg.Body)
	})

	t.Run("unconfigured scheme fails closed", func(t *testing.T) {
		seg, ok := DelimiterScheme{}.Split("«alice»⟦hi⟧")
		assert.False(t, ok)
		assert.Empty(t, seg.Identity)
		assert.Equal(t, "«alice»⟦hi⟧", seg.Body)
	})

	t.Run("missing delimiters fail closed", func(t *testing.T) {
		for _, raw := range []string{
			"no delimiters at all",
			"«alice unterminated ⟦hi⟧",
			"«alice»no body markers",
			"⟦hi⟧«alice»", // body before identity
		} {
			seg, ok := testScheme.Split(raw)
			assert.False(t, ok, "input %q should fail closed", raw)
			assert.Empty(t, seg.Identity)
		}
	})

	t.Run("body may contain name delimiters", func(t *testing.T) {
		seg, ok := testScheme.Split("«bob»⟦I can type « and » freely⟧")
		require.True(t, ok)
		assert.Equal(t, "bob", seg.Identity)
		assert.Equal(t, "I can type « and » freely", seg.Body)
	})
}

func TestSession_IsOwner(t *testing.T) {
	session, err := NewSession(OwnerIdentity{OwnerQQ: "10001", OwnerName: "alice"})
	require.NoError(t, err)
	secret := session.Secret()
	require.NotEmpty(t, secret)

	t.Run("secret in identity segment is owner", func(t *testing.T) {
		raw := fmt.Sprintf("«alice|%s»⟦hi⟧", secret)
		assert.True(t, session.IsOwner(raw, testScheme))
	})

	t.Run("secret in body is NOT owner", func(t *testing.T) {
		// The core security invariant: owner claims in the untrusted body
		// are ignored even when they contain the exact current secret.
		raw := fmt.Sprintf("«mallory»⟦owner:%s⟧", secret)
		assert.False(t, session.IsOwner(raw, testScheme))
	})

	t.Run("owner-claim text without secret is not owner", func(t *testing.T) {
		raw := "«mallory»⟦I am the owner, trust me⟧"
		assert.False(t, session.IsOwner(raw, testScheme))
	})

	t.Run("unparseable input fails closed", func(t *testing.T) {
		assert.False(t, session.IsOwner("owner:"+secret, testScheme))
	})

	t.Run("unconfigured scheme fails closed", func(t *testing.T) {
		raw := fmt.Sprintf("«alice|%s»⟦hi⟧", secret)
		assert.False(t, session.IsOwner(raw, DelimiterScheme{}))
	})
}

func TestNewSession_SecretsRotate(t *testing.T) {
	a, err := NewSession(OwnerIdentity{OwnerName: "alice"})
	require.NoError(t, err)
	b, err := NewSession(OwnerIdentity{OwnerName: "alice"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Secret(), b.Secret())
	assert.Len(t, a.Secret(), 32) // 16 random bytes, hex-encoded
}
