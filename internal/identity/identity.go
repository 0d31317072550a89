// Package identity validates the human owner's identity inside group text.
//
// Inbound messages are split by a configured DelimiterScheme into an
// engine-controlled identity segment and an untrusted free-text body. The
// sender is the owner iff the identity segment contains the current session
// secret. Owner-claim text inside the body is always ignored - group members
// can forge anything there. Ambiguous input is treated as non-owner.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"presence/internal/logging"
)

// DelimiterScheme defines how an inbound message is split into an identity
// segment and a body segment. All four delimiters must be set for the scheme
// to be usable.
type DelimiterScheme struct {
	NameLeft     string `yaml:"name_left"`
	NameRight    string `yaml:"name_right"`
	MessageLeft  string `yaml:"message_left"`
	MessageRight string `yaml:"message_right"`
}

// Configured reports whether all four delimiters are set.
func (d DelimiterScheme) Configured() bool {
	return d.NameLeft != "" && d.NameRight != "" && d.MessageLeft != "" && d.MessageRight != ""
}

// Segments is the typed result of splitting an inbound message. Identity is
// the engine-controlled segment; Body is untrusted free text.
type Segments struct {
	Identity string
	Body     string
}

// Split parses raw inbound text into (identity, body). Returns ok=false when
// the scheme is unconfigured or the delimiters cannot be located in order; in
// that case the whole input is returned as untrusted body.
func (d DelimiterScheme) Split(raw string) (Segments, bool) {
	if !d.Configured() {
		return Segments{Body: raw}, false
	}

	nameStart := strings.Index(raw, d.NameLeft)
	if nameStart < 0 {
		return Segments{Body: raw}, false
	}
	identStart := nameStart + len(d.NameLeft)

	identEnd := strings.Index(raw[identStart:], d.NameRight)
	if identEnd < 0 {
		return Segments{Body: raw}, false
	}
	identEnd += identStart

	rest := raw[identEnd+len(d.NameRight):]
	msgStart := strings.Index(rest, d.MessageLeft)
	if msgStart < 0 {
		return Segments{Body: raw}, false
	}
	bodyStart := msgStart + len(d.MessageLeft)

	bodyEnd := strings.LastIndex(rest, d.MessageRight)
	if bodyEnd < bodyStart {
		return Segments{Body: raw}, false
	}

	return Segments{
		Identity: raw[identStart:identEnd],
		Body:     rest[bodyStart:bodyEnd],
	}, true
}

// OwnerIdentity describes the human owner as seen on the chat platform.
type OwnerIdentity struct {
	OwnerQQ   string `yaml:"owner_qq"`
	OwnerName string `yaml:"owner_name"`
}

// Configured reports whether an owner is set.
func (o OwnerIdentity) Configured() bool {
	return o.OwnerQQ != "" || o.OwnerName != ""
}

// Session carries the per-session owner secret. Secrets are regenerated on
// every session start and never persisted to durable memory.
type Session struct {
	owner  OwnerIdentity
	secret string
}

// NewSession mints a session with a fresh random secret.
func NewSession(owner OwnerIdentity) (*Session, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate owner secret: %w", err)
	}

	s := &Session{
		owner:  owner,
		secret: hex.EncodeToString(buf),
	}
	logging.Identity("owner session started for %s", owner.OwnerName)
	return s, nil
}

// Owner returns the configured owner identity.
func (s *Session) Owner() OwnerIdentity {
	return s.owner
}

// Secret returns the current session secret. It is embedded only inside the
// structured identity segment of inbound messages, never in free text.
func (s *Session) Secret() string {
	return s.secret
}

// IsOwner reports whether the inbound raw text was authored by the owner.
// Only the identity segment is consulted; the body is never trusted.
// Unparseable input fails closed.
func (s *Session) IsOwner(raw string, scheme DelimiterScheme) bool {
	seg, ok := scheme.Split(raw)
	if !ok {
		return false
	}
	return strings.Contains(seg.Identity, s.secret)
}
