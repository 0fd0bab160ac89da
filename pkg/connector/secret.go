package connector

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Secret is a value whose clear text must not leak into logs or dumps.
type Secret interface {
	// Reveal returns the clear text.
	Reveal() string
}

// GuardedString is a character-backed secret.
type GuardedString struct {
	chars []rune
}

// NewGuardedString wraps s.
func NewGuardedString(s string) *GuardedString {
	return &GuardedString{chars: []rune(s)}
}

func (g *GuardedString) Reveal() string {
	if g == nil {
		return ""
	}
	return string(g.chars)
}

// String masks the value.
func (g *GuardedString) String() string { return "******" }

// GuardedBytes is a byte-backed secret.
type GuardedBytes struct {
	b []byte
}

// NewGuardedBytes wraps a copy of b.
func NewGuardedBytes(b []byte) *GuardedBytes {
	return &GuardedBytes{b: append([]byte(nil), b...)}
}

func (g *GuardedBytes) Reveal() string {
	if g == nil {
		return ""
	}
	return string(g.b)
}

// String masks the value.
func (g *GuardedBytes) String() string { return "******" }

// DecodeSecret returns the clear text of a raw connector value. Secret
// wrappers are revealed and NFC normalized; plain values are rendered as
// strings verbatim; nil is the empty string.
func DecodeSecret(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case Secret:
		return norm.NFC.String(v.Reveal())
	case string:
		return v
	case []byte:
		return string(v)
	case []rune:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
