// Package textnorm canonicalizes free-form inbound text before it is
// classified or used as part of a thread identity.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize decomposes s, drops combining marks, lowercases and trims it.
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		// transform only fails on invalid state; fall back to the raw input.
		out = s
	}
	return strings.TrimSpace(strings.ToLower(out))
}
