// Package slug derives URL-safe identifiers from human-readable names. It is
// used for role and channel slugs, which must be deterministic so that the
// roster sync can re-derive the same slug from the same name on every run and
// hit the idempotent upsert path instead of creating duplicates.
package slug

import (
	"strings"
	"unicode"
)

// Make converts a display name to its slug: lowercase, spaces collapsed to
// single hyphens, anything that is not a letter, digit, or hyphen dropped.
func Make(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	lastHyphen := true // suppress leading hyphens
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case unicode.IsSpace(r) || r == '-' || r == '_':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
