package session

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// suffixLen is the length of the random suffix appended to session ids.
const suffixLen = 8

// maxNameRetries bounds how many suffixed names are tried on collision.
const maxNameRetries = 3

// RandomSuffix returns the first 8 characters of a random UUID.
func RandomSuffix() string {
	return uuid.NewString()[:suffixLen]
}

// Sanitize reduces s to ASCII letters, digits, '.', '_' and '-'. Runs of
// whitespace become '_', other characters are dropped, and leading or
// trailing '.' and '_' are trimmed.
func Sanitize(s string) string {
	var b strings.Builder
	for _, field := range strings.FieldsFunc(s, unicode.IsSpace) {
		if b.Len() > 0 {
			b.WriteByte('_')
		}
		for _, r := range field {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
				b.WriteRune(r)
			}
		}
	}
	return strings.Trim(b.String(), "._")
}

// NameSession derives a session id from a video basename.
//
// The basename is sanitized. An empty result becomes "session_<suffix>".
// A result longer than maxLen keeps its first maxLen-20 characters followed
// by "_<suffix>". If taken reports the id as used, "_<suffix>" is appended
// with a fresh suffix, up to three times. suffix supplies the randomness and
// taken may be nil.
func NameSession(basename string, maxLen int, suffix func() string, taken func(id string) bool) string {
	if suffix == nil {
		suffix = RandomSuffix
	}

	name := Sanitize(basename)
	switch {
	case name == "":
		name = "session_" + suffix()
	case maxLen > 0 && len(name) > maxLen:
		keep := max(1, maxLen-20)
		name = strings.TrimRight(name[:keep], "._") + "_" + suffix()
	}

	if taken == nil {
		return name
	}
	base := name
	for i := 0; i < maxNameRetries && taken(name); i++ {
		name = base + "_" + suffix()
	}
	return name
}
