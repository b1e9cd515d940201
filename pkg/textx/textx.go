// Package textx provides small text utilities used across the project.
package textx

import "strings"

// Sanitize removes control characters except tab/newline/CR and trims spaces.
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Head returns the first n bytes of s, never splitting past the end.
func Head(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// FirstSentence returns s up to and including the first sentence terminator,
// or all of s when none is found.
func FirstSentence(s string) string {
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			return strings.TrimSpace(s[:i+1])
		}
	}
	return strings.TrimSpace(s)
}
