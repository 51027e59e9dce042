package classifier

import (
	"strings"
	"unicode"
)

// Normalize lowercases, keeps only ASCII letters and whitespace, then drops English stop
// words. The result is single-space separated.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return r
		case isSpace(r):
			return ' '
		}
		return -1
	}, s)

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; !stop {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// isSpace also counts the ASCII separators 0x1c-0x1f, which unicode.IsSpace does not.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}
