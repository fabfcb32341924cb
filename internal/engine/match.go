// README: String match flags and text folding used for place search.
package engine

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StringMatch selects how search text is compared with map object names.
type StringMatch uint8

const (
	MatchFoldCase StringMatch = 1 << iota
	MatchIgnoreWhitespace
	MatchFoldAccents
	MatchIgnoreSymbols
	MatchFuzzy
)

// DefaultMatch is always applied to place searches.
const DefaultMatch = MatchFoldCase | MatchIgnoreWhitespace | MatchFoldAccents

func (m StringMatch) Has(f StringMatch) bool { return m&f == f }

// Fold normalises s according to m. Whitespace runs collapse to a single
// space unless MatchIgnoreWhitespace is set, in which case they are removed.
func Fold(s string, m StringMatch) string {
	if m.Has(MatchFoldAccents) {
		t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
		if out, _, err := transform.String(t, s); err == nil {
			s = out
		}
	}
	if m.Has(MatchFoldCase) {
		s = strings.ToLower(s)
	}
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case m.Has(MatchIgnoreSymbols) && (unicode.IsPunct(r) || unicode.IsSymbol(r)):
			continue
		}
		if space && b.Len() > 0 && !m.Has(MatchIgnoreWhitespace) {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Matches reports whether candidate contains text under m. Fuzzy matching
// always succeeds here because the engine's own ranking already applied it.
func Matches(candidate, text string, m StringMatch) bool {
	if m.Has(MatchFuzzy) {
		return true
	}
	return strings.Contains(Fold(candidate, m), Fold(text, m))
}
