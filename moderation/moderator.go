// Package moderation censors forbidden words in outgoing text bodies.
// Matching runs over a normalized view of the text (lowercased, leet
// characters simplified, punctuation and spacing ignored) so that
// obfuscated spellings are still caught, while the replacement is applied
// to the original runes to preserve the message layout.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// NewModerator builds the Aho-Corasick automaton over the normalized word
// list. An empty list yields a pass-through moderator.
func NewModerator(words []string, replacement rune) (*Moderator, error) {
	if len(words) == 0 {
		return &Moderator{replacement: replacement}, nil
	}

	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		if normalized, _ := normalize(word); len(normalized) > 0 {
			patterns = append(patterns, normalized)
		}
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: machine, replacement: replacement}, nil
}

// Censor replaces every censored span with the replacement rune. The
// input comes back unchanged when nothing matches.
func (m *Moderator) Censor(text string) string {
	if m.matcher == nil {
		return text
	}

	normalized, origIdx := normalize(text)
	if len(normalized) == 0 {
		return text
	}

	spans := m.matcher.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return text
	}

	runes := []rune(text)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		// Map normalized positions back to the original text, covering
		// everything between the first and last matched rune.
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			runes[i] = m.replacement
		}
	}
	return string(runes)
}

// normalize lowercases and de-leets the input, drops punctuation, spacing
// and symbols, and records the original index of every kept rune.
func normalize(input string) ([]rune, []int) {
	runes := []rune(input)
	normalized := make([]rune, 0, len(runes))
	origIdx := make([]int, 0, len(runes))

	for i, r := range runes {
		simple := deleet(r)
		if unicode.IsPunct(simple) || unicode.IsSpace(simple) || unicode.IsSymbol(simple) {
			continue
		}
		normalized = append(normalized, unicode.ToLower(simple))
		origIdx = append(origIdx, i)
	}
	return normalized, origIdx
}

func deleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}
