// Package moderation masks listed words in message bodies.
package moderation

import (
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Filter matches the listed words after folding case and leet digits and
// skipping punctuation, then masks the original runes of every match.
// The zero value masks nothing.
type Filter struct {
	matcher *goahocorasick.Machine
	mask    rune
}

// folded keeps, for each searchable rune, its index in the original text.
type folded struct {
	runes []rune
	index []int
}

func NewFilter(words []string, mask rune) (*Filter, error) {
	var patterns [][]rune
	for _, word := range words {
		if pattern := fold(word).runes; len(pattern) > 0 {
			patterns = append(patterns, pattern)
		}
	}
	if len(patterns) == 0 {
		return &Filter{mask: mask}, nil
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Filter{matcher: m, mask: mask}, nil
}

// ParseWords splits a comma separated list, dropping blanks.
func ParseWords(list string) []string {
	var words []string
	for _, word := range strings.Split(list, ",") {
		if word = strings.TrimSpace(word); word != "" {
			words = append(words, word)
		}
	}
	return words
}

// Mask replaces every matched rune with the mask rune and returns the
// matched words in order of appearance. Separators inside a match, such as
// the dots of "s.c.a.m", are kept.
func (f *Filter) Mask(body string) (string, []string) {
	if f == nil || f.matcher == nil {
		return body, nil
	}
	text := fold(body)
	if len(text.runes) == 0 {
		return body, nil
	}
	terms := f.matcher.MultiPatternSearch(text.runes, false)
	if len(terms) == 0 {
		return body, nil
	}

	original := []rune(body)
	words := make([]string, 0, len(terms))
	for _, term := range terms {
		end := term.Pos + len(term.Word)
		if term.Pos < 0 || end > len(text.index) {
			continue
		}
		for _, i := range text.index[term.Pos:end] {
			original[i] = f.mask
		}
		words = append(words, string(term.Word))
	}
	return string(original), words
}

func fold(input string) folded {
	runes := []rune(input)
	out := folded{runes: make([]rune, 0, len(runes)), index: make([]int, 0, len(runes))}
	for i, r := range runes {
		r = unleet(r)
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		out.runes = append(out.runes, unicode.ToLower(r))
		out.index = append(out.index, i)
	}
	return out
}

func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
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
