// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize cleans free-text task and project descriptions for
// policy checks and embedding. Implements: prd001-triage-core § Text
// Normalizer.
package normalize

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxLength bounds normalized text when no limit is configured.
const DefaultMaxLength = 5000

// ErrEmptyInput signals empty or whitespace-only input. Callers route it
// to a clarify outcome rather than treating it as fatal.
var ErrEmptyInput = errors.New("empty input text")

// Normalize lowercases text, strips control characters, collapses runs of
// whitespace into single spaces, and truncates to maxLength characters
// without splitting mid-word. A maxLength of zero or less uses
// DefaultMaxLength. Deterministic and idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToLower(raw) {
		if unicode.IsControl(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}

	text := strings.Join(strings.Fields(b.String()), " ")
	if text == "" {
		return "", ErrEmptyInput
	}

	return truncateAtWord(text, maxLength), nil
}

// truncateAtWord cuts text to at most max characters, backing up to the
// last space so no word is split. A single word longer than max is cut
// hard rather than returned over-length. Characters are runes, not
// bytes, so multibyte text is never cut mid-rune.
func truncateAtWord(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)[:max]
	cut := string(runes)
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ")
}

// stopWords are excluded from keyword extraction.
var stopWords = map[string]bool{
	"the": true, "is": true, "at": true, "which": true, "on": true,
	"a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "with": true, "to": true, "for": true, "of": true,
	"as": true, "by": true, "this": true, "that": true, "from": true,
	"be": true, "are": true, "was": true, "were": true, "been": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
}

// Keywords returns the content words of text: alphanumeric tokens of at
// least three characters, excluding stop words. The input is normalized
// first, so Keywords is safe on raw text.
func Keywords(text string) []string {
	normalized, err := Normalize(text, 0)
	if err != nil {
		return nil
	}

	var words []string
	var b strings.Builder
	flush := func() {
		w := b.String()
		b.Reset()
		if len(w) >= 3 && !stopWords[w] {
			words = append(words, w)
		}
	}

	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return words
}

// KeywordSet returns Keywords as a membership set.
func KeywordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range Keywords(text) {
		set[w] = true
	}
	return set
}
