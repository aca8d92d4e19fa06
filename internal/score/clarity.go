// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score turns the evaluation signals into scalars: description
// clarity and the weighted alignment score.
// Implements: prd001-triage-core § Alignment Scorer.
package score

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// nearEmptyLength is the character count below which text scores as
// near-empty.
const nearEmptyLength = 10

// lengthSaturation is the text length at which the length component of
// clarity maxes out.
const lengthSaturation = 400

// actionVerbs signal a concrete, executable request.
var actionVerbs = []string{
	"implement", "build", "create", "deploy", "setup", "configure",
	"add", "remove", "update", "fix", "optimize", "integrate", "migrate",
}

// structuralCues signal acceptance criteria or explicit outcomes.
var structuralCues = []string{
	"acceptance criteria", "so that", "done when", "expected outcome",
	"definition of done",
}

// technicalTerms signal an identified system surface.
var technicalTerms = []string{
	"api", "database", "service", "endpoint", "component", "module",
	"pipeline", "schema",
}

// hedges signal an unformed idea rather than actionable work.
var hedges = []string{
	"maybe", "possibly", "think about", "consider", "explore",
	"not sure", "figure out",
}

// vaguePatterns match throwaway placeholder texts outright.
var vaguePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(thing|stuff|fix|improve|update)s?( (it|this|that|stuff|things))?$`),
	regexp.MustCompile(`^(untitled|tbd|todo)$`),
}

// bulletLine matches a bulleted or numbered list item.
var bulletLine = regexp.MustCompile(`(^|\s)([-*•]|\d+\.)\s`)

// Clarity measures how actionable a normalized description is, in [0,1].
// Zero is reserved for empty text, values near zero for placeholder or
// single-phrase text, values near one for long, structured descriptions.
// Deterministic: the same text always scores identically.
func Clarity(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	chars := utf8.RuneCountInString(text)
	if chars < nearEmptyLength {
		return 0.1
	}

	length := float64(chars) / lengthSaturation
	if length > 1 {
		length = 1
	}
	s := 0.5 * length

	if containsAny(text, actionVerbs) {
		s += 0.2
	}
	if containsAny(text, structuralCues) || bulletLine.MatchString(text) {
		s += 0.2
	}
	if containsAny(text, technicalTerms) {
		s += 0.1
	}
	if containsAny(text, hedges) {
		s -= 0.2
	}

	for _, p := range vaguePatterns {
		if p.MatchString(text) {
			if s > 0.25 {
				s = 0.25
			}
			break
		}
	}

	return clamp01(s)
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
