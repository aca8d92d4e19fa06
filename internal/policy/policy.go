// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package policy classifies normalized text as in-scope, out-of-scope, or
// ambiguous using a declarative rule set, independent of the embedding
// pipeline. Implements: prd002-domain-policy.
package policy

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"
)

// Signal selects how a rule matches text.
type Signal string

const (
	// SignalKeyword matches a word or phrase. Single words match on word
	// boundaries; phrases match as substrings.
	SignalKeyword Signal = "keyword"

	// SignalPattern matches a regular expression.
	SignalPattern Signal = "pattern"

	// SignalList matches the entire text exactly.
	SignalList Signal = "list"
)

// Polarity is the direction a matching rule pushes the score.
type Polarity string

const (
	PolarityAdmit  Polarity = "admit"
	PolarityReject Polarity = "reject"
)

// Category is the policy's three-way classification.
type Category string

const (
	CategoryAdmit     Category = "admit"
	CategoryReject    Category = "reject"
	CategoryAmbiguous Category = "ambiguous"
)

// Score bands for the three-way category. Matching rules move the score
// from the 0.5 midpoint; the bands translate the final score into a
// category.
const (
	rejectBelow = 0.40
	admitAt     = 0.60
)

// ErrInvalid signals a malformed policy file. Fatal at startup.
var ErrInvalid = errors.New("invalid policy")

// Rule is one classification rule.
type Rule struct {
	// Category labels the rule (e.g. "intelligence-features",
	// "personal-household"). Admit-rule categories become decision tags.
	Category string `yaml:"category" json:"category"`

	// Signal selects the match mechanism: keyword, pattern, or list.
	Signal Signal `yaml:"signal" json:"signal"`

	// Value is the keyword, regular expression, or exact text to match.
	Value string `yaml:"value" json:"value"`

	// Polarity is admit or reject.
	Polarity Polarity `yaml:"polarity" json:"polarity"`

	// Weight is the score contribution in (0,1]. A reject rule whose
	// weight exceeds the hard-veto threshold forces rejection outright.
	Weight float64 `yaml:"weight" json:"weight"`
}

// ID returns a stable identifier for audit trails.
func (r Rule) ID() string {
	return fmt.Sprintf("%s/%s:%s", r.Category, r.Signal, r.Value)
}

// file is the YAML policy document layout.
type file struct {
	Rules    []Rule   `yaml:"rules"`
	RedFlags []string `yaml:"red_flags"`
}

// compiledRule is a Rule with its pattern pre-compiled at load time.
type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// Policy is an immutable, ordered rule set plus red-flag phrases. Loaded
// once at startup and injected into the decision engine; reloading means
// constructing a new Policy.
type Policy struct {
	rules    []compiledRule
	redFlags []string
	hardVeto float64
}

// Verdict is the result of classifying one text.
type Verdict struct {
	// Category is the three-way classification.
	Category Category `json:"category"`

	// Score is the clamped policy score in [0,1].
	Score float64 `json:"score"`

	// MatchedRules lists the IDs of every rule that matched, in rule order.
	MatchedRules []string `json:"matched_rules,omitempty"`

	// Tags are the categories of matched admit rules, deduplicated.
	Tags []string `json:"tags,omitempty"`

	// HardVeto reports that a heavy reject rule short-circuited scoring.
	HardVeto bool `json:"hard_veto,omitempty"`
}

// Load reads and compiles a policy from a YAML file.
func Load(path string, hardVetoThreshold float64) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalid, path, err)
	}

	return New(f.Rules, f.RedFlags, hardVetoThreshold)
}

// New compiles a rule set into a Policy. Every rule is validated: known
// signal and polarity, weight in (0,1], and compilable pattern for
// pattern rules.
func New(rules []Rule, redFlags []string, hardVetoThreshold float64) (*Policy, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: no rules defined", ErrInvalid)
	}
	if hardVetoThreshold <= 0 {
		hardVetoThreshold = 0.9
	}

	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		switch r.Signal {
		case SignalKeyword, SignalPattern, SignalList:
		default:
			return nil, fmt.Errorf("%w: rule %d: unknown signal %q", ErrInvalid, i, r.Signal)
		}
		switch r.Polarity {
		case PolarityAdmit, PolarityReject:
		default:
			return nil, fmt.Errorf("%w: rule %d: unknown polarity %q", ErrInvalid, i, r.Polarity)
		}
		if r.Weight <= 0 || r.Weight > 1 {
			return nil, fmt.Errorf("%w: rule %d: weight %v outside (0,1]", ErrInvalid, i, r.Weight)
		}
		if r.Value == "" {
			return nil, fmt.Errorf("%w: rule %d: empty value", ErrInvalid, i)
		}

		cr := compiledRule{Rule: r}
		if r.Signal == SignalPattern {
			re, err := regexp.Compile(r.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %d: bad pattern: %v", ErrInvalid, i, err)
			}
			cr.re = re
		}
		compiled = append(compiled, cr)
	}

	flags := make([]string, len(redFlags))
	for i, f := range redFlags {
		flags[i] = strings.ToLower(f)
	}

	return &Policy{rules: compiled, redFlags: flags, hardVeto: hardVetoThreshold}, nil
}

// Classify evaluates every rule against normalized text in a single pass.
// Matching rules contribute +weight (admit) or -weight (reject) to a
// running score around the 0.5 midpoint, clamped to [0,1]. A reject rule
// whose weight exceeds the hard-veto threshold short-circuits evaluation
// and forces a reject verdict regardless of other rules.
func (p *Policy) Classify(text string) Verdict {
	score := 0.5
	var matched []string
	tagSeen := make(map[string]bool)
	var tags []string

	for _, r := range p.rules {
		if !r.matches(text) {
			continue
		}
		if r.Polarity == PolarityReject && r.Weight > p.hardVeto {
			return Verdict{
				Category:     CategoryReject,
				Score:        0,
				MatchedRules: []string{r.ID()},
				HardVeto:     true,
			}
		}

		matched = append(matched, r.ID())
		if r.Polarity == PolarityAdmit {
			score += r.Weight
			if !tagSeen[r.Category] {
				tagSeen[r.Category] = true
				tags = append(tags, r.Category)
			}
		} else {
			score -= r.Weight
		}
	}

	score = clamp01(score)

	category := CategoryAmbiguous
	switch {
	case score < rejectBelow:
		category = CategoryReject
	case score >= admitAt:
		category = CategoryAdmit
	}

	return Verdict{
		Category:     category,
		Score:        score,
		MatchedRules: matched,
		Tags:         tags,
	}
}

// RedFlagDensity returns the fraction of configured red-flag phrases
// present in text. Zero when no red flags are configured.
func (p *Policy) RedFlagDensity(text string) float64 {
	if len(p.redFlags) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, flag := range p.redFlags {
		if strings.Contains(lower, flag) {
			hits++
		}
	}
	return float64(hits) / float64(len(p.redFlags))
}

func (r compiledRule) matches(text string) bool {
	switch r.Signal {
	case SignalKeyword:
		value := strings.ToLower(r.Value)
		if strings.ContainsRune(value, ' ') {
			return strings.Contains(text, value)
		}
		return containsWord(text, value)
	case SignalPattern:
		return r.re.MatchString(text)
	case SignalList:
		return text == strings.ToLower(r.Value)
	}
	return false
}

// containsWord reports whether word appears in text bounded by
// non-alphanumeric runes.
func containsWord(text, word string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)

		before, _ := utf8.DecodeLastRuneInString(text[:idx])
		after, _ := utf8.DecodeRuneInString(text[end:])
		leftOK := idx == 0 || !isWordRune(before)
		rightOK := end == len(text) || !isWordRune(after)
		if leftOK && rightOK {
			return true
		}
		start = idx + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
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
