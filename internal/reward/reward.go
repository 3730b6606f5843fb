// Package reward infers the reward description that accompanies a code.
package reward

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/reverscodes/codes-cli/internal/model"
)

// Extractor maps context text to a reward description.
type Extractor struct {
	patterns   []Pattern
	structural bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithStructuralHints adds lower-priority guesses taken from a trailing
// parenthetical, a "Reward:" label, or text after a dash or colon.
func WithStructuralHints() Option {
	return func(e *Extractor) { e.structural = true }
}

// WithPatterns replaces the reward table.
func WithPatterns(p []Pattern) Option {
	return func(e *Extractor) { e.patterns = p }
}

// NewExtractor creates an Extractor with the default table.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{patterns: defaultPatterns()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Patterns returns the extractor's table.
func (e *Extractor) Patterns() []Pattern { return e.patterns }

// Extract returns the first pattern capture found in context, or
// model.DefaultReward. The result is never empty.
func (e *Extractor) Extract(context string) string {
	if r, ok := e.match(context); ok {
		return r
	}
	if e.structural {
		for _, guess := range []func(string) (string, bool){Labelled, Parenthetical, AfterSeparator} {
			if r, ok := guess(context); ok {
				return r
			}
		}
	}
	return model.DefaultReward
}

func (e *Extractor) match(context string) (string, bool) {
	for _, p := range e.patterns {
		m := p.Regex.FindStringSubmatch(context)
		if len(m) < 2 {
			continue
		}
		if r := clean(m[1]); utf8.RuneCountInString(r) >= 3 {
			return r, true
		}
	}
	return "", false
}

// Parenthetical returns the trailing "(...)" of text when it reads as a reward.
func Parenthetical(text string) (string, bool) {
	return guess(trailingParenRe, text)
}

// AfterSeparator returns the text after the last dash or colon when it reads
// as a reward.
func AfterSeparator(text string) (string, bool) {
	return guess(dashColonRe, text)
}

// Labelled returns the text after "Reward:" style labels.
func Labelled(text string) (string, bool) {
	return guess(labelledRe, text)
}

func guess(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(strings.TrimSpace(text))
	if len(m) < 2 {
		return "", false
	}
	r := clean(m[1])
	if !Valid(r) {
		return "", false
	}
	return r, true
}

var defaultTable = defaultPatterns()

// Valid reports whether s reads as a reward description: 3..100 characters
// and either matching the reward table or containing a reward word.
func Valid(s string) bool {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n < 3 || n > model.MaxRewardLen {
		return false
	}
	for _, p := range defaultTable {
		if p.Regex.MatchString(s) {
			return true
		}
	}
	lower := strings.ToLower(s)
	for _, w := range rewardWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

var spaceRe = regexp.MustCompile(`\s+`)

func clean(s string) string {
	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.Trim(s, " .,;!")
	if utf8.RuneCountInString(s) > model.MaxRewardLen {
		s = strings.TrimSpace(string([]rune(s)[:model.MaxRewardLen]))
	}
	return s
}
