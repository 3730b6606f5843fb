// Package screen decides whether a token plausibly is a redemption code.
package screen

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Regime is a named screening configuration. The strict regime is used
// while extracting from pages; the general regime judges stored records.
type Regime struct {
	Name      string `yaml:"name" mapstructure:"name"`
	MinLen    int    `yaml:"min_len" mapstructure:"min_len"`
	MaxLen    int    `yaml:"max_len" mapstructure:"max_len"`
	AllowBang bool   `yaml:"allow_bang" mapstructure:"allow_bang"`
	// AllowBareAlpha admits letter-only tokens of at least BareAlphaMinLen
	// that are not marketing words.
	AllowBareAlpha bool `yaml:"allow_bare_alpha" mapstructure:"allow_bare_alpha"`
}

// BareAlphaMinLen is the shortest letter-only token a permissive regime admits.
const BareAlphaMinLen = 6

// StrictRegime returns the regime used by the page extractors.
func StrictRegime() Regime {
	return Regime{Name: "strict", MinLen: 5, MaxLen: 20, AllowBareAlpha: true}
}

// GeneralRegime returns the regime used by the validation aggregator.
func GeneralRegime() Regime {
	return Regime{Name: "general", MinLen: 3, MaxLen: 24, AllowBang: true}
}

// Rejection reasons returned by Check.
const (
	ReasonLength     = "length out of range"
	ReasonCharset    = "disallowed characters"
	ReasonDenied     = "deny-listed"
	ReasonDate       = "looks like a date"
	ReasonNoMarker   = "needs a digit, underscore or hyphen"
	ReasonNoLetter   = "no letters"
	ReasonRepeated   = "single repeated character"
	ReasonSequence   = "ascending sequence"
	ReasonMarketing  = "marketing word"
	ReasonEmptyToken = "empty"
)

var (
	charsetRe     = regexp.MustCompile(`^[A-Z0-9_-]+$`)
	charsetBangRe = regexp.MustCompile(`^[A-Z0-9_!-]+$`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(19|20)\d{2}\b`),
		regexp.MustCompile(`(?i)\b(jan(uary)?|feb(ruary)?|mar(ch)?|apr(il)?|may|june?|july?|aug(ust)?|sep(t(ember)?)?|oct(ober)?|nov(ember)?|dec(ember)?)\s+\d{1,2},?\s+\d{4}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
		regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{4}\b`),
	}
)

// Screener applies the plausibility rules of one regime.
type Screener struct {
	regime Regime
	deny   *DenyList
}

// New creates a Screener. A nil deny list falls back to the default.
func New(regime Regime, deny *DenyList) *Screener {
	if deny == nil {
		deny = DefaultDenyList()
	}
	return &Screener{regime: regime, deny: deny}
}

// Regime returns the screener's configuration.
func (s *Screener) Regime() Regime { return s.regime }

// IsPlausible reports whether token passes every rule.
func (s *Screener) IsPlausible(token string) bool {
	ok, _ := s.Check(token)
	return ok
}

// Check runs the rules in order and returns the first failure reason.
func (s *Screener) Check(token string) (bool, string) {
	t := strings.ToUpper(strings.TrimSpace(token))
	if t == "" {
		return false, ReasonEmptyToken
	}

	n := utf8.RuneCountInString(t)
	if n < s.regime.MinLen || n > s.regime.MaxLen {
		return false, ReasonLength
	}

	re := charsetRe
	if s.regime.AllowBang {
		re = charsetBangRe
	}
	if !re.MatchString(t) {
		return false, ReasonCharset
	}

	if s.deny.Contains(t) {
		return false, ReasonDenied
	}

	if IsDate(t) {
		return false, ReasonDate
	}

	if !strings.ContainsAny(t, "0123456789_-") {
		if !s.regime.AllowBareAlpha || n < BareAlphaMinLen || isMarketingWord(t) {
			return false, ReasonNoMarker
		}
	}

	if !hasLetter(t) {
		return false, ReasonNoLetter
	}

	if allSame(t) {
		return false, ReasonRepeated
	}

	if IsSequence(t) {
		return false, ReasonSequence
	}

	if isMarketingWord(t) {
		return false, ReasonMarketing
	}

	return true, ""
}

// IsDate reports whether text contains a year, a numeric date, or a
// month-name date.
func IsDate(text string) bool {
	for _, re := range datePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

func allSame(s string) bool {
	first, _ := utf8.DecodeRuneInString(s)
	for _, r := range s {
		if r != first {
			return false
		}
	}
	return true
}
