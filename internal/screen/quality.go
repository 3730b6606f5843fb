package screen

import (
	"strings"
	"unicode/utf8"
)

// QualityGate is the stricter filter applied on top of the screener in
// precise mode.
type QualityGate struct {
	MinLen     int     `yaml:"min_len" mapstructure:"min_len"`
	MaxLen     int     `yaml:"max_len" mapstructure:"max_len"`
	MinVariety float64 `yaml:"min_variety" mapstructure:"min_variety"`
}

// DefaultQualityGate returns the 8..16 length, 0.6 variety gate.
func DefaultQualityGate() QualityGate {
	return QualityGate{MinLen: 8, MaxLen: 16, MinVariety: 0.6}
}

// IsHighQuality reports whether code is long enough, varied enough, and
// free of repeated chunks.
func (g QualityGate) IsHighQuality(code string) bool {
	n := utf8.RuneCountInString(code)
	if n < g.MinLen || n > g.MaxLen {
		return false
	}
	if Variety(code) < g.MinVariety {
		return false
	}
	return !HasRepetitivePattern(code)
}

// Variety is the ratio of distinct characters to length.
func Variety(code string) float64 {
	n := utf8.RuneCountInString(code)
	if n == 0 {
		return 0
	}
	seen := make(map[rune]struct{}, n)
	for _, r := range code {
		seen[r] = struct{}{}
	}
	return float64(len(seen)) / float64(n)
}

// HasRepetitivePattern reports whether some substring of length 2..len/2
// occurs more than twice without overlap. Codes shorter than 6 never do.
func HasRepetitivePattern(code string) bool {
	n := len(code)
	if n < 6 {
		return false
	}
	for l := 2; l <= n/2; l++ {
		for i := 0; i+l <= n; i++ {
			if strings.Count(code, code[i:i+l]) > 2 {
				return true
			}
		}
	}
	return false
}

// IsSequence reports whether every character is exactly one ordinal above
// the previous one, as in "ABCDE" or "12345". Needs at least three runes.
func IsSequence(code string) bool {
	runes := []rune(code)
	if len(runes) < 3 {
		return false
	}
	for i := 1; i < len(runes); i++ {
		if runes[i] != runes[i-1]+1 {
			return false
		}
	}
	return true
}
