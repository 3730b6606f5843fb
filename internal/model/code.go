package model

import (
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// DefaultReward is the placeholder used when no reward text could be inferred.
const DefaultReward = "Free Rewards"

// MaxRewardLen bounds reward descriptions stored on a CodeRecord.
const MaxRewardLen = 100

// ExtractionMethod identifies which strategy surfaced a candidate.
type ExtractionMethod string

const (
	MethodSectionTarget ExtractionMethod = "section_target"
	MethodTextPattern   ExtractionMethod = "text_pattern"
	MethodElementSearch ExtractionMethod = "element_search"
	MethodFallback      ExtractionMethod = "fallback"
	MethodManual        ExtractionMethod = "manual"
)

// CodeCandidate is a token pulled out of a page together with the reward
// text the extractor paired with it. Candidates are immutable.
type CodeCandidate struct {
	RawText        string           `json:"raw_text"`
	NormalizedCode string           `json:"code"`
	Method         ExtractionMethod `json:"method"`
	SourceName     string           `json:"source_name"`
	SourceURL      string           `json:"source_url"`
	Reward         string           `json:"reward,omitempty"`
}

// NewCandidate normalizes raw into a candidate code.
func NewCandidate(raw string, method ExtractionMethod, reward string) CodeCandidate {
	return CodeCandidate{
		RawText:        raw,
		NormalizedCode: NormalizeCode(raw),
		Method:         method,
		Reward:         strings.TrimSpace(reward),
	}
}

// WithSource returns a copy of c attributed to the given source.
func (c CodeCandidate) WithSource(name, url string) CodeCandidate {
	c.SourceName = name
	c.SourceURL = url
	return c
}

// Raw converts the candidate into an untrusted record for validation.
func (c CodeCandidate) Raw() RawRecord {
	code := c.NormalizedCode
	reward := c.Reward
	if reward == "" {
		reward = DefaultReward
	}
	r := RawRecord{Code: &code, Reward: &reward, Method: c.Method, SourceURL: c.SourceURL}
	if c.SourceName != "" {
		src := c.SourceName
		r.Source = &src
	}
	return r
}

// CodeRecord is a validated code ready for ranking and publication.
type CodeRecord struct {
	Code            string           `json:"code"`
	Reward          string           `json:"reward"`
	Source          string           `json:"source"`
	SourceURL       string           `json:"source_url,omitempty"`
	Method          ExtractionMethod `json:"method,omitempty"`
	QualityScore    float64          `json:"quality_score"`
	ConfidenceScore float64          `json:"confidence_score"`
}

// NewCodeRecord builds a CodeRecord, rejecting malformed input.
func NewCodeRecord(code, reward, source string) (CodeRecord, error) {
	code = NormalizeCode(code)
	if code == "" {
		return CodeRecord{}, eris.New("model: empty code")
	}
	reward = strings.TrimSpace(reward)
	if reward == "" {
		return CodeRecord{}, eris.Errorf("model: empty reward for %s", code)
	}
	if utf8.RuneCountInString(reward) > MaxRewardLen {
		return CodeRecord{}, eris.Errorf("model: reward for %s exceeds %d chars", code, MaxRewardLen)
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = UnknownSource
	}
	return CodeRecord{Code: code, Reward: reward, Source: source}, nil
}

// UnknownSource is recorded when a record carries no source attribution.
const UnknownSource = "Unknown"

// NormalizeCode trims whitespace and upper-cases a code.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Codes returns the code strings of records in order.
func Codes(records []CodeRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Code
	}
	return out
}
