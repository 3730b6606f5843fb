package scorer

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/reverscodes/codes-cli/internal/config"
	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/reward"
	"github.com/reverscodes/codes-cli/internal/screen"
)

// Scorer maps a record to a score in [0, 1]. Implementations are pure.
type Scorer interface {
	Name() string
	Score(r model.CodeRecord) float64
}

// QualityScorer weighs format validity, reward validity, source trust, and
// code length.
type QualityScorer struct {
	cfg      config.ScoringConfig
	screener *screen.Screener
}

// NewQuality creates a QualityScorer judging codes with screener.
func NewQuality(cfg config.ScoringConfig, screener *screen.Screener) *QualityScorer {
	return &QualityScorer{cfg: cfg, screener: screener}
}

func (q *QualityScorer) Name() string { return "quality" }

// Score implements Scorer.
func (q *QualityScorer) Score(r model.CodeRecord) float64 {
	var s float64
	if q.screener.IsPlausible(r.Code) {
		s += q.cfg.CodeWeight
	}
	if reward.Valid(r.Reward) {
		s += q.cfg.RewardWeight
	}
	if q.trusted(r.Source) {
		s += q.cfg.SourceWeight
	}
	if n := utf8.RuneCountInString(r.Code); n >= q.cfg.IdealMinLen && n <= q.cfg.IdealMaxLen {
		s += q.cfg.LengthWeight
	}
	return clamp(s)
}

func (q *QualityScorer) trusted(source string) bool {
	lower := strings.ToLower(source)
	for _, t := range q.cfg.TrustedSources {
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// ConfidenceScorer rates how likely an extracted token is a real code from
// its shape and the strategy that found it.
type ConfidenceScorer struct{}

// NewConfidence creates a ConfidenceScorer.
func NewConfidence() *ConfidenceScorer {
	return &ConfidenceScorer{}
}

func (c *ConfidenceScorer) Name() string { return "confidence" }

// Score implements Scorer.
func (c *ConfidenceScorer) Score(r model.CodeRecord) float64 {
	code := r.Code
	var s float64

	switch n := utf8.RuneCountInString(code); {
	case n >= 8 && n <= 16:
		s += 0.3
	case n >= 5 && n <= 20:
		s += 0.2
	default:
		s += 0.1
	}

	switch v := screen.Variety(code); {
	case v >= 0.8:
		s += 0.3
	case v >= 0.6:
		s += 0.2
	default:
		s += 0.1
	}

	if !screen.IsSequence(code) && !screen.HasRepetitivePattern(code) {
		s += 0.2
	} else {
		s += 0.1
	}

	switch r.Method {
	case model.MethodSectionTarget:
		s += 0.2
	case model.MethodTextPattern, model.MethodElementSearch:
		s += 0.1
	}

	return clamp(s)
}

// clamp bounds s to [0, 1] and rounds to two places so band sums such as
// 0.3+0.3+0.2 compare equal to their thresholds.
func clamp(s float64) float64 {
	return math.Max(0, math.Min(1, math.Round(s*100)/100))
}
