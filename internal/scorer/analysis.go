package scorer

import (
	"math"

	"github.com/reverscodes/codes-cli/internal/model"
)

// Recommendation labels for Analyze.
const (
	RecommendExcellent = "Excellent"
	RecommendGood      = "Good"
	RecommendImprove   = "Needs improvement"
)

// Analyze rates a finished extraction from its source success rate and the
// number of confident and active codes it produced.
func Analyze(stats model.ExtractionStats) model.QualityAnalysis {
	var score float64
	var issues []string

	if stats.SourcesTotal > 0 {
		rate := float64(stats.SourcesOK) / float64(stats.SourcesTotal)
		score += rate * 0.3
		if rate < 0.5 {
			issues = append(issues, "Low source success rate")
		}
	}

	switch {
	case stats.HighConfidence >= 5:
		score += 0.4
	case stats.HighConfidence >= 2:
		score += 0.3
	default:
		issues = append(issues, "Low high-confidence code count")
	}

	switch {
	case stats.Active >= 8:
		score += 0.3
	case stats.Active >= 3:
		score += 0.2
	default:
		issues = append(issues, "Low active code count")
	}

	score = math.Round(score*100) / 100

	rec := RecommendImprove
	switch {
	case score >= 0.8:
		rec = RecommendExcellent
	case score >= 0.6:
		rec = RecommendGood
	}
	return model.QualityAnalysis{Score: score, Issues: issues, Recommendation: rec}
}
