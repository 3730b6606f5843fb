package scorer

import (
	"sort"
	"unicode/utf8"

	"github.com/reverscodes/codes-cli/internal/model"
)

// Dedupe keeps one record per normalized code. A later duplicate replaces
// the kept reward only when its reward is strictly longer. Order follows
// first appearance. Dedupe(Dedupe(x)) == Dedupe(x).
func Dedupe(records []model.CodeRecord) []model.CodeRecord {
	idx := make(map[string]int, len(records))
	out := make([]model.CodeRecord, 0, len(records))
	for _, r := range records {
		key := model.NormalizeCode(r.Code)
		if key == "" {
			continue
		}
		r.Code = key
		i, ok := idx[key]
		if !ok {
			idx[key] = len(out)
			out = append(out, r)
			continue
		}
		if utf8.RuneCountInString(r.Reward) > utf8.RuneCountInString(out[i].Reward) {
			out[i].Reward = r.Reward
		}
	}
	return out
}

// Attach selects which score field Rank writes onto each record.
type Attach int

const (
	AttachNone Attach = iota
	AttachQuality
	AttachConfidence
)

// RankOptions control Rank.
type RankOptions struct {
	MinScore float64
	Limit    int // 0 means no cap
	Attach   Attach
}

// Rank scores records with s, drops those below MinScore, and returns the
// rest sorted by descending score. Equal scores keep input order.
func Rank(records []model.CodeRecord, s Scorer, opts RankOptions) []model.CodeRecord {
	type scored struct {
		rec   model.CodeRecord
		score float64
	}
	kept := make([]scored, 0, len(records))
	for _, r := range records {
		v := s.Score(r)
		if v < opts.MinScore {
			continue
		}
		switch opts.Attach {
		case AttachQuality:
			r.QualityScore = v
		case AttachConfidence:
			r.ConfidenceScore = v
		}
		kept = append(kept, scored{rec: r, score: v})
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].score > kept[j].score })

	if opts.Limit > 0 && len(kept) > opts.Limit {
		kept = kept[:opts.Limit]
	}
	out := make([]model.CodeRecord, len(kept))
	for i, k := range kept {
		out[i] = k.rec
	}
	return out
}

// Confidence tier thresholds.
const (
	HighConfidence   = 0.8
	MediumConfidence = 0.5
)

// TierCounts is the confidence distribution of a record set.
type TierCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Tiers buckets records by ConfidenceScore.
func Tiers(records []model.CodeRecord) TierCounts {
	var t TierCounts
	for _, r := range records {
		switch {
		case r.ConfidenceScore >= HighConfidence:
			t.High++
		case r.ConfidenceScore >= MediumConfidence:
			t.Medium++
		default:
			t.Low++
		}
	}
	return t
}
