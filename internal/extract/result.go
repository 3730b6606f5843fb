package extract

import (
	"github.com/reverscodes/codes-cli/internal/model"
)

// Result holds what one extractor found on one page.
type Result struct {
	Active  []model.CodeCandidate
	Expired []string
}

// Extractor turns a parsed page into candidates.
type Extractor interface {
	Name() string
	Extract(doc *Document, pageURL string) Result
}

// collector deduplicates candidates by normalized code, keeping first-seen
// order, and lets expired codes win over active ones.
type collector struct {
	active  []model.CodeCandidate
	seen    map[string]bool
	expired []string
	gone    map[string]bool
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool), gone: make(map[string]bool)}
}

func (c *collector) addActive(cand model.CodeCandidate) bool {
	if c.seen[cand.NormalizedCode] || c.gone[cand.NormalizedCode] {
		return false
	}
	c.seen[cand.NormalizedCode] = true
	c.active = append(c.active, cand)
	return true
}

func (c *collector) addExpired(code string) {
	code = model.NormalizeCode(code)
	if c.gone[code] {
		return
	}
	c.gone[code] = true
	c.expired = append(c.expired, code)
}

func (c *collector) result() Result {
	active := make([]model.CodeCandidate, 0, len(c.active))
	for _, cand := range c.active {
		if !c.gone[cand.NormalizedCode] {
			active = append(active, cand)
		}
	}
	return Result{Active: active, Expired: c.expired}
}
