package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/reward"
	"github.com/reverscodes/codes-cli/internal/screen"
)

// expiryMarkerRe flags codes whose own text says they are dead.
var expiryMarkerRe = regexp.MustCompile(`EXPIRED|OLD|OUTDATED|INVALID|USED|CLAIMED|ENDED|FINISHED|CLOSED|STOPPED`)

// IsPotentiallyExpired reports whether code carries an expiry marker.
func IsPotentiallyExpired(code string) bool {
	return expiryMarkerRe.MatchString(strings.ToUpper(code))
}

// lineTokenRe finds upper-case code-shaped words in running text.
var lineTokenRe = regexp.MustCompile(`\b[A-Z0-9_!-]{5,20}\b`)

// siblingWindow is how many elements after a heading section targeting reads.
const siblingWindow = 5

// Precise runs section targeting, text-pattern, and element search over a
// page and keeps only codes that also pass the quality gate.
type Precise struct {
	Screener *screen.Screener
	Gate     screen.QualityGate
	Rewards  *reward.Extractor
}

// NewPrecise creates a precise extractor on the strict regime.
func NewPrecise(deny *screen.DenyList, gate screen.QualityGate) *Precise {
	return &Precise{
		Screener: screen.New(screen.StrictRegime(), deny),
		Gate:     gate,
		Rewards:  reward.NewExtractor(reward.WithStructuralHints()),
	}
}

func (p *Precise) Name() string { return "precise" }

// Extract implements Extractor.
func (p *Precise) Extract(doc *Document, pageURL string) Result {
	c := newCollector()
	p.sectionTargets(doc, c)
	p.textPatterns(doc, c)
	p.elementSearch(doc, ProfileFor(pageURL), c)
	return c.result()
}

func (p *Precise) accept(c *collector, code string, method model.ExtractionMethod, context string, expired bool) {
	code = model.NormalizeCode(code)
	if !p.Screener.IsPlausible(code) || !p.Gate.IsHighQuality(code) {
		return
	}
	if expired || IsPotentiallyExpired(code) {
		c.addExpired(code)
		return
	}
	c.addActive(model.NewCandidate(code, method, p.Rewards.Extract(context)))
}

func (p *Precise) sectionTargets(doc *Document, c *collector) {
	doc.Find("h1, h2, h3, h4, h5, h6, strong, b").Each(func(_ int, h *goquery.Selection) {
		title := strings.ToLower(Text(h))
		if !strings.Contains(title, "code") {
			return
		}
		expired := ClassifyHeading(title) == SectionExpired
		h.NextAll().Slice(0, min(siblingWindow, h.NextAll().Length())).Each(func(_ int, sib *goquery.Selection) {
			sib.Find("li, p, span, div, code, kbd, strong").AddSelection(sib).Each(func(_ int, el *goquery.Selection) {
				text := Text(el)
				if text == "" || strings.Contains(text, " ") {
					return
				}
				p.accept(c, text, model.MethodSectionTarget, contextText(el), expired)
			})
		})
	})
}

func (p *Precise) textPatterns(doc *Document, c *collector) {
	for _, line := range doc.Lines() {
		for _, tok := range lineTokenRe.FindAllString(line, -1) {
			p.accept(c, tok, model.MethodTextPattern, line, false)
		}
	}
}

func (p *Precise) elementSearch(doc *Document, prof Profile, c *collector) {
	visit := func(el *goquery.Selection) {
		for _, tok := range Tokens(Text(el)) {
			if p.Screener.IsPlausible(tok) {
				code := model.NormalizeCode(tok)
				if !p.Gate.IsHighQuality(code) {
					continue
				}
				if IsPotentiallyExpired(code) {
					c.addExpired(code)
					continue
				}
				c.addActive(model.NewCandidate(code, model.MethodElementSearch, p.nearbyReward(el, prof)))
			}
		}
	}
	for _, sel := range prof.CodeSelectors {
		doc.Find(sel).Each(func(_ int, el *goquery.Selection) { visit(el) })
	}
	doc.Find(classSearchTags).Each(func(_ int, el *goquery.Selection) {
		if HasClass(el, codeClassRe) {
			visit(el)
		}
	})
}

// nearbyReward looks for a profile reward element on the code element or
// its parent, then for a reward-like sibling, then reads the parent text.
func (p *Precise) nearbyReward(el *goquery.Selection, prof Profile) string {
	parent := el.Parent()
	for _, scope := range []*goquery.Selection{el, parent} {
		for _, sel := range prof.RewardSelectors {
			if r := Text(scope.Find(sel).First()); reward.Valid(r) {
				return r
			}
		}
	}
	var found string
	parent.Children().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
		if sib.IsSelection(el) || !sib.Is("span, div, p") {
			return true
		}
		if r := Text(sib); reward.Valid(r) {
			found = r
			return false
		}
		return true
	})
	if found != "" {
		return found
	}
	return p.Rewards.Extract(contextText(el))
}

// contextText is the text of the closest list item or paragraph around el.
func contextText(el *goquery.Selection) string {
	if anc := el.Closest("li, p, tr"); anc.Length() > 0 {
		return Text(anc)
	}
	return Text(el.Parent())
}
