package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/reward"
	"github.com/reverscodes/codes-cli/internal/screen"
)

// SectionKind labels a heading by the list it introduces.
type SectionKind int

const (
	SectionNone SectionKind = iota
	SectionActive
	SectionExpired
)

var (
	activeKeywords  = []string{"active code", "working code", "current code", "new code", "valid code"}
	expiredKeywords = []string{"expired", "inactive", "no longer work", "not working"}
)

// ClassifyHeading decides whether heading text introduces active or
// expired codes. Expired keywords win, so "Inactive codes" is expired.
func ClassifyHeading(text string) SectionKind {
	lower := strings.ToLower(text)
	for _, k := range expiredKeywords {
		if strings.Contains(lower, k) {
			return SectionExpired
		}
	}
	for _, k := range activeKeywords {
		if strings.Contains(lower, k) {
			return SectionActive
		}
	}
	return SectionNone
}

// itemTags are consulted, in order, for code text inside a list item.
var itemTags = []string{"code", "kbd", "strong", "b", "span", "em"}

// Sections reads the list that follows each "active codes" and "expired
// codes" heading.
type Sections struct {
	Screener *screen.Screener
	Rewards  *reward.Extractor
}

// NewSections creates a section-aware extractor on the strict regime.
func NewSections(deny *screen.DenyList) *Sections {
	return &Sections{
		Screener: screen.New(screen.StrictRegime(), deny),
		Rewards:  reward.NewExtractor(),
	}
}

func (s *Sections) Name() string { return "sections" }

// Extract implements Extractor.
func (s *Sections) Extract(doc *Document, _ string) Result {
	c := newCollector()
	isList := IsTag("ul", "ol")

	doc.Find("h1, h2, h3, h4, h5, strong, b").Each(func(_ int, h *goquery.Selection) {
		kind := ClassifyHeading(Text(h))
		if kind == SectionNone {
			return
		}
		list := doc.NextInOrder(h.Nodes[0], isList)
		if list == nil {
			return
		}
		for _, li := range listItems(goquery.NewDocumentFromNode(list).Selection) {
			code, ok := s.itemCode(li)
			if !ok {
				continue
			}
			if kind == SectionExpired {
				c.addExpired(code)
				continue
			}
			text := Text(li)
			c.addActive(model.NewCandidate(code, model.MethodSectionTarget, s.itemReward(text)))
		}
	})
	return c.result()
}

// listItems returns the direct li children of list, or every nested li
// when there are none.
func listItems(list *goquery.Selection) []*goquery.Selection {
	items := list.ChildrenFiltered("li")
	if items.Length() == 0 {
		items = list.Find("li")
	}
	out := make([]*goquery.Selection, 0, items.Length())
	items.Each(func(_ int, li *goquery.Selection) { out = append(out, li) })
	return out
}

// itemCode returns the first plausible token of a list item, preferring
// marked-up code text over the raw item text.
func (s *Sections) itemCode(li *goquery.Selection) (string, bool) {
	return firstPlausible(s.Screener, itemTexts(li))
}

// itemTexts returns the texts of the item's code-bearing sub-elements, or
// the whole item text when it has none.
func itemTexts(li *goquery.Selection) []string {
	if texts := subTexts(li); len(texts) > 0 {
		return texts
	}
	return []string{Text(li)}
}

func subTexts(li *goquery.Selection) []string {
	var texts []string
	for _, tag := range itemTags {
		li.Find(tag).Each(func(_ int, el *goquery.Selection) {
			if t := Text(el); t != "" {
				texts = append(texts, t)
			}
		})
	}
	return texts
}

func firstPlausible(sc *screen.Screener, texts []string) (string, bool) {
	for _, t := range texts {
		for _, tok := range Tokens(t) {
			if sc.IsPlausible(tok) {
				return tok, true
			}
		}
	}
	return "", false
}

// itemReward prefers a trailing parenthetical that reads as a reward.
func (s *Sections) itemReward(text string) string {
	if r, ok := reward.Parenthetical(text); ok {
		return r
	}
	return s.Rewards.Extract(text)
}
