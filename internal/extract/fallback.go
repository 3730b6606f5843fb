package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/reward"
	"github.com/reverscodes/codes-cli/internal/screen"
)

// Fallback scans every list on the page when no labeled section exists.
type Fallback struct {
	Screener    *screen.Screener
	Rewards     *reward.Extractor
	MaxItemText int
	Cap         int
}

// NewFallback creates a fallback extractor with the 260-char item ceiling
// and a 20-code cap.
func NewFallback(deny *screen.DenyList) *Fallback {
	return &Fallback{
		Screener:    screen.New(screen.StrictRegime(), deny),
		Rewards:     reward.NewExtractor(),
		MaxItemText: 260,
		Cap:         20,
	}
}

func (f *Fallback) Name() string { return "fallback" }

// Extract implements Extractor. Lists following a heading that mentions
// "code" are read first, then every other list in document order.
func (f *Fallback) Extract(doc *Document, _ string) Result {
	c := newCollector()
	for _, list := range f.lists(doc) {
		for _, li := range listItems(goquery.NewDocumentFromNode(list).Selection) {
			if f.Cap > 0 && len(c.active) >= f.Cap {
				return c.result()
			}
			text := Text(li)
			if f.MaxItemText > 0 && utf8.RuneCountInString(text) > f.MaxItemText {
				continue
			}
			code, ok := firstPlausible(f.Screener, append(subTexts(li), text))
			if !ok {
				continue
			}
			c.addActive(model.NewCandidate(code, model.MethodFallback, f.itemReward(text)))
		}
	}
	return c.result()
}

func (f *Fallback) lists(doc *Document) []*html.Node {
	isList := IsTag("ul", "ol")
	seen := make(map[*html.Node]bool)
	var lists []*html.Node
	add := func(n *html.Node) {
		if n != nil && !seen[n] {
			seen[n] = true
			lists = append(lists, n)
		}
	}

	doc.Find("h1, h2, h3, h4").Each(func(_ int, h *goquery.Selection) {
		if strings.Contains(strings.ToLower(Text(h)), "code") {
			add(doc.NextInOrder(h.Nodes[0], isList))
		}
	})
	doc.Find("ul, ol").Each(func(_ int, l *goquery.Selection) {
		add(l.Nodes[0])
	})
	return lists
}

func (f *Fallback) itemReward(text string) string {
	if r, ok := reward.Parenthetical(text); ok {
		return r
	}
	if r, ok := reward.AfterSeparator(text); ok {
		return r
	}
	return f.Rewards.Extract(text)
}
