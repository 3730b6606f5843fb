// Package extract pulls code candidates out of HTML pages.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// Document is a parsed page with its elements indexed in document order.
type Document struct {
	doc   *goquery.Document
	order []*html.Node
	index map[*html.Node]int
}

// noise is removed before any extraction runs.
const noise = "script, style, noscript, nav, footer, iframe, svg"

// Parse builds a Document from raw HTML.
func Parse(raw string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}
	doc.Find(noise).Remove()

	d := &Document{doc: doc, index: make(map[*html.Node]int)}
	for _, root := range doc.Nodes {
		d.walk(root)
	}
	return d, nil
}

func (d *Document) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		d.index[n] = len(d.order)
		d.order = append(d.order, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.walk(c)
	}
}

// Find runs a CSS selector over the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// NextInOrder returns the first element after n in document order that
// satisfies match and is not inside n.
func (d *Document) NextInOrder(n *html.Node, match func(*html.Node) bool) *html.Node {
	i, ok := d.index[n]
	if !ok {
		return nil
	}
	for _, cand := range d.order[i+1:] {
		if contains(n, cand) {
			continue
		}
		if match(cand) {
			return cand
		}
	}
	return nil
}

func contains(ancestor, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// IsTag returns a matcher for any of the given element names.
func IsTag(names ...string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, name := range names {
			if n.Data == name {
				return true
			}
		}
		return false
	}
}

// HasClass reports whether any class of the selection matches re.
func HasClass(s *goquery.Selection, re *regexp.Regexp) bool {
	class, ok := s.Attr("class")
	return ok && re.MatchString(class)
}

var wsRe = regexp.MustCompile(`\s+`)

// Text returns the selection's text with whitespace collapsed.
func Text(s *goquery.Selection) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s.Text(), " "))
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true, "br": true, "tr": true,
	"td": true, "th": true, "table": true, "section": true, "article": true, "header": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "pre": true,
	"blockquote": true, "dd": true, "dt": true,
}

// Lines returns the visible text of the page split at block boundaries.
func (d *Document) Lines() []string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if blockTags[n.Data] {
				b.WriteByte('\n')
				defer b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range d.doc.Nodes {
		walk(root)
	}

	var lines []string
	for _, l := range strings.Split(b.String(), "\n") {
		l = strings.TrimSpace(wsRe.ReplaceAllString(l, " "))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

var tokenRe = regexp.MustCompile(`[A-Z0-9_!-]+`)

// Tokens returns the maximal code-charset runs of the upper-cased text.
func Tokens(text string) []string {
	return tokenRe.FindAllString(strings.ToUpper(text), -1)
}
