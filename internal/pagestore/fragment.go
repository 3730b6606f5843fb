// Package pagestore reads and rewrites named regions of the static site's
// HTML pages.
package pagestore

import (
	"bytes"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// ErrAnchorNotFound is returned when a page has no element with the
// requested id.
var ErrAnchorNotFound = eris.New("pagestore: anchor not found")

// locate returns the byte range of the inner content of the element whose
// id attribute equals anchorID. Nested elements with the same tag name are
// balanced; the page is otherwise left untouched.
func locate(doc []byte, anchorID string) (start, end int, err error) {
	z := html.NewTokenizer(bytes.NewReader(doc))
	offset := 0
	var tag []byte
	depth := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				break
			}
			return 0, 0, eris.Wrap(z.Err(), "pagestore: tokenize")
		}
		raw := len(z.Raw())
		tokStart := offset
		offset += raw

		switch tt {
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if tag != nil {
				if bytes.Equal(name, tag) {
					depth++
				}
				continue
			}
			if hasAttr && hasID(z, anchorID) {
				tag = append([]byte(nil), name...)
				depth = 1
				start = offset
			}
		case html.SelfClosingTagToken:
			if tag == nil {
				if name, hasAttr := z.TagName(); hasAttr && hasID(z, anchorID) {
					return 0, 0, eris.Errorf("pagestore: anchor %q is a void <%s>", anchorID, name)
				}
			}
		case html.EndTagToken:
			if tag == nil {
				continue
			}
			if name, _ := z.TagName(); bytes.Equal(name, tag) {
				depth--
				if depth == 0 {
					return start, tokStart, nil
				}
			}
		}
	}
	if tag != nil {
		return 0, 0, eris.Errorf("pagestore: anchor %q is never closed", anchorID)
	}
	return 0, 0, eris.Wrapf(ErrAnchorNotFound, "pagestore: %q", anchorID)
}

func hasID(z *html.Tokenizer, id string) bool {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "id" && string(val) == id {
			return true
		}
		if !more {
			return false
		}
	}
}

// splice returns doc with the inner content of anchorID replaced by inner.
func splice(doc []byte, anchorID, inner string) ([]byte, error) {
	start, end, err := locate(doc, anchorID)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(doc)-(end-start)+len(inner))
	out = append(out, doc[:start]...)
	out = append(out, inner...)
	out = append(out, doc[end:]...)
	return out, nil
}
