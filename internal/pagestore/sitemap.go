package pagestore

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// SitemapDateLayout is the <lastmod> date format.
const SitemapDateLayout = "2006-01-02"

// TouchSitemap sets every <lastmod> in the sitemap at path to now and
// returns how many entries changed.
func TouchSitemap(path string, now time.Time) (int, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return 0, eris.Wrapf(err, "pagestore: read sitemap %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, eris.Wrapf(err, "pagestore: stat sitemap %s", path)
	}

	out, n, err := replaceText(doc, "lastmod", now.Format(SitemapDateLayout))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	if err := writeAtomic(path, out, info.Mode().Perm()); err != nil {
		return 0, err
	}
	return n, nil
}

// replaceText sets the text content of every <tag> element in doc.
func replaceText(doc []byte, tag, text string) ([]byte, int, error) {
	z := html.NewTokenizer(bytes.NewReader(doc))
	var out bytes.Buffer
	out.Grow(len(doc))

	offset, last, n := 0, 0, 0
	inside := false
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				break
			}
			return nil, 0, eris.Wrap(z.Err(), "pagestore: tokenize sitemap")
		}
		tokStart := offset
		offset += len(z.Raw())

		switch tt {
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == tag {
				out.Write(doc[last:offset])
				last = offset
				inside = true
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); inside && string(name) == tag {
				if string(doc[last:tokStart]) != text {
					n++
				}
				out.WriteString(text)
				last = tokStart
				inside = false
			}
		}
	}
	out.Write(doc[last:])
	return out.Bytes(), n, nil
}
