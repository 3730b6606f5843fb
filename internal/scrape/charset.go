package scrape

import (
	"mime"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// sniffLen is how much of the body is searched for a meta charset.
const sniffLen = 1024

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([\w-]+)`)

// charsetOf returns the declared charset of a page, from the Content-Type
// header first and a <meta> tag second. Empty means undeclared.
func charsetOf(contentType string, body []byte) string {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs := params["charset"]; cs != "" {
			return strings.ToLower(cs)
		}
	}
	head := body
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if m := metaCharsetRe.FindSubmatch(head); m != nil {
		return strings.ToLower(string(m[1]))
	}
	return ""
}

// decodeBody converts body to UTF-8 text.
func decodeBody(contentType string, body []byte) (string, error) {
	cs := charsetOf(contentType, body)
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return string(body), nil
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: unsupported charset %q", cs)
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: decode %s", cs)
	}
	return string(out), nil
}
