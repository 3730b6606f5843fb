package scrape

import (
	"bytes"
	"net/http"
)

// BlockType names the anti-bot protection a response was judged to be.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// shellSize is the body size under which a noscript or refresh page is
// treated as a JavaScript-only shell.
const shellSize = 2000

var (
	cloudflareMarkers = [][]byte{
		[]byte("checking your browser"),
		[]byte("cf-browser-verification"),
		[]byte("just a moment..."),
		[]byte("cf-chl-"),
	}
	captchaMarkers = [][]byte{
		[]byte("g-recaptcha"),
		[]byte("h-captcha"),
		[]byte("hcaptcha.com"),
		[]byte("please complete the captcha"),
		[]byte("recaptcha"),
	}
)

// DetectBlock inspects a response for an anti-bot challenge instead of the
// requested page. Challenge markers in the body only count on a 403, 429 or
// 503 response or a shell-sized body; full pages often embed reCAPTCHA in a
// comment form.
func DetectBlock(status int, header http.Header, body []byte) BlockType {
	if status == http.StatusForbidden || status == http.StatusServiceUnavailable {
		if header.Get("Cf-Ray") != "" || header.Get("Cf-Mitigated") != "" ||
			bytes.EqualFold([]byte(header.Get("Server")), []byte("cloudflare")) {
			return BlockCloudflare
		}
	}

	if !challengeStatus(status) && len(body) >= shellSize {
		return BlockNone
	}
	lower := bytes.ToLower(body)
	for _, m := range cloudflareMarkers {
		if bytes.Contains(lower, m) {
			return BlockCloudflare
		}
	}
	for _, m := range captchaMarkers {
		if bytes.Contains(lower, m) {
			return BlockCaptcha
		}
	}

	if len(body) < shellSize {
		if bytes.Contains(lower, []byte("<noscript")) && bytes.Contains(lower, []byte("enable javascript")) {
			return BlockJSShell
		}
		if bytes.Contains(lower, []byte(`http-equiv="refresh"`)) {
			return BlockJSShell
		}
	}
	return BlockNone
}

func challengeStatus(status int) bool {
	switch status {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return false
}
