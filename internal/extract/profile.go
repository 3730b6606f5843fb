package extract

import (
	"net/url"
	"regexp"
	"strings"
)

// Profile is per-site selector data for element search.
type Profile struct {
	Name            string
	Hosts           []string
	CodeSelectors   []string
	RewardSelectors []string
}

// codeClassRe marks elements whose class suggests they hold a code.
var codeClassRe = regexp.MustCompile(`(?i)code|promo|reward`)

// classSearchTags are scanned on every site for a code-like class.
const classSearchTags = "code, pre, span, div, p"

var profiles = []Profile{
	{
		Name:            "progameguides",
		Hosts:           []string{"progameguides.com"},
		CodeSelectors:   []string{"div.code-block", "div.promo-code", "li.code-item", "span.code-text", "code", "pre"},
		RewardSelectors: []string{"span.reward", "span.description", "div.reward-text"},
	},
	{
		Name:            "beebom",
		Hosts:           []string{"beebom.com"},
		CodeSelectors:   []string{"div.code-container", "li.code-item", "span.code", "code", "strong"},
		RewardSelectors: []string{"span.reward", "div.reward", "p.reward"},
	},
	{
		Name:            "ign",
		Hosts:           []string{"ign.com"},
		CodeSelectors:   []string{"div.code-block", "li.code-item", "span.code", "code", "strong"},
		RewardSelectors: []string{"span.reward", "div.reward", "p.reward"},
	},
}

// DefaultProfile is used for hosts without a dedicated profile.
var DefaultProfile = Profile{
	Name:            "default",
	CodeSelectors:   []string{"code", "pre", "span.code", "strong", "b", "div.code-block", "li.code-item"},
	RewardSelectors: []string{"span.reward", "div.reward", "p.reward"},
}

// ProfileFor picks the profile whose host matches rawURL.
func ProfileFor(rawURL string) Profile {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultProfile
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range profiles {
		for _, h := range p.Hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return p
			}
		}
	}
	return DefaultProfile
}
