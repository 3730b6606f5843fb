package screen

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DenyList is a case-insensitive set of tokens that are never codes.
// Matching is exact: "UPDATE" is denied, "UPDATE20" is not.
type DenyList struct {
	entries map[string]struct{}
}

// NewDenyList builds a deny-list from the given words.
func NewDenyList(words ...string) *DenyList {
	d := &DenyList{entries: make(map[string]struct{}, len(words))}
	for _, w := range words {
		d.add(w)
	}
	return d
}

func (d *DenyList) add(w string) {
	w = strings.ToUpper(strings.TrimSpace(w))
	if w == "" {
		return
	}
	d.entries[w] = struct{}{}
}

// Contains reports whether token is denied.
func (d *DenyList) Contains(token string) bool {
	if d == nil {
		return false
	}
	_, ok := d.entries[strings.ToUpper(strings.TrimSpace(token))]
	return ok
}

// Len returns the number of entries.
func (d *DenyList) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Merge returns a new list holding the entries of both lists.
func (d *DenyList) Merge(other *DenyList) *DenyList {
	out := NewDenyList()
	for _, src := range []*DenyList{d, other} {
		if src == nil {
			continue
		}
		for w := range src.entries {
			out.entries[w] = struct{}{}
		}
	}
	return out
}

// denyFile is the on-disk deny-list shape. JSON files written as
// {"blacklist": [...]} decode through the same YAML path.
type denyFile struct {
	Blacklist []string `yaml:"blacklist"`
}

// LoadDenyList reads a deny-list file. Accepted shapes are a mapping with a
// "blacklist" key or a bare list of strings, in YAML or JSON.
func LoadDenyList(path string) (*DenyList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "screen: read deny list %s", path)
	}

	var doc denyFile
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Blacklist) > 0 {
		return NewDenyList(doc.Blacklist...), nil
	}

	var words []string
	if err := yaml.Unmarshal(data, &words); err != nil {
		return nil, eris.Wrapf(err, "screen: parse deny list %s", path)
	}
	if len(words) == 0 {
		return nil, eris.Errorf("screen: deny list %s is empty", path)
	}
	return NewDenyList(words...), nil
}

// LoadDenyListOrDefault loads path and merges it into the default list, or
// replaces the default when replace is set. Any load failure is logged and
// the default list is returned.
func LoadDenyListOrDefault(path string, replace bool) *DenyList {
	def := DefaultDenyList()
	if path == "" {
		return def
	}
	loaded, err := LoadDenyList(path)
	if err != nil {
		zap.L().Warn("deny list unavailable, using built-in default",
			zap.String("path", path),
			zap.Int("default_entries", def.Len()),
			zap.Error(err),
		)
		return def
	}
	if replace {
		return loaded
	}
	return def.Merge(loaded)
}

// DefaultDenyList returns the built-in deny-list.
func DefaultDenyList() *DenyList {
	d := NewDenyList(defaultDenyWords...)
	for w := range marketingWords {
		d.add(w)
	}
	return d
}

// marketingWords are headline words that sites splash next to codes.
var marketingWords = map[string]struct{}{
	"FREE": {}, "NEW": {}, "UPDATE": {}, "RELEASE": {}, "LATEST": {}, "HOT": {}, "POPULAR": {},
}

func isMarketingWord(token string) bool {
	_, ok := marketingWords[token]
	return ok
}

var defaultDenyWords = []string{
	// filler words
	"THE", "AND", "FOR", "WITH", "THIS", "THAT", "THESE", "THOSE", "FROM", "INTO",
	"YOUR", "YOU", "OUR", "ARE", "WAS", "WERE", "WILL", "HAVE", "HAS", "HAD",
	"BUT", "NOT", "ALL", "ANY", "CAN", "GET", "GOT", "ONE", "TWO", "OUT",
	"ABOUT", "AFTER", "BEFORE", "BELOW", "ABOVE", "HERE", "THERE", "WHERE", "WHEN", "WHAT",
	"WHICH", "WHILE", "THEIR", "THEY", "THEM", "THEN", "THAN", "ALSO", "JUST", "ONLY",
	"MORE", "MOST", "SOME", "SUCH", "VERY", "EACH", "EVERY", "OTHER", "AGAIN", "STILL",
	"MAKE", "SURE", "NEED", "WANT", "KNOW", "SEE", "USE", "USED", "USING", "WORKS",
	"WORK", "TIME", "TIMES", "NOW", "SOON", "EVER", "NEVER", "ALWAYS", "OFTEN",

	// code-page vocabulary
	"CODE", "CODES", "CODESLIST", "PROMO", "PROMOCODE", "PROMOCODES", "COUPON", "VOUCHER",
	"DISCOUNT", "REWARD", "REWARDS", "PRIZE", "PRIZES", "GIFT", "GIFTS", "BONUS",
	"ACTIVE", "EXPIRED", "INACTIVE", "WORKING", "VALID", "INVALID", "REDEEM", "REDEEMED",
	"REDEEMING", "CLAIM", "CLAIMED", "ENTER", "COPY", "COPIED", "PASTE", "TYPE",
	"NOTE", "NOTES", "TODAY", "TOMORROW", "YESTERDAY", "WEEK", "MONTH", "YEAR",
	"GAMING", "GAMER", "GAMERS", "GAME", "GAMES", "ROBLOX", "PLAYER", "PLAYERS",
	"SEASON", "PATCH", "HOTFIX", "MAINTENANCE", "EVENT", "EVENTS", "LAUNCH", "ANNIVERSARY",
	"THANKYOU", "THANKS", "MILLION", "BILLION", "VISITS", "LIKES", "SUBSCRIBERS", "MEMBERS",
	"COMMUNITY", "LIST", "WIKI", "TRELLO", "FAQ", "TIPS", "TRICKS", "NEWS",

	// social and navigation
	"SUBSCRIBE", "LIKE", "COMMENT", "COMMENTS", "SHARE", "FOLLOW", "JOIN", "DISCORD",
	"TWITTER", "YOUTUBE", "INSTAGRAM", "FACEBOOK", "TIKTOK", "REDDIT", "TWITCH", "STEAM",
	"WEBSITE", "OFFICIAL", "UNOFFICIAL", "GUIDE", "GUIDES", "WALKTHROUGH", "TUTORIAL",
	"HELP", "SUPPORT", "CONTACT", "PRIVACY", "TERMS", "POLICY", "COOKIES", "COOKIE",
	"HOME", "MENU", "NAVIGATION", "SEARCH", "FILTER", "SORT", "VIEW", "EDIT",
	"DELETE", "SAVE", "CANCEL", "CONFIRM", "SUBMIT", "RESET", "REFRESH", "RELOAD",
	"BACK", "NEXT", "PREVIOUS", "FIRST", "LAST", "PAGE", "SECTION", "HEADER",
	"FOOTER", "SIDEBAR", "MAIN", "CONTENT", "TEXT", "LINK", "LINKS", "BUTTON",
	"IMAGE", "VIDEO", "AUDIO", "FILE", "DOWNLOAD", "UPLOAD", "INSTALL", "UNINSTALL",
	"LOGIN", "LOGOUT", "SIGNUP", "REGISTER", "ACCOUNT", "PROFILE", "SETTINGS", "CLOSE",
	"OPEN", "SHOW", "HIDE", "MORE", "LESS", "READ", "CLICK", "TAP", "PRESS",
	"ADVERTISEMENT", "SPONSORED", "AFFILIATE", "NEWSLETTER", "EMAIL", "UPDATED", "AUTHOR",

	// product tiers and rarity
	"UPGRADE", "VERSION", "BETA", "ALPHA", "DEMO", "TRIAL", "PREMIUM", "PRO",
	"PLUS", "BASIC", "STANDARD", "DELUXE", "ULTIMATE", "EXCLUSIVE", "LIMITED", "SPECIAL",
	"RARE", "EPIC", "LEGENDARY", "COMMON", "UNCOMMON", "MYTHIC", "MYTHICAL", "DIVINE",
	"COSMIC", "INFINITE", "SECRET", "EXOTIC", "GODLY", "ANCIENT",

	// reward nouns
	"GEMS", "COINS", "CASH", "MONEY", "SPINS", "SPIN", "ITEMS", "ITEM",
	"BOOST", "BOOSTS", "EXP", "XP", "EXPERIENCE", "TOKENS", "CRATES", "KEYS",
	"SKIN", "SKINS", "PET", "PETS", "VEHICLE", "TROPHIES", "POINTS", "STARS",

	// calendar
	"JANUARY", "FEBRUARY", "MARCH", "APRIL", "MAY", "JUNE", "JULY", "AUGUST",
	"SEPTEMBER", "OCTOBER", "NOVEMBER", "DECEMBER",
	"JAN", "FEB", "MAR", "APR", "JUN", "JUL", "AUG", "SEP", "SEPT", "OCT", "NOV", "DEC",
	"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY",

	// UI labels and junk phrases
	"CLAIM REWARD", "USE CODE", "ENTER CODE", "CLICK HERE", "TERMS APPLY", "LIMITED TIME",
	"LIMITED TIME OFFER", "FOLLOW US", "FOLLOW US ON SOCIAL MEDIA", "SOCIAL MEDIA",
	"MONEY BACK", "MONEY BACK GUARANTEE", "GUARANTEE", "30-DAY", "LAST UPDATED",
	"READ MORE", "SEE ALSO", "SIGN UP", "LOG IN", "COPY CODE", "N/A", "TBA", "TBD",
}
