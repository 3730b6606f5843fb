package reward

import "regexp"

// Pattern is one entry of the ordered reward table. The first capture group
// is the reward text.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Description string
	Examples    []string
}

const (
	durationUnit = `(?:minutes?|mins?|hours?|hrs?)`
	multiplier   = `\d+(?:\.\d+)?x`
	expUnit      = `(?:EXP|XP|Experience)`
)

// defaultPatterns returns the reward table, most specific first.
func defaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:        "duration boost",
			Regex:       regexp.MustCompile(`(?i)(\d+\s*` + durationUnit + `\s*(?:of\s+)?` + multiplier + `\s*` + expUnit + `)`),
			Description: "timed experience multiplier, duration first",
			Examples:    []string{"20 minutes of 2x EXP", "1 hour 2x XP"},
		},
		{
			Name:        "multiplier boost",
			Regex:       regexp.MustCompile(`(?i)(` + multiplier + `\s*` + expUnit + `(?:\s*(?:\(\s*\d+\s*` + durationUnit + `\s*\)|for\s+\d+\s*` + durationUnit + `))?)`),
			Description: "experience multiplier with optional duration",
			Examples:    []string{"2x EXP (20 minutes)", "3x XP for 15 mins"},
		},
		{
			Name:        "currency",
			Regex:       regexp.MustCompile(`(?i)(\d[\d,.]*\s*[kKmM]?\s*(?:Gems?|Coins?|Cash|Money|Currency|Beli|Yen|Gold|Diamonds?|Crystals?|Robux|Rell\s+Coins?))\b`),
			Description: "amount of in-game currency",
			Examples:    []string{"50 Gems", "10K Cash", "1,000 Coins"},
		},
		{
			Name:        "spins",
			Regex:       regexp.MustCompile(`(?i)(\d+\s*(?:Free\s+)?(?:Spins?|Rerolls?|Rolls?|Summons?))\b`),
			Description: "count of spins or rerolls",
			Examples:    []string{"5 Spins", "3 Free Rerolls"},
		},
		{
			Name:        "counted items",
			Regex:       regexp.MustCompile(`(?i)(\d[\d,]*\s*(?:Items?|Rewards?|Prizes?|Trophies|Trophy|Points?|Stars?|Hearts?|Tokens?|Keys?|Crates?|Boosts?|Potions?))\b`),
			Description: "count of generic items",
			Examples:    []string{"200 Trophies", "3 Boosts"},
		},
		{
			Name:        "free bonus",
			Regex:       regexp.MustCompile(`(?i)((?:Free|Bonus|Extra)\s+(?:Rewards?|Items?|Spins?|Gems?|Coins?|Cash|Boosts?|Pets?|Skins?))\b`),
			Description: "unquantified free or bonus reward",
			Examples:    []string{"Free Spins", "Bonus Gems"},
		},
		{
			Name:        "unlocks",
			Regex:       regexp.MustCompile(`(?i)((?:Unlocks?|Gives?|Provides?|Grants?)\s+(?:the\s+|a\s+|an\s+)?["'“]?[^"'”\n]{2,60}["'”]?(?:\s+(?:vehicle|car|skin|outfit|pet|title))?)`),
			Description: "explicit unlock statement",
			Examples:    []string{`Unlocks the "Betty Beater" vehicle`, "Gives a free pet"},
		},
		{
			Name:        "item noun",
			Regex:       regexp.MustCompile(`((?:[A-Z][\w'-]*\s+){0,3}(?i:vehicle|car|skin|outfit|accessory|weapon|tool|title|emote|aura)s?)\b`),
			Description: "named cosmetic or item",
			Examples:    []string{"Exclusive Car Skin", "Neon Aura"},
		},
	}
}

var (
	trailingParenRe = regexp.MustCompile(`\(([^()]+)\)\s*$`)
	dashColonRe     = regexp.MustCompile(`[-–—:]\s*([^-–—:()]+?)\s*$`)
	labelledRe      = regexp.MustCompile(`(?i)(?:reward|rewards|gives|unlocks)\s*:\s*([^\n]+)`)
)

// rewardWords mark a string as reward-like when no pattern matches.
var rewardWords = []string{"reward", "gem", "coin", "cash", "spin", "item", "exp", "xp", "free", "bonus", "boost", "trophies", "unlock"}
