package model

import "time"

// Source is a third-party page that lists codes for a game.
type Source struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	URL  string `json:"url" yaml:"url" mapstructure:"url"`
}

// ManualCode is a hand-maintained code used when scraping comes up short.
type ManualCode struct {
	Code   string `json:"code" yaml:"code" mapstructure:"code"`
	Reward string `json:"reward" yaml:"reward" mapstructure:"reward"`
}

// Game describes one tip page and the sources that feed it.
type Game struct {
	Key         string       `json:"key" yaml:"key" mapstructure:"key"`
	Name        string       `json:"name" yaml:"name" mapstructure:"name"`
	Page        string       `json:"page" yaml:"page" mapstructure:"page"`
	Sources     []Source     `json:"sources" yaml:"sources" mapstructure:"sources"`
	ManualCodes []ManualCode `json:"manual_codes,omitempty" yaml:"manual_codes" mapstructure:"manual_codes"`
}

// ManualRecords converts the game's manual codes into records, skipping
// malformed entries.
func (g Game) ManualRecords() []CodeRecord {
	var out []CodeRecord
	for _, mc := range g.ManualCodes {
		reward := mc.Reward
		if reward == "" {
			reward = DefaultReward
		}
		rec, err := NewCodeRecord(mc.Code, reward, "Manual")
		if err != nil {
			continue
		}
		rec.Method = MethodManual
		out = append(out, rec)
	}
	return out
}

// Mode selects the extraction flow used for a run.
type Mode string

const (
	ModeSections Mode = "sections"
	ModePrecise  Mode = "precise"
)

// ExtractionStats summarizes confidence tiers for a run.
type ExtractionStats struct {
	SourcesTotal     int `json:"sources_total"`
	SourcesOK        int `json:"sources_ok"`
	Active           int `json:"active"`
	Expired          int `json:"expired"`
	HighConfidence   int `json:"high_confidence"`
	MediumConfidence int `json:"medium_confidence"`
	LowConfidence    int `json:"low_confidence"`
}

// QualityAnalysis grades a run as a whole.
type QualityAnalysis struct {
	Score          float64  `json:"score"`
	Issues         []string `json:"issues,omitempty"`
	Recommendation string   `json:"recommendation"`
}

// SourceOutcome records what a single source contributed.
type SourceOutcome struct {
	Source  Source `json:"source"`
	Active  int    `json:"active"`
	Expired int    `json:"expired"`
	Error   string `json:"error,omitempty"`
}

// GameResult is the outcome of one pipeline run for one game.
type GameResult struct {
	Game       string           `json:"game"`
	Mode       Mode             `json:"mode"`
	Active     []CodeRecord     `json:"active"`
	Expired    []string         `json:"expired"`
	Report     ValidationResult `json:"report"`
	Stats      ExtractionStats  `json:"stats"`
	Analysis   QualityAnalysis  `json:"analysis"`
	Sources    []SourceOutcome  `json:"sources"`
	UsedManual bool             `json:"used_manual"`
	Updated    bool             `json:"updated"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}
