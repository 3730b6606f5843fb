package model

import "time"

// RunStatus represents the final state of a game update run.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusSkipped  RunStatus = "skipped"
	RunStatusFailed   RunStatus = "failed"
)

// Run is the persisted summary of one game update.
type Run struct {
	ID           string      `json:"id"`
	Game         string      `json:"game"`
	Mode         Mode        `json:"mode"`
	Status       RunStatus   `json:"status"`
	ActiveCount  int         `json:"active_count"`
	ExpiredCount int         `json:"expired_count"`
	SourcesOK    int         `json:"sources_ok"`
	SourcesTotal int         `json:"sources_total"`
	QualityScore float64     `json:"quality_score"`
	Result       *GameResult `json:"result,omitempty"`
	Error        string      `json:"error,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// NewRun summarizes a game result for persistence.
func NewRun(res *GameResult) Run {
	status := RunStatusComplete
	switch {
	case res.Error != "":
		status = RunStatusFailed
	case !res.Updated:
		status = RunStatusSkipped
	}
	return Run{
		Game:         res.Game,
		Mode:         res.Mode,
		Status:       status,
		ActiveCount:  len(res.Active),
		ExpiredCount: len(res.Expired),
		SourcesOK:    res.Stats.SourcesOK,
		SourcesTotal: res.Stats.SourcesTotal,
		QualityScore: res.Analysis.Score,
		Result:       res,
		Error:        res.Error,
	}
}

// ProbeStatus classifies a source URL health check.
type ProbeStatus string

const (
	ProbeWorking         ProbeStatus = "working"
	ProbeBroken          ProbeStatus = "broken"
	ProbeTimeout         ProbeStatus = "timeout"
	ProbeConnectionError ProbeStatus = "connection_error"
	ProbeError           ProbeStatus = "error"
)

// ProbeResult holds the outcome of checking one source URL.
type ProbeResult struct {
	Game          string        `json:"game"`
	Source        Source        `json:"source"`
	Status        ProbeStatus   `json:"status"`
	StatusCode    int           `json:"status_code,omitempty"`
	FinalURL      string        `json:"final_url,omitempty"`
	ContentLength int           `json:"content_length"`
	HasContent    bool          `json:"has_content"`
	Elapsed       time.Duration `json:"elapsed"`
	Error         string        `json:"error,omitempty"`
}
