package model

import (
	"fmt"
	"strings"
)

// RawRecord is an untrusted code record from a scrape or an import file.
// Nil pointers mean the field was absent.
type RawRecord struct {
	Code      *string          `json:"code,omitempty"`
	Reward    *string          `json:"reward,omitempty"`
	Source    *string          `json:"source,omitempty"`
	SourceURL string           `json:"source_url,omitempty"`
	Method    ExtractionMethod `json:"method,omitempty"`
}

// RawRecordFromMap converts a decoded JSON/YAML object into a RawRecord.
// Non-string values are formatted with %v so they can still be judged.
func RawRecordFromMap(m map[string]any) RawRecord {
	var r RawRecord
	r.Code = stringField(m, "code")
	r.Reward = stringField(m, "reward")
	r.Source = stringField(m, "source")
	if u := stringField(m, "source_url"); u != nil {
		r.SourceURL = *u
	}
	return r
}

func stringField(m map[string]any, key string) *string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch tv := v.(type) {
	case string:
		s = tv
	default:
		s = fmt.Sprintf("%v", tv)
	}
	return &s
}

// RawCode returns the code text or "" when absent.
func (r RawRecord) RawCode() string {
	if r.Code == nil {
		return ""
	}
	return *r.Code
}

// InvalidRecord pairs a rejected record with the reasons it failed.
type InvalidRecord struct {
	Record RawRecord `json:"record"`
	Errors []string  `json:"errors"`
}

// ValidationResult is the report produced by validating a batch of records.
type ValidationResult struct {
	Total             int             `json:"total"`
	Valid             []CodeRecord    `json:"valid"`
	Invalid           []InvalidRecord `json:"invalid"`
	DuplicatesRemoved int             `json:"duplicates_removed"`
	QualityFiltered   []CodeRecord    `json:"quality_filtered"`
	Errors            []string        `json:"errors"`
	Warnings          []string        `json:"warnings"`
}

// Summary renders a one-line description of the report.
func (v ValidationResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "total=%d valid=%d invalid=%d duplicates=%d quality=%d",
		v.Total, len(v.Valid), len(v.Invalid), v.DuplicatesRemoved, len(v.QualityFiltered))
	if len(v.Warnings) > 0 {
		fmt.Fprintf(&b, " warnings=%d", len(v.Warnings))
	}
	return b.String()
}
