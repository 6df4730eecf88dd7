// Package model holds the shared record types of the macro pipeline layers.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// seriesNamespace seeds the deterministic surrogate key for a raw series id.
var seriesNamespace = uuid.MustParse("6f1c2a7e-3b54-4c8e-9d0a-5e2f7b1c9a30")

// SurrogateID returns the opaque series_id for a raw upstream series id.
// The same raw id always maps to the same surrogate.
func SurrogateID(rawSeriesID string) string {
	return uuid.NewSHA1(seriesNamespace, []byte(strings.TrimSpace(rawSeriesID))).String()
}

// Frequency is the observation cadence of a series.
type Frequency string

const (
	Monthly    Frequency = "M"
	Quarterly  Frequency = "Q"
	Semiannual Frequency = "S"
	Annual     Frequency = "A"
)

// ParseFrequency accepts the one-letter BLS code or the spelled-out name.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "monthly":
		return Monthly, nil
	case "q", "quarterly":
		return Quarterly, nil
	case "s", "semiannual":
		return Semiannual, nil
	case "a", "annual", "yearly":
		return Annual, nil
	default:
		return "", eris.Errorf("model: unknown frequency %q", s)
	}
}

// MonthsPerPeriod returns the calendar months spanned by one period, or 0
// for an unknown frequency.
func (f Frequency) MonthsPerPeriod() int {
	switch f {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case Semiannual:
		return 6
	case Annual:
		return 12
	default:
		return 0
	}
}

// PeriodsPerYear returns the year-over-year lag in periods, or 0 for an
// unknown frequency.
func (f Frequency) PeriodsPerYear() int {
	m := f.MonthsPerPeriod()
	if m == 0 {
		return 0
	}
	return 12 / m
}

// SeriesMetadata describes one series in the cleaned layer.
type SeriesMetadata struct {
	SeriesID           string            `json:"series_id"`
	RawSeriesID        string            `json:"raw_series_id"`
	Name               string            `json:"name"`
	SeriesType         string            `json:"series_type,omitempty"`
	Survey             string            `json:"survey,omitempty"`
	Frequency          Frequency         `json:"frequency"`
	SeasonallyAdjusted bool              `json:"seasonally_adjusted"`
	Classification     map[string]string `json:"classification,omitempty"` // grammar field name -> code
	Valid              bool              `json:"is_valid"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// CandidateStatus classifies a generated identifier after validation.
type CandidateStatus string

const (
	CandidateValid      CandidateStatus = "valid"
	CandidateNotFound   CandidateStatus = "not-found"
	CandidateUnverified CandidateStatus = "unverified"
	CandidateMalformed  CandidateStatus = "malformed"
)

// Candidate is a generated series identifier and its validation outcome.
type Candidate struct {
	ID         string          `json:"id"`
	Universe   string          `json:"universe"`
	SeriesType string          `json:"series_type,omitempty"`
	Codes      []string        `json:"codes"` // one code per grammar field, in grammar order
	Status     CandidateStatus `json:"status"`
	Detail     string          `json:"detail,omitempty"`
	CheckedAt  time.Time       `json:"checked_at"`
}
