package model

import "time"

// RawObservation is one extracted upstream data point. Several raw
// observations may share (RawSeriesID, Year, Period); each is a revision.
type RawObservation struct {
	ID          int64     `json:"id,omitempty"` // arrival sequence assigned by the raw store
	Source      string    `json:"source"`
	RawSeriesID string    `json:"raw_series_id"`
	Year        int       `json:"year"`
	Period      string    `json:"period"`
	Value       string    `json:"value"`
	Footnotes   []string  `json:"footnotes,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// HasFootnotes reports whether any footnote carries text.
func (r RawObservation) HasFootnotes() bool {
	for _, f := range r.Footnotes {
		if f != "" {
			return true
		}
	}
	return false
}

// CleanedObservation is the single authoritative value for a series date.
type CleanedObservation struct {
	SeriesID    string    `json:"series_id"`
	RawSeriesID string    `json:"raw_series_id"`
	Date        time.Time `json:"date"`
	Value       float64   `json:"value"`
	Annual      bool      `json:"is_annual_aggregate"`
	Footnotes   []string  `json:"footnotes,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ObservationKey identifies a cleaned observation. Annual aggregates share
// the January date of the year, so the flag is part of the key.
type ObservationKey struct {
	SeriesID string
	Date     time.Time
	Annual   bool
}

// Key returns the uniqueness key of the observation.
func (c CleanedObservation) Key() ObservationKey {
	return ObservationKey{SeriesID: c.SeriesID, Date: c.Date, Annual: c.Annual}
}
