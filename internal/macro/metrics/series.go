// Package metrics derives the analytics-ready layer from cleaned
// observations: period aggregates, lagged change ratios, pairwise
// correlations and their monthly rollup, and whole-series statistics.
// Every run recomputes everything from its input.
package metrics

import (
	"sort"
	"time"

	"github.com/sells-group/macro-cli/internal/model"
)

type point struct {
	date  time.Time
	value float64
}

// seriesData is one series' non-annual observations in date order.
type seriesData struct {
	id     string
	rawID  string
	freq   model.Frequency
	points []point
}

// splitSeries groups observations per series, drops annual aggregates,
// and sorts each series by date once. Series come back ordered by id.
func splitSeries(obs []model.CleanedObservation, meta []model.SeriesMetadata) []*seriesData {
	freq := make(map[string]model.Frequency, len(meta))
	for _, m := range meta {
		freq[m.SeriesID] = m.Frequency
	}

	byID := make(map[string]*seriesData)
	for _, o := range obs {
		if o.Annual {
			continue
		}
		s, ok := byID[o.SeriesID]
		if !ok {
			s = &seriesData{id: o.SeriesID, rawID: o.RawSeriesID, freq: freq[o.SeriesID]}
			byID[o.SeriesID] = s
		}
		s.points = append(s.points, point{date: o.Date.UTC(), value: o.Value})
	}

	out := make([]*seriesData, 0, len(byID))
	for _, s := range byID {
		sort.Slice(s.points, func(i, j int) bool { return s.points[i].date.Before(s.points[j].date) })
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func yearStart(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}
