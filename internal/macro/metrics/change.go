package metrics

import (
	"fmt"
	"time"

	"github.com/sells-group/macro-cli/internal/macro/report"
	"github.com/sells-group/macro-cli/internal/model"
)

// lagChanges walks a date-ordered series once, keeping a trailing pointer
// at the first point not earlier than date-lag. A change is defined only
// when that point sits exactly lagMonths back.
func lagChanges(pts []point, lagMonths int) []model.Change {
	out := make([]model.Change, len(pts))
	j := 0
	for i, p := range pts {
		target := p.date.AddDate(0, -lagMonths, 0)
		for j < i && pts[j].date.Before(target) {
			j++
		}
		if j >= i || !pts[j].date.Equal(target) {
			out[i] = model.Change{Status: model.ChangeNoPrior}
			continue
		}
		out[i] = ratio(pts[j].value, p.value)
	}
	return out
}

func ratio(prior, cur float64) model.Change {
	if prior == 0 {
		return model.Change{Status: model.ChangeUndefined}
	}
	return model.Change{Ratio: cur/prior - 1, Status: model.ChangeOK}
}

// changes emits one DerivedMetricRow per non-annual observation. The
// period lag comes from the series frequency; the yearly lag spans
// PeriodsPerYear periods, i.e. twelve months for every frequency.
func changes(s *seriesData, sum *report.Summary) []model.DerivedMetricRow {
	step := s.freq.MonthsPerPeriod()
	if step == 0 {
		sum.Skip(report.InsufficientData, s.rawID+"|unknown-frequency")
		return nil
	}
	mom := lagChanges(s.points, step)
	yoy := lagChanges(s.points, step*s.freq.PeriodsPerYear())

	out := make([]model.DerivedMetricRow, len(s.points))
	for i, p := range s.points {
		out[i] = model.DerivedMetricRow{
			SeriesID: s.id,
			Date:     p.date,
			Value:    p.value,
			MoM:      mom[i],
			YoY:      yoy[i],
		}
		if mom[i].Status == model.ChangeUndefined {
			sum.Flag(report.UndefinedChange, changeKey(s, p.date, "mom"))
		}
		if yoy[i].Status == model.ChangeUndefined {
			sum.Flag(report.UndefinedChange, changeKey(s, p.date, "yoy"))
		}
	}
	return out
}

func changeKey(s *seriesData, d time.Time, kind string) string {
	return fmt.Sprintf("%s|%s|%s", s.rawID, d.Format(time.DateOnly), kind)
}
