// Package export writes the analytics layer to spreadsheet workbooks.
package export

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/macro-cli/internal/model"
)

// Sheet names, one per analytics table.
const (
	SheetMonthly      = "monthly_aggregates"
	SheetYearly       = "yearly_aggregates"
	SheetDerived      = "derived_metrics"
	SheetCorrelations = "correlations"
	SheetRollups      = "correlations_monthly"
	SheetStats        = "series_stats"
)

// sheet appends typed rows to one worksheet.
type sheet struct {
	s *xlsx.Sheet
}

func (w *sheet) row(cells ...any) {
	r := w.s.AddRow()
	for _, v := range cells {
		c := r.AddCell()
		switch v := v.(type) {
		case string:
			c.SetString(v)
		case int:
			c.SetInt(v)
		case float64:
			c.SetFloat(v)
		case *float64:
			if v == nil {
				c.SetString("")
			} else {
				c.SetFloat(*v)
			}
		case bool:
			c.SetBool(v)
		case time.Time:
			c.SetString(v.Format(time.DateOnly))
		}
	}
}

// Workbook builds the analytics workbook. Series surrogate ids are shown
// next to their raw ids when meta names them.
func Workbook(a *model.Analytics, meta []model.SeriesMetadata) (*xlsx.File, error) {
	if a == nil {
		a = &model.Analytics{}
	}
	raw := make(map[string]string, len(meta))
	for _, m := range meta {
		raw[m.SeriesID] = m.RawSeriesID
	}

	f := xlsx.NewFile()
	add := func(name string, header ...any) (*sheet, error) {
		s, err := f.AddSheet(name)
		if err != nil {
			return nil, eris.Wrapf(err, "export: add sheet %s", name)
		}
		w := &sheet{s: s}
		w.row(header...)
		return w, nil
	}

	for _, g := range []struct {
		name string
		rows []model.Aggregate
	}{{SheetMonthly, a.Monthly}, {SheetYearly, a.Yearly}} {
		w, err := add(g.name, "series_id", "raw_series_id", "period_start", "avg", "min", "max", "count")
		if err != nil {
			return nil, err
		}
		for _, r := range g.rows {
			w.row(r.SeriesID, raw[r.SeriesID], r.PeriodStart, r.Avg, r.Min, r.Max, r.Count)
		}
	}

	w, err := add(SheetDerived, "series_id", "raw_series_id", "date", "value", "mom_change", "mom_status", "yoy_change", "yoy_status")
	if err != nil {
		return nil, err
	}
	for _, r := range a.Changes {
		w.row(r.SeriesID, raw[r.SeriesID], r.Date, r.Value,
			r.MoM.Value(), string(r.MoM.Status), r.YoY.Value(), string(r.YoY.Status))
	}

	w, err = add(SheetCorrelations, "indicator_id_1", "raw_series_id_1", "indicator_id_2", "raw_series_id_2",
		"correlation", "period_start", "period_end", "min_periods", "observations")
	if err != nil {
		return nil, err
	}
	for _, r := range a.Correlations {
		w.row(r.IndicatorID1, raw[r.IndicatorID1], r.IndicatorID2, raw[r.IndicatorID2],
			r.Correlation, r.PeriodStart, r.PeriodEnd, r.MinPeriods, r.Observations)
	}

	w, err = add(SheetRollups, "indicator_id_1", "raw_series_id_1", "indicator_id_2", "raw_series_id_2",
		"month", "avg_correlation", "windows")
	if err != nil {
		return nil, err
	}
	for _, r := range a.CorrelationRollups {
		w.row(r.IndicatorID1, raw[r.IndicatorID1], r.IndicatorID2, raw[r.IndicatorID2],
			r.Month, r.AvgCorrelation, r.Windows)
	}

	w, err = add(SheetStats, "series_id", "raw_series_id", "count", "mean", "std_dev", "min", "max",
		"latest", "avg_change_pct", "volatility_pct")
	if err != nil {
		return nil, err
	}
	for _, r := range a.Stats {
		w.row(r.SeriesID, raw[r.SeriesID], r.Count, r.Mean, r.StdDev, r.Min, r.Max,
			r.Latest, r.AvgChangePct, r.VolatilityPct)
	}
	return f, nil
}

// WriteXLSX writes the analytics workbook to path.
func WriteXLSX(path string, a *model.Analytics, meta []model.SeriesMetadata) error {
	f, err := Workbook(a, meta)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}
