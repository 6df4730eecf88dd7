package store

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/macro-cli/internal/db"
	"github.com/sells-group/macro-cli/internal/model"
)

var (
	aggregateCols   = []string{"series_id", "granularity", "period_start", "avg_value", "min_value", "max_value", "obs_count"}
	derivedCols     = []string{"series_id", "date", "value", "mom_change", "mom_status", "yoy_change", "yoy_status"}
	correlationCols = []string{"indicator_id_1", "indicator_id_2", "correlation", "period_start", "period_end", "min_periods", "observations"}
	rollupCols      = []string{"indicator_id_1", "indicator_id_2", "month", "avg_correlation", "windows"}
	statsCols       = []string{"series_id", "obs_count", "mean", "std_dev", "min_value", "max_value", "latest_value", "avg_change_pct", "volatility_pct"}
)

// analyticsReplacements converts the analytics layer into one replacement
// per macro table, in dependency-free order.
func analyticsReplacements(a *model.Analytics) ([]db.Replacement, error) {
	if a == nil {
		a = &model.Analytics{}
	}
	var ids idCache

	aggs := make([][]any, 0, len(a.Monthly)+len(a.Yearly))
	for _, ag := range append(append([]model.Aggregate(nil), a.Monthly...), a.Yearly...) {
		aggs = append(aggs, []any{ids.get(ag.SeriesID), string(ag.Granularity), ag.PeriodStart, ag.Avg, ag.Min, ag.Max, ag.Count})
	}

	derived := make([][]any, len(a.Changes))
	for i, d := range a.Changes {
		derived[i] = []any{ids.get(d.SeriesID), d.Date, d.Value,
			d.MoM.Value(), string(d.MoM.Status), d.YoY.Value(), string(d.YoY.Status)}
	}

	corr := make([][]any, len(a.Correlations))
	for i, c := range a.Correlations {
		corr[i] = []any{ids.get(c.IndicatorID1), ids.get(c.IndicatorID2), c.Correlation,
			c.PeriodStart, c.PeriodEnd, c.MinPeriods, c.Observations}
	}

	rollups := make([][]any, len(a.CorrelationRollups))
	for i, r := range a.CorrelationRollups {
		rollups[i] = []any{ids.get(r.IndicatorID1), ids.get(r.IndicatorID2), r.Month, r.AvgCorrelation, r.Windows}
	}

	stats := make([][]any, len(a.Stats))
	for i, st := range a.Stats {
		stats[i] = []any{ids.get(st.SeriesID), st.Count, st.Mean, st.StdDev, st.Min, st.Max,
			st.Latest, st.AvgChangePct, st.VolatilityPct}
	}

	if ids.err != nil {
		return nil, ids.err
	}
	return []db.Replacement{
		{Table: "macro." + TableAggregates, Columns: aggregateCols, Rows: aggs},
		{Table: "macro." + TableDerived, Columns: derivedCols, Rows: derived},
		{Table: "macro." + TableCorrelations, Columns: correlationCols, Rows: corr},
		{Table: "macro." + TableRollups, Columns: rollupCols, Rows: rollups},
		{Table: "macro." + TableStats, Columns: statsCols, Rows: stats},
	}, nil
}

// idCache parses surrogate ids once and remembers the first failure.
type idCache struct {
	seen map[string]uuid.UUID
	err  error
}

func (c *idCache) get(s string) uuid.UUID {
	if c.seen == nil {
		c.seen = make(map[string]uuid.UUID)
	}
	if id, ok := c.seen[s]; ok {
		return id
	}
	id, err := uuid.Parse(s)
	if err != nil && c.err == nil {
		c.err = eris.Wrapf(err, "store: series id %q", s)
	}
	c.seen[s] = id
	return id
}
