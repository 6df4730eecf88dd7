package model

import "time"

// Granularity is the calendar bucket of an aggregate row.
type Granularity string

const (
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// Aggregate holds period statistics of the non-annual values in a bucket.
type Aggregate struct {
	SeriesID    string      `json:"series_id"`
	Granularity Granularity `json:"granularity"`
	PeriodStart time.Time   `json:"period_start"`
	Avg         float64     `json:"avg"`
	Min         float64     `json:"min"`
	Max         float64     `json:"max"`
	Count       int         `json:"count"`
}

// ChangeStatus tells a defined ratio apart from the two no-number cases.
type ChangeStatus string

const (
	ChangeOK        ChangeStatus = "ok"
	ChangeNoPrior   ChangeStatus = "no-prior"  // nothing exactly one lag back
	ChangeUndefined ChangeStatus = "undefined" // prior value was zero
)

// Change is a lagged change ratio. Ratio is meaningful only when Status is ChangeOK.
type Change struct {
	Ratio  float64      `json:"ratio"`
	Status ChangeStatus `json:"status"`
}

// Value returns the ratio, or nil when no numeric change exists.
func (c Change) Value() *float64 {
	if c.Status != ChangeOK {
		return nil
	}
	r := c.Ratio
	return &r
}

// DerivedMetricRow carries the lagged changes of one non-annual observation.
type DerivedMetricRow struct {
	SeriesID string    `json:"series_id"`
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
	MoM      Change    `json:"mom_change"`
	YoY      Change    `json:"yoy_change"`
}

// CorrelationRow is a Pearson coefficient over a common date range.
// IndicatorID1 always sorts before IndicatorID2.
type CorrelationRow struct {
	IndicatorID1 string    `json:"indicator_id_1"`
	IndicatorID2 string    `json:"indicator_id_2"`
	Correlation  float64   `json:"correlation"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	MinPeriods   int       `json:"min_periods"`
	Observations int       `json:"observations"`
}

// CorrelationRollup averages the correlation rows of a pair whose
// period_start falls in the same month.
type CorrelationRollup struct {
	IndicatorID1   string    `json:"indicator_id_1"`
	IndicatorID2   string    `json:"indicator_id_2"`
	Month          time.Time `json:"month"`
	AvgCorrelation float64   `json:"avg_correlation"`
	Windows        int       `json:"windows"`
}

// SeriesStats summarises a whole series. StdDev and VolatilityPct need at
// least two inputs; AvgChangePct needs one defined period change.
type SeriesStats struct {
	SeriesID      string   `json:"series_id"`
	Count         int      `json:"count"`
	Mean          float64  `json:"mean"`
	StdDev        *float64 `json:"std_dev,omitempty"`
	Min           float64  `json:"min"`
	Max           float64  `json:"max"`
	Latest        float64  `json:"latest"`
	AvgChangePct  *float64 `json:"avg_change_pct,omitempty"`
	VolatilityPct *float64 `json:"volatility_pct,omitempty"`
}

// Analytics is the full analytics-ready layer produced by one metrics run.
type Analytics struct {
	Monthly            []Aggregate         `json:"monthly"`
	Yearly             []Aggregate         `json:"yearly"`
	Changes            []DerivedMetricRow  `json:"changes"`
	Correlations       []CorrelationRow    `json:"correlations"`
	CorrelationRollups []CorrelationRollup `json:"correlation_rollups"`
	Stats              []SeriesStats       `json:"stats"`
}
