package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/sells-group/macro-cli/internal/macro/report"
	"github.com/sells-group/macro-cli/internal/model"
)

// overlap holds the values of two series on their common dates.
type overlap struct {
	dates []time.Time
	xs    []float64
	ys    []float64
}

// intersect merges two date-ordered series in one pass.
func intersect(a, b []point) overlap {
	var o overlap
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].date.Before(b[j].date):
			i++
		case b[j].date.Before(a[i].date):
			j++
		default:
			o.dates = append(o.dates, a[i].date)
			o.xs = append(o.xs, a[i].value)
			o.ys = append(o.ys, b[j].value)
			i++
			j++
		}
	}
	return o
}

// Pearson returns the correlation of xs and ys, or ok=false when either
// side is constant (zero variance). The result is clamped to [-1, 1].
func Pearson(xs, ys []float64) (r float64, ok bool) {
	n := len(xs)
	if n < 2 || n != len(ys) || constant(xs) || constant(ys) {
		return 0, false
	}
	mx, my := mean(xs), mean(ys)
	var cov, vx, vy float64
	for i := range n {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	den := math.Sqrt(vx * vy)
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, cov/den)), true
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

// correlatePair computes the correlation rows of one pair. a.id < b.id.
// Pairs without a common date are not candidates and produce nothing.
// With window 0 one row covers the maximal common range; otherwise one
// row is emitted per trailing window of common dates.
func correlatePair(a, b *seriesData, minPeriods, window int, sum *report.Summary) []model.CorrelationRow {
	key := a.rawID + "~" + b.rawID
	o := intersect(a.points, b.points)
	n := len(o.dates)
	if n == 0 {
		return nil
	}
	if n < minPeriods || (window > 0 && n < window) {
		sum.Skip(report.InsufficientOverlap, key)
		return nil
	}

	size := n
	if window > 0 {
		size = window
	}
	var out []model.CorrelationRow
	for end := size - 1; end < n; end++ {
		lo := end - size + 1
		r, ok := Pearson(o.xs[lo:end+1], o.ys[lo:end+1])
		if !ok {
			sum.Skip(report.ConstantSeries, key+"|"+o.dates[lo].Format(time.DateOnly))
			continue
		}
		out = append(out, model.CorrelationRow{
			IndicatorID1: a.id,
			IndicatorID2: b.id,
			Correlation:  r,
			PeriodStart:  o.dates[lo],
			PeriodEnd:    o.dates[end],
			MinPeriods:   minPeriods,
			Observations: size,
		})
	}
	return out
}

type rollupKey struct {
	id1, id2 string
	month    time.Time
}

// Rollup averages correlation rows per pair and month of period_start.
// It reads only the base rows.
func Rollup(rows []model.CorrelationRow) []model.CorrelationRollup {
	sums := make(map[rollupKey]*model.CorrelationRollup)
	for _, r := range rows {
		k := rollupKey{id1: r.IndicatorID1, id2: r.IndicatorID2, month: monthStart(r.PeriodStart)}
		agg, ok := sums[k]
		if !ok {
			agg = &model.CorrelationRollup{IndicatorID1: k.id1, IndicatorID2: k.id2, Month: k.month}
			sums[k] = agg
		}
		agg.AvgCorrelation += r.Correlation
		agg.Windows++
	}

	out := make([]model.CorrelationRollup, 0, len(sums))
	for _, agg := range sums {
		agg.AvgCorrelation /= float64(agg.Windows)
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IndicatorID1 != b.IndicatorID1 {
			return a.IndicatorID1 < b.IndicatorID1
		}
		if a.IndicatorID2 != b.IndicatorID2 {
			return a.IndicatorID2 < b.IndicatorID2
		}
		return a.Month.Before(b.Month)
	})
	return out
}
