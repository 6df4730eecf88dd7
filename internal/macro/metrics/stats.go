package metrics

import (
	"math"

	"github.com/sells-group/macro-cli/internal/model"
)

// stats summarises a whole series. Percent changes are taken between
// consecutive observations; a zero predecessor contributes no change.
func stats(s *seriesData) model.SeriesStats {
	vals := make([]float64, len(s.points))
	for i, p := range s.points {
		vals[i] = p.value
	}
	st := model.SeriesStats{SeriesID: s.id, Count: len(vals)}
	if len(vals) == 0 {
		return st
	}
	st.Mean = mean(vals)
	st.StdDev = sampleStdDev(vals, st.Mean)
	st.Min, st.Max = vals[0], vals[0]
	for _, v := range vals[1:] {
		st.Min = min(st.Min, v)
		st.Max = max(st.Max, v)
	}
	st.Latest = vals[len(vals)-1]

	var pct []float64
	for i := 1; i < len(vals); i++ {
		if vals[i-1] == 0 {
			continue
		}
		pct = append(pct, (vals[i]/vals[i-1]-1)*100)
	}
	if len(pct) > 0 {
		m := mean(pct)
		st.AvgChangePct = &m
		st.VolatilityPct = sampleStdDev(pct, m)
	}
	return st
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdDev returns nil for fewer than two values.
func sampleStdDev(xs []float64, m float64) *float64 {
	if len(xs) < 2 {
		return nil
	}
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(xs)-1))
	return &sd
}
