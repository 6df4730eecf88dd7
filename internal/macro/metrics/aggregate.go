package metrics

import "github.com/sells-group/macro-cli/internal/model"

// aggregate buckets a date-ordered series into calendar periods. Empty
// periods produce no row.
func aggregate(s *seriesData, gran model.Granularity) []model.Aggregate {
	bucket := monthStart
	if gran == model.GranularityYear {
		bucket = yearStart
	}

	var out []model.Aggregate
	var cur *model.Aggregate
	var sum float64
	flush := func() {
		if cur != nil {
			cur.Avg = sum / float64(cur.Count)
			out = append(out, *cur)
		}
	}

	for _, p := range s.points {
		start := bucket(p.date)
		if cur == nil || !cur.PeriodStart.Equal(start) {
			flush()
			cur = &model.Aggregate{
				SeriesID:    s.id,
				Granularity: gran,
				PeriodStart: start,
				Min:         p.value,
				Max:         p.value,
			}
			sum = 0
		}
		cur.Count++
		sum += p.value
		cur.Min = min(cur.Min, p.value)
		cur.Max = max(cur.Max, p.value)
	}
	flush()
	return out
}
