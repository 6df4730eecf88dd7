package resolve

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/macro-cli/internal/macro/report"
	"github.com/sells-group/macro-cli/internal/model"
)

// Resolver turns the raw layer into the cleaned layer.
type Resolver struct {
	concurrency int
	log         *zap.Logger
}

// New creates a Resolver that resolves up to concurrency series at once.
func New(concurrency int) *Resolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{
		concurrency: concurrency,
		log:         zap.L().With(zap.String("component", "macro.resolve")),
	}
}

// revision is a raw observation tagged with its arrival position.
type revision struct {
	model.RawObservation
	seq int
}

// beats reports whether r wins over cur: greater extraction time, then
// non-empty footnotes, then later arrival.
func (r revision) beats(cur revision) bool {
	if !r.ExtractedAt.Equal(cur.ExtractedAt) {
		return r.ExtractedAt.After(cur.ExtractedAt)
	}
	if rf, cf := r.HasFootnotes(), cur.HasFootnotes(); rf != cf {
		return rf
	}
	return r.seq > cur.seq
}

type periodKey struct {
	year   int
	period string
}

// Resolve reduces raws (ordered by arrival) to one CleanedObservation per
// (series, date, annual). Records whose series has no valid metadata are
// skipped as unknown-series. The output is sorted by series, date, then
// the monthly value ahead of the annual aggregate. A key collision in the
// output is returned as a wrapped report.ErrInvariant.
func (r *Resolver) Resolve(ctx context.Context, raws []model.RawObservation, meta []model.SeriesMetadata, sum *report.Summary) ([]model.CleanedObservation, error) {
	start := time.Now()

	known := make(map[string]model.SeriesMetadata, len(meta))
	for _, m := range meta {
		if m.Valid {
			known[m.RawSeriesID] = m
		}
	}

	bySeries := make(map[string][]revision)
	var order []string
	for i, raw := range raws {
		if _, ok := known[raw.RawSeriesID]; !ok {
			sum.Skip(report.UnknownSeries, raw.RawSeriesID)
			continue
		}
		if _, seen := bySeries[raw.RawSeriesID]; !seen {
			order = append(order, raw.RawSeriesID)
		}
		bySeries[raw.RawSeriesID] = append(bySeries[raw.RawSeriesID], revision{RawObservation: raw, seq: i})
	}

	slots := make([][]model.CleanedObservation, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, rawID := range order {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = resolveSeries(known[rawID], bySeries[rawID], sum)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "resolve: resolve series")
	}

	var n int
	for _, s := range slots {
		n += len(s)
	}
	out := make([]model.CleanedObservation, 0, n)
	for _, s := range slots {
		out = append(out, s...)
	}
	SortCleaned(out)

	if err := CheckUnique(out); err != nil {
		return nil, err
	}

	sum.Produced("cleaned_observations", len(out))
	r.log.Info("resolved raw observations",
		zap.Int("raw", len(raws)),
		zap.Int("series", len(order)),
		zap.Int("cleaned", len(out)),
		zap.Int64("skipped", sum.Skipped()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// resolveSeries reduces one series' revisions. The winner is chosen
// before its value is coerced, so a suppressed latest revision drops the
// key rather than falling back to an older value.
func resolveSeries(m model.SeriesMetadata, revs []revision, sum *report.Summary) []model.CleanedObservation {
	winners := make(map[periodKey]revision)
	var keys []periodKey
	for _, rev := range revs {
		k := periodKey{year: rev.Year, period: rev.Period}
		cur, ok := winners[k]
		if !ok {
			winners[k] = rev
			keys = append(keys, k)
			continue
		}
		sum.Flag(report.SupersededRevision, label(m.RawSeriesID, k))
		if rev.beats(cur) {
			winners[k] = rev
		}
	}

	out := make([]model.CleanedObservation, 0, len(keys))
	for _, k := range keys {
		w := winners[k]
		date, annual, ok := PeriodDate(m.Frequency, k.year, k.period)
		if !ok {
			sum.Skip(report.UnknownPeriod, label(m.RawSeriesID, k))
			continue
		}
		v, status := ParseValue(w.Value)
		switch status {
		case ValueSuppressed:
			sum.Skip(report.SuppressedValue, label(m.RawSeriesID, k))
			continue
		case ValueUnparseable:
			sum.Skip(report.UnparseableValue, label(m.RawSeriesID, k))
			continue
		}
		out = append(out, model.CleanedObservation{
			SeriesID:    m.SeriesID,
			RawSeriesID: m.RawSeriesID,
			Date:        date,
			Value:       v,
			Annual:      annual,
			Footnotes:   append([]string(nil), w.Footnotes...),
			UpdatedAt:   w.ExtractedAt.UTC(),
		})
	}
	return out
}

func label(rawID string, k periodKey) string {
	return fmt.Sprintf("%s|%d|%s", rawID, k.year, k.period)
}

// SortCleaned orders observations by series, date, then monthly before annual.
func SortCleaned(obs []model.CleanedObservation) {
	sort.Slice(obs, func(i, j int) bool {
		a, b := obs[i], obs[j]
		if a.SeriesID != b.SeriesID {
			return a.SeriesID < b.SeriesID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return !a.Annual && b.Annual
	})
}

// CheckUnique verifies that no two observations share a key.
func CheckUnique(obs []model.CleanedObservation) error {
	seen := make(map[model.ObservationKey]struct{}, len(obs))
	for _, o := range obs {
		k := o.Key()
		k.Date = k.Date.UTC()
		if _, dup := seen[k]; dup {
			return eris.Wrapf(report.ErrInvariant, "resolve: duplicate key %s %s annual=%t",
				o.SeriesID, o.Date.Format(time.DateOnly), o.Annual)
		}
		seen[k] = struct{}{}
	}
	return nil
}
