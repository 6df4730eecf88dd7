package metrics

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/macro-cli/internal/macro/report"
	"github.com/sells-group/macro-cli/internal/model"
)

// Options configures a metrics run.
type Options struct {
	MinPeriods  int      // minimum common dates for a correlation row
	Window      int      // trailing correlation window; 0 = maximal common range
	Series      []string // raw series ids eligible for correlation; empty = all
	Concurrency int
}

// Validate rejects option combinations that cannot produce a correlation.
func (o Options) Validate() error {
	if o.MinPeriods < 2 {
		return eris.Errorf("metrics: min_periods must be at least 2, got %d", o.MinPeriods)
	}
	if o.Window < 0 {
		return eris.Errorf("metrics: correlation window must not be negative, got %d", o.Window)
	}
	if o.Window > 0 && o.Window < o.MinPeriods {
		return eris.Errorf("metrics: correlation window %d is below min_periods %d", o.Window, o.MinPeriods)
	}
	return nil
}

// Engine computes the analytics layer.
type Engine struct {
	opts Options
	log  *zap.Logger
}

// New validates opts and creates an Engine.
func New(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Engine{
		opts: opts,
		log:  zap.L().With(zap.String("component", "macro.metrics")),
	}, nil
}

// perSeries is the output slot of one series.
type perSeries struct {
	monthly []model.Aggregate
	yearly  []model.Aggregate
	changes []model.DerivedMetricRow
	stats   model.SeriesStats
}

// Compute derives every analytics table from a fully resolved cleaned
// layer. Series and pairs are processed in parallel into disjoint slots
// and concatenated in id order, so the output does not depend on
// scheduling.
func (e *Engine) Compute(ctx context.Context, obs []model.CleanedObservation, meta []model.SeriesMetadata, sum *report.Summary) (*model.Analytics, error) {
	start := time.Now()
	series := splitSeries(obs, meta)

	slots := make([]perSeries, len(series))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, s := range series {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = perSeries{
				monthly: aggregate(s, model.GranularityMonth),
				yearly:  aggregate(s, model.GranularityYear),
				changes: changes(s, sum),
				stats:   stats(s),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "metrics: per-series")
	}

	corr, err := e.correlate(ctx, e.eligible(series), sum)
	if err != nil {
		return nil, err
	}

	out := &model.Analytics{Correlations: corr}
	for _, sl := range slots {
		out.Monthly = append(out.Monthly, sl.monthly...)
		out.Yearly = append(out.Yearly, sl.yearly...)
		out.Changes = append(out.Changes, sl.changes...)
		out.Stats = append(out.Stats, sl.stats)
	}
	out.CorrelationRollups = Rollup(out.Correlations)

	sum.Produced("series_aggregates", len(out.Monthly)+len(out.Yearly))
	sum.Produced("derived_metrics", len(out.Changes))
	sum.Produced("correlations", len(out.Correlations))
	sum.Produced("correlations_monthly", len(out.CorrelationRollups))
	sum.Produced("series_stats", len(out.Stats))

	e.log.Info("computed analytics",
		zap.Int("series", len(series)),
		zap.Int("changes", len(out.Changes)),
		zap.Int("correlations", len(out.Correlations)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// eligible applies the correlation series filter.
func (e *Engine) eligible(series []*seriesData) []*seriesData {
	if len(e.opts.Series) == 0 {
		return series
	}
	allow := make(map[string]struct{}, len(e.opts.Series))
	for _, id := range e.opts.Series {
		allow[id] = struct{}{}
	}
	var out []*seriesData
	for _, s := range series {
		if _, ok := allow[s.rawID]; ok {
			out = append(out, s)
		}
	}
	return out
}

// correlate runs every unordered pair. series is sorted by id, so i < j
// yields IndicatorID1 < IndicatorID2.
func (e *Engine) correlate(ctx context.Context, series []*seriesData, sum *report.Summary) ([]model.CorrelationRow, error) {
	type pair struct{ a, b *seriesData }
	var pairs []pair
	for i := range series {
		for j := i + 1; j < len(series); j++ {
			pairs = append(pairs, pair{series[i], series[j]})
		}
	}

	slots := make([][]model.CorrelationRow, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, p := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = correlatePair(p.a, p.b, e.opts.MinPeriods, e.opts.Window, sum)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "metrics: correlate")
	}

	var out []model.CorrelationRow
	for _, s := range slots {
		out = append(out, s...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IndicatorID1 != b.IndicatorID1 {
			return a.IndicatorID1 < b.IndicatorID1
		}
		if a.IndicatorID2 != b.IndicatorID2 {
			return a.IndicatorID2 < b.IndicatorID2
		}
		return a.PeriodStart.Before(b.PeriodStart)
	})
	return out, nil
}
