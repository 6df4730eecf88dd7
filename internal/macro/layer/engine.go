// Package layer sequences the macro pipeline over its three layers:
// discover identifiers, extract the raw layer, resolve the cleaned layer,
// and derive the analytics layer. Resolution is a barrier: metrics only
// ever read a cleaned layer that has been fully replaced.
package layer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/macro-cli/internal/macro"
	"github.com/sells-group/macro-cli/internal/macro/metrics"
	"github.com/sells-group/macro-cli/internal/macro/report"
	"github.com/sells-group/macro-cli/internal/macro/resolve"
	"github.com/sells-group/macro-cli/internal/macro/series"
	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/monitoring"
	"github.com/sells-group/macro-cli/internal/store"
	"github.com/sells-group/macro-cli/pkg/bls"
)

// Stage names as recorded in the run log.
const (
	StageDiscover = "discover"
	StageValidate = "validate"
	StageExtract  = "extract"
	StageResolve  = "resolve"
	StageMetrics  = "metrics"
)

// Extractor pulls raw observations for a set of series.
type Extractor interface {
	Timeseries(ctx context.Context, ids []string, startYear, endYear int) (*bls.Extract, error)
}

// Deps are the collaborators of an Engine. Loader, Checker and Extractor
// may be nil when the stages needing them are not run.
type Deps struct {
	Store     store.Store
	Universes *series.File
	Loader    series.CodeLoader
	Checker   series.Checker
	Extractor Extractor
	Recorder  *monitoring.Recorder
}

// Options tunes the stages.
type Options struct {
	Concurrency     int
	StartYear       int
	EndYear         int
	MaxCandidates   uint64 // default generator limit per universe; 0 = uncapped
	Metrics         metrics.Options
	MetricsTextfile string
}

// Engine runs pipeline stages against a store.
type Engine struct {
	deps Deps
	opts Options
	now  func() time.Time
	log  *zap.Logger

	mu    sync.Mutex
	codes map[string][][]series.Code
}

// New validates opts and creates an Engine.
func New(deps Deps, opts Options) (*Engine, error) {
	if deps.Store == nil {
		return nil, eris.New("layer: store is required")
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Metrics.Concurrency < 1 {
		opts.Metrics.Concurrency = opts.Concurrency
	}
	if err := opts.Metrics.Validate(); err != nil {
		return nil, eris.Wrap(err, "layer: metrics options")
	}
	return &Engine{
		deps:  deps,
		opts:  opts,
		now:   time.Now,
		log:   zap.L().With(zap.String("component", "macro.layer")),
		codes: make(map[string][][]series.Code),
	}, nil
}

// stage records one run of fn in the run log and the metrics recorder.
// A failed stage is marked failed and its error returned.
func (e *Engine) stage(ctx context.Context, name string, fn func(ctx context.Context, sum *report.Summary) error) (*report.Summary, error) {
	log := e.log.With(zap.String("stage", name))
	sum := report.New(name)

	runID, err := e.deps.Store.StartRun(ctx, name)
	if err != nil {
		return sum, eris.Wrapf(err, "layer: start run log for %s", name)
	}

	log.Info("starting stage")
	start := time.Now()
	runErr := fn(ctx, sum)
	elapsed := time.Since(start)

	e.record(sum, elapsed, runErr)

	if runErr != nil {
		log.Error("stage failed", zap.Error(runErr), zap.Duration("elapsed", elapsed))
		if logErr := e.deps.Store.FailRun(context.WithoutCancel(ctx), runID, runErr.Error()); logErr != nil {
			log.Error("failed to record stage failure", zap.Error(logErr))
		}
		return sum, runErr
	}

	result := &macro.RunResult{
		RowsWritten: sum.TotalRows(),
		Skipped:     sum.Skipped(),
		Metadata:    sum.Metadata(),
	}
	if err := e.deps.Store.CompleteRun(ctx, runID, result); err != nil {
		log.Error("failed to record stage completion", zap.Error(err))
	}
	log.Info("stage complete",
		zap.Int64("rows", result.RowsWritten),
		zap.Int64("skipped", result.Skipped),
		zap.Duration("elapsed", elapsed),
	)
	return sum, nil
}

func (e *Engine) record(sum *report.Summary, elapsed time.Duration, runErr error) {
	if e.deps.Recorder == nil {
		return
	}
	e.deps.Recorder.Record(sum.Snapshot(), elapsed, runErr)
	if e.opts.MetricsTextfile == "" {
		return
	}
	if err := e.deps.Recorder.WriteTextfile(e.opts.MetricsTextfile); err != nil {
		e.log.Warn("metrics textfile not written", zap.Error(err))
	}
}

// validSeries returns the valid series sorted by raw id.
func (e *Engine) validSeries(ctx context.Context) ([]model.SeriesMetadata, error) {
	all, err := e.deps.Store.ListSeries(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "layer: list series")
	}
	var out []model.SeriesMetadata
	for _, m := range all {
		if m.Valid {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RawSeriesID < out[j].RawSeriesID })
	return out, nil
}

// Extract pulls every valid series for the configured years and appends
// the records to the raw layer.
func (e *Engine) Extract(ctx context.Context) (*report.Summary, error) {
	return e.stage(ctx, StageExtract, func(ctx context.Context, sum *report.Summary) error {
		if e.deps.Extractor == nil {
			return eris.New("layer: extract needs an extractor")
		}
		meta, err := e.validSeries(ctx)
		if err != nil {
			return err
		}
		if len(meta) == 0 {
			e.log.Info("no valid series to extract")
			return nil
		}
		ids := make([]string, len(meta))
		for i, m := range meta {
			ids[i] = m.RawSeriesID
		}

		ext, err := e.deps.Extractor.Timeseries(ctx, ids, e.opts.StartYear, e.opts.EndYear)
		if err != nil {
			return eris.Wrap(err, "layer: extract timeseries")
		}
		n, err := e.deps.Store.AppendRaw(ctx, ext.Records)
		if err != nil {
			return eris.Wrap(err, "layer: append raw")
		}
		sum.Produced("raw_observations", int(n))
		sum.Set("requests", ext.Requests)
		sum.Set("missing_series", len(ext.Missing))
		if len(ext.Missing) > 0 {
			e.log.Warn("series returned no data",
				zap.Int("count", len(ext.Missing)),
				zap.Strings("examples", ext.Missing[:min(5, len(ext.Missing))]),
			)
		}
		return nil
	})
}

// Resolve rebuilds the cleaned layer from the full raw layer. The cleaned
// layer is replaced only after the whole raw history resolved.
func (e *Engine) Resolve(ctx context.Context) (*report.Summary, error) {
	return e.stage(ctx, StageResolve, func(ctx context.Context, sum *report.Summary) error {
		raws, err := e.deps.Store.ListRaw(ctx)
		if err != nil {
			return eris.Wrap(err, "layer: list raw")
		}
		meta, err := e.validSeries(ctx)
		if err != nil {
			return err
		}
		cleaned, err := resolve.New(e.opts.Concurrency).Resolve(ctx, raws, meta, sum)
		if err != nil {
			return err
		}
		return eris.Wrap(e.deps.Store.ReplaceCleaned(ctx, cleaned), "layer: replace cleaned")
	})
}

// Analyze recomputes the analytics layer from the stored cleaned layer and
// returns it.
func (e *Engine) Analyze(ctx context.Context) (*model.Analytics, *report.Summary, error) {
	var out *model.Analytics
	sum, err := e.stage(ctx, StageMetrics, func(ctx context.Context, sum *report.Summary) error {
		obs, err := e.deps.Store.ListCleaned(ctx)
		if err != nil {
			return eris.Wrap(err, "layer: list cleaned")
		}
		meta, err := e.validSeries(ctx)
		if err != nil {
			return err
		}
		eng, err := metrics.New(e.opts.Metrics)
		if err != nil {
			return err
		}
		a, err := eng.Compute(ctx, obs, meta, sum)
		if err != nil {
			return err
		}
		if err := e.deps.Store.ReplaceAnalytics(ctx, a); err != nil {
			return eris.Wrap(err, "layer: replace analytics")
		}
		out = a
		return nil
	})
	return out, sum, err
}

// RunOpts selects the stages of a full run.
type RunOpts struct {
	Discover bool
	Generate GenerateOpts
}

// Run performs the layer transitions in order and stops at the first
// failed stage. The returned summary merges every stage that ran.
func (e *Engine) Run(ctx context.Context, opts RunOpts) (*report.Summary, error) {
	total := report.New("run")
	start := time.Now()

	steps := []struct {
		name string
		fn   func(context.Context) (*report.Summary, error)
	}{
		{StageDiscover, func(ctx context.Context) (*report.Summary, error) { return e.Discover(ctx, opts.Generate) }},
		{StageExtract, e.Extract},
		{StageResolve, e.Resolve},
		{StageMetrics, func(ctx context.Context) (*report.Summary, error) {
			_, sum, err := e.Analyze(ctx)
			return sum, err
		}},
	}
	for _, st := range steps {
		if st.name == StageDiscover && !opts.Discover {
			continue
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
		sum, err := st.fn(ctx)
		total.Merge(sum)
		if err != nil {
			return total, eris.Wrapf(err, "layer: %s", st.name)
		}
	}

	e.log.Info("run complete",
		zap.Int64("rows", total.TotalRows()),
		zap.Int64("skipped", total.Skipped()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return total, nil
}
