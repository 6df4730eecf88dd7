package layer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/macro-cli/internal/macro"
	"github.com/sells-group/macro-cli/internal/macro/metrics"
	"github.com/sells-group/macro-cli/internal/macro/report"
	"github.com/sells-group/macro-cli/internal/macro/series"
	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/monitoring"
	"github.com/sells-group/macro-cli/internal/store"
	"github.com/sells-group/macro-cli/pkg/bls"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const universeYAML = `
universes:
  - name: ppi-industry
    series_type: industry
    survey: pc
    frequency: M
    prefix: PC
    fields:
      - name: industry
        width: 2
        charset: digit
        source: pc/pc.industry
      - name: type
        width: 1
        charset: alpha
        codes: [X, Y]
`

type fakeLoader struct{ calls int }

func (l *fakeLoader) LoadCodes(_ context.Context, source, _, _ string) ([]series.Code, error) {
	l.calls++
	if source != "pc/pc.industry" {
		return nil, errors.New("unexpected source " + source)
	}
	return []series.Code{{Value: "11", Name: "Farming"}, {Value: "22", Name: "Utilities"}}, nil
}

type fakeChecker struct {
	mu     sync.Mutex
	exists map[string]bool
	fail   map[string]bool
}

func (c *fakeChecker) Exists(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail[id] {
		return false, errors.New("upstream timeout")
	}
	return c.exists[id], nil
}

type fakeExtractor struct {
	err error
	ids []string
}

func (x *fakeExtractor) Timeseries(_ context.Context, ids []string, _, _ int) (*bls.Extract, error) {
	if x.err != nil {
		return nil, x.err
	}
	x.ids = ids
	t1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	t0 := t1.Add(-time.Hour)
	out := &bls.Extract{Requests: 1}
	for i, id := range ids {
		scale := float64(i + 1)
		vals := map[string]float64{"M01": 100, "M02": 110, "M03": 99}
		for _, p := range []string{"M01", "M02", "M03"} {
			out.Records = append(out.Records, model.RawObservation{
				Source: bls.Source, RawSeriesID: id, Year: 2023, Period: p,
				Value: strconv.FormatFloat(vals[p]*scale, 'f', 1, 64), ExtractedAt: t1,
			})
		}
		// older revision that loses
		out.Records = append(out.Records, model.RawObservation{
			Source: bls.Source, RawSeriesID: id, Year: 2023, Period: "M02",
			Value: "1", ExtractedAt: t0,
		})
		out.Records = append(out.Records, model.RawObservation{
			Source: bls.Source, RawSeriesID: id, Year: 2023, Period: "M13",
			Value: strconv.FormatFloat(103*scale, 'f', 1, 64), ExtractedAt: t1,
		})
	}
	return out, nil
}

type fixture struct {
	eng       *Engine
	store     *store.SQLiteStore
	loader    *fakeLoader
	checker   *fakeChecker
	extractor *fakeExtractor
	textfile  string
}

const twoUniverseYAML = universeYAML + `
  - name: ppi-commodity
    series_type: commodity
    survey: pc
    frequency: M
    prefix: PC
    fields:
      - name: group
        width: 2
        charset: digit
        codes: ["11", "33"]
      - name: type
        width: 1
        charset: alpha
        codes: [X]
`

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, universeYAML)
}

func newFixtureWith(t *testing.T, universes string) *fixture {
	t.Helper()
	dir := t.TempDir()

	st, err := store.NewSQLite(filepath.Join(dir, "macro.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	uf, err := series.ParseFile([]byte(universes))
	require.NoError(t, err)

	f := &fixture{
		store:  st,
		loader: &fakeLoader{},
		checker: &fakeChecker{
			exists: map[string]bool{"PC11X": true, "PC22X": true},
			fail:   map[string]bool{"PC22Y": true},
		},
		extractor: &fakeExtractor{},
		textfile:  filepath.Join(dir, "macro.prom"),
	}
	f.eng, err = New(Deps{
		Store:     st,
		Universes: uf,
		Loader:    f.loader,
		Checker:   f.checker,
		Extractor: f.extractor,
		Recorder:  monitoring.NewRecorder(),
	}, Options{
		Concurrency:     2,
		StartYear:       2023,
		EndYear:         2023,
		Metrics:         metrics.Options{MinPeriods: 2},
		MetricsTextfile: f.textfile,
	})
	require.NoError(t, err)
	return f
}

func countRuns(runs []macro.RunEntry, status string) map[string]int {
	out := make(map[string]int)
	for _, r := range runs {
		if r.Status == status {
			out[r.Stage]++
		}
	}
	return out
}

func TestNew_RejectsBadMetricsOptions(t *testing.T) {
	_, err := New(Deps{Store: &store.SQLiteStore{}}, Options{Metrics: metrics.Options{MinPeriods: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_periods")

	_, err = New(Deps{}, Options{Metrics: metrics.Options{MinPeriods: 2}})
	require.Error(t, err)
}

func TestRun_FullPipeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sum, err := f.eng.Run(ctx, RunOpts{Discover: true})
	require.NoError(t, err)

	// discovery
	cands, err := f.store.ListCandidates(ctx, "")
	require.NoError(t, err)
	assert.Len(t, cands, 4)
	assert.Equal(t, int64(1), sum.Count(report.NotFoundIdentifier))
	assert.Equal(t, int64(1), sum.Count(report.UnverifiedIdentifier))
	assert.Equal(t, 1, f.loader.calls)

	meta, err := f.store.ListSeries(ctx)
	require.NoError(t, err)
	require.Len(t, meta, 2)
	assert.Equal(t, "PC11X", meta[0].RawSeriesID)
	assert.Equal(t, model.SurrogateID("PC11X"), meta[0].SeriesID)
	assert.Equal(t, "Farming", meta[0].Name)
	assert.Equal(t, model.Monthly, meta[0].Frequency)
	assert.Equal(t, map[string]string{"industry": "11", "type": "X"}, meta[0].Classification)
	assert.Equal(t, "industry", meta[0].SeriesType)
	assert.True(t, meta[0].Valid)

	// extraction
	assert.Equal(t, []string{"PC11X", "PC22X"}, f.extractor.ids)
	raws, err := f.store.ListRaw(ctx)
	require.NoError(t, err)
	assert.Len(t, raws, 10)

	// resolution: three monthly values and one annual aggregate per series
	cleaned, err := f.store.ListCleaned(ctx)
	require.NoError(t, err)
	assert.Len(t, cleaned, 8)
	for _, c := range cleaned {
		if c.RawSeriesID == "PC11X" && c.Date.Month() == time.February && !c.Annual {
			assert.InDelta(t, 110.0, c.Value, 1e-9)
		}
	}
	assert.Equal(t, int64(2), sum.Count(report.SupersededRevision))

	// analytics
	rows, err := f.store.ListCorrelations(ctx, model.SurrogateID("PC11X"), model.SurrogateID("PC22X"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 1.0, rows[0].Correlation, 1e-9)
	assert.Equal(t, 3, rows[0].Observations)

	runs, err := f.store.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{StageDiscover: 1, StageExtract: 1, StageResolve: 1, StageMetrics: 1}, countRuns(runs, macro.StatusComplete))

	_, err = os.Stat(f.textfile)
	assert.NoError(t, err)
	assert.Positive(t, sum.TotalRows())
}

func TestAnalyze_ReturnsAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.Run(ctx, RunOpts{Discover: true})
	require.NoError(t, err)

	a, sum, err := f.eng.Analyze(ctx)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Len(t, a.Changes, 6)
	assert.Len(t, a.Stats, 2)
	assert.Equal(t, int64(6), sum.Rows("derived_metrics"))
}

func TestRun_StopsAtFailedStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.Discover(ctx, GenerateOpts{})
	require.NoError(t, err)

	f.extractor.err = errors.New("api down")
	_, err = f.eng.Run(ctx, RunOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api down")

	runs, err := f.store.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{StageExtract: 1}, countRuns(runs, macro.StatusFailed))
	assert.Equal(t, map[string]int{StageDiscover: 1}, countRuns(runs, macro.StatusComplete))
}

func TestValidate_RetriesUnverified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.Discover(ctx, GenerateOpts{})
	require.NoError(t, err)

	f.checker.mu.Lock()
	delete(f.checker.fail, "PC22Y")
	f.checker.exists["PC22Y"] = true
	f.checker.mu.Unlock()

	sum, err := f.eng.Validate(ctx, "", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Rows("series_metadata"))

	unverified, err := f.store.ListCandidates(ctx, model.CandidateUnverified)
	require.NoError(t, err)
	assert.Empty(t, unverified)

	meta, err := f.store.ListSeries(ctx)
	require.NoError(t, err)
	assert.Len(t, meta, 3)
}

func TestValidate_ExplicitIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sum, err := f.eng.Validate(ctx, "ppi-industry", []string{"PC11X", "P1X", "pc11x"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Count(report.MalformedIdentifier))
	assert.Equal(t, int64(1), sum.Count(report.DuplicateCandidate))

	meta, err := f.store.ListSeries(ctx)
	require.NoError(t, err)
	require.Len(t, meta, 1)
	assert.Equal(t, "Farming", meta[0].Name)

	_, err = f.eng.Validate(ctx, "nope", []string{"PC11X"})
	require.Error(t, err)
}

func TestGenerate_ResumeAndLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sum := report.New("generate")
	set, results, err := f.eng.Generate(ctx, GenerateOpts{Limit: 3}, sum)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, uint64(3), results[0].Cursor)
	assert.False(t, results[0].Exhausted)

	cursor, ok := sum.Get("cursor.ppi-industry")
	require.True(t, ok)
	assert.Equal(t, uint64(3), cursor)

	set, results, err = f.eng.Generate(ctx, GenerateOpts{Universe: "ppi-industry", Start: 3}, report.New("generate"))
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	assert.Equal(t, "PC22Y", set.Items()[0].ID)
	assert.True(t, results[0].Exhausted)
	assert.Equal(t, 1, f.loader.calls)
}

func TestValidate_RevokesSeriesNoLongerFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.Validate(ctx, "ppi-industry", []string{"PC11X", "PC22X"})
	require.NoError(t, err)
	_, err = f.eng.Extract(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"PC11X", "PC22X"}, f.extractor.ids)

	f.checker.mu.Lock()
	f.checker.exists["PC11X"] = false
	f.checker.fail["PC22X"] = true
	f.checker.mu.Unlock()

	sum, err := f.eng.Validate(ctx, "ppi-industry", []string{"PC11X", "PC22X"})
	require.NoError(t, err)
	revoked, ok := sum.Get("revoked_series")
	require.True(t, ok)
	assert.Equal(t, 1, revoked)

	meta, err := f.store.ListSeries(ctx)
	require.NoError(t, err)
	require.Len(t, meta, 2)
	assert.Equal(t, "PC11X", meta[0].RawSeriesID)
	assert.False(t, meta[0].Valid)
	assert.Equal(t, "Farming", meta[0].Name)
	// unverified keeps its row
	assert.True(t, meta[1].Valid)

	_, err = f.eng.Extract(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"PC22X"}, f.extractor.ids)

	rsum, err := f.eng.Resolve(ctx)
	require.NoError(t, err)
	assert.Positive(t, rsum.Count(report.UnknownSeries))
	cleaned, err := f.store.ListCleaned(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, cleaned)
	for _, c := range cleaned {
		assert.Equal(t, "PC22X", c.RawSeriesID)
	}
}

func TestGenerate_StoredCandidatesKeepEarlierUniverse(t *testing.T) {
	f := newFixtureWith(t, twoUniverseYAML)
	ctx := context.Background()

	_, err := f.eng.Discover(ctx, GenerateOpts{Universe: "ppi-industry"})
	require.NoError(t, err)

	sum := report.New("generate")
	set, _, err := f.eng.Generate(ctx, GenerateOpts{Universe: "ppi-commodity"}, sum)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	assert.Equal(t, "PC33X", set.Items()[0].ID)
	assert.Equal(t, int64(1), sum.Count(report.DuplicateCandidate))
}

func TestGenerate_EarlierUniverseReclaimsStoredCandidate(t *testing.T) {
	f := newFixtureWith(t, twoUniverseYAML)
	ctx := context.Background()

	_, err := f.eng.Discover(ctx, GenerateOpts{Universe: "ppi-commodity"})
	require.NoError(t, err)

	set, _, err := f.eng.Generate(ctx, GenerateOpts{Universe: "ppi-industry"}, report.New("generate"))
	require.NoError(t, err)
	var owner string
	for _, c := range set.Items() {
		if c.ID == "PC11X" {
			owner = c.Universe
		}
	}
	assert.Equal(t, "ppi-industry", owner)
}
