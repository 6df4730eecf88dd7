package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/macro-cli/internal/macro/report"
	"github.com/sells-group/macro-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func meta(raw string, freq model.Frequency) model.SeriesMetadata {
	return model.SeriesMetadata{
		SeriesID:    model.SurrogateID(raw),
		RawSeriesID: raw,
		Frequency:   freq,
		Valid:       true,
	}
}

func raw(series string, year int, period, value string, at time.Time, foot ...string) model.RawObservation {
	return model.RawObservation{
		Source: "bls", RawSeriesID: series, Year: year, Period: period,
		Value: value, Footnotes: foot, ExtractedAt: at,
	}
}

func TestPeriodDate(t *testing.T) {
	tests := []struct {
		freq   model.Frequency
		period string
		want   string
		annual bool
		ok     bool
	}{
		{model.Monthly, "M01", "2024-01-01", false, true},
		{model.Monthly, "M12", "2024-12-01", false, true},
		{model.Monthly, "M13", "2024-01-01", true, true},
		{model.Monthly, "M14", "", false, false},
		{model.Monthly, "M00", "", false, false},
		{model.Monthly, "Q01", "", false, false},
		{model.Quarterly, "Q03", "2024-07-01", false, true},
		{model.Quarterly, "Q05", "2024-01-01", true, true},
		{model.Semiannual, "S02", "2024-07-01", false, true},
		{model.Semiannual, "S03", "2024-01-01", true, true},
		{model.Annual, "A01", "2024-01-01", false, true},
		{model.Annual, "M13", "", false, false},
		{model.Monthly, "MXX", "", false, false},
		{model.Monthly, "M1", "", false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.freq)+"/"+tt.period, func(t *testing.T) {
			d, annual, ok := PeriodDate(tt.freq, 2024, tt.period)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want, d.Format(time.DateOnly))
			assert.Equal(t, tt.annual, annual)
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		status ValueStatus
	}{
		{"123.4", 123.4, ValueOK},
		{" 1,234.5 ", 1234.5, ValueOK},
		{"-12,345,678", -12345678, ValueOK},
		{"12,5", 0, ValueUnparseable},
		{"1.234,5", 0, ValueUnparseable},
		{"1,23", 0, ValueUnparseable},
		{"1 234", 1234, ValueOK},
		{"-0.7", -0.7, ValueOK},
		{"0", 0, ValueOK},
		{"(D)", 0, ValueSuppressed},
		{"(na)", 0, ValueSuppressed},
		{"-", 0, ValueSuppressed},
		{"", 0, ValueSuppressed},
		{"abc", 0, ValueUnparseable},
		{"NaN", 0, ValueUnparseable},
		{"Inf", 0, ValueUnparseable},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, status := ParseValue(tt.in)
			assert.Equal(t, tt.status, status)
			assert.InDelta(t, tt.want, v, 1e-12)
		})
	}
}

func TestResolve_LatestWins(t *testing.T) {
	raws := []model.RawObservation{
		raw("PCU1", 2024, "M01", "100", t0),
		raw("PCU1", 2024, "M01", "101", t0.Add(time.Hour)),
		raw("PCU1", 2024, "M01", "99", t0.Add(-time.Hour)),
	}
	sum := report.New("resolve")
	out, err := New(2).Resolve(context.Background(), raws, []model.SeriesMetadata{meta("PCU1", model.Monthly)}, sum)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 101.0, out[0].Value, 1e-12)
	assert.Equal(t, t0.Add(time.Hour), out[0].UpdatedAt)
	assert.Equal(t, model.SurrogateID("PCU1"), out[0].SeriesID)
	assert.Equal(t, int64(2), sum.Count(report.SupersededRevision))
	assert.Equal(t, int64(0), sum.Skipped())
}

func TestResolve_TieBreaks(t *testing.T) {
	// Same timestamp: footnoted revision beats later arrival without footnotes.
	raws := []model.RawObservation{
		raw("PCU1", 2024, "M02", "200", t0, "preliminary"),
		raw("PCU1", 2024, "M02", "201", t0),
		// Same timestamp, both without footnotes: last arrival wins.
		raw("PCU1", 2024, "M03", "300", t0),
		raw("PCU1", 2024, "M03", "301", t0, ""),
		// Same timestamp, both footnoted: last arrival wins.
		raw("PCU1", 2024, "M04", "400", t0, "a"),
		raw("PCU1", 2024, "M04", "401", t0, "b"),
	}
	out, err := New(1).Resolve(context.Background(), raws, []model.SeriesMetadata{meta("PCU1", model.Monthly)}, report.New("resolve"))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.InDelta(t, 200.0, out[0].Value, 1e-12)
	assert.Equal(t, []string{"preliminary"}, out[0].Footnotes)
	assert.InDelta(t, 301.0, out[1].Value, 1e-12)
	assert.InDelta(t, 401.0, out[2].Value, 1e-12)
}

func TestResolve_SuppressedWinnerDropsKey(t *testing.T) {
	raws := []model.RawObservation{
		raw("PCU1", 2024, "M01", "100", t0),
		raw("PCU1", 2024, "M01", "(D)", t0.Add(time.Hour)),
		raw("PCU1", 2024, "M02", "n/a?", t0),
	}
	sum := report.New("resolve")
	out, err := New(1).Resolve(context.Background(), raws, []model.SeriesMetadata{meta("PCU1", model.Monthly)}, sum)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, int64(1), sum.Count(report.SuppressedValue))
	assert.Equal(t, int64(1), sum.Count(report.UnparseableValue))
	assert.Equal(t, []string{"PCU1|2024|M01"}, sum.Examples(report.SuppressedValue))
}

func TestResolve_UnknownSeriesAndPeriod(t *testing.T) {
	invalid := meta("PCU2", model.Monthly)
	invalid.Valid = false
	raws := []model.RawObservation{
		raw("PCU1", 2024, "M01", "1", t0),
		raw("GONE", 2024, "M01", "1", t0),
		raw("GONE", 2024, "M02", "1", t0),
		raw("PCU2", 2024, "M01", "1", t0),
		raw("PCU1", 2024, "Q01", "1", t0),
	}
	sum := report.New("resolve")
	out, err := New(4).Resolve(context.Background(), raws, []model.SeriesMetadata{meta("PCU1", model.Monthly), invalid}, sum)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(3), sum.Count(report.UnknownSeries))
	assert.Equal(t, int64(1), sum.Count(report.UnknownPeriod))
	assert.Equal(t, int64(4), sum.Skipped())
	assert.Equal(t, int64(1), sum.Rows("cleaned_observations"))
}

func TestResolve_AnnualAverageKeptSeparately(t *testing.T) {
	raws := []model.RawObservation{
		raw("PCU1", 2024, "M01", "100", t0),
		raw("PCU1", 2024, "M13", "105", t0),
	}
	out, err := New(1).Resolve(context.Background(), raws, []model.SeriesMetadata{meta("PCU1", model.Monthly)}, report.New("resolve"))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.False(t, out[0].Annual)
	assert.True(t, out[1].Annual)
	assert.Equal(t, out[0].Date, out[1].Date)
}

func TestResolve_SortedAcrossSeries(t *testing.T) {
	raws := []model.RawObservation{
		raw("B", 2024, "M02", "2", t0),
		raw("A", 2024, "M02", "2", t0),
		raw("B", 2024, "M01", "1", t0),
		raw("A", 2024, "M01", "1", t0),
	}
	out, err := New(2).Resolve(context.Background(), raws,
		[]model.SeriesMetadata{meta("A", model.Monthly), meta("B", model.Monthly)}, report.New("resolve"))
	require.NoError(t, err)
	require.Len(t, out, 4)
	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1], out[i]
		assert.True(t, prev.SeriesID < cur.SeriesID || (prev.SeriesID == cur.SeriesID && prev.Date.Before(cur.Date)))
	}
}

func TestResolve_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(1).Resolve(ctx, []model.RawObservation{raw("A", 2024, "M01", "1", t0)},
		[]model.SeriesMetadata{meta("A", model.Monthly)}, report.New("resolve"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckUnique(t *testing.T) {
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ok := []model.CleanedObservation{
		{SeriesID: "s", Date: d},
		{SeriesID: "s", Date: d, Annual: true},
	}
	assert.NoError(t, CheckUnique(ok))

	bad := append(ok, model.CleanedObservation{SeriesID: "s", Date: d, Value: 2})
	err := CheckUnique(bad)
	require.Error(t, err)
	assert.True(t, eris.Is(err, report.ErrInvariant))
}
