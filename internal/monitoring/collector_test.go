package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/macro-cli/internal/macro"
)

type fakeRuns struct {
	entries []macro.RunEntry
	err     error
}

func (f *fakeRuns) ListRuns(context.Context) ([]macro.RunEntry, error) {
	return f.entries, f.err
}

var collectNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func entry(id int64, stage, status string, ago time.Duration) macro.RunEntry {
	started := collectNow.Add(-ago)
	e := macro.RunEntry{ID: id, Stage: stage, Status: status, StartedAt: started}
	if status != macro.StatusRunning {
		done := started.Add(time.Minute)
		e.CompletedAt = &done
	}
	if status == macro.StatusFailed {
		e.Error = "boom"
	}
	return e
}

func newTestCollector(entries ...macro.RunEntry) *Collector {
	c := NewCollector(&fakeRuns{entries: entries})
	c.now = func() time.Time { return collectNow }
	return c
}

func TestCollector_Collect(t *testing.T) {
	c := newTestCollector(
		entry(5, "resolve", macro.StatusFailed, time.Hour),
		entry(4, "extract", macro.StatusComplete, 2*time.Hour),
		entry(3, "resolve", macro.StatusComplete, 3*time.Hour),
		entry(2, "analyze", macro.StatusRunning, 4*time.Hour),
		entry(1, "extract", macro.StatusComplete, 72*time.Hour),
	)

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, 2, snap.Complete)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Running)
	assert.InDelta(t, 1.0/3.0, snap.FailRate, 1e-9)

	require.Len(t, snap.Stages, 3)
	assert.Equal(t, "analyze", snap.Stages[0].Stage)
	assert.Nil(t, snap.Stages[0].LastSuccess)

	resolve := snap.Stages[2]
	assert.Equal(t, "resolve", resolve.Stage)
	assert.Equal(t, macro.StatusFailed, resolve.LastStatus)
	assert.Equal(t, "boom", resolve.LastError)
	assert.Equal(t, 2, resolve.Runs)
	assert.Equal(t, 1, resolve.Failed)
	require.NotNil(t, resolve.LastSuccess)
	assert.True(t, collectNow.Add(-3*time.Hour+time.Minute).Equal(*resolve.LastSuccess))
}

func TestCollector_OldSuccessStillReported(t *testing.T) {
	c := newTestCollector(entry(1, "extract", macro.StatusComplete, 100*time.Hour))

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Total)
	require.Len(t, snap.Stages, 1)
	require.NotNil(t, snap.Stages[0].LastSuccess)
	assert.Equal(t, 0, snap.Stages[0].Runs)
}

func TestCollector_ListError(t *testing.T) {
	c := NewCollector(&fakeRuns{err: errors.New("db down")})
	_, err := c.Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list runs")
}
