package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/macro-cli/internal/macro"
)

// RunLister abstracts the run log reads the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context) ([]macro.RunEntry, error)
}

// StageHealth describes the recent history of one pipeline stage.
type StageHealth struct {
	Stage       string     `json:"stage"`
	Runs        int        `json:"runs"`
	Failed      int        `json:"failed"`
	LastStatus  string     `json:"last_status"`
	LastError   string     `json:"last_error,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
}

// HealthSnapshot holds a point-in-time view of pipeline health.
type HealthSnapshot struct {
	Total    int     `json:"total"`
	Complete int     `json:"complete"`
	Failed   int     `json:"failed"`
	Running  int     `json:"running"`
	FailRate float64 `json:"fail_rate"`

	Stages []StageHealth `json:"stages"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers run health from the run log.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new health collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect summarises runs started within the lookback window. LastSuccess
// looks at the whole history so a long-quiet stage still reports its age.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*HealthSnapshot, error) {
	now := c.now().UTC()
	snap := &HealthSnapshot{LookbackHours: lookbackHours, CollectedAt: now}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	entries, err := c.runs.ListRuns(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	// Entries arrive newest first.
	stages := make(map[string]*StageHealth)
	for _, e := range entries {
		st, ok := stages[e.Stage]
		if !ok {
			st = &StageHealth{Stage: e.Stage, LastStatus: e.Status, LastError: e.Error}
			stages[e.Stage] = st
		}
		if e.Status == macro.StatusComplete && st.LastSuccess == nil {
			t := e.StartedAt
			if e.CompletedAt != nil {
				t = *e.CompletedAt
			}
			st.LastSuccess = &t
		}
		if e.StartedAt.Before(cutoff) {
			continue
		}

		st.Runs++
		snap.Total++
		switch e.Status {
		case macro.StatusComplete:
			snap.Complete++
		case macro.StatusFailed:
			snap.Failed++
			st.Failed++
		case macro.StatusRunning:
			snap.Running++
		}
	}

	if finished := snap.Complete + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	for _, st := range stages {
		snap.Stages = append(snap.Stages, *st)
	}
	sort.Slice(snap.Stages, func(i, j int) bool { return snap.Stages[i].Stage < snap.Stages[j].Stage })
	return snap, nil
}
