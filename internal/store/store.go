// Package store persists the macro pipeline layers. Postgres is the
// production backend; SQLite serves local runs and tests.
package store

import (
	"context"

	"github.com/sells-group/macro-cli/internal/macro"
	"github.com/sells-group/macro-cli/internal/model"
)

// Store defines the persistence interface for the macro pipeline.
type Store interface {
	// Identifier discovery
	SaveCandidates(ctx context.Context, cands []model.Candidate) error
	ListCandidates(ctx context.Context, status model.CandidateStatus) ([]model.Candidate, error)
	UpsertSeries(ctx context.Context, series []model.SeriesMetadata) error
	ListSeries(ctx context.Context) ([]model.SeriesMetadata, error)

	// Raw layer (append-only; ListRaw returns arrival order)
	AppendRaw(ctx context.Context, obs []model.RawObservation) (int64, error)
	ListRaw(ctx context.Context) ([]model.RawObservation, error)

	// Cleaned layer (replaced wholesale by each resolution)
	ReplaceCleaned(ctx context.Context, obs []model.CleanedObservation) error
	ListCleaned(ctx context.Context) ([]model.CleanedObservation, error)

	// Analytics layer (recomputed in full by each metrics run)
	ReplaceAnalytics(ctx context.Context, a *model.Analytics) error
	ListCorrelations(ctx context.Context, id1, id2 string) ([]model.CorrelationRow, error)

	// Run log
	StartRun(ctx context.Context, stage string) (int64, error)
	CompleteRun(ctx context.Context, id int64, result *macro.RunResult) error
	FailRun(ctx context.Context, id int64, errMsg string) error
	ListRuns(ctx context.Context) ([]macro.RunEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Analytics table names shared by both backends.
const (
	TableAggregates   = "series_aggregates"
	TableDerived      = "derived_metrics"
	TableCorrelations = "correlations"
	TableRollups      = "correlations_monthly"
	TableStats        = "series_stats"
)

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
