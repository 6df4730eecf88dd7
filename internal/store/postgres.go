package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/macro-cli/internal/db"
	"github.com/sells-group/macro-cli/internal/macro"
	"github.com/sells-group/macro-cli/internal/model"
)

// PostgresStore implements Store on the macro schema.
type PostgresStore struct {
	pool    db.Pool
	runs    *macro.RunLog
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return NewPostgresWithPool(pool, pool.Close), nil
}

// NewPostgresWithPool wraps an existing pool. closeFn may be nil.
func NewPostgresWithPool(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, runs: macro.NewRunLog(pool), closeFn: closeFn}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// Migrate applies the embedded macro schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return macro.Migrate(ctx, s.pool)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var candidateCols = []string{"id", "universe", "series_type", "codes", "status", "detail", "checked_at"}

func (s *PostgresStore) SaveCandidates(ctx context.Context, cands []model.Candidate) error {
	rows := make([][]any, len(cands))
	for i, c := range cands {
		var checked *time.Time
		if !c.CheckedAt.IsZero() {
			t := c.CheckedAt
			checked = &t
		}
		codes := c.Codes
		if codes == nil {
			codes = []string{}
		}
		rows[i] = []any{c.ID, c.Universe, c.SeriesType, codes, string(c.Status), c.Detail, checked}
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "macro.series_candidates",
		Columns:      candidateCols,
		ConflictKeys: []string{"id"},
	}, rows)
	return eris.Wrap(err, "postgres: save candidates")
}

func (s *PostgresStore) ListCandidates(ctx context.Context, status model.CandidateStatus) ([]model.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, universe, COALESCE(series_type, ''), codes, status, COALESCE(detail, ''), checked_at
		 FROM macro.series_candidates
		 WHERE $1 = '' OR status = $1
		 ORDER BY id`,
		string(status),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list candidates")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var c model.Candidate
		var st string
		var checked *time.Time
		if err := rows.Scan(&c.ID, &c.Universe, &c.SeriesType, &c.Codes, &st, &c.Detail, &checked); err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		c.Status = model.CandidateStatus(st)
		if checked != nil {
			c.CheckedAt = *checked
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list candidates iterate")
}

var seriesCols = []string{
	"series_id", "raw_series_id", "name", "series_type", "survey", "frequency",
	"seasonally_adjusted", "classification", "is_valid", "updated_at",
}

func (s *PostgresStore) UpsertSeries(ctx context.Context, series []model.SeriesMetadata) error {
	rows := make([][]any, len(series))
	for i, m := range series {
		id, err := uuid.Parse(m.SeriesID)
		if err != nil {
			return eris.Wrapf(err, "postgres: series id %q", m.SeriesID)
		}
		class := m.Classification
		if class == nil {
			class = map[string]string{}
		}
		rows[i] = []any{id, m.RawSeriesID, m.Name, m.SeriesType, m.Survey, string(m.Frequency),
			m.SeasonallyAdjusted, class, m.Valid, m.UpdatedAt}
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "macro.series_metadata",
		Columns:      seriesCols,
		ConflictKeys: []string{"series_id"},
	}, rows)
	return eris.Wrap(err, "postgres: upsert series")
}

func (s *PostgresStore) ListSeries(ctx context.Context) ([]model.SeriesMetadata, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT series_id::text, raw_series_id, name, COALESCE(series_type, ''), COALESCE(survey, ''),
		        frequency, seasonally_adjusted, classification, is_valid, updated_at
		 FROM macro.series_metadata ORDER BY raw_series_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list series")
	}
	defer rows.Close()

	var out []model.SeriesMetadata
	for rows.Next() {
		var m model.SeriesMetadata
		var freq string
		if err := rows.Scan(&m.SeriesID, &m.RawSeriesID, &m.Name, &m.SeriesType, &m.Survey,
			&freq, &m.SeasonallyAdjusted, &m.Classification, &m.Valid, &m.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan series")
		}
		m.Frequency = model.Frequency(freq)
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list series iterate")
}

var rawCols = []string{"source", "raw_series_id", "year", "period", "value", "footnotes", "extracted_at"}

func (s *PostgresStore) AppendRaw(ctx context.Context, obs []model.RawObservation) (int64, error) {
	rows := make([][]any, len(obs))
	for i, r := range obs {
		foot := r.Footnotes
		if foot == nil {
			foot = []string{}
		}
		rows[i] = []any{r.Source, r.RawSeriesID, r.Year, r.Period, r.Value, foot, r.ExtractedAt}
	}
	n, err := db.CopyFrom(ctx, s.pool, "macro.raw_observations", rawCols, rows)
	return n, eris.Wrap(err, "postgres: append raw")
}

func (s *PostgresStore) ListRaw(ctx context.Context) ([]model.RawObservation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, raw_series_id, year, period, value, footnotes, extracted_at
		 FROM macro.raw_observations ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list raw")
	}
	defer rows.Close()

	var out []model.RawObservation
	for rows.Next() {
		var r model.RawObservation
		if err := rows.Scan(&r.ID, &r.Source, &r.RawSeriesID, &r.Year, &r.Period, &r.Value, &r.Footnotes, &r.ExtractedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan raw")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list raw iterate")
}

var cleanedCols = []string{"series_id", "raw_series_id", "date", "value", "is_annual_aggregate", "footnotes", "updated_at"}

func (s *PostgresStore) ReplaceCleaned(ctx context.Context, obs []model.CleanedObservation) error {
	rows := make([][]any, len(obs))
	for i, o := range obs {
		id, err := uuid.Parse(o.SeriesID)
		if err != nil {
			return eris.Wrapf(err, "postgres: series id %q", o.SeriesID)
		}
		foot := o.Footnotes
		if foot == nil {
			foot = []string{}
		}
		rows[i] = []any{id, o.RawSeriesID, o.Date, o.Value, o.Annual, foot, o.UpdatedAt}
	}
	_, err := db.ReplaceAll(ctx, s.pool, db.Replacement{Table: "macro.cleaned_observations", Columns: cleanedCols, Rows: rows})
	return eris.Wrap(err, "postgres: replace cleaned")
}

func (s *PostgresStore) ListCleaned(ctx context.Context) ([]model.CleanedObservation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT series_id::text, raw_series_id, date, value, is_annual_aggregate, footnotes, updated_at
		 FROM macro.cleaned_observations
		 ORDER BY series_id, date, is_annual_aggregate`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cleaned")
	}
	defer rows.Close()

	var out []model.CleanedObservation
	for rows.Next() {
		var o model.CleanedObservation
		if err := rows.Scan(&o.SeriesID, &o.RawSeriesID, &o.Date, &o.Value, &o.Annual, &o.Footnotes, &o.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cleaned")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list cleaned iterate")
}

func (s *PostgresStore) ReplaceAnalytics(ctx context.Context, a *model.Analytics) error {
	reps, err := analyticsReplacements(a)
	if err != nil {
		return err
	}
	_, err = db.ReplaceAll(ctx, s.pool, reps...)
	return eris.Wrap(err, "postgres: replace analytics")
}

func (s *PostgresStore) ListCorrelations(ctx context.Context, id1, id2 string) ([]model.CorrelationRow, error) {
	if id2 < id1 {
		id1, id2 = id2, id1
	}
	rows, err := s.pool.Query(ctx,
		`SELECT indicator_id_1::text, indicator_id_2::text, correlation, period_start, period_end, min_periods, observations
		 FROM macro.correlations
		 WHERE indicator_id_1::text = $1 AND indicator_id_2::text = $2
		 ORDER BY period_start, period_end`,
		id1, id2,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list correlations")
	}
	defer rows.Close()

	var out []model.CorrelationRow
	for rows.Next() {
		var c model.CorrelationRow
		if err := rows.Scan(&c.IndicatorID1, &c.IndicatorID2, &c.Correlation, &c.PeriodStart, &c.PeriodEnd, &c.MinPeriods, &c.Observations); err != nil {
			return nil, eris.Wrap(err, "postgres: scan correlation")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list correlations iterate")
}

func (s *PostgresStore) StartRun(ctx context.Context, stage string) (int64, error) {
	return s.runs.Start(ctx, stage)
}

func (s *PostgresStore) CompleteRun(ctx context.Context, id int64, result *macro.RunResult) error {
	return s.runs.Complete(ctx, id, result)
}

func (s *PostgresStore) FailRun(ctx context.Context, id int64, errMsg string) error {
	return s.runs.Fail(ctx, id, errMsg)
}

func (s *PostgresStore) ListRuns(ctx context.Context) ([]macro.RunEntry, error) {
	return s.runs.ListAll(ctx)
}
