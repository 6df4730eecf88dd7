package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/macro-cli/internal/macro"
	"github.com/sells-group/macro-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Dates are kept as
// ISO text and lists or maps as JSON.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS series_candidates (
	id          TEXT PRIMARY KEY,
	universe    TEXT NOT NULL,
	series_type TEXT NOT NULL DEFAULT '',
	codes       TEXT NOT NULL DEFAULT '[]',
	status      TEXT NOT NULL CHECK (status IN ('valid', 'not-found', 'unverified', 'malformed')),
	detail      TEXT NOT NULL DEFAULT '',
	checked_at  TEXT
);

CREATE TABLE IF NOT EXISTS series_metadata (
	series_id           TEXT PRIMARY KEY,
	raw_series_id       TEXT NOT NULL UNIQUE,
	name                TEXT NOT NULL,
	series_type         TEXT NOT NULL DEFAULT '',
	survey              TEXT NOT NULL DEFAULT '',
	frequency           TEXT NOT NULL,
	seasonally_adjusted INTEGER NOT NULL DEFAULT 0,
	classification      TEXT NOT NULL DEFAULT '{}',
	is_valid            INTEGER NOT NULL DEFAULT 1,
	updated_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS raw_observations (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	source        TEXT NOT NULL,
	raw_series_id TEXT NOT NULL,
	year          INTEGER NOT NULL,
	period        TEXT NOT NULL,
	value         TEXT NOT NULL,
	footnotes     TEXT NOT NULL DEFAULT '[]',
	extracted_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cleaned_observations (
	series_id           TEXT NOT NULL REFERENCES series_metadata(series_id),
	raw_series_id       TEXT NOT NULL,
	date                TEXT NOT NULL,
	value               REAL NOT NULL,
	is_annual_aggregate INTEGER NOT NULL DEFAULT 0,
	footnotes           TEXT NOT NULL DEFAULT '[]',
	updated_at          TEXT NOT NULL,
	PRIMARY KEY (series_id, date, is_annual_aggregate)
);

CREATE TABLE IF NOT EXISTS series_aggregates (
	series_id    TEXT NOT NULL,
	granularity  TEXT NOT NULL,
	period_start TEXT NOT NULL,
	avg_value    REAL NOT NULL,
	min_value    REAL NOT NULL,
	max_value    REAL NOT NULL,
	obs_count    INTEGER NOT NULL,
	PRIMARY KEY (series_id, granularity, period_start)
);

CREATE TABLE IF NOT EXISTS derived_metrics (
	series_id  TEXT NOT NULL,
	date       TEXT NOT NULL,
	value      REAL NOT NULL,
	mom_change REAL,
	mom_status TEXT NOT NULL,
	yoy_change REAL,
	yoy_status TEXT NOT NULL,
	PRIMARY KEY (series_id, date)
);

CREATE TABLE IF NOT EXISTS correlations (
	indicator_id_1 TEXT NOT NULL,
	indicator_id_2 TEXT NOT NULL,
	correlation    REAL NOT NULL CHECK (correlation BETWEEN -1 AND 1),
	period_start   TEXT NOT NULL,
	period_end     TEXT NOT NULL,
	min_periods    INTEGER NOT NULL,
	observations   INTEGER NOT NULL,
	PRIMARY KEY (indicator_id_1, indicator_id_2, period_start, period_end),
	CHECK (indicator_id_1 < indicator_id_2)
);

CREATE TABLE IF NOT EXISTS correlations_monthly (
	indicator_id_1  TEXT NOT NULL,
	indicator_id_2  TEXT NOT NULL,
	month           TEXT NOT NULL,
	avg_correlation REAL NOT NULL,
	windows         INTEGER NOT NULL,
	PRIMARY KEY (indicator_id_1, indicator_id_2, month)
);

CREATE TABLE IF NOT EXISTS series_stats (
	series_id      TEXT PRIMARY KEY,
	obs_count      INTEGER NOT NULL,
	mean           REAL NOT NULL,
	std_dev        REAL,
	min_value      REAL NOT NULL,
	max_value      REAL NOT NULL,
	latest_value   REAL NOT NULL,
	avg_change_pct REAL,
	volatility_pct REAL
);

CREATE TABLE IF NOT EXISTS run_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	stage        TEXT NOT NULL,
	status       TEXT NOT NULL CHECK (status IN ('running', 'complete', 'failed')),
	started_at   TEXT NOT NULL,
	completed_at TEXT,
	rows_written INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	metadata     TEXT
);

CREATE INDEX IF NOT EXISTS idx_candidates_status ON series_candidates(status);
CREATE INDEX IF NOT EXISTS idx_raw_series ON raw_observations(raw_series_id, year, period);
CREATE INDEX IF NOT EXISTS idx_run_log_stage ON run_log(stage, started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveCandidates(ctx context.Context, cands []model.Candidate) error {
	return s.inTx(ctx, "save candidates", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO series_candidates (id, universe, series_type, codes, status, detail, checked_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   universe = excluded.universe, series_type = excluded.series_type, codes = excluded.codes,
			   status = excluded.status, detail = excluded.detail, checked_at = excluded.checked_at`)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck
		for _, c := range cands {
			codes, err := marshalJSON(c.Codes, "[]")
			if err != nil {
				return err
			}
			var checked sql.NullString
			if !c.CheckedAt.IsZero() {
				checked = sql.NullString{String: formatTime(c.CheckedAt), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, c.ID, c.Universe, c.SeriesType, codes, string(c.Status), c.Detail, checked); err != nil {
				return eris.Wrapf(err, "candidate %s", c.ID)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, status model.CandidateStatus) ([]model.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, universe, series_type, codes, status, detail, checked_at
		 FROM series_candidates WHERE ? = '' OR status = ? ORDER BY id`,
		string(status), string(status),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list candidates")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Candidate
	for rows.Next() {
		var (
			c       model.Candidate
			codes   string
			st      string
			checked sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Universe, &c.SeriesType, &codes, &st, &c.Detail, &checked); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		if err := json.Unmarshal([]byte(codes), &c.Codes); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal codes")
		}
		c.Status = model.CandidateStatus(st)
		if checked.Valid {
			if c.CheckedAt, err = parseTime(checked.String); err != nil {
				return nil, err
			}
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list candidates iterate")
}

func (s *SQLiteStore) UpsertSeries(ctx context.Context, series []model.SeriesMetadata) error {
	return s.inTx(ctx, "upsert series", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO series_metadata (series_id, raw_series_id, name, series_type, survey, frequency,
			   seasonally_adjusted, classification, is_valid, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (series_id) DO UPDATE SET
			   raw_series_id = excluded.raw_series_id, name = excluded.name, series_type = excluded.series_type,
			   survey = excluded.survey, frequency = excluded.frequency,
			   seasonally_adjusted = excluded.seasonally_adjusted, classification = excluded.classification,
			   is_valid = excluded.is_valid, updated_at = excluded.updated_at`)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck
		for _, m := range series {
			class, err := marshalJSON(m.Classification, "{}")
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, m.SeriesID, m.RawSeriesID, m.Name, m.SeriesType, m.Survey,
				string(m.Frequency), m.SeasonallyAdjusted, class, m.Valid, formatTime(m.UpdatedAt)); err != nil {
				return eris.Wrapf(err, "series %s", m.RawSeriesID)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListSeries(ctx context.Context) ([]model.SeriesMetadata, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT series_id, raw_series_id, name, series_type, survey, frequency,
		        seasonally_adjusted, classification, is_valid, updated_at
		 FROM series_metadata ORDER BY raw_series_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list series")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SeriesMetadata
	for rows.Next() {
		var (
			m              model.SeriesMetadata
			freq, class, u string
		)
		if err := rows.Scan(&m.SeriesID, &m.RawSeriesID, &m.Name, &m.SeriesType, &m.Survey, &freq,
			&m.SeasonallyAdjusted, &class, &m.Valid, &u); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan series")
		}
		m.Frequency = model.Frequency(freq)
		if err := json.Unmarshal([]byte(class), &m.Classification); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal classification")
		}
		if m.UpdatedAt, err = parseTime(u); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list series iterate")
}

func (s *SQLiteStore) AppendRaw(ctx context.Context, obs []model.RawObservation) (int64, error) {
	var n int64
	err := s.inTx(ctx, "append raw", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO raw_observations (source, raw_series_id, year, period, value, footnotes, extracted_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck
		for _, r := range obs {
			foot, err := marshalJSON(r.Footnotes, "[]")
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, r.Source, r.RawSeriesID, r.Year, r.Period, r.Value, foot, formatTime(r.ExtractedAt)); err != nil {
				return eris.Wrapf(err, "raw %s %d %s", r.RawSeriesID, r.Year, r.Period)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) ListRaw(ctx context.Context) ([]model.RawObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, raw_series_id, year, period, value, footnotes, extracted_at
		 FROM raw_observations ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list raw")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RawObservation
	for rows.Next() {
		var (
			r         model.RawObservation
			foot, ext string
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.RawSeriesID, &r.Year, &r.Period, &r.Value, &foot, &ext); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan raw")
		}
		if err := json.Unmarshal([]byte(foot), &r.Footnotes); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal footnotes")
		}
		if r.ExtractedAt, err = parseTime(ext); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list raw iterate")
}

func (s *SQLiteStore) ReplaceCleaned(ctx context.Context, obs []model.CleanedObservation) error {
	rows := make([][]any, len(obs))
	for i, o := range obs {
		foot, err := marshalJSON(o.Footnotes, "[]")
		if err != nil {
			return err
		}
		rows[i] = []any{o.SeriesID, o.RawSeriesID, formatDate(o.Date), o.Value, o.Annual, foot, formatTime(o.UpdatedAt)}
	}
	return s.inTx(ctx, "replace cleaned", func(tx *sql.Tx) error {
		return replaceTable(ctx, tx, "cleaned_observations", cleanedCols, rows)
	})
}

func (s *SQLiteStore) ListCleaned(ctx context.Context) ([]model.CleanedObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT series_id, raw_series_id, date, value, is_annual_aggregate, footnotes, updated_at
		 FROM cleaned_observations ORDER BY series_id, date, is_annual_aggregate`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cleaned")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CleanedObservation
	for rows.Next() {
		var (
			o             model.CleanedObservation
			d, foot, upd string
		)
		if err := rows.Scan(&o.SeriesID, &o.RawSeriesID, &d, &o.Value, &o.Annual, &foot, &upd); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cleaned")
		}
		if o.Date, err = parseDate(d); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(foot), &o.Footnotes); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal footnotes")
		}
		if o.UpdatedAt, err = parseTime(upd); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list cleaned iterate")
}

func (s *SQLiteStore) ReplaceAnalytics(ctx context.Context, a *model.Analytics) error {
	if a == nil {
		a = &model.Analytics{}
	}

	aggs := make([][]any, 0, len(a.Monthly)+len(a.Yearly))
	for _, ag := range append(append([]model.Aggregate(nil), a.Monthly...), a.Yearly...) {
		aggs = append(aggs, []any{ag.SeriesID, string(ag.Granularity), formatDate(ag.PeriodStart), ag.Avg, ag.Min, ag.Max, ag.Count})
	}
	derived := make([][]any, len(a.Changes))
	for i, d := range a.Changes {
		derived[i] = []any{d.SeriesID, formatDate(d.Date), d.Value,
			d.MoM.Value(), string(d.MoM.Status), d.YoY.Value(), string(d.YoY.Status)}
	}
	corr := make([][]any, len(a.Correlations))
	for i, c := range a.Correlations {
		corr[i] = []any{c.IndicatorID1, c.IndicatorID2, c.Correlation,
			formatDate(c.PeriodStart), formatDate(c.PeriodEnd), c.MinPeriods, c.Observations}
	}
	rollups := make([][]any, len(a.CorrelationRollups))
	for i, r := range a.CorrelationRollups {
		rollups[i] = []any{r.IndicatorID1, r.IndicatorID2, formatDate(r.Month), r.AvgCorrelation, r.Windows}
	}
	stats := make([][]any, len(a.Stats))
	for i, st := range a.Stats {
		stats[i] = []any{st.SeriesID, st.Count, st.Mean, st.StdDev, st.Min, st.Max,
			st.Latest, st.AvgChangePct, st.VolatilityPct}
	}

	return s.inTx(ctx, "replace analytics", func(tx *sql.Tx) error {
		for _, t := range []struct {
			table string
			cols  []string
			rows  [][]any
		}{
			{TableAggregates, aggregateCols, aggs},
			{TableDerived, derivedCols, derived},
			{TableCorrelations, correlationCols, corr},
			{TableRollups, rollupCols, rollups},
			{TableStats, statsCols, stats},
		} {
			if err := replaceTable(ctx, tx, t.table, t.cols, t.rows); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListCorrelations(ctx context.Context, id1, id2 string) ([]model.CorrelationRow, error) {
	if id2 < id1 {
		id1, id2 = id2, id1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT indicator_id_1, indicator_id_2, correlation, period_start, period_end, min_periods, observations
		 FROM correlations WHERE indicator_id_1 = ? AND indicator_id_2 = ?
		 ORDER BY period_start, period_end`,
		id1, id2,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list correlations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CorrelationRow
	for rows.Next() {
		var (
			c          model.CorrelationRow
			start, end string
		)
		if err := rows.Scan(&c.IndicatorID1, &c.IndicatorID2, &c.Correlation, &start, &end, &c.MinPeriods, &c.Observations); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan correlation")
		}
		if c.PeriodStart, err = parseDate(start); err != nil {
			return nil, err
		}
		if c.PeriodEnd, err = parseDate(end); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list correlations iterate")
}

func (s *SQLiteStore) StartRun(ctx context.Context, stage string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO run_log (stage, status, started_at) VALUES (?, ?, ?)`,
		stage, macro.StatusRunning, formatTime(time.Now().UTC()),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: start run %s", stage)
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: run id")
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, id int64, result *macro.RunResult) error {
	if result == nil {
		result = &macro.RunResult{}
	}
	var meta sql.NullString
	if result.Metadata != nil {
		b, err := json.Marshal(result.Metadata)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal run metadata")
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE run_log SET status = ?, completed_at = ?, rows_written = ?, skipped = ?, metadata = ? WHERE id = ?`,
		macro.StatusComplete, formatTime(time.Now().UTC()), result.RowsWritten, result.Skipped, meta, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %d", id)
	}
	return checkRowsAffected(res, "run", id)
}

func (s *SQLiteStore) FailRun(ctx context.Context, id int64, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE run_log SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		macro.StatusFailed, formatTime(time.Now().UTC()), errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %d", id)
	}
	return checkRowsAffected(res, "run", id)
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]macro.RunEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stage, status, started_at, completed_at, rows_written, skipped, error, metadata
		 FROM run_log ORDER BY started_at DESC, id DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []macro.RunEntry
	for rows.Next() {
		var (
			e               macro.RunEntry
			started         string
			completed, meta sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Stage, &e.Status, &started, &completed, &e.RowsWritten, &e.Skipped, &e.Error, &meta); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if e.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if completed.Valid {
			t, err := parseTime(completed.String)
			if err != nil {
				return nil, err
			}
			e.CompletedAt = &t
		}
		if meta.Valid {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal run metadata")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func (s *SQLiteStore) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s: begin tx", op)
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return eris.Wrapf(err, "sqlite: %s", op)
	}
	return eris.Wrapf(tx.Commit(), "sqlite: %s: commit tx", op)
}

// replaceTable deletes every row of table and inserts rows in its place.
func replaceTable(ctx context.Context, tx *sql.Tx, table string, cols []string, rows [][]any) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return eris.Wrapf(err, "delete %s", table)
	}
	if len(rows) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders))
	if err != nil {
		return eris.Wrapf(err, "prepare %s", table)
	}
	defer stmt.Close() //nolint:errcheck
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "insert %s", table)
		}
	}
	return nil
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}

// marshalJSON encodes v, writing empty when v is a nil slice or map.
func marshalJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal json")
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func formatDate(t time.Time) string { return t.UTC().Format(time.DateOnly) }

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	return t, eris.Wrapf(err, "sqlite: parse date %q", s)
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	return t, eris.Wrapf(err, "sqlite: parse time %q", s)
}
