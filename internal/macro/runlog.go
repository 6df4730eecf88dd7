package macro

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/macro-cli/internal/db"
)

// Run status values.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// RunEntry is one row of macro.run_log.
type RunEntry struct {
	ID          int64          `json:"id"`
	Stage       string         `json:"stage"`
	Status      string         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	RowsWritten int64          `json:"rows_written"`
	Skipped     int64          `json:"skipped"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RunResult is the outcome passed to Complete.
type RunResult struct {
	RowsWritten int64          `json:"rows_written"`
	Skipped     int64          `json:"skipped"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RunLog reads and writes macro.run_log.
type RunLog struct {
	pool db.Pool
}

// NewRunLog creates a RunLog backed by pool.
func NewRunLog(pool db.Pool) *RunLog {
	return &RunLog{pool: pool}
}

// Start records the beginning of a stage run and returns its id.
func (l *RunLog) Start(ctx context.Context, stage string) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`INSERT INTO macro.run_log (stage, status, started_at)
		 VALUES ($1, 'running', now()) RETURNING id`,
		stage,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "runlog: start %s", stage)
	}
	return id, nil
}

// Complete marks a run as finished.
func (l *RunLog) Complete(ctx context.Context, id int64, result *RunResult) error {
	var (
		metaJSON []byte
		rows     int64
		skipped  int64
	)
	if result != nil {
		rows, skipped = result.RowsWritten, result.Skipped
		if result.Metadata != nil {
			var err error
			metaJSON, err = json.Marshal(result.Metadata)
			if err != nil {
				return eris.Wrap(err, "runlog: marshal metadata")
			}
		}
	}

	_, err := l.pool.Exec(ctx,
		`UPDATE macro.run_log
		 SET status = 'complete', completed_at = now(), rows_written = $1, skipped = $2, metadata = $3
		 WHERE id = $4`,
		rows, skipped, metaJSON, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %d", id)
	}
	return nil
}

// Fail marks a run as failed.
func (l *RunLog) Fail(ctx context.Context, id int64, errMsg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE macro.run_log
		 SET status = 'failed', completed_at = now(), error = $1
		 WHERE id = $2`,
		errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %d", id)
	}
	return nil
}

// LastSuccess returns when the stage last completed, or nil if never.
func (l *RunLog) LastSuccess(ctx context.Context, stage string) (*time.Time, error) {
	var t time.Time
	err := l.pool.QueryRow(ctx,
		`SELECT started_at FROM macro.run_log
		 WHERE stage = $1 AND status = 'complete'
		 ORDER BY started_at DESC LIMIT 1`,
		stage,
	).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: last success for %s", stage)
	}
	return &t, nil
}

// ListAll returns the run history, most recent first.
func (l *RunLog) ListAll(ctx context.Context) ([]RunEntry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, stage, status, started_at, completed_at, rows_written, skipped, error, metadata
		 FROM macro.run_log ORDER BY started_at DESC, id DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list all")
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var errStr *string
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.Stage, &e.Status, &e.StartedAt, &e.CompletedAt, &e.RowsWritten, &e.Skipped, &errStr, &metaJSON); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		if metaJSON != nil {
			_ = json.Unmarshal(metaJSON, &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
