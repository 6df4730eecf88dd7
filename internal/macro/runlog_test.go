package macro

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRunLog(t *testing.T) (pgxmock.PgxPoolIface, *RunLog) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewRunLog(mock)
}

func TestRunLog_Start(t *testing.T) {
	mock, rl := newMockRunLog(t)
	mock.ExpectQuery("INSERT INTO macro.run_log").
		WithArgs("resolve").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := rl.Start(context.Background(), "resolve")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_StartError(t *testing.T) {
	mock, rl := newMockRunLog(t)
	mock.ExpectQuery("INSERT INTO macro.run_log").WithArgs("metrics").WillReturnError(errors.New("down"))

	_, err := rl.Start(context.Background(), "metrics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runlog: start metrics")
}

func TestRunLog_Complete(t *testing.T) {
	mock, rl := newMockRunLog(t)
	mock.ExpectExec("UPDATE macro.run_log").
		WithArgs(int64(10), int64(2), []byte(`{"stage":"resolve"}`), int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := rl.Complete(context.Background(), 7, &RunResult{
		RowsWritten: 10,
		Skipped:     2,
		Metadata:    map[string]any{"stage": "resolve"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_CompleteNilResult(t *testing.T) {
	mock, rl := newMockRunLog(t)
	mock.ExpectExec("UPDATE macro.run_log").
		WithArgs(int64(0), int64(0), []byte(nil), int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, rl.Complete(context.Background(), 7, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_Fail(t *testing.T) {
	mock, rl := newMockRunLog(t)
	mock.ExpectExec("UPDATE macro.run_log").
		WithArgs("boom", int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, rl.Fail(context.Background(), 3, "boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_LastSuccess(t *testing.T) {
	mock, rl := newMockRunLog(t)
	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT started_at FROM macro.run_log").
		WithArgs("metrics").
		WillReturnRows(pgxmock.NewRows([]string{"started_at"}).AddRow(ts))
	mock.ExpectQuery("SELECT started_at FROM macro.run_log").
		WithArgs("extract").
		WillReturnError(pgx.ErrNoRows)

	got, err := rl.LastSuccess(context.Background(), "metrics")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ts, *got)

	got, err = rl.LastSuccess(context.Background(), "extract")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_ListAll(t *testing.T) {
	mock, rl := newMockRunLog(t)
	started := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	done := started.Add(time.Minute)
	errMsg := "store down"

	mock.ExpectQuery("SELECT id, stage, status").
		WillReturnRows(pgxmock.NewRows([]string{"id", "stage", "status", "started_at", "completed_at", "rows_written", "skipped", "error", "metadata"}).
			AddRow(int64(2), "metrics", StatusFailed, started, &done, int64(0), int64(0), &errMsg, []byte(nil)).
			AddRow(int64(1), "resolve", StatusComplete, started, &done, int64(12), int64(3), (*string)(nil), []byte(`{"stage":"resolve"}`)))

	entries, err := rl.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "store down", entries[0].Error)
	assert.Equal(t, int64(12), entries[1].RowsWritten)
	assert.Equal(t, int64(3), entries[1].Skipped)
	assert.Equal(t, "resolve", entries[1].Metadata["stage"])
	require.NotNil(t, entries[1].CompletedAt)
	assert.Equal(t, done, *entries[1].CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
