package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.Background(), nil, "macro.raw_observations", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"macro", "raw_observations"}, []string{"a", "b"}).WillReturnResult(3)

	n, err := CopyFrom(context.Background(), mock, "macro.raw_observations", []string{"a", "b"}, [][]any{{1, "x"}, {2, "y"}, {3, "z"}})
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"test_table"}, []string{"a"}).WillReturnError(errors.New("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "test_table", []string{"a"}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO test_table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAll_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "macro"."correlations"`).WillReturnResult(pgxmock.NewResult("DELETE", 7))
	mock.ExpectCopyFrom(pgx.Identifier{"macro", "correlations"}, []string{"a", "b"}).WillReturnResult(2)
	mock.ExpectExec(`DELETE FROM "macro"."correlations_monthly"`).WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCommit()

	n, err := ReplaceAll(context.Background(), mock,
		Replacement{Table: "macro.correlations", Columns: []string{"a", "b"}, Rows: [][]any{{1, 2}, {3, 4}}},
		Replacement{Table: "macro.correlations_monthly", Columns: []string{"a"}},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"macro.correlations": 2, "macro.correlations_monthly": 0}, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAll_CopyErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "macro"."derived_metrics"`).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"macro", "derived_metrics"}, []string{"a"}).WillReturnError(errors.New("bad row"))
	mock.ExpectRollback()

	_, err = ReplaceAll(context.Background(), mock,
		Replacement{Table: "macro.derived_metrics", Columns: []string{"a"}, Rows: [][]any{{1}}},
		Replacement{Table: "macro.correlations", Columns: []string{"a"}, Rows: [][]any{{1}}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: replace macro.derived_metrics: COPY")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAll_DeleteErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM`).WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	_, err = ReplaceAll(context.Background(), mock, Replacement{Table: "macro.correlations", Columns: []string{"a"}, Rows: [][]any{{1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: replace macro.correlations: delete")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAll_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("no conn"))

	_, err = ReplaceAll(context.Background(), mock, Replacement{Table: "macro.t"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
