package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFrom bulk-inserts rows into a (possibly schema-qualified) table
// using the COPY protocol.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}

// Replacement is the new full contents of one table.
type Replacement struct {
	Table   string
	Columns []string
	Rows    [][]any
}

// ReplaceAll swaps the full contents of each table in one transaction:
// existing rows are deleted and the new rows copied in. Readers never see
// a partially replaced layer. It returns the rows written per table.
func ReplaceAll(ctx context.Context, pool Pool, reps ...Replacement) (map[string]int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "db: replace: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	written := make(map[string]int64, len(reps))
	for _, r := range reps {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", sanitizeTable(r.Table))); err != nil {
			return nil, eris.Wrapf(err, "db: replace %s: delete", r.Table)
		}
		written[r.Table] = 0
		if len(r.Rows) == 0 {
			continue
		}
		n, err := tx.CopyFrom(ctx, identifier(r.Table), r.Columns, pgx.CopyFromRows(r.Rows))
		if err != nil {
			return nil, eris.Wrapf(err, "db: replace %s: COPY", r.Table)
		}
		written[r.Table] = n
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "db: replace: commit tx")
	}
	return written, nil
}
