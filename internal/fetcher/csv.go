// Package fetcher downloads upstream statistics over HTTP and streams
// delimited flat files.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming delimited-text parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	HasHeader  bool // the first row is delivered on the header channel, not as data
	Comment    rune // 0 = none
	LazyQuotes bool
	TrimSpace  bool
}

// Row is one parsed record and its 1-based record number (the header counts).
type Row struct {
	Line   int
	Fields []string
}

// StreamCSV parses r in a goroutine and sends rows on the returned channel.
// The header (when HasHeader) is sent first on header, which is buffered and
// closed before any row is delivered. Both row and error channels are closed
// when parsing stops; at most one error is sent.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (header <-chan []string, rows <-chan Row, errs <-chan error) {
	headerCh := make(chan []string, 1)
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(rowCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.Comment = opts.Comment
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		needHeader := opts.HasHeader
		if !needHeader {
			close(headerCh)
		}
		for line := 1; ; line++ {
			if err := ctx.Err(); err != nil {
				errCh <- eris.Wrap(err, "csv: context cancelled")
				return
			}
			record, err := reader.Read()
			if err == io.EOF {
				if needHeader {
					close(headerCh)
				}
				return
			}
			if err != nil {
				if needHeader {
					close(headerCh)
				}
				errCh <- eris.Wrapf(err, "csv: read line %d", line)
				return
			}
			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}
			if needHeader {
				headerCh <- record
				close(headerCh)
				needHeader = false
				continue
			}
			select {
			case rowCh <- Row{Line: line, Fields: record}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return headerCh, rowCh, errCh
}

// Index maps header names to column positions.
func Index(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

// Field returns the column of row at i, or "" when the row is short.
func Field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}
