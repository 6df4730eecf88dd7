package bls

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/macro-cli/internal/fetcher"
	"github.com/sells-group/macro-cli/internal/macro/series"
)

// open resolves source as a URL, a local file, or a path under the
// flat-file root (e.g. "pc/pc.industry").
func (c *Client) open(ctx context.Context, source string) (io.ReadCloser, string, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		rc, err := c.f.Download(ctx, source)
		return rc, source, err
	}
	if _, err := os.Stat(source); err == nil {
		f, err := os.Open(source)
		return f, source, err
	}
	u := c.downloadURL + "/" + strings.TrimLeft(source, "/")
	rc, err := c.f.Download(ctx, u)
	return rc, u, err
}

// LoadCodes reads a tab-delimited code list with a header row. Empty
// column names pick the first and second columns. Rows without a code are
// skipped; order follows the file.
func (c *Client) LoadCodes(ctx context.Context, source, codeColumn, nameColumn string) ([]series.Code, error) {
	start := time.Now()
	rc, loc, err := c.open(ctx, source)
	if err != nil {
		return nil, eris.Wrapf(err, "bls: open code list %s", source)
	}
	defer rc.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh, rows, errs := fetcher.StreamCSV(ctx, rc, fetcher.CSVOptions{
		Delimiter:  '\t',
		HasHeader:  true,
		LazyQuotes: true,
		TrimSpace:  true,
	})
	header, ok := <-headerCh
	if !ok {
		if err := <-errs; err != nil {
			return nil, eris.Wrapf(err, "bls: read code list %s", loc)
		}
		return nil, eris.Errorf("bls: code list %s is empty", loc)
	}

	idx := fetcher.Index(header)
	codeCol, nameCol := 0, 1
	if codeColumn != "" {
		i, ok := idx[codeColumn]
		if !ok {
			return nil, eris.Errorf("bls: code list %s has no column %q", loc, codeColumn)
		}
		codeCol = i
	}
	if nameColumn != "" {
		i, ok := idx[nameColumn]
		if !ok {
			return nil, eris.Errorf("bls: code list %s has no column %q", loc, nameColumn)
		}
		nameCol = i
	}

	var codes []series.Code
	for row := range rows {
		code := fetcher.Field(row.Fields, codeCol)
		if code == "" {
			continue
		}
		codes = append(codes, series.Code{Value: code, Name: fetcher.Field(row.Fields, nameCol)})
	}
	if err := <-errs; err != nil {
		return nil, eris.Wrapf(err, "bls: read code list %s", loc)
	}

	c.log.Info("loaded code list",
		zap.String("source", loc),
		zap.Int("codes", len(codes)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return codes, nil
}

var (
	_ series.CodeLoader = (*Client)(nil)
	_ series.Checker    = (*Verifier)(nil)
)
