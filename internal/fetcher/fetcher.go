package fetcher

import (
	"context"
	"io"
)

// Fetcher retrieves upstream statistics over HTTP.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// PostJSON sends body as JSON and decodes the response into out.
	PostJSON(ctx context.Context, url string, body, out any) error
}
