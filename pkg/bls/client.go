// Package bls provides a client for the Bureau of Labor Statistics public
// data API (v2) and its flat-file download area.
package bls

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/macro-cli/internal/fetcher"
)

// Source tags raw observations extracted from the BLS API.
const Source = "bls"

const (
	defaultBaseURL     = "https://api.bls.gov/publicAPI/v2"
	defaultDownloadURL = "https://download.bls.gov/pub/time.series"

	// MaxBatch is the most series ids the API accepts per request.
	MaxBatch = 50
	// MaxYears is the widest year window the API accepts per request.
	MaxYears = 20
)

// Option configures the BLS client.
type Option func(*Client)

// WithAPIKey sets the registration key. Without one the API serves the
// lower public limits.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithDownloadURL sets a custom flat-file root (for testing).
func WithDownloadURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.downloadURL = strings.TrimRight(u, "/")
		}
	}
}

// WithBatchSize caps the series ids sent per request. Values outside
// 1..MaxBatch fall back to MaxBatch.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n >= 1 && n <= MaxBatch {
			c.batchSize = n
		}
	}
}

// Client talks to the BLS API through a fetcher, which owns rate limiting
// and retries.
type Client struct {
	f           fetcher.Fetcher
	apiKey      string
	baseURL     string
	downloadURL string
	batchSize   int
	now         func() time.Time
	log         *zap.Logger
}

// NewClient creates a BLS client on top of f.
func NewClient(f fetcher.Fetcher, opts ...Option) *Client {
	c := &Client{
		f:           f,
		baseURL:     defaultBaseURL,
		downloadURL: defaultDownloadURL,
		batchSize:   MaxBatch,
		now:         time.Now,
		log:         zap.L().With(zap.String("component", "bls.client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
