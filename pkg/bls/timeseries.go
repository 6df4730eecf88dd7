package bls

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/macro-cli/internal/model"
)

const statusSucceeded = "REQUEST_SUCCEEDED"

type seriesRequest struct {
	SeriesID        []string `json:"seriesid"`
	StartYear       string   `json:"startyear"`
	EndYear         string   `json:"endyear"`
	RegistrationKey string   `json:"registrationkey,omitempty"`
}

type seriesResponse struct {
	Status       string   `json:"status"`
	ResponseTime int      `json:"responseTime"`
	Message      []string `json:"message"`
	Results      struct {
		Series []apiSeries `json:"series"`
	} `json:"Results"`
}

type apiSeries struct {
	SeriesID string     `json:"seriesID"`
	Data     []apiPoint `json:"data"`
}

type apiPoint struct {
	Year       string        `json:"year"`
	Period     string        `json:"period"`
	PeriodName string        `json:"periodName"`
	Value      string        `json:"value"`
	Footnotes  []apiFootnote `json:"footnotes"`
}

type apiFootnote struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

// flatten keeps each footnote's text, or its code when the text is empty.
// Empty footnote objects are dropped.
func flatten(fns []apiFootnote) []string {
	var out []string
	for _, fn := range fns {
		switch {
		case strings.TrimSpace(fn.Text) != "":
			out = append(out, strings.TrimSpace(fn.Text))
		case strings.TrimSpace(fn.Code) != "":
			out = append(out, strings.TrimSpace(fn.Code))
		}
	}
	return out
}

// Extract is the outcome of a timeseries pull.
type Extract struct {
	Records  []model.RawObservation
	Missing  []string // requested ids that returned no data in any window
	Requests int
}

// YearWindows splits [start, end] into windows of at most MaxYears years.
func YearWindows(start, end int) [][2]int {
	if end < start {
		return nil
	}
	var out [][2]int
	for lo := start; lo <= end; lo += MaxYears {
		out = append(out, [2]int{lo, min(lo+MaxYears-1, end)})
	}
	return out
}

// Batches splits ids into chunks of at most size.
func Batches(ids []string, size int) [][]string {
	if size < 1 {
		size = MaxBatch
	}
	var out [][]string
	for lo := 0; lo < len(ids); lo += size {
		out = append(out, ids[lo:min(lo+size, len(ids))])
	}
	return out
}

// Timeseries pulls every observation of ids between startYear and endYear.
// Requests are split by batch size and year window. Every record carries
// the same extraction timestamp.
func (c *Client) Timeseries(ctx context.Context, ids []string, startYear, endYear int) (*Extract, error) {
	start := time.Now()
	extractedAt := c.now().UTC()
	out := &Extract{}
	seen := make(map[string]bool, len(ids))

	for _, w := range YearWindows(startYear, endYear) {
		for _, batch := range Batches(ids, c.batchSize) {
			series, err := c.fetch(ctx, batch, w[0], w[1])
			out.Requests++
			if err != nil {
				return nil, eris.Wrapf(err, "bls: timeseries %d-%d", w[0], w[1])
			}
			for _, s := range series {
				for _, p := range s.Data {
					year, err := strconv.Atoi(strings.TrimSpace(p.Year))
					if err != nil {
						c.log.Debug("skipping point with bad year",
							zap.String("series_id", s.SeriesID),
							zap.String("year", p.Year),
						)
						continue
					}
					seen[s.SeriesID] = true
					out.Records = append(out.Records, model.RawObservation{
						Source:      Source,
						RawSeriesID: s.SeriesID,
						Year:        year,
						Period:      strings.TrimSpace(p.Period),
						Value:       strings.TrimSpace(p.Value),
						Footnotes:   flatten(p.Footnotes),
						ExtractedAt: extractedAt,
					})
				}
			}
		}
	}

	for _, id := range ids {
		if !seen[id] {
			out.Missing = append(out.Missing, id)
		}
	}
	c.log.Info("extracted timeseries",
		zap.Int("series", len(ids)),
		zap.Int("records", len(out.Records)),
		zap.Int("missing", len(out.Missing)),
		zap.Int("requests", out.Requests),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// fetch posts one request. A response whose status is not a success is an
// error carrying the API messages.
func (c *Client) fetch(ctx context.Context, ids []string, startYear, endYear int) ([]apiSeries, error) {
	req := seriesRequest{
		SeriesID:        ids,
		StartYear:       strconv.Itoa(startYear),
		EndYear:         strconv.Itoa(endYear),
		RegistrationKey: c.apiKey,
	}
	var resp seriesResponse
	if err := c.f.PostJSON(ctx, c.baseURL+"/timeseries/data/", req, &resp); err != nil {
		return nil, err
	}
	if resp.Status != statusSucceeded {
		return nil, eris.Errorf("bls: request status %s: %s", resp.Status, strings.Join(resp.Message, "; "))
	}
	return resp.Results.Series, nil
}
