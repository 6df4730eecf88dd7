package series

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/macro-cli/internal/macro/report"
	"github.com/sells-group/macro-cli/internal/model"
)

// Checker asks the upstream source whether a series exists. A nil error
// with false means the source answered "no such series"; a non-nil error
// means the source could not answer.
type Checker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Validator confirms candidates against the upstream source.
type Validator struct {
	checker     Checker
	concurrency int
	now         func() time.Time
	log         *zap.Logger
}

// NewValidator creates a Validator running at most concurrency checks at once.
func NewValidator(c Checker, concurrency int) *Validator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Validator{
		checker:     c,
		concurrency: concurrency,
		now:         time.Now,
		log:         zap.L().With(zap.String("component", "series.validator")),
	}
}

// FromIDs turns ad-hoc identifiers into candidates of universe u. Ids that
// do not parse under u's grammar come back with CandidateMalformed.
func FromIDs(u Universe, ids []string, sum *report.Summary) []model.Candidate {
	g := u.Grammar()
	out := make([]model.Candidate, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id := strings.ToUpper(strings.TrimSpace(raw))
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			sum.Skip(report.DuplicateCandidate, id)
			continue
		}
		seen[id] = struct{}{}
		c := model.Candidate{ID: id, Universe: u.Name, SeriesType: u.SeriesType}
		codes, err := g.Parse(id)
		if err != nil {
			c.Status = model.CandidateMalformed
			c.Detail = err.Error()
		} else {
			c.Codes = codes
		}
		out = append(out, c)
	}
	return out
}

// Validate checks every candidate and returns them in input order with
// Status set. Already-malformed candidates are not sent upstream. Only
// CandidateValid results may flow into extraction.
func (v *Validator) Validate(ctx context.Context, cands []model.Candidate, sum *report.Summary) ([]model.Candidate, error) {
	out := make([]model.Candidate, len(cands))
	copy(out, cands)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)

	for i := range out {
		if out[i].Status == model.CandidateMalformed {
			sum.Skip(report.MalformedIdentifier, out[i].ID)
			continue
		}
		g.Go(func() error {
			c := &out[i]
			ok, err := v.checker.Exists(gctx, c.ID)
			c.CheckedAt = v.now().UTC()
			switch {
			case gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				c.Status = model.CandidateUnverified
				c.Detail = err.Error()
				sum.Skip(report.UnverifiedIdentifier, c.ID)
				v.log.Debug("candidate unverified", zap.String("id", c.ID), zap.Error(err))
			case !ok:
				c.Status = model.CandidateNotFound
				sum.Skip(report.NotFoundIdentifier, c.ID)
			default:
				c.Status = model.CandidateValid
				c.Detail = ""
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "series: validate candidates")
	}

	var valid int
	for _, c := range out {
		if c.Status == model.CandidateValid {
			valid++
		}
	}
	sum.Produced("series_candidates", len(out))
	sum.Set("valid_candidates", valid)
	v.log.Info("validated candidates",
		zap.Int("total", len(out)),
		zap.Int("valid", valid),
	)
	return out, nil
}

// Valid filters candidates down to the ones confirmed upstream.
func Valid(cands []model.Candidate) []model.Candidate {
	var out []model.Candidate
	for _, c := range cands {
		if c.Status == model.CandidateValid {
			out = append(out, c)
		}
	}
	return out
}
