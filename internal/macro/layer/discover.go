package layer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/macro-cli/internal/macro/report"
	"github.com/sells-group/macro-cli/internal/macro/series"
	"github.com/sells-group/macro-cli/internal/model"
)

// GenerateOpts selects universes and positions the enumeration.
type GenerateOpts struct {
	Universe string // empty = every universe, in file order
	Start    uint64 // cursor to resume from
	Limit    uint64 // 0 = Options.MaxCandidates
}

// universes returns the selected universes.
func (e *Engine) universes(name string) ([]series.Universe, error) {
	if e.deps.Universes == nil {
		return nil, eris.New("layer: no universes configured")
	}
	if name == "" {
		return e.deps.Universes.Universes, nil
	}
	u, ok := e.deps.Universes.Find(name)
	if !ok {
		return nil, eris.Errorf("layer: unknown universe %q", name)
	}
	return []series.Universe{u}, nil
}

// codeLists loads and caches the code lists of u.
func (e *Engine) codeLists(ctx context.Context, u series.Universe) ([][]series.Code, error) {
	e.mu.Lock()
	lists, ok := e.codes[u.Name]
	e.mu.Unlock()
	if ok {
		return lists, nil
	}
	lists, err := u.CodeLists(ctx, e.deps.Loader)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.codes[u.Name] = lists
	e.mu.Unlock()
	return lists, nil
}

// Generate enumerates candidates without checking them upstream. Earlier
// universes, in file order, keep identifiers that later ones also produce,
// including identifiers stored by previous passes.
func (e *Engine) Generate(ctx context.Context, opts GenerateOpts, sum *report.Summary) (*series.CandidateSet, []series.GenerateResult, error) {
	us, err := e.universes(opts.Universe)
	if err != nil {
		return nil, nil, err
	}
	limit := opts.Limit
	if limit == 0 {
		limit = e.opts.MaxCandidates
	}
	owned, err := e.storedOwners(ctx)
	if err != nil {
		return nil, nil, err
	}

	set := series.NewCandidateSet()
	var results []series.GenerateResult
	for _, u := range us {
		for _, prior := range e.deps.Universes.Universes {
			if prior.Name == u.Name {
				break
			}
			for _, id := range owned[prior.Name] {
				set.Claim(id, prior.Name)
			}
		}
		lists, err := e.codeLists(ctx, u)
		if err != nil {
			return nil, nil, eris.Wrap(err, "layer: code lists")
		}
		res, err := series.Generate(ctx, u, lists, series.GeneratorOpts{Start: opts.Start, Limit: limit}, set, sum)
		results = append(results, res)
		sum.Set(fmt.Sprintf("cursor.%s", u.Name), res.Cursor)
		sum.Set(fmt.Sprintf("exhausted.%s", u.Name), res.Exhausted)
		if err != nil {
			return nil, results, eris.Wrapf(err, "layer: generate %s", u.Name)
		}
		e.log.Info("generated candidates",
			zap.String("universe", u.Name),
			zap.Int("emitted", res.Emitted),
			zap.Uint64("cursor", res.Cursor),
			zap.Uint64("total", res.Total),
		)
	}
	sum.Produced("candidates_generated", set.Len())
	return set, results, nil
}

// storedOwners groups the stored candidate ids by universe.
func (e *Engine) storedOwners(ctx context.Context) (map[string][]string, error) {
	stored, err := e.deps.Store.ListCandidates(ctx, "")
	if err != nil {
		return nil, eris.Wrap(err, "layer: list candidates")
	}
	out := make(map[string][]string)
	for _, c := range stored {
		out[c.Universe] = append(out[c.Universe], c.ID)
	}
	return out, nil
}

// Discover generates candidates, checks them upstream, stores every
// outcome, and upserts metadata for the valid ones.
func (e *Engine) Discover(ctx context.Context, opts GenerateOpts) (*report.Summary, error) {
	return e.stage(ctx, StageDiscover, func(ctx context.Context, sum *report.Summary) error {
		set, _, err := e.Generate(ctx, opts, sum)
		if err != nil {
			return err
		}
		return e.check(ctx, set.Items(), sum)
	})
}

// Validate re-checks candidates. With ids they are parsed under universe;
// without, the stored unverified candidates are retried.
func (e *Engine) Validate(ctx context.Context, universe string, ids []string) (*report.Summary, error) {
	return e.stage(ctx, StageValidate, func(ctx context.Context, sum *report.Summary) error {
		var cands []model.Candidate
		if len(ids) > 0 {
			us, err := e.universes(universe)
			if err != nil {
				return err
			}
			if len(us) != 1 {
				return eris.New("layer: validating ids needs exactly one universe")
			}
			cands = series.FromIDs(us[0], ids, sum)
		} else {
			stored, err := e.deps.Store.ListCandidates(ctx, model.CandidateUnverified)
			if err != nil {
				return eris.Wrap(err, "layer: list unverified candidates")
			}
			cands = stored
		}
		return e.check(ctx, cands, sum)
	})
}

func (e *Engine) check(ctx context.Context, cands []model.Candidate, sum *report.Summary) error {
	if e.deps.Checker == nil {
		return eris.New("layer: validation needs a checker")
	}
	checked, err := series.NewValidator(e.deps.Checker, e.opts.Concurrency).Validate(ctx, cands, sum)
	if err != nil {
		return err
	}
	if err := e.deps.Store.SaveCandidates(ctx, checked); err != nil {
		return eris.Wrap(err, "layer: save candidates")
	}
	meta, err := e.Metadata(ctx, series.Valid(checked))
	if err != nil {
		return err
	}
	revoked, err := e.revoke(ctx, checked)
	if err != nil {
		return err
	}
	if err := e.deps.Store.UpsertSeries(ctx, append(meta, revoked...)); err != nil {
		return eris.Wrap(err, "layer: upsert series")
	}
	sum.Produced("series_metadata", len(meta))
	if len(revoked) > 0 {
		sum.Set("revoked_series", len(revoked))
		e.log.Info("revoked series", zap.Int("count", len(revoked)))
	}
	return nil
}

// revoke returns the stored metadata rows of candidates now checked as
// not-found or malformed, marked invalid. Unverified candidates keep
// their row as is.
func (e *Engine) revoke(ctx context.Context, checked []model.Candidate) ([]model.SeriesMetadata, error) {
	gone := make(map[string]struct{})
	for _, c := range checked {
		if c.Status == model.CandidateNotFound || c.Status == model.CandidateMalformed {
			gone[c.ID] = struct{}{}
		}
	}
	if len(gone) == 0 {
		return nil, nil
	}
	stored, err := e.deps.Store.ListSeries(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "layer: list series")
	}
	now := e.now().UTC()
	var out []model.SeriesMetadata
	for _, m := range stored {
		if _, ok := gone[m.RawSeriesID]; !ok || !m.Valid {
			continue
		}
		m.Valid = false
		m.UpdatedAt = now
		out = append(out, m)
	}
	return out, nil
}

// Metadata builds series metadata for valid candidates. Names join the
// code names of every field that has one.
func (e *Engine) Metadata(ctx context.Context, cands []model.Candidate) ([]model.SeriesMetadata, error) {
	if len(cands) == 0 {
		return nil, nil
	}
	if e.deps.Universes == nil {
		return nil, eris.New("layer: no universes configured")
	}
	out := make([]model.SeriesMetadata, 0, len(cands))
	names := make(map[string][]map[string]string)
	now := e.now().UTC()

	for _, c := range cands {
		u, ok := e.deps.Universes.Find(c.Universe)
		if !ok {
			return nil, eris.Errorf("layer: candidate %s has unknown universe %q", c.ID, c.Universe)
		}
		freq, err := model.ParseFrequency(u.Frequency)
		if err != nil {
			return nil, eris.Wrapf(err, "layer: universe %s", u.Name)
		}
		byField, ok := names[u.Name]
		if !ok {
			lists, err := e.codeLists(ctx, u)
			if err != nil {
				return nil, eris.Wrap(err, "layer: code names")
			}
			byField = make([]map[string]string, len(lists))
			for i, l := range lists {
				byField[i] = make(map[string]string, len(l))
				for _, code := range l {
					byField[i][code.Value] = code.Name
				}
			}
			names[u.Name] = byField
		}

		class := make(map[string]string, len(c.Codes))
		var parts []string
		for i, code := range c.Codes {
			if i >= len(u.Fields) {
				break
			}
			class[u.Fields[i].Name] = code
			if i < len(byField) {
				if n := strings.TrimSpace(byField[i][code]); n != "" {
					parts = append(parts, n)
				}
			}
		}
		name := strings.Join(parts, " / ")
		if name == "" {
			name = c.ID
		}

		seriesType := c.SeriesType
		if seriesType == "" {
			seriesType = u.SeriesType
		}
		out = append(out, model.SeriesMetadata{
			SeriesID:           model.SurrogateID(c.ID),
			RawSeriesID:        c.ID,
			Name:               name,
			SeriesType:         seriesType,
			Survey:             u.Survey,
			Frequency:          freq,
			SeasonallyAdjusted: u.SeasonallyAdjusted,
			Classification:     class,
			Valid:              true,
			UpdatedAt:          now,
		})
	}
	return out, nil
}
