package series

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/macro-cli/internal/macro/report"
	"github.com/sells-group/macro-cli/internal/model"
)

// CandidateSet deduplicates identifiers across universes. The first
// universe to produce an identifier keeps it.
type CandidateSet struct {
	index   map[string]int
	items   []model.Candidate
	names   map[string][]string
	claimed map[string]string
}

// NewCandidateSet creates an empty set.
func NewCandidateSet() *CandidateSet {
	return &CandidateSet{
		index:   make(map[string]int),
		names:   make(map[string][]string),
		claimed: make(map[string]string),
	}
}

// Claim reserves id for universe without listing it, so identifiers kept
// by an earlier pass stay with their universe. Add rejects a claimed id
// from any other universe.
func (s *CandidateSet) Claim(id, universe string) {
	if _, ok := s.index[id]; ok {
		return
	}
	if _, ok := s.claimed[id]; !ok {
		s.claimed[id] = universe
	}
}

// Add inserts c and reports whether it was new.
func (s *CandidateSet) Add(c model.Candidate, names []string) bool {
	if _, ok := s.index[c.ID]; ok {
		return false
	}
	if owner, ok := s.claimed[c.ID]; ok && owner != c.Universe {
		return false
	}
	s.index[c.ID] = len(s.items)
	s.items = append(s.items, c)
	s.names[c.ID] = names
	return true
}

// Len returns the number of unique candidates.
func (s *CandidateSet) Len() int { return len(s.items) }

// Items returns the candidates in first-seen order.
func (s *CandidateSet) Items() []model.Candidate {
	return append([]model.Candidate(nil), s.items...)
}

// Names returns the per-field code names recorded for id.
func (s *CandidateSet) Names(id string) []string { return s.names[id] }

// GenerateResult reports where a generation pass stopped.
type GenerateResult struct {
	Universe  string
	Emitted   int
	Cursor    uint64
	Total     uint64
	Exhausted bool
}

// Generate enumerates u's cross product into set. Codes that do not fit
// their field are reported once as malformed and excluded before
// enumeration, so a bad code never multiplies into many bad candidates.
func Generate(ctx context.Context, u Universe, lists [][]Code, opts GeneratorOpts, set *CandidateSet, sum *report.Summary) (GenerateResult, error) {
	g := u.Grammar()
	clean := make([][]Code, len(lists))
	for i, codes := range lists {
		seen := make(map[string]struct{}, len(codes))
		for _, c := range codes {
			if _, dup := seen[c.Value]; dup {
				continue
			}
			seen[c.Value] = struct{}{}
			if err := g.CheckField(i, c.Value); err != nil {
				sum.Skip(report.MalformedIdentifier, fmt.Sprintf("%s.%s:%s", u.Name, g.Fields[i].Name, c.Value))
				continue
			}
			clean[i] = append(clean[i], c)
		}
	}

	gen := NewGenerator(clean, opts)
	res := GenerateResult{Universe: u.Name, Total: gen.Total()}
	for {
		if err := ctx.Err(); err != nil {
			res.Cursor = gen.Cursor()
			return res, err
		}
		combo, ok := gen.Next()
		if !ok {
			break
		}
		codes := make([]string, len(combo))
		names := make([]string, len(combo))
		for i, c := range combo {
			codes[i] = c.Value
			names[i] = c.Name
		}
		id, err := g.Compose(codes)
		if err != nil {
			sum.Skip(report.MalformedIdentifier, g.Prefix+strings.Join(codes, ""))
			continue
		}
		cand := model.Candidate{ID: id, Universe: u.Name, SeriesType: u.SeriesType, Codes: codes}
		if !set.Add(cand, names) {
			sum.Skip(report.DuplicateCandidate, id)
			continue
		}
		res.Emitted++
	}
	res.Cursor = gen.Cursor()
	res.Exhausted = gen.Exhausted()
	return res, nil
}
