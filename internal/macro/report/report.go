// Package report defines the per-record condition taxonomy of the macro
// pipeline and the run summary every stage produces.
package report

import (
	"sort"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrInvariant marks a resolver defect: the cleaned layer holds two
// observations under one key. It is the only fatal data condition.
var ErrInvariant = eris.New("cleaned layer key invariant violated")

// Reason classifies a skipped or flagged record, pair, or candidate.
type Reason string

const (
	MalformedIdentifier  Reason = "malformed-identifier"
	UnverifiedIdentifier Reason = "unverified-identifier"
	NotFoundIdentifier   Reason = "not-found-identifier"
	DuplicateCandidate   Reason = "duplicate-candidate"
	UnknownSeries        Reason = "unknown-series"
	SuppressedValue      Reason = "suppressed-value"
	UnparseableValue     Reason = "unparseable-value"
	UnknownPeriod        Reason = "unknown-period"
	SupersededRevision   Reason = "superseded-revision"
	InsufficientData     Reason = "insufficient-data"
	UndefinedChange      Reason = "undefined-change"
	InsufficientOverlap  Reason = "insufficient-overlap"
	ConstantSeries       Reason = "constant-series"
)

// maxExamples bounds the sample keys kept per reason.
const maxExamples = 5

// Summary counts rows produced and conditions met during one stage run.
// It is safe for concurrent use.
type Summary struct {
	mu       sync.Mutex
	stage    string
	produced map[string]int64
	reasons  map[Reason]int64
	examples map[Reason][]string
	skipped  int64
	meta     map[string]any
}

// New creates an empty summary for a stage.
func New(stage string) *Summary {
	return &Summary{
		stage:    stage,
		produced: make(map[string]int64),
		reasons:  make(map[Reason]int64),
		examples: make(map[Reason][]string),
		meta:     make(map[string]any),
	}
}

// Stage returns the stage name.
func (s *Summary) Stage() string { return s.stage }

// Produced adds n output rows for a table.
func (s *Summary) Produced(table string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.produced[table] += int64(n)
}

// Skip records a condition that dropped the unit identified by key.
func (s *Summary) Skip(reason Reason, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped++
	s.note(reason, key)
}

// Flag records a condition that did not drop the unit (for example an
// undefined change on an emitted row).
func (s *Summary) Flag(reason Reason, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.note(reason, key)
}

func (s *Summary) note(reason Reason, key string) {
	s.reasons[reason]++
	if key != "" && len(s.examples[reason]) < maxExamples {
		s.examples[reason] = append(s.examples[reason], key)
	}
}

// Set attaches a free-form value (for example a generator cursor).
func (s *Summary) Set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[key] = v
}

// Get returns a value attached with Set.
func (s *Summary) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.meta[key]
	return v, ok
}

// Merge folds other into s. Examples keep s's first, then other's.
func (s *Summary) Merge(other *Summary) {
	if other == nil || other == s {
		return
	}
	other.mu.Lock()
	produced := copyCounts(other.produced)
	reasons := copyReasons(other.reasons)
	examples := make(map[Reason][]string, len(other.examples))
	for r, keys := range other.examples {
		examples[r] = append([]string(nil), keys...)
	}
	skipped := other.skipped
	other.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for t, n := range produced {
		s.produced[t] += n
	}
	for r, n := range reasons {
		s.reasons[r] += n
	}
	for _, r := range sortedReasons(examples) {
		for _, k := range examples[r] {
			if len(s.examples[r]) >= maxExamples {
				break
			}
			s.examples[r] = append(s.examples[r], k)
		}
	}
	s.skipped += skipped
}

// Count returns how often a reason was recorded.
func (s *Summary) Count(reason Reason) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reasons[reason]
}

// Rows returns the rows produced for a table.
func (s *Summary) Rows(table string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.produced[table]
}

// TotalRows returns the rows produced across all tables.
func (s *Summary) TotalRows() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, v := range s.produced {
		n += v
	}
	return n
}

// Skipped returns how many units were dropped.
func (s *Summary) Skipped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// Examples returns up to five sample keys recorded for a reason.
func (s *Summary) Examples(reason Reason) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.examples[reason]...)
}

// Snapshot is the serialisable form of a Summary.
type Snapshot struct {
	Stage    string              `json:"stage"`
	Produced map[string]int64    `json:"produced"`
	Skipped  int64               `json:"skipped"`
	Reasons  map[Reason]int64    `json:"reasons"`
	Examples map[Reason][]string `json:"examples,omitempty"`
	Meta     map[string]any      `json:"meta,omitempty"`
}

// Snapshot returns a copy of the summary's current state.
func (s *Summary) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Stage:    s.stage,
		Produced: copyCounts(s.produced),
		Skipped:  s.skipped,
		Reasons:  copyReasons(s.reasons),
		Examples: make(map[Reason][]string, len(s.examples)),
		Meta:     make(map[string]any, len(s.meta)),
	}
	for r, keys := range s.examples {
		snap.Examples[r] = append([]string(nil), keys...)
	}
	for k, v := range s.meta {
		snap.Meta[k] = v
	}
	return snap
}

// Metadata flattens the snapshot for the run log.
func (s *Summary) Metadata() map[string]any {
	snap := s.Snapshot()
	return map[string]any{
		"stage":    snap.Stage,
		"produced": snap.Produced,
		"skipped":  snap.Skipped,
		"reasons":  snap.Reasons,
		"examples": snap.Examples,
		"meta":     snap.Meta,
	}
}

// ReasonKeys returns the recorded reasons in lexical order.
func (snap Snapshot) ReasonKeys() []Reason {
	out := make([]Reason, 0, len(snap.Reasons))
	for r := range snap.Reasons {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TableKeys returns the produced tables in lexical order.
func (snap Snapshot) TableKeys() []string {
	out := make([]string, 0, len(snap.Produced))
	for t := range snap.Produced {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyReasons(m map[Reason]int64) map[Reason]int64 {
	out := make(map[Reason]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedReasons(m map[Reason][]string) []Reason {
	out := make([]Reason, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
