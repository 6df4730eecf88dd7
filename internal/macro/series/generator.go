package series

import (
	"math"
	"math/bits"
)

// Code is one classification code and its display name.
type Code struct {
	Value string
	Name  string
}

// GeneratorOpts positions and caps an enumeration.
type GeneratorOpts struct {
	Start uint64 // cursor to resume from
	Limit uint64 // max combinations to emit; 0 = until exhausted
}

// Generator lazily walks the cross product of code lists in mixed-radix
// order (last list varies fastest). It can be paused at any cursor and
// resumed by a new Generator started at that cursor.
type Generator struct {
	lists   [][]Code
	total   uint64
	pos     uint64
	limit   uint64
	emitted uint64
}

// NewGenerator creates a generator over lists. An empty list makes the
// product empty. Products beyond uint64 saturate at math.MaxUint64.
func NewGenerator(lists [][]Code, opts GeneratorOpts) *Generator {
	g := &Generator{lists: lists, pos: opts.Start, limit: opts.Limit}
	g.total = productSize(lists)
	return g
}

func productSize(lists [][]Code) uint64 {
	if len(lists) == 0 {
		return 0
	}
	total := uint64(1)
	for _, l := range lists {
		hi, lo := bits.Mul64(total, uint64(len(l)))
		if hi != 0 {
			return math.MaxUint64
		}
		total = lo
	}
	return total
}

// Total returns the size of the full cross product.
func (g *Generator) Total() uint64 { return g.total }

// Cursor returns the position of the next combination.
func (g *Generator) Cursor() uint64 { return g.pos }

// Exhausted reports whether every combination has been emitted.
func (g *Generator) Exhausted() bool { return g.pos >= g.total }

// Next returns the next combination, or false when the product is
// exhausted or the limit is reached.
func (g *Generator) Next() ([]Code, bool) {
	if g.Exhausted() {
		return nil, false
	}
	if g.limit > 0 && g.emitted >= g.limit {
		return nil, false
	}
	combo := make([]Code, len(g.lists))
	rem := g.pos
	for i := len(g.lists) - 1; i >= 0; i-- {
		n := uint64(len(g.lists[i]))
		combo[i] = g.lists[i][rem%n]
		rem /= n
	}
	g.pos++
	g.emitted++
	return combo, true
}
