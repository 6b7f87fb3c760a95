package ttable

import (
	"math"

	"github.com/cognicore/lexalign/internal/mathx"
	"github.com/cognicore/lexalign/pkg/lexalign/vocab"
)

// UnseenProb is the probability floor returned for pairs never
// observed together. It keeps per-position sums strictly positive on
// the first pass, when the table is still empty.
const UnseenProb = 1e-9

type row map[vocab.WordID]float64

// TTable is the two-level sparse translation table
// P(target word | source word). The outer level is a direct-addressed
// slice indexed by source WordID; the inner level is a small hash map
// keyed by target WordID.
//
// Probabilities and in-flight expected counts are kept apart so that
// an E-step always reads the fully-normalized table from the previous
// pass: Prob reads the probability side, Increment accumulates on the
// count side, and Normalize/NormalizeVB turn counts into the next
// probability table.
//
// TTable is not safe for concurrent mutation; parallel E-steps
// accumulate into per-worker Counts and merge them with Absorb.
type TTable struct {
	probs  []row
	counts []row
}

// New creates an empty table.
func New() *TTable {
	return &TTable{}
}

// Prob returns P(f|e), or UnseenProb when the pair has never been
// normalized into the table. It never fails.
func (t *TTable) Prob(e, f vocab.WordID) float64 {
	if int(e) >= len(t.probs) {
		return UnseenProb
	}
	r := t.probs[e]
	if r == nil {
		return UnseenProb
	}
	p, ok := r[f]
	if !ok {
		return UnseenProb
	}
	return p
}

// Increment adds delta to the expected count of (e, f), creating
// entries as needed.
func (t *TTable) Increment(e, f vocab.WordID, delta float64) {
	t.counts = addTo(t.counts, e, f, delta)
}

// Normalize turns accumulated counts into conditional probabilities:
// each source row is divided by its sum. Rows with no mass are
// dropped. Counts are cleared for the next pass.
func (t *TTable) Normalize() {
	t.probs = t.probs[:0]
	for e, r := range t.counts {
		if len(r) == 0 {
			continue
		}
		var sum float64
		for _, c := range r {
			sum += c
		}
		if sum <= 0 {
			continue
		}
		for f, c := range r {
			r[f] = c / sum
		}
		t.probs = setRow(t.probs, vocab.WordID(e), r)
	}
	t.counts = nil
}

// NormalizeVB performs the variational Bayes update under a symmetric
// Dirichlet(alpha) prior: each entry becomes
// exp(digamma(count+alpha) - digamma(sum + alpha*|row|)).
// The caller guarantees alpha > 0.
func (t *TTable) NormalizeVB(alpha float64) {
	t.probs = t.probs[:0]
	for e, r := range t.counts {
		if len(r) == 0 {
			continue
		}
		sum := alpha * float64(len(r))
		for _, c := range r {
			sum += c
		}
		digammaSum := mathx.Digamma(sum)
		for f, c := range r {
			r[f] = expDigamma(c+alpha, digammaSum)
		}
		t.probs = setRow(t.probs, vocab.WordID(e), r)
	}
	t.counts = nil
}

// Absorb merges a per-worker count buffer into the table's counts.
// Merging is sequential; callers serialize Absorb across workers.
func (t *TTable) Absorb(c *Counts) {
	for e, r := range c.rows {
		for f, delta := range r {
			t.counts = addTo(t.counts, vocab.WordID(e), f, delta)
		}
	}
}

// Sources returns every source id with a probability row, in id order.
func (t *TTable) Sources() []vocab.WordID {
	out := make([]vocab.WordID, 0, len(t.probs))
	for e, r := range t.probs {
		if len(r) > 0 {
			out = append(out, vocab.WordID(e))
		}
	}
	return out
}

// Row returns the probability row for e, or nil. The returned map is
// the table's own storage; callers must not mutate it.
func (t *TTable) Row(e vocab.WordID) map[vocab.WordID]float64 {
	if int(e) >= len(t.probs) {
		return nil
	}
	return t.probs[e]
}

// Counts is a private accumulation buffer for one worker. Workers fill
// disjoint Counts during a sharded E-step; the driver merges them into
// the shared table with Absorb at the end of the epoch.
type Counts struct {
	rows []row
}

// NewCounts creates an empty buffer.
func NewCounts() *Counts {
	return &Counts{}
}

// Add adds delta to the buffered count of (e, f).
func (c *Counts) Add(e, f vocab.WordID, delta float64) {
	c.rows = addTo(c.rows, e, f, delta)
}

func addTo(rows []row, e, f vocab.WordID, delta float64) []row {
	for int(e) >= len(rows) {
		rows = append(rows, nil)
	}
	if rows[e] == nil {
		rows[e] = make(row, 8)
	}
	rows[e][f] += delta
	return rows
}

func setRow(rows []row, e vocab.WordID, r row) []row {
	for int(e) >= len(rows) {
		rows = append(rows, nil)
	}
	rows[e] = r
	return rows
}

func expDigamma(x, digammaSum float64) float64 {
	return math.Exp(mathx.Digamma(x) - digammaSum)
}
