package ttable

import (
	"math"
	"testing"

	"github.com/cognicore/lexalign/internal/mathx"
	"github.com/cognicore/lexalign/pkg/lexalign/vocab"
)

func TestProbFloor(t *testing.T) {
	tt := New()
	if p := tt.Prob(3, 7); p != UnseenProb {
		t.Errorf("empty table Prob = %g, want floor %g", p, UnseenProb)
	}

	tt.Increment(3, 7, 1)
	tt.Normalize()
	if p := tt.Prob(3, 8); p != UnseenProb {
		t.Errorf("unseen target Prob = %g, want floor %g", p, UnseenProb)
	}
	if p := tt.Prob(99, 7); p != UnseenProb {
		t.Errorf("unseen source Prob = %g, want floor %g", p, UnseenProb)
	}
}

func TestNormalizeSumsToOne(t *testing.T) {
	tt := New()
	tt.Increment(1, 10, 0.25)
	tt.Increment(1, 11, 0.5)
	tt.Increment(1, 10, 0.25)
	tt.Increment(2, 10, 3)
	tt.Normalize()

	for _, e := range []vocab.WordID{1, 2} {
		var sum float64
		for _, p := range tt.Row(e) {
			sum += p
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("row %d sums to %.15f, want 1", e, sum)
		}
	}
	if p := tt.Prob(1, 10); math.Abs(p-0.5) > 1e-12 {
		t.Errorf("Prob(1,10) = %g, want 0.5", p)
	}
	if p := tt.Prob(2, 10); math.Abs(p-1) > 1e-12 {
		t.Errorf("Prob(2,10) = %g, want 1", p)
	}
}

func TestIncrementAssociative(t *testing.T) {
	a := New()
	a.Increment(1, 5, 0.1)
	a.Increment(1, 5, 0.2)
	a.Increment(1, 5, 0.3)

	b := New()
	b.Increment(1, 5, 0.3)
	b.Increment(1, 5, 0.2)
	b.Increment(1, 5, 0.1)

	a.Normalize()
	b.Normalize()
	if pa, pb := a.Prob(1, 5), b.Prob(1, 5); pa != pb {
		t.Errorf("order-dependent accumulation: %g vs %g", pa, pb)
	}
}

func TestNormalizeClearsCounts(t *testing.T) {
	tt := New()
	tt.Increment(1, 5, 1)
	tt.Normalize()

	// A second normalize with no new counts must drop every row.
	tt.Normalize()
	if srcs := tt.Sources(); len(srcs) != 0 {
		t.Errorf("expected no rows after normalizing empty counts, got %d", len(srcs))
	}
}

func TestProbReadsPreviousEpochDuringAccumulation(t *testing.T) {
	tt := New()
	tt.Increment(1, 5, 1)
	tt.Normalize()

	// Mid-epoch increments must not leak into Prob.
	tt.Increment(1, 5, 100)
	if p := tt.Prob(1, 5); math.Abs(p-1) > 1e-12 {
		t.Errorf("Prob changed mid-epoch: %g, want 1", p)
	}
}

func TestNormalizeVB(t *testing.T) {
	const alpha = 0.01
	tt := New()
	tt.Increment(1, 5, 2)
	tt.Increment(1, 6, 1)
	tt.NormalizeVB(alpha)

	sum := 3 + alpha*2
	want5 := math.Exp(mathx.Digamma(2+alpha) - mathx.Digamma(sum))
	want6 := math.Exp(mathx.Digamma(1+alpha) - mathx.Digamma(sum))
	if p := tt.Prob(1, 5); math.Abs(p-want5) > 1e-12 {
		t.Errorf("VB Prob(1,5) = %.15f, want %.15f", p, want5)
	}
	if p := tt.Prob(1, 6); math.Abs(p-want6) > 1e-12 {
		t.Errorf("VB Prob(1,6) = %.15f, want %.15f", p, want6)
	}
	// The VB posterior mode leaves some mass unassigned.
	if tt.Prob(1, 5)+tt.Prob(1, 6) >= 1 {
		t.Error("VB-normalized row should sum to less than 1")
	}
}

func TestAbsorbMatchesDirectIncrements(t *testing.T) {
	direct := New()
	direct.Increment(1, 5, 0.5)
	direct.Increment(2, 6, 0.25)
	direct.Increment(1, 5, 0.5)
	direct.Normalize()

	sharded := New()
	c1 := NewCounts()
	c1.Add(1, 5, 0.5)
	c2 := NewCounts()
	c2.Add(2, 6, 0.25)
	c2.Add(1, 5, 0.5)
	sharded.Absorb(c1)
	sharded.Absorb(c2)
	sharded.Normalize()

	for _, pair := range [][2]vocab.WordID{{1, 5}, {2, 6}} {
		if pd, ps := direct.Prob(pair[0], pair[1]), sharded.Prob(pair[0], pair[1]); pd != ps {
			t.Errorf("Prob(%d,%d): direct %g vs sharded %g", pair[0], pair[1], pd, ps)
		}
	}
}

func TestSourcesSkipsEmptyRows(t *testing.T) {
	tt := New()
	tt.Increment(5, 1, 1)
	tt.Normalize()

	srcs := tt.Sources()
	if len(srcs) != 1 || srcs[0] != 5 {
		t.Errorf("Sources = %v, want [5]", srcs)
	}
}
