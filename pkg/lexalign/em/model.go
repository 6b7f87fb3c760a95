package em

import (
	"github.com/cognicore/lexalign/pkg/lexalign/diagonal"
	"github.com/cognicore/lexalign/pkg/lexalign/ttable"
	"github.com/cognicore/lexalign/pkg/lexalign/vocab"
)

// Model bundles a translation table with the alignment prior
// configuration. It is shared between the trainer and the held-out
// scorer.
type Model struct {
	TT              *ttable.TTable
	UseNull         bool
	FavorDiagonal   bool
	ProbAlignNull   float64
	DiagonalTension float64
}

// PositionProbs fills probs[0..I] with the unnormalized posterior
// weights of aligning target word f at position j to NULL (index 0)
// and to each source position, and returns their sum. unnormed is the
// scratch buffer for the diagonal weights; it must hold at least
// len(src) entries. With NULL enabled, its prior mass is
// ProbAlignNull and the remaining positions share the diagonal mass
// 1 - ProbAlignNull; without NULL they carry the full mass. When the
// diagonal feature is off the prior is flat.
func (m *Model) PositionProbs(src []vocab.WordID, f vocab.WordID, j, trgLen int, probs, unnormed []float64) float64 {
	srcLen := len(src)

	var az float64
	if m.FavorDiagonal {
		for i := 1; i <= srcLen; i++ {
			unnormed[i-1] = diagonal.UnnormalizedProb(i, j, srcLen, trgLen, m.DiagonalTension)
		}
		az = diagonal.ComputeZ(j, srcLen, trgLen, m.DiagonalTension, m.ProbAlignNull, m.UseNull)
	}

	var sum float64
	if m.UseNull {
		probs[0] = m.TT.Prob(vocab.Null, f) * m.ProbAlignNull
		sum = probs[0]
	} else {
		probs[0] = 0
	}

	for i := 1; i <= srcLen; i++ {
		var priorP float64
		if m.FavorDiagonal {
			priorP = unnormed[i-1] / az
		} else {
			priorP = diagonal.UniformProb(srcLen, m.UseNull)
		}
		probs[i] = m.TT.Prob(src[i-1], f) * priorP
		sum += probs[i]
	}
	return sum
}
