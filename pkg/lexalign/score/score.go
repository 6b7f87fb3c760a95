// Package score evaluates a trained alignment model on a held-out
// parallel file: each pair gets log P(trg|src) under the lexical
// table, the alignment prior, and a Poisson prior on the target
// length.
package score

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/cognicore/lexalign/internal/mathx"
	"github.com/cognicore/lexalign/pkg/lexalign/corpus"
	"github.com/cognicore/lexalign/pkg/lexalign/em"
	"github.com/cognicore/lexalign/pkg/lexalign/internalerr"
	"github.com/cognicore/lexalign/pkg/lexalign/vocab"
)

// lengthRateBase offsets the Poisson rate so zero-length sources
// still get positive mass.
const lengthRateBase = 0.05

// Scorer scores held-out pairs under a trained model.
type Scorer struct {
	Model *em.Model
	Vocab *vocab.Vocab
	// Reverse mirrors the training orientation.
	Reverse bool
	// MeanSrclenMultiplier is the length-ratio estimate fixed during
	// the first training pass.
	MeanSrclenMultiplier float64
	// EmitAlignments adds the per-position argmax alignment to each
	// output line.
	EmitAlignments bool
}

// ScoreFile scores every pair in the file at path, writing one line
// per pair: "<src> ||| <trg> ||| [alignment] ||| <log prob>". It
// returns the total log probability of the set.
func (s *Scorer) ScoreFile(path string, w io.Writer) (float64, error) {
	r, err := corpus.Open(path, s.Vocab)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	bw := bufio.NewWriter(w)
	var total float64
	var probs, unnormed []float64

	for r.Scan() {
		p := r.Pair()
		src, trg := p.Src, p.Trg
		if s.Reverse {
			src, trg = p.Trg, p.Src
		}
		if len(src)+1 > len(probs) {
			probs = make([]float64, len(src)+1)
		}
		if len(src) > len(unnormed) {
			unnormed = make([]float64, len(src))
		}

		logProb := mathx.LogPoisson(float64(len(trg)),
			lengthRateBase+float64(len(src))*s.MeanSrclenMultiplier)

		var align []int
		if s.EmitAlignments {
			align = make([]int, 0, len(trg))
		}
		for j, f := range trg {
			sum := s.Model.PositionProbs(src, f, j, len(trg), probs, unnormed)
			if sum == 0 {
				return total, fmt.Errorf("line %d: zero posterior mass at target position %d: %w",
					p.Line, j, internalerr.ErrInvalidInput)
			}
			logProb += math.Log(sum)

			if s.EmitAlignments {
				aj := 0
				best := probs[0]
				for i := 1; i <= len(src); i++ {
					if probs[i] > best {
						aj = i
						best = probs[i]
					}
				}
				align = append(align, aj)
			}
		}

		fmt.Fprintf(bw, "%s ||| %s |||", p.SrcText, p.TrgText)
		if s.EmitAlignments {
			for j, aj := range align {
				if aj > 0 {
					fmt.Fprintf(bw, " %d-%d", aj-1, j)
				}
			}
			bw.WriteString(" |||")
		}
		fmt.Fprintf(bw, " %g\n", logProb)
		total += logProb
	}
	if err := r.Err(); err != nil {
		return total, err
	}
	return total, bw.Flush()
}
