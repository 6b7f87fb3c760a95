package em

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/cognicore/lexalign/pkg/lexalign/vocab"
)

// EachPrunedParam visits the surviving entries of the learned table in
// deterministic (source surface, target surface) order. An entry
// survives when its probability exceeds the per-source maximum scaled
// by 10^beamThreshold, or, when addViterbi is set, when some
// final-pass position selected it as the argmax. The rescue keeps
// every training-Viterbi edge available to downstream consumers no
// matter how aggressive the beam.
func (t *Trainer) EachPrunedParam(beamThreshold float64, addViterbi bool,
	fn func(src, trg string, logProb float64) error) error {
	srcs := t.tt.Sources()
	sort.Slice(srcs, func(i, j int) bool {
		return t.vocab.Word(srcs[i]) < t.vocab.Word(srcs[j])
	})

	scale := math.Pow(10, beamThreshold)
	for _, e := range srcs {
		row := t.tt.Row(e)

		maxP := 0.0
		for _, p := range row {
			if p > maxP {
				maxP = p
			}
		}
		threshold := maxP * scale

		fs := make([]vocab.WordID, 0, len(row))
		for f := range row {
			fs = append(fs, f)
		}
		sort.Slice(fs, func(i, j int) bool {
			return t.vocab.Word(fs[i]) < t.vocab.Word(fs[j])
		})

		for _, f := range fs {
			p := row[f]
			if p > threshold || (addViterbi && t.WasViterbi(e, f)) {
				if err := fn(t.vocab.Word(e), t.vocab.Word(f), math.Log(p)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// DumpParameters writes the pruned table as "<src> <trg> <log prob>"
// lines.
func (t *Trainer) DumpParameters(w io.Writer, beamThreshold float64, addViterbi bool) error {
	bw := bufio.NewWriter(w)
	err := t.EachPrunedParam(beamThreshold, addViterbi, func(src, trg string, logProb float64) error {
		_, werr := fmt.Fprintf(bw, "%s %s %g\n", src, trg, logProb)
		return werr
	})
	if err != nil {
		return fmt.Errorf("write parameters: %w", err)
	}
	return bw.Flush()
}
