// Package diagonal implements the parametric alignment prior that
// concentrates probability mass near the sentence diagonal
// i/I ~ j/J, controlled by a tension parameter. Tension 0 degrades to
// the uniform prior.
package diagonal

import "math"

// UnnormalizedProb returns the weight of aligning target position j
// (zero-based, in a sentence of trgLen words) to source position i
// (one-based, in a sentence of srcLen words):
//
//	exp(-|(i-1)/I - j/J| * tension)
func UnnormalizedProb(i, j, srcLen, trgLen int, tension float64) float64 {
	feat := math.Abs(float64(i-1)/float64(srcLen) - float64(j)/float64(trgLen))
	return math.Exp(-feat * tension)
}

// ComputeZ returns the normalizer for target position j: the sum of
// unnormalized weights over all source positions. With a NULL word the
// sum is scaled so that the real positions share mass
// 1 - probAlignNull; without one they carry the full mass.
func ComputeZ(j, srcLen, trgLen int, tension, probAlignNull float64, useNull bool) float64 {
	var sum float64
	for i := 1; i <= srcLen; i++ {
		sum += UnnormalizedProb(i, j, srcLen, trgLen, tension)
	}
	if useNull {
		return sum / (1 - probAlignNull)
	}
	return sum
}

// UniformProb returns the flat prior used when the diagonal feature
// is disabled: 1/(I+1) with a NULL word, 1/I without.
func UniformProb(srcLen int, useNull bool) float64 {
	n := srcLen
	if useNull {
		n++
	}
	return 1 / float64(n)
}
