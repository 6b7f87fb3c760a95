package mathx

import "math"

// Digamma computes the logarithmic derivative of the gamma function
// for x > 0. Small arguments are shifted up by the recurrence
// psi(x) = psi(x+1) - 1/x until the asymptotic expansion around the
// midpoint is accurate; the result is good to about 1e-10 over the
// positive reals.
func Digamma(x float64) float64 {
	var result float64
	for ; x < 7; x++ {
		result -= 1 / x
	}
	x -= 0.5
	xx := 1 / x
	xx2 := xx * xx
	xx4 := xx2 * xx2
	result += math.Log(x) +
		(1.0/24.0)*xx2 -
		(7.0/960.0)*xx4 +
		(31.0/8064.0)*xx4*xx2 -
		(127.0/30720.0)*xx4*xx4
	return result
}
