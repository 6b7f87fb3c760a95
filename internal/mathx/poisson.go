package mathx

import "math"

// LogPoisson returns the log probability mass of observing count x
// under a Poisson distribution with the given rate.
func LogPoisson(x, rate float64) float64 {
	if rate <= 0 {
		return math.Inf(-1)
	}
	lg, _ := math.Lgamma(x + 1)
	return math.Log(rate)*x - rate - lg
}
