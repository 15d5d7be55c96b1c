package types

import "math"

// Round rounds x to the given number of decimal places with halves going
// up (toward +Inf), so -0.05 rounds to -0.0 and 0.05 to 0.1.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Floor(x*p+0.5) / p
}
