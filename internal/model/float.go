package model

// Epsilon is the tolerance used for floating comparisons of money and
// share quantities throughout the engine. Accumulated bet history is
// float arithmetic, so exact-zero checks are never bitwise.
const Epsilon = 1e-4

// FloatingEqual reports whether a and b are equal within Epsilon.
func FloatingEqual(a, b float64) bool {
	diff := a - b
	return diff < Epsilon && diff > -Epsilon
}

// FloatingGreaterEqual reports whether a >= b within Epsilon.
func FloatingGreaterEqual(a, b float64) bool {
	return a+Epsilon > b
}

// FloatingLesserEqual reports whether a <= b within Epsilon.
func FloatingLesserEqual(a, b float64) bool {
	return a-Epsilon < b
}
