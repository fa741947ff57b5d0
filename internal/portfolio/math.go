// Package portfolio derives per-user investment metrics from bet history:
// full recomputation, incremental roll-forward from a prior snapshot,
// mark-to-market investment value, and the price-elasticity estimate used
// for market-quality scoring.
//
// Everything here is pure: callers supply a consistent point-in-time view
// of contracts and bets, and get caller-owned derived values back.
package portfolio

import "math"

// Probability clamp bounds applied before the log-odds transform. This is
// a policy choice to keep elasticity finite, not a numeric-library
// default: a market pinned at 0 or 1 would otherwise produce infinite
// log-odds.
const (
	MinProb = 0.005
	MaxProb = 0.995
)

// ClampProb clamps p into [MinProb, MaxProb]. Non-finite input maps to
// the nearer bound (NaN goes high, matching the buy-YES overflow case).
func ClampProb(p float64) float64 {
	if math.IsNaN(p) || p > MaxProb {
		return MaxProb
	}
	if p < MinProb {
		return MinProb
	}
	return p
}

// Logit returns the log-odds of p after clamping. Clamping is idempotent:
// a probability already inside the bounds passes through untouched.
func Logit(p float64) float64 {
	p = ClampProb(p)
	return math.Log(p / (1 - p))
}

// Expit is the inverse of Logit (without the clamp).
func Expit(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
