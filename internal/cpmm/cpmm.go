// Package cpmm implements the weighted constant-product market maker
// (CPMM) used to price binary prediction markets.
//
// A pool holds YES and NO reserves y and n together with a weight
// parameter p in (0,1). The curve's invariant is
//
//	k = y^p * n^(1-p)
//
// and the marginal probability of YES is
//
//	prob = p*n / (p*n + (1-p)*y)
//
// Buying mints equal YES and NO tokens into the pool and returns shares
// of the purchased outcome such that k is preserved. All pool math is
// float64: probabilities and share quantities are not money amounts, and
// every consumer compares them under a floating tolerance.
package cpmm

import (
	"errors"
	"math"

	"github.com/outcomelabs/market-engine/internal/model"
)

var (
	// ErrUnfillable is returned when a trade cannot be executed against
	// the pool: non-positive reserves, a non-finite amount, or a state
	// that would not preserve strictly positive reserves.
	ErrUnfillable = errors.New("cpmm: unfillable trade against pool")

	// ErrInvalidState is returned when a pool state fails validation.
	ErrInvalidState = errors.New("cpmm: invalid pool state")
)

// State is a snapshot of one binary market's pool. Mutated only by fill
// application; reserves stay strictly positive while the market is open.
type State struct {
	Pool          map[model.Outcome]float64 `json:"pool"`
	P             float64                   `json:"p"`
	CollectedFees model.Fees                `json:"collected_fees"`
}

// NewState builds a pool state from explicit reserves and weight.
func NewState(yes, no, p float64) State {
	return State{
		Pool: map[model.Outcome]float64{model.Yes: yes, model.No: no},
		P:    p,
	}
}

// NewStateFromAnte builds the market-creation pool: equal reserves funded
// by the ante, with the weight set so the starting probability equals
// initialProb (at equal reserves, prob == p).
func NewStateFromAnte(ante, initialProb float64) State {
	return NewState(ante, ante, initialProb)
}

// Validate checks that the state can be traded against.
func (s State) Validate() error {
	y, n := s.Pool[model.Yes], s.Pool[model.No]
	if !(y > 0) || !(n > 0) || math.IsInf(y, 1) || math.IsInf(n, 1) {
		return ErrInvalidState
	}
	if !(s.P > 0) || !(s.P < 1) || math.IsNaN(s.P) {
		return ErrInvalidState
	}
	return nil
}

// clone returns a copy with a fresh pool map.
func (s State) clone() State {
	pool := map[model.Outcome]float64{
		model.Yes: s.Pool[model.Yes],
		model.No:  s.Pool[model.No],
	}
	return State{Pool: pool, P: s.P, CollectedFees: s.CollectedFees}
}

// Probability returns the marginal YES probability of the pool.
func Probability(pool map[model.Outcome]float64, p float64) float64 {
	y, n := pool[model.Yes], pool[model.No]
	return p * n / (p*n + (1-p)*y)
}

// Probability returns the state's marginal YES probability.
func (s State) Probability() float64 {
	return Probability(s.Pool, s.P)
}

// invariant returns k = y^p * n^(1-p).
func (s State) invariant() float64 {
	y, n := s.Pool[model.Yes], s.Pool[model.No]
	return math.Pow(y, s.P) * math.Pow(n, 1-s.P)
}

// Shares returns how many shares of outcome a purchase of amount buys,
// holding the invariant constant.
//
//	YES: y + b - (k * (b+n)^(p-1))^(1/p)
//	NO:  n + b - (k * (b+y)^(-p))^(1/(1-p))
func (s State) Shares(amount float64, outcome model.Outcome) float64 {
	y, n := s.Pool[model.Yes], s.Pool[model.No]
	p := s.P
	k := s.invariant()

	if outcome == model.Yes {
		return y + amount - math.Pow(k*math.Pow(amount+n, p-1), 1/p)
	}
	return n + amount - math.Pow(k*math.Pow(amount+y, -p), 1/(1-p))
}

// Purchase executes a buy of amount on outcome against the pool and
// returns the shares bought plus the new state. The invariant quantity
// of the returned state equals the input's.
func (s State) Purchase(amount float64, outcome model.Outcome) (shares float64, next State, err error) {
	if err := s.Validate(); err != nil {
		return 0, s, ErrUnfillable
	}
	if !(amount > 0) || math.IsInf(amount, 1) || math.IsNaN(amount) {
		return 0, s, ErrUnfillable
	}

	shares = s.Shares(amount, outcome)
	next = s.clone()
	if outcome == model.Yes {
		next.Pool[model.Yes] = s.Pool[model.Yes] + amount - shares
		next.Pool[model.No] = s.Pool[model.No] + amount
	} else {
		next.Pool[model.Yes] = s.Pool[model.Yes] + amount
		next.Pool[model.No] = s.Pool[model.No] + amount - shares
	}

	if next.Validate() != nil {
		return 0, s, ErrUnfillable
	}
	return shares, next, nil
}

// AmountToProb returns the buy amount on outcome that moves the pool's
// YES probability to prob. Returns +Inf for prob outside (0,1), so a
// caller taking a minimum against it degrades gracefully.
func (s State) AmountToProb(prob float64, outcome model.Outcome) float64 {
	if prob <= 0 || prob >= 1 || math.IsNaN(prob) {
		return math.Inf(1)
	}

	y, n := s.Pool[model.Yes], s.Pool[model.No]
	p := s.P
	k := s.invariant()

	if outcome == model.Yes {
		// Solve n' = k * c^(-p) with c = p(1-q) / ((1-p)q); amount = n' - n.
		c := p * (1 - prob) / ((1 - p) * prob)
		return k*math.Pow(c, -p) - n
	}
	// Solve y' = k * c^(-(1-p)) with c = (1-p)q / (p(1-q)); amount = y' - y.
	c := (1 - p) * prob / (p * (1 - prob))
	return k*math.Pow(c, -(1-p)) - y
}
