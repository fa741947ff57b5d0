// Package contract defines prediction-market contracts and answers, and
// the read-only projections over their state: initial and current
// probability, per-answer probability, and payout-if-resolved-now.
//
// Contracts are owned by the persistence layer; this package only reads
// them and never performs I/O.
package contract

import (
	"errors"
	"fmt"
	"math"

	"github.com/outcomelabs/market-engine/internal/cpmm"
	"github.com/outcomelabs/market-engine/internal/model"
)

// Market mechanisms. Anything outside this set is treated as an unknown
// legacy mechanism by consumers (they fall back rather than fail).
const (
	MechanismCPMM      = "cpmm-1"
	MechanismCPMMMulti = "cpmm-multi-1"
)

// Token denominations a contract can trade in.
const (
	TokenMana = "MANA"
	TokenCash = "CASH"
)

var (
	// ErrNoPayout is returned when a payout cannot be computed for a
	// bet against a contract (unknown mechanism, missing answer).
	ErrNoPayout = errors.New("contract: cannot compute payout")
)

// Contract is one market. For cpmm-1 the pool and weight live on the
// contract itself; for cpmm-multi-1 each answer carries its own pool.
type Contract struct {
	ID              string  `json:"id"`
	Slug            string  `json:"slug,omitempty"`
	Question        string  `json:"question"`
	CreatorUsername string  `json:"creator_username"`
	Visibility      string  `json:"visibility"`
	Mechanism       string  `json:"mechanism"`
	Token           string  `json:"token"`
	Pool            map[model.Outcome]float64 `json:"pool,omitempty"`
	P               float64 `json:"p,omitempty"`
	InitialProb     float64 `json:"initial_prob,omitempty"`
	IsResolved      bool    `json:"is_resolved"`
	Resolution      string  `json:"resolution,omitempty"`
	ResolutionProb  float64 `json:"resolution_prob,omitempty"`
	CreatedTime     int64   `json:"created_time"`
	CloseTime       int64   `json:"close_time,omitempty"`
}

// Answer is one outcome slice of a multi-outcome contract. Each answer is
// its own binary sub-market with weight 0.5.
type Answer struct {
	ID          string  `json:"id"`
	ContractID  string  `json:"contract_id"`
	Text        string  `json:"text"`
	PoolYes     float64 `json:"pool_yes"`
	PoolNo      float64 `json:"pool_no"`
	Prob        float64 `json:"prob"`
	Resolution  string  `json:"resolution,omitempty"`
	CreatedTime int64   `json:"created_time"`
}

// State returns the answer's pool as a binary CPMM state.
func (a *Answer) State() cpmm.State {
	return cpmm.NewState(a.PoolYes, a.PoolNo, 0.5)
}

// State returns a binary contract's pool state.
func (c *Contract) State() cpmm.State {
	return cpmm.State{Pool: c.Pool, P: c.P}
}

// InitialProbability returns the probability the contract opened at.
func InitialProbability(c *Contract) float64 {
	return c.InitialProb
}

// Probability returns the contract's current YES probability. For
// resolved markets this reflects the frozen terminal state.
func Probability(c *Contract) float64 {
	if c.IsResolved {
		switch c.Resolution {
		case string(model.Yes):
			return 1
		case string(model.No):
			return 0
		default:
			return c.ResolutionProb
		}
	}
	return cpmm.Probability(c.Pool, c.P)
}

// AnswerProbability returns the current probability of one answer of a
// multi-outcome contract.
func AnswerProbability(a *Answer) float64 {
	if a.Resolution != "" {
		switch a.Resolution {
		case string(model.Yes):
			return 1
		case string(model.No):
			return 0
		}
	}
	return cpmm.Probability(a.State().Pool, 0.5)
}

// MarketPayout values a bet's shares at the price they would pay out if
// the market resolved to its current probability ("MKT"). YES shares pay
// prob per share, NO shares pay 1-prob.
//
// Returns ErrNoPayout for unknown mechanisms or a bet referencing an
// answer the caller did not supply; NaN-producing states are reported the
// same way so callers can apply their degrade-to-zero policy.
func MarketPayout(c *Contract, answers map[string]*Answer, bet *model.Bet) (float64, error) {
	var prob float64
	switch c.Mechanism {
	case MechanismCPMM:
		prob = Probability(c)
	case MechanismCPMMMulti:
		a, ok := answers[bet.AnswerID]
		if !ok {
			return 0, fmt.Errorf("%w: unknown answer %q", ErrNoPayout, bet.AnswerID)
		}
		prob = AnswerProbability(a)
	default:
		return 0, fmt.Errorf("%w: mechanism %q", ErrNoPayout, c.Mechanism)
	}

	price := prob
	if bet.Outcome == model.No {
		price = 1 - prob
	}
	payout := price * bet.Shares
	if math.IsNaN(payout) {
		return 0, fmt.Errorf("%w: non-finite payout", ErrNoPayout)
	}
	return payout, nil
}
