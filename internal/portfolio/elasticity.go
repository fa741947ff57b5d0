package portfolio

import (
	"math"

	"github.com/outcomelabs/market-engine/internal/contract"
	"github.com/outcomelabs/market-engine/internal/cpmm"
	"github.com/outcomelabs/market-engine/internal/model"
)

const (
	// ProbeBetAmount is the default probe trade size for elasticity.
	// Readjust with platform volume.
	ProbeBetAmount = 10000

	// ElasticitySentinel is returned for market mechanisms the probe
	// cannot simulate: effectively "infinitely elastic, not applicable"
	// rather than an error.
	ElasticitySentinel = 1_000_000
)

// Elasticity estimates how sensitive a market's probability is to a
// fixed-size trade: a probe buy of YES and of NO are simulated
// independently from the same starting state and the difference of the
// resulting log-odds is returned. Larger values mean the probe moves the
// price more.
//
// For multi-outcome contracts each answer is probed as its own binary
// sub-market and the minimum across answers is returned, so the most
// stable answer sets the figure. Resolved markets exclude resting orders from the
// simulation. The function never fails: out-of-domain probabilities are
// clamped and unsupported mechanisms yield ElasticitySentinel.
func Elasticity(c *contract.Contract, answers []*contract.Answer, unfilledOrders []*model.LimitOrder, probeAmount float64) float64 {
	if c.IsResolved {
		// Only the frozen pool is probed.
		unfilledOrders = nil
	}

	switch c.Mechanism {
	case contract.MechanismCPMM:
		return binaryElasticity(c.State(), unfilledOrders, probeAmount)
	case contract.MechanismCPMMMulti:
		return multiElasticity(answers, unfilledOrders, probeAmount)
	default:
		return ElasticitySentinel
	}
}

// binaryElasticity probes one binary pool in both directions. Maker
// balances are assumed unlimited: every resting order is taken at face
// value.
func binaryElasticity(state cpmm.State, orders []*model.LimitOrder, probeAmount float64) float64 {
	pYes := probeProbability(state, model.Yes, orders, probeAmount)
	pNo := probeProbability(state, model.No, orders, probeAmount)
	return Logit(pYes) - Logit(pNo)
}

// probeProbability returns the pool probability after a probe buy,
// degraded to the appropriate clamp bound when the pool cannot absorb
// the probe at all.
func probeProbability(state cpmm.State, outcome model.Outcome, orders []*model.LimitOrder, probeAmount float64) float64 {
	extreme := MaxProb
	if outcome == model.No {
		extreme = MinProb
	}

	result, err := cpmm.ComputeFills(state, outcome, probeAmount, nil, orders, nil)
	if err != nil {
		return extreme
	}
	prob := result.State.Probability()
	if math.IsNaN(prob) || math.IsInf(prob, 0) {
		return extreme
	}
	return ClampProb(prob)
}

func multiElasticity(answers []*contract.Answer, orders []*model.LimitOrder, probeAmount float64) float64 {
	if len(answers) == 0 {
		return ElasticitySentinel
	}

	byAnswer := make(map[string][]*model.LimitOrder)
	for _, o := range orders {
		byAnswer[o.AnswerID] = append(byAnswer[o.AnswerID], o)
	}

	min := math.Inf(1)
	for _, a := range answers {
		e := binaryElasticity(a.State(), byAnswer[a.ID], probeAmount)
		if e < min {
			min = e
		}
	}
	return min
}
