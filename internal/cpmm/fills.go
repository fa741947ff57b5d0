package cpmm

import (
	"math"
	"sort"

	"github.com/outcomelabs/market-engine/internal/model"
)

// Fill is one leg of an executed trade from the taker's perspective.
// MatchedOrderID is empty when the leg executed against the pool.
type Fill struct {
	MatchedOrderID string     `json:"matched_order_id,omitempty"`
	Amount         float64    `json:"amount"`
	Shares         float64    `json:"shares"`
	Fees           model.Fees `json:"fees"`
}

// MakerFill records how much of a resting order was consumed by a trade.
type MakerFill struct {
	OrderID string  `json:"order_id"`
	UserID  string  `json:"user_id"`
	Amount  float64 `json:"amount"`
	Shares  float64 `json:"shares"`
}

// FillResult is the outcome of ComputeFills: the taker's fills, the maker
// order consumption, the resulting pool state, and any maker orders that
// should be cancelled because their owner's balance is exhausted.
type FillResult struct {
	Fills          []Fill
	MakerFills     []MakerFill
	Shares         float64
	TotalFees      model.Fees
	State          State
	OrdersToCancel []string
}

// ComputeFills executes a buy of amount on outcome against the pool and a
// queue of resting limit orders.
//
// Matching walks the compatible (opposite-outcome) orders in ascending
// CreatedTime — price-independent FIFO, ties broken by submission order.
// The queue is sorted defensively with a stable sort, so callers may pass
// orders in any order; pre-sorted input is the documented fast path. At
// each step the engine fills against the next order whose limit price is
// at least as good as the pool's marginal price, capped by the order's
// unfilled amount and the maker's available balance; otherwise it trades
// against the pool up to the nearer of the taker's limitProb and the next
// order's price.
//
// limitProb may be nil (no taker limit). balances caps maker fills by
// user; a user absent from the map is treated as having unlimited
// balance, which is what probe simulations want. Input orders are never
// mutated.
//
// Returns ErrUnfillable if the pool state or amount cannot be traded.
func ComputeFills(
	state State,
	outcome model.Outcome,
	amount float64,
	limitProb *float64,
	orders []*model.LimitOrder,
	balances map[string]float64,
) (*FillResult, error) {
	if !outcome.Valid() {
		return nil, ErrUnfillable
	}
	if err := state.Validate(); err != nil {
		return nil, ErrUnfillable
	}
	if !(amount > 0) || math.IsInf(amount, 1) || math.IsNaN(amount) {
		return nil, ErrUnfillable
	}

	queue := compatibleQueue(orders, outcome)

	// Working copies: order consumption and maker balances are tracked
	// locally so the inputs stay untouched.
	filled := make(map[string]float64, len(queue))
	balanceLeft := make(map[string]float64, len(balances))
	for id, b := range balances {
		balanceLeft[id] = b
	}

	result := &FillResult{State: state.clone()}
	remaining := amount
	idx := 0

	for {
		var matched *model.LimitOrder
		if idx < len(queue) {
			matched = queue[idx]
		}

		prob := result.State.Probability()

		// Taker limit reached and no resting order at a price at least
		// as good as the limit: nothing beneficial remains.
		if limitProb != nil && probAtLimit(prob, *limitProb, outcome) {
			if matched == nil || !orderWithinLimit(matched.LimitProb, *limitProb, outcome) {
				break
			}
		}

		if matched != nil && orderEligible(prob, matched.LimitProb, outcome) {
			// Fill against the resting order at its limit price.
			takerPrice, makerPrice := legPrices(matched.LimitProb, outcome)

			makerBudget := math.Inf(1)
			if b, ok := balanceLeft[matched.UserID]; ok {
				makerBudget = b
			}

			shares := remaining / takerPrice
			orderCap := (matched.Remaining() - filled[matched.ID]) / makerPrice
			balanceCap := makerBudget / makerPrice
			balanceBound := balanceCap < shares && balanceCap <= orderCap
			shares = math.Min(shares, math.Min(orderCap, balanceCap))

			if !(shares > model.Epsilon) {
				// Order unusable (already consumed or maker broke).
				result.OrdersToCancel = append(result.OrdersToCancel, matched.ID)
				idx++
				continue
			}

			takerAmount := shares * takerPrice
			makerAmount := shares * makerPrice

			result.Fills = append(result.Fills, Fill{
				MatchedOrderID: matched.ID,
				Amount:         takerAmount,
				Shares:         shares,
			})
			result.MakerFills = append(result.MakerFills, MakerFill{
				OrderID: matched.ID,
				UserID:  matched.UserID,
				Amount:  makerAmount,
				Shares:  shares,
			})
			result.Shares += shares

			filled[matched.ID] += makerAmount
			if _, ok := balanceLeft[matched.UserID]; ok {
				balanceLeft[matched.UserID] -= makerAmount
			}

			if balanceBound {
				// Maker cannot honor the rest of the order.
				result.OrdersToCancel = append(result.OrdersToCancel, matched.ID)
				idx++
			} else if model.FloatingEqual(filled[matched.ID], matched.Remaining()) {
				idx++
			}

			remaining -= takerAmount
			if model.FloatingEqual(remaining, 0) || remaining < 0 {
				break
			}
			continue
		}

		// Trade against the pool, stopping at the nearer of the taker's
		// limit and the next order's price.
		limit := poolLimit(limitProb, matched, outcome)
		buyAmount := remaining
		if limit != nil {
			buyAmount = math.Min(remaining, result.State.AmountToProb(*limit, outcome))
		}
		if !(buyAmount > model.Epsilon) {
			break
		}

		shares, next, err := result.State.Purchase(buyAmount, outcome)
		if err != nil {
			if len(result.Fills) == 0 {
				return nil, err
			}
			break
		}

		result.Fills = append(result.Fills, Fill{Amount: buyAmount, Shares: shares})
		result.Shares += shares
		result.State = next

		remaining -= buyAmount
		if model.FloatingEqual(remaining, 0) || remaining < 0 {
			break
		}
	}

	for _, f := range result.Fills {
		result.TotalFees = result.TotalFees.Add(f.Fees)
	}
	result.State.CollectedFees = state.CollectedFees.Add(result.TotalFees)
	return result, nil
}

// compatibleQueue returns the opposite-outcome orders in FIFO order.
// sort.SliceStable keeps submission order among equal timestamps.
func compatibleQueue(orders []*model.LimitOrder, outcome model.Outcome) []*model.LimitOrder {
	queue := make([]*model.LimitOrder, 0, len(orders))
	for _, o := range orders {
		if o.Outcome != outcome {
			queue = append(queue, o)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].CreatedTime < queue[j].CreatedTime
	})
	return queue
}

// probAtLimit reports whether the pool price has reached the taker's limit.
func probAtLimit(prob, limitProb float64, outcome model.Outcome) bool {
	if outcome == model.Yes {
		return model.FloatingGreaterEqual(prob, limitProb)
	}
	return model.FloatingLesserEqual(prob, limitProb)
}

// orderWithinLimit reports whether an order's price is acceptable under
// the taker's limit.
func orderWithinLimit(orderProb, limitProb float64, outcome model.Outcome) bool {
	if outcome == model.Yes {
		return orderProb <= limitProb
	}
	return orderProb >= limitProb
}

// orderEligible reports whether the pool price has reached the order's
// price, i.e. the order is at least as good as trading against the pool.
func orderEligible(prob, orderProb float64, outcome model.Outcome) bool {
	if outcome == model.Yes {
		return model.FloatingGreaterEqual(prob, orderProb)
	}
	return model.FloatingLesserEqual(prob, orderProb)
}

// legPrices returns the per-share price paid by the taker and the maker
// for a fill at the order's YES probability.
func legPrices(orderProb float64, outcome model.Outcome) (taker, maker float64) {
	if outcome == model.Yes {
		return orderProb, 1 - orderProb
	}
	return 1 - orderProb, orderProb
}

// poolLimit combines the taker's limit with the next order's price into
// the probability at which pool trading must pause.
func poolLimit(limitProb *float64, matched *model.LimitOrder, outcome model.Outcome) *float64 {
	if matched == nil {
		return limitProb
	}
	lim := matched.LimitProb
	if limitProb != nil {
		if outcome == model.Yes {
			lim = math.Min(lim, *limitProb)
		} else {
			lim = math.Max(lim, *limitProb)
		}
	}
	return &lim
}
