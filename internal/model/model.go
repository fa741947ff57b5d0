// Package model defines the core domain types shared across the market
// engine: outcomes, bets, resting limit orders, fee records, and the
// derived per-user contract metrics.
//
// Bet is the authoritative event log: created once at trade time, never
// mutated. Everything else in the engine is derived from bets.
package model

// Outcome is one side of a binary market.
type Outcome string

const (
	Yes Outcome = "YES"
	No  Outcome = "NO"
)

// Other returns the opposite outcome.
func (o Outcome) Other() Outcome {
	if o == Yes {
		return No
	}
	return Yes
}

// Valid reports whether o is one of the two known outcomes.
func (o Outcome) Valid() bool {
	return o == Yes || o == No
}

// Fees is the fee record attached to pool state and to individual fills.
// The zero value means no fees, which is what simulations use.
type Fees struct {
	Creator   float64 `json:"creator_fee"`
	Platform  float64 `json:"platform_fee"`
	Liquidity float64 `json:"liquidity_fee"`
}

// Add returns the component-wise sum of two fee records.
func (f Fees) Add(other Fees) Fees {
	return Fees{
		Creator:   f.Creator + other.Creator,
		Platform:  f.Platform + other.Platform,
		Liquidity: f.Liquidity + other.Liquidity,
	}
}

// Total returns the sum of all fee components.
func (f Fees) Total() float64 {
	return f.Creator + f.Platform + f.Liquidity
}

// Bet is an immutable record of a single trade. Amount is signed: negative
// means a sale or redemption. Times are unix milliseconds.
type Bet struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	ContractID   string  `json:"contract_id"`
	AnswerID     string  `json:"answer_id,omitempty"` // empty for binary markets
	Outcome      Outcome `json:"outcome"`
	Amount       float64 `json:"amount"`
	Shares       float64 `json:"shares"`
	ProbBefore   float64 `json:"prob_before"`
	ProbAfter    float64 `json:"prob_after"`
	LoanAmount   float64 `json:"loan_amount,omitempty"`
	IsRedemption bool    `json:"is_redemption"`
	Fees         Fees    `json:"fees"`
	CreatedTime  int64   `json:"created_time"`
}

// LimitOrder is a resting, not-yet-filled order. LimitProb is always the
// probability of YES at which the order fills, regardless of the order's
// outcome. Amount tracks how much of OrderAmount has already been filled.
type LimitOrder struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	ContractID  string  `json:"contract_id"`
	AnswerID    string  `json:"answer_id,omitempty"`
	Outcome     Outcome `json:"outcome"`
	LimitProb   float64 `json:"limit_prob"`
	OrderAmount float64 `json:"order_amount"`
	Amount      float64 `json:"amount"`
	CreatedTime int64   `json:"created_time"`
}

// Remaining returns the unfilled portion of the order.
func (o *LimitOrder) Remaining() float64 {
	return o.OrderAmount - o.Amount
}

// ContractMetric is the derived aggregate for one (user, contract, answer)
// triple. AnswerID is empty for binary markets and for the aggregate entry
// of multi-outcome markets. At most one record exists per triple; it is
// recomputed from bet history or rolled forward incrementally.
//
// TotalSpent is nil on legacy snapshots that predate the per-outcome spend
// breakdown; such snapshots must be upgraded before rolling forward.
type ContractMetric struct {
	UserID     string `json:"user_id"`
	ContractID string `json:"contract_id"`
	AnswerID   string `json:"answer_id,omitempty"`

	TotalShares map[Outcome]float64 `json:"total_shares"`
	TotalSpent  map[Outcome]float64 `json:"total_spent,omitempty"`

	Invested            float64 `json:"invested"`
	Loan                float64 `json:"loan"`
	TotalAmountInvested float64 `json:"total_amount_invested"`
	TotalAmountSold     float64 `json:"total_amount_sold"`

	HasYesShares bool `json:"has_yes_shares"`
	HasNoShares  bool `json:"has_no_shares"`
	HasShares    bool `json:"has_shares"`

	// MaxSharesOutcome is nil when the position is sold out.
	MaxSharesOutcome *Outcome `json:"max_shares_outcome,omitempty"`

	Payout        float64 `json:"payout"`
	Profit        float64 `json:"profit"`
	ProfitPercent float64 `json:"profit_percent"`
	LastBetTime   int64   `json:"last_bet_time"`
}
