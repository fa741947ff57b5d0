package portfolio

import (
	"log/slog"
	"math"

	"github.com/outcomelabs/market-engine/internal/contract"
	"github.com/outcomelabs/market-engine/internal/model"
)

// InvestmentValue marks a user's open positions to market: each bet's
// shares are valued at the contract's payout-if-resolved-now price, minus
// the bet's outstanding loan. Resolved or missing contracts contribute
// zero. A payout computation failure is logged and degrades that bet to
// zero value rather than failing the aggregate.
//
// CASH-token contracts accumulate separately from MANA ones.
func InvestmentValue(bets []*model.Bet, contracts map[string]*contract.Contract, answers map[string]*contract.Answer) (mana, cash float64) {
	for _, bet := range bets {
		c, ok := contracts[bet.ContractID]
		if !ok || c.IsResolved {
			continue
		}

		payout, err := contract.MarketPayout(c, answers, bet)
		if err != nil {
			slog.Error("payout computation failed, valuing bet at zero",
				"contract", c.ID,
				"question", c.Question,
				"mechanism", c.Mechanism,
				"err", err,
			)
			payout = 0
		}

		value := payout - bet.LoanAmount
		if math.IsNaN(value) {
			continue
		}

		if c.Token == contract.TokenCash {
			cash += value
		} else {
			mana += value
		}
	}
	return mana, cash
}

// LoanTotal sums outstanding loans across a user's bets on unresolved
// contracts.
func LoanTotal(bets []*model.Bet, contracts map[string]*contract.Contract) float64 {
	var total float64
	for _, bet := range bets {
		c, ok := contracts[bet.ContractID]
		if !ok || c.IsResolved {
			continue
		}
		total += bet.LoanAmount
	}
	return total
}
