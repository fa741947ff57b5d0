package portfolio

import (
	"github.com/outcomelabs/market-engine/internal/model"
)

// UpgradeLegacySnapshot backfills the per-outcome spend breakdown on
// metric snapshots written before TotalSpent existed. The aggregate
// invested value is attributed to whichever side currently holds shares,
// or split evenly when neither side is one-sided. Snapshots that already
// carry TotalSpent pass through unchanged.
//
// This is a migration shim: steady-state accounting never calls it with
// a modern snapshot and expects an effect.
func UpgradeLegacySnapshot(m model.ContractMetric) model.ContractMetric {
	if m.TotalSpent != nil {
		return m
	}

	spent := make(map[model.Outcome]float64)
	switch {
	case m.HasNoShares && !m.HasYesShares:
		spent[model.No] = m.Invested
	case m.HasYesShares && !m.HasNoShares:
		spent[model.Yes] = m.Invested
	default:
		spent[model.Yes] = m.Invested / 2
		spent[model.No] = m.Invested / 2
	}
	m.TotalSpent = spent
	return m
}

// ApplyNewBets rolls a metric snapshot forward over bets that happened
// after the snapshot was taken, without replaying the full history. The
// result is numerically identical to recomputing from scratch over the
// combined bet set.
//
// With no new bets the (upgraded) snapshot is returned unchanged.
func ApplyNewBets(newBets []*model.Bet, prior model.ContractMetric) model.ContractMetric {
	m := UpgradeLegacySnapshot(prior)
	if len(newBets) == 0 {
		return m
	}

	totalSpent := make(map[model.Outcome]float64, len(m.TotalSpent))
	for k, v := range m.TotalSpent {
		totalSpent[k] = v
	}
	totalShares := make(map[model.Outcome]float64, len(m.TotalShares))
	for k, v := range m.TotalShares {
		totalShares[k] = v
	}
	foldSpentAndShares(newBets, totalSpent, totalShares)

	loan := m.Loan
	sold := m.TotalAmountSold
	investedTotal := m.TotalAmountInvested
	var lastBet *model.Bet
	for _, b := range newBets {
		loan += b.LoanAmount
		if b.IsRedemption || b.Amount < 0 {
			sold += -b.Amount
		} else if b.Amount > 0 {
			investedTotal += b.Amount
		}
		if lastBet == nil || b.CreatedTime > lastBet.CreatedTime {
			lastBet = b
		}
	}

	m.TotalSpent = totalSpent
	m.TotalShares = totalShares
	m.Loan = zeroIfApprox(loan)
	m.Invested = zeroIfApprox(sumValues(totalSpent))
	m.TotalAmountSold = zeroIfApprox(sold)
	m.TotalAmountInvested = zeroIfApprox(investedTotal)
	m.LastBetTime = lastBet.CreatedTime

	finishMetric(&m, lastBet)
	return m
}
