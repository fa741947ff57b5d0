package portfolio

import (
	"sort"

	"github.com/outcomelabs/market-engine/internal/contract"
	"github.com/outcomelabs/market-engine/internal/model"
)

// ComputeMetrics recomputes a user's contract metrics from full bet
// history. Multi-outcome contracts get one entry per answer plus an
// aggregate entry with an empty answer ID; binary contracts get a single
// entry. Bets may arrive in any order.
func ComputeMetrics(c *contract.Contract, bets []*model.Bet, userID string, answers []*contract.Answer) []model.ContractMetric {
	if c.Mechanism == contract.MechanismCPMMMulti {
		return computeMultiMetrics(c, bets, userID, answers)
	}
	m := computeSliceMetric(c.ID, "", userID, bets)
	return []model.ContractMetric{m}
}

func computeMultiMetrics(c *contract.Contract, bets []*model.Bet, userID string, answers []*contract.Answer) []model.ContractMetric {
	byAnswer := make(map[string][]*model.Bet)
	for _, b := range bets {
		byAnswer[b.AnswerID] = append(byAnswer[b.AnswerID], b)
	}

	out := make([]model.ContractMetric, 0, len(answers)+1)
	for _, a := range answers {
		out = append(out, computeSliceMetric(c.ID, a.ID, userID, byAnswer[a.ID]))
	}

	// Aggregate entry: the answer-less rollup of every slice.
	agg := model.ContractMetric{UserID: userID, ContractID: c.ID}
	for _, m := range out {
		agg.Invested += m.Invested
		agg.Loan += m.Loan
		agg.Payout += m.Payout
		agg.Profit += m.Profit
		agg.TotalAmountInvested += m.TotalAmountInvested
		agg.TotalAmountSold += m.TotalAmountSold
		agg.HasYesShares = agg.HasYesShares || m.HasYesShares
		agg.HasNoShares = agg.HasNoShares || m.HasNoShares
		agg.HasShares = agg.HasShares || m.HasShares
		if m.LastBetTime > agg.LastBetTime {
			agg.LastBetTime = m.LastBetTime
		}
	}
	agg.ProfitPercent = profitPercent(agg.Profit, agg.TotalAmountInvested)
	return append(out, agg)
}

// computeSliceMetric derives the metric for one (contract, answer) slice.
func computeSliceMetric(contractID, answerID, userID string, bets []*model.Bet) model.ContractMetric {
	sorted := make([]*model.Bet, len(bets))
	copy(sorted, bets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedTime < sorted[j].CreatedTime
	})

	totalSpent := make(map[model.Outcome]float64)
	totalShares := make(map[model.Outcome]float64)
	foldSpentAndShares(sorted, totalSpent, totalShares)

	var loan, sold, investedTotal float64
	var lastBet *model.Bet
	for _, b := range sorted {
		loan += b.LoanAmount
		// Redemptions and negative amounts are sales regardless of the
		// bet's nominal outcome.
		if b.IsRedemption || b.Amount < 0 {
			sold += -b.Amount
		} else if b.Amount > 0 {
			investedTotal += b.Amount
		}
		lastBet = b
	}

	m := model.ContractMetric{
		UserID:              userID,
		ContractID:          contractID,
		AnswerID:            answerID,
		TotalShares:         totalShares,
		TotalSpent:          totalSpent,
		Loan:                zeroIfApprox(loan),
		Invested:            zeroIfApprox(sumValues(totalSpent)),
		TotalAmountSold:     zeroIfApprox(sold),
		TotalAmountInvested: zeroIfApprox(investedTotal),
	}
	if lastBet != nil {
		m.LastBetTime = lastBet.CreatedTime
	}

	finishMetric(&m, lastBet)
	return m
}

// foldSpentAndShares accumulates each bet's signed amount and shares into
// the per-outcome buckets.
func foldSpentAndShares(bets []*model.Bet, spent, shares map[model.Outcome]float64) {
	for _, b := range bets {
		spent[b.Outcome] += b.Amount
		shares[b.Outcome] += b.Shares
	}
}

// finishMetric derives the share flags, max-shares outcome, payout and
// profit fields from the metric's accumulated totals. lastBet supplies
// the marginal probability the payout is marked at.
func finishMetric(m *model.ContractMetric, lastBet *model.Bet) {
	yes := m.TotalShares[model.Yes]
	no := m.TotalShares[model.No]

	m.HasYesShares = yes >= 1
	m.HasNoShares = no >= 1
	m.HasShares = false
	for _, s := range m.TotalShares {
		if !model.FloatingEqual(s, 0) {
			m.HasShares = true
			break
		}
	}

	soldOut := !m.HasYesShares && !m.HasNoShares
	if soldOut {
		m.MaxSharesOutcome = nil
	} else {
		// NO wins only a strict majority; ties go to YES.
		outcome := model.Yes
		if no > yes {
			outcome = model.No
		}
		m.MaxSharesOutcome = &outcome
	}

	var payout float64
	if !soldOut && m.MaxSharesOutcome != nil && lastBet != nil {
		price := lastBet.ProbAfter
		if *m.MaxSharesOutcome == model.No {
			price = 1 - lastBet.ProbAfter
		}
		payout = m.TotalShares[*m.MaxSharesOutcome] * price
	}
	m.Payout = zeroIfApprox(payout)

	m.Profit = m.Payout + m.TotalAmountSold - m.TotalAmountInvested
	m.ProfitPercent = profitPercent(m.Profit, m.TotalAmountInvested)
}

func profitPercent(profit, invested float64) float64 {
	if model.FloatingEqual(invested, 0) {
		return 0
	}
	return profit / invested * 100
}

func sumValues(m map[model.Outcome]float64) float64 {
	var total float64
	for _, v := range m {
		total += v
	}
	return total
}

func zeroIfApprox(v float64) float64 {
	if model.FloatingEqual(v, 0) {
		return 0
	}
	return v
}
