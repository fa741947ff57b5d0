package portfolio

import (
	"math"
	"testing"

	"github.com/outcomelabs/market-engine/internal/contract"
	"github.com/outcomelabs/market-engine/internal/model"
)

func binaryContract() *contract.Contract {
	return &contract.Contract{
		ID:        "c1",
		Mechanism: contract.MechanismCPMM,
		Token:     contract.TokenMana,
		Pool:      map[model.Outcome]float64{model.Yes: 100, model.No: 100},
		P:         0.5,
	}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > model.Epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

// --- Single-bet scenario ---

func TestComputeMetrics_SingleBet(t *testing.T) {
	bets := []*model.Bet{{
		ID: "b1", UserID: "u1", ContractID: "c1",
		Outcome: model.Yes, Amount: 100, Shares: 150,
		ProbBefore: 0.5, ProbAfter: 0.6, CreatedTime: 1,
	}}

	ms := ComputeMetrics(binaryContract(), bets, "u1", nil)
	if len(ms) != 1 {
		t.Fatalf("expected 1 metric for binary market, got %d", len(ms))
	}
	m := ms[0]

	approx(t, "invested", m.Invested, 100)
	approx(t, "totalShares.YES", m.TotalShares[model.Yes], 150)
	if !m.HasYesShares {
		t.Error("hasYesShares should be true")
	}
	if m.HasNoShares {
		t.Error("hasNoShares should be false")
	}
	if m.MaxSharesOutcome == nil || *m.MaxSharesOutcome != model.Yes {
		t.Errorf("maxSharesOutcome = %v, want YES", m.MaxSharesOutcome)
	}
	// 150 shares valued at the last trade's marginal prob.
	approx(t, "payout", m.Payout, 150*0.6)
	approx(t, "profit", m.Profit, 150*0.6-100)
	if m.LastBetTime != 1 {
		t.Errorf("lastBetTime = %d, want 1", m.LastBetTime)
	}
}

// --- Sales and redemptions ---

func TestComputeMetrics_SaleCountsAsSold(t *testing.T) {
	bets := []*model.Bet{
		{ID: "b1", Outcome: model.Yes, Amount: 100, Shares: 150, ProbAfter: 0.6, CreatedTime: 1},
		{ID: "b2", Outcome: model.Yes, Amount: -60, Shares: -90, ProbAfter: 0.55, CreatedTime: 2},
	}
	m := ComputeMetrics(binaryContract(), bets, "u1", nil)[0]

	approx(t, "totalAmountInvested", m.TotalAmountInvested, 100)
	approx(t, "totalAmountSold", m.TotalAmountSold, 60)
	approx(t, "totalShares.YES", m.TotalShares[model.Yes], 60)
	approx(t, "invested", m.Invested, 40) // signed spend fold
}

func TestComputeMetrics_RedemptionIsSaleRegardlessOfSign(t *testing.T) {
	bets := []*model.Bet{
		{ID: "b1", Outcome: model.Yes, Amount: 100, Shares: 150, ProbAfter: 0.6, CreatedTime: 1},
		{ID: "b2", Outcome: model.No, Amount: -20, Shares: -20, IsRedemption: true, ProbAfter: 0.6, CreatedTime: 2},
	}
	m := ComputeMetrics(binaryContract(), bets, "u1", nil)[0]
	approx(t, "totalAmountSold", m.TotalAmountSold, 20)
	approx(t, "totalAmountInvested", m.TotalAmountInvested, 100)
}

// --- Share flags and tie-breaks ---

func TestComputeMetrics_SoldOut(t *testing.T) {
	bets := []*model.Bet{
		{ID: "b1", Outcome: model.Yes, Amount: 100, Shares: 150, ProbAfter: 0.6, CreatedTime: 1},
		{ID: "b2", Outcome: model.Yes, Amount: -100, Shares: -150, ProbAfter: 0.5, CreatedTime: 2},
	}
	m := ComputeMetrics(binaryContract(), bets, "u1", nil)[0]

	if m.MaxSharesOutcome != nil {
		t.Errorf("sold-out position should have nil maxSharesOutcome, got %v", *m.MaxSharesOutcome)
	}
	approx(t, "payout", m.Payout, 0)
	if m.HasShares {
		t.Error("hasShares should be false after selling out")
	}
}

func TestComputeMetrics_MaxSharesTieGoesToYes(t *testing.T) {
	// Equal share totals on both sides: the NO > YES comparison is
	// strict, so the tie lands on YES. Intentionally preserved behavior.
	bets := []*model.Bet{
		{ID: "b1", Outcome: model.Yes, Amount: 50, Shares: 80, ProbAfter: 0.5, CreatedTime: 1},
		{ID: "b2", Outcome: model.No, Amount: 50, Shares: 80, ProbAfter: 0.5, CreatedTime: 2},
	}
	m := ComputeMetrics(binaryContract(), bets, "u1", nil)[0]
	if m.MaxSharesOutcome == nil || *m.MaxSharesOutcome != model.Yes {
		t.Errorf("tie should resolve to YES, got %v", m.MaxSharesOutcome)
	}
}

func TestComputeMetrics_ShareNonNegativity(t *testing.T) {
	// Well-formed histories never accumulate negative share totals.
	bets := []*model.Bet{
		{ID: "b1", Outcome: model.Yes, Amount: 100, Shares: 150, ProbAfter: 0.6, CreatedTime: 1},
		{ID: "b2", Outcome: model.Yes, Amount: -40, Shares: -60, ProbAfter: 0.55, CreatedTime: 2},
		{ID: "b3", Outcome: model.Yes, Amount: -60, Shares: -90, ProbAfter: 0.5, CreatedTime: 3},
	}
	m := ComputeMetrics(binaryContract(), bets, "u1", nil)[0]
	if m.TotalShares[model.Yes] < -model.Epsilon {
		t.Errorf("totalShares.YES negative: %v", m.TotalShares[model.Yes])
	}
	if m.TotalShares[model.No] < -model.Epsilon {
		t.Errorf("totalShares.NO negative: %v", m.TotalShares[model.No])
	}
}

// --- Profit percent guard ---

func TestComputeMetrics_ProfitPercentZeroInvested(t *testing.T) {
	// A redemption-only history has ~0 invested; percent must be 0, not
	// a division blowup. The invested total here is a tiny float residue.
	bets := []*model.Bet{
		{ID: "b1", Outcome: model.Yes, Amount: 1e-9, Shares: 2e-9, ProbAfter: 0.5, CreatedTime: 1},
	}
	m := ComputeMetrics(binaryContract(), bets, "u1", nil)[0]
	if m.ProfitPercent != 0 {
		t.Errorf("profitPercent = %v, want 0 for ~0 invested", m.ProfitPercent)
	}
}

// --- Multi-outcome ---

func multiContract() (*contract.Contract, []*contract.Answer) {
	c := &contract.Contract{ID: "m1", Mechanism: contract.MechanismCPMMMulti, Token: contract.TokenMana}
	answers := []*contract.Answer{
		{ID: "a1", ContractID: "m1", Text: "0-10", PoolYes: 100, PoolNo: 100},
		{ID: "a2", ContractID: "m1", Text: "10-20", PoolYes: 100, PoolNo: 100},
	}
	return c, answers
}

func TestComputeMetrics_MultiOneEntryPerAnswerPlusAggregate(t *testing.T) {
	c, answers := multiContract()
	bets := []*model.Bet{
		{ID: "b1", AnswerID: "a1", Outcome: model.Yes, Amount: 100, Shares: 150, ProbAfter: 0.6, CreatedTime: 1},
		{ID: "b2", AnswerID: "a2", Outcome: model.No, Amount: 50, Shares: 70, ProbAfter: 0.4, CreatedTime: 2},
	}
	ms := ComputeMetrics(c, bets, "u1", answers)
	if len(ms) != 3 {
		t.Fatalf("expected 2 answer entries + 1 aggregate, got %d", len(ms))
	}

	byAnswer := make(map[string]model.ContractMetric)
	for _, m := range ms {
		byAnswer[m.AnswerID] = m
	}

	approx(t, "a1 invested", byAnswer["a1"].Invested, 100)
	approx(t, "a2 invested", byAnswer["a2"].Invested, 50)

	agg := byAnswer[""]
	approx(t, "aggregate invested", agg.Invested, 150)
	approx(t, "aggregate profit", agg.Profit, byAnswer["a1"].Profit+byAnswer["a2"].Profit)
	if agg.LastBetTime != 2 {
		t.Errorf("aggregate lastBetTime = %d, want 2", agg.LastBetTime)
	}
	if !agg.HasYesShares || !agg.HasNoShares {
		t.Error("aggregate share flags should OR across answers")
	}
}

func TestComputeMetrics_MultiAnswerWithoutBets(t *testing.T) {
	c, answers := multiContract()
	bets := []*model.Bet{
		{ID: "b1", AnswerID: "a1", Outcome: model.Yes, Amount: 100, Shares: 150, ProbAfter: 0.6, CreatedTime: 1},
	}
	ms := ComputeMetrics(c, bets, "u1", answers)
	if len(ms) != 3 {
		t.Fatalf("expected entries for every answer, got %d", len(ms))
	}
	for _, m := range ms {
		if m.AnswerID == "a2" {
			if m.Invested != 0 || m.HasShares {
				t.Errorf("betless answer should be zeroed, got %+v", m)
			}
			if m.MaxSharesOutcome != nil {
				t.Errorf("betless answer maxSharesOutcome should be nil")
			}
		}
	}
}

// --- Investment value ---

func TestInvestmentValue_DegradeToZero(t *testing.T) {
	contracts := map[string]*contract.Contract{
		"open":     binaryContract(),
		"resolved": {ID: "resolved", Mechanism: contract.MechanismCPMM, IsResolved: true, Resolution: "YES"},
		"broken":   {ID: "broken", Mechanism: "dpm-2"},
	}
	contracts["open"].ID = "open"

	bets := []*model.Bet{
		{ID: "b1", ContractID: "open", Outcome: model.Yes, Shares: 100, LoanAmount: 10},
		{ID: "b2", ContractID: "resolved", Outcome: model.Yes, Shares: 500}, // resolved: skipped
		{ID: "b3", ContractID: "missing", Outcome: model.Yes, Shares: 500}, // missing: skipped
		{ID: "b4", ContractID: "broken", Outcome: model.Yes, Shares: 500, LoanAmount: 5}, // payout fails: zero minus loan
	}

	mana, cash := InvestmentValue(bets, contracts, nil)
	// open: 100 shares at prob 0.5 minus 10 loan = 40; broken: 0 - 5.
	approx(t, "mana investment value", mana, 40-5)
	approx(t, "cash investment value", cash, 0)
}

func TestInvestmentValue_CashToken(t *testing.T) {
	c := binaryContract()
	c.ID = "cash1"
	c.Token = contract.TokenCash
	contracts := map[string]*contract.Contract{"cash1": c}
	bets := []*model.Bet{{ID: "b1", ContractID: "cash1", Outcome: model.Yes, Shares: 100}}

	mana, cash := InvestmentValue(bets, contracts, nil)
	approx(t, "mana", mana, 0)
	approx(t, "cash", cash, 50)
}

func TestLoanTotal(t *testing.T) {
	contracts := map[string]*contract.Contract{
		"open":     binaryContract(),
		"resolved": {ID: "resolved", Mechanism: contract.MechanismCPMM, IsResolved: true},
	}
	contracts["open"].ID = "open"
	bets := []*model.Bet{
		{ID: "b1", ContractID: "open", LoanAmount: 25},
		{ID: "b2", ContractID: "resolved", LoanAmount: 100},
		{ID: "b3", ContractID: "open", LoanAmount: 5},
	}
	approx(t, "loan total", LoanTotal(bets, contracts), 30)
}
