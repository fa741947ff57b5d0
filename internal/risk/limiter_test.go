package risk

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestCheckBet_WithinLimits(t *testing.T) {
	limiter := NewBetLimiter(d(1000), d(5000))

	err := limiter.CheckBet("m1", d(100), nil, nil)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckBet_PerMarketExceeded(t *testing.T) {
	limiter := NewBetLimiter(d(1000), d(5000))

	// Existing position of 950 + new 100 = 1050 > 1000.
	existing := map[string]decimal.Decimal{
		"m1": d(950),
	}

	err := limiter.CheckBet("m1", d(100), existing, nil)
	if err != ErrMarketLimitExceeded {
		t.Errorf("expected ErrMarketLimitExceeded, got %v", err)
	}
}

func TestCheckBet_PerMarketNotExceeded(t *testing.T) {
	limiter := NewBetLimiter(d(1000), d(5000))

	existing := map[string]decimal.Decimal{
		"m1": d(500),
	}

	err := limiter.CheckBet("m1", d(100), existing, nil)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckBet_GroupExceeded(t *testing.T) {
	limiter := NewBetLimiter(d(1000), d(2000))

	groups := map[string]string{
		"seat-1": "election",
		"seat-2": "election",
		"seat-3": "election",
		"seat-4": "election",
	}
	existing := map[string]decimal.Decimal{
		"seat-1": d(800),
		"seat-2": d(800),
		"seat-3": d(300),
	}

	// New trade of 200 in another seat of the same election:
	// total = 200 + 800 + 800 + 300 = 2100 > 2000
	err := limiter.CheckBet("seat-4", d(200), existing, groups)
	if err != ErrGroupLimitExceeded {
		t.Errorf("expected ErrGroupLimitExceeded, got %v", err)
	}
}

func TestCheckBet_UnrelatedMarketsIgnored(t *testing.T) {
	limiter := NewBetLimiter(d(1000), d(2000))

	groups := map[string]string{
		"seat-1": "election",
		"seat-2": "election",
		"btc":    "crypto",
	}
	existing := map[string]decimal.Decimal{
		"seat-1": d(800), // same group as target
		"btc":    d(900), // different group
	}

	// Group total = 500 + 800 = 1300 < 2000 (crypto market excluded).
	err := limiter.CheckBet("seat-2", d(500), existing, groups)
	if err != nil {
		t.Errorf("unrelated markets should be ignored, got %v", err)
	}
}

func TestCheckBet_SellReducesExposure(t *testing.T) {
	limiter := NewBetLimiter(d(1000), d(5000))

	existing := map[string]decimal.Decimal{
		"m1": d(800),
	}

	// Selling (negative delta) reduces exposure: 800 - 200 = 600 < 1000.
	err := limiter.CheckBet("m1", d(-200), existing, nil)
	if err != nil {
		t.Errorf("sell should reduce exposure, got %v", err)
	}
}

func TestCheckBet_ElectionScenario(t *testing.T) {
	// Fifteen constituency markets of one election, each with position
	// 200. MaxPerGroup = 3000 means the user holds the cap exactly.
	limiter := NewBetLimiter(d(500), d(3000))

	groups := make(map[string]string)
	existing := make(map[string]decimal.Decimal)
	for i := 0; i < 15; i++ {
		id := "seat-" + string(rune('a'+i))
		groups[id] = "election"
		existing[id] = d(200)
	}
	groups["seat-z"] = "election"

	// Total existing = 15 × 200 = 3000. Adding 100 more → 3100 > 3000.
	err := limiter.CheckBet("seat-z", d(100), existing, groups)
	if err != ErrGroupLimitExceeded {
		t.Errorf("expected group limit exceeded across the election, got %v", err)
	}
}

func TestCheckBet_UngroupedMarketIsItsOwnGroup(t *testing.T) {
	limiter := NewBetLimiter(d(1000), d(1000))

	existing := map[string]decimal.Decimal{
		"m2": d(900),
	}

	// m1 and m2 are ungrouped: m2's exposure must not count against m1.
	err := limiter.CheckBet("m1", d(500), existing, nil)
	if err != nil {
		t.Errorf("ungrouped markets must not correlate, got %v", err)
	}
}

func TestCheckBet_NilExposures(t *testing.T) {
	limiter := NewBetLimiter(d(1000), d(5000))

	err := limiter.CheckBet("m1", d(500), nil, nil)
	if err != nil {
		t.Errorf("nil exposures should be treated as empty, got %v", err)
	}
}
