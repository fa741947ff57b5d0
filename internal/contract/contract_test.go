package contract

import (
	"errors"
	"math"
	"testing"

	"github.com/outcomelabs/market-engine/internal/model"
)

func binaryContract(yes, no, p float64) *Contract {
	return &Contract{
		ID:        "c1",
		Mechanism: MechanismCPMM,
		Token:     TokenMana,
		Pool:      map[model.Outcome]float64{model.Yes: yes, model.No: no},
		P:         p,
	}
}

// --- Probability projections ---

func TestProbability_Open(t *testing.T) {
	c := binaryContract(100, 100, 0.5)
	if got := Probability(c); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("probability = %v, want 0.5", got)
	}
}

func TestProbability_Resolved(t *testing.T) {
	tests := []struct {
		resolution string
		prob       float64
		want       float64
	}{
		{"YES", 0, 1},
		{"NO", 0, 0},
		{"MKT", 0.37, 0.37},
	}
	for _, tt := range tests {
		c := binaryContract(100, 100, 0.5)
		c.IsResolved = true
		c.Resolution = tt.resolution
		c.ResolutionProb = tt.prob
		if got := Probability(c); got != tt.want {
			t.Errorf("resolution %s: probability = %v, want %v", tt.resolution, got, tt.want)
		}
	}
}

func TestAnswerProbability(t *testing.T) {
	a := &Answer{ID: "a1", PoolYes: 100, PoolNo: 300}
	// prob = 0.5*300 / (0.5*300 + 0.5*100) = 0.75
	if got := AnswerProbability(a); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("answer probability = %v, want 0.75", got)
	}

	resolved := &Answer{ID: "a2", PoolYes: 100, PoolNo: 100, Resolution: "YES"}
	if got := AnswerProbability(resolved); got != 1 {
		t.Errorf("resolved answer probability = %v, want 1", got)
	}
}

// --- Payout ---

func TestMarketPayout_Binary(t *testing.T) {
	c := binaryContract(100, 300, 0.5) // prob 0.75
	yesBet := &model.Bet{Outcome: model.Yes, Shares: 100}
	noBet := &model.Bet{Outcome: model.No, Shares: 100}

	got, err := MarketPayout(c, nil, yesBet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-75) > 1e-9 {
		t.Errorf("YES payout = %v, want 75", got)
	}

	got, err = MarketPayout(c, nil, noBet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-25) > 1e-9 {
		t.Errorf("NO payout = %v, want 25", got)
	}
}

func TestMarketPayout_MultiUnknownAnswer(t *testing.T) {
	c := &Contract{ID: "c1", Mechanism: MechanismCPMMMulti}
	bet := &model.Bet{Outcome: model.Yes, Shares: 10, AnswerID: "missing"}
	if _, err := MarketPayout(c, map[string]*Answer{}, bet); !errors.Is(err, ErrNoPayout) {
		t.Errorf("expected ErrNoPayout, got %v", err)
	}
}

func TestMarketPayout_UnknownMechanism(t *testing.T) {
	c := &Contract{ID: "c1", Mechanism: "dpm-2"}
	bet := &model.Bet{Outcome: model.Yes, Shares: 10}
	if _, err := MarketPayout(c, nil, bet); !errors.Is(err, ErrNoPayout) {
		t.Errorf("expected ErrNoPayout, got %v", err)
	}
}

// --- Numeric answer ranges ---

func TestParseAnswerRange(t *testing.T) {
	tests := []struct {
		label    string
		min, max float64
	}{
		{"10-20", 10, 20},
		{" 10-20 ", 10, 20},
		{"0.5-1.5", 0.5, 1.5},
		{"-5 to -3", -5, -3},   // two dashes among numbers: signs kept
		{"100-150", 100, 150},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			lo, hi, err := ParseAnswerRange(tt.label)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if lo != tt.min || hi != tt.max {
				t.Errorf("got [%v, %v], want [%v, %v]", lo, hi, tt.min, tt.max)
			}
		})
	}
}

func TestParseAnswerRange_SingleDashIsSeparator(t *testing.T) {
	// "-5-3" has two dashes so the leading sign survives; "5-3" has one
	// dash which is read as the separator.
	lo, hi, err := ParseAnswerRange("5-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lo != 5 || hi != 3 {
		t.Errorf("got [%v, %v], want [5, 3]", lo, hi)
	}
}

func TestParseAnswerRange_Invalid(t *testing.T) {
	for _, label := range []string{"", "ten to twenty", "42", "1-2-3"} {
		if _, _, err := ParseAnswerRange(label); !errors.Is(err, ErrInvalidRangeFormat) {
			t.Errorf("label %q: expected ErrInvalidRangeFormat, got %v", label, err)
		}
	}
}

func TestAnswerMidpoint(t *testing.T) {
	mid, err := AnswerMidpoint("10-20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mid != 15 {
		t.Errorf("midpoint = %v, want 15", mid)
	}
}

func TestBucketRanges(t *testing.T) {
	ranges := BucketRanges(0, 100, 4)
	want := [][2]float64{{0, 25}, {25, 50}, {50, 75}, {75, 100}}
	if len(ranges) != len(want) {
		t.Fatalf("got %d ranges, want %d", len(ranges), len(want))
	}
	for i := range want {
		if ranges[i] != want[i] {
			t.Errorf("range %d = %v, want %v", i, ranges[i], want[i])
		}
	}
}

func TestBucketRanges_ZeroWidth(t *testing.T) {
	ranges := BucketRanges(5, 5, 10)
	if len(ranges) != 1 || ranges[0] != [2]float64{5, 5} {
		t.Errorf("zero-width range should collapse, got %v", ranges)
	}
}

func TestBucketRangeNames(t *testing.T) {
	names := BucketRangeNames(0, 10, 2)
	if len(names) != 2 || names[0] != "0-5" || names[1] != "5-10" {
		t.Errorf("unexpected names: %v", names)
	}
	// Round trip: generated names parse back.
	for _, name := range names {
		if _, _, err := ParseAnswerRange(name); err != nil {
			t.Errorf("generated name %q does not parse: %v", name, err)
		}
	}
}

func TestExpectedValue(t *testing.T) {
	c := &Contract{ID: "c1", Mechanism: MechanismCPMMMulti}
	answers := []*Answer{
		{ID: "a1", Text: "0-10", PoolYes: 100, PoolNo: 100},  // prob 0.5, mid 5
		{ID: "a2", Text: "10-20", PoolYes: 100, PoolNo: 100}, // prob 0.5, mid 15
	}
	got, err := ExpectedValue(c, answers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-10) > 1e-9 {
		t.Errorf("expected value = %v, want 10", got)
	}
}

func TestExpectedValue_BadLabelPropagates(t *testing.T) {
	c := &Contract{ID: "c1", Mechanism: MechanismCPMMMulti}
	answers := []*Answer{{ID: "a1", Text: "whenever", PoolYes: 100, PoolNo: 100}}
	if _, err := ExpectedValue(c, answers); !errors.Is(err, ErrInvalidRangeFormat) {
		t.Errorf("expected ErrInvalidRangeFormat, got %v", err)
	}
}
