package chart

import (
	"testing"

	"github.com/outcomelabs/market-engine/internal/contract"
	"github.com/outcomelabs/market-engine/internal/model"
)

func TestBetPoints_SortsByCreatedTime(t *testing.T) {
	bets := []*model.Bet{
		{ID: "b2", ProbAfter: 0.7, CreatedTime: 20},
		{ID: "b1", ProbAfter: 0.6, CreatedTime: 10},
		{ID: "b3", ProbAfter: 0.4, CreatedTime: 30},
	}
	got := BetPoints(bets)

	want := []Point{{10, 0.6}, {20, 0.7}, {30, 0.4}}
	if len(got) != len(want) {
		t.Fatalf("got %d points, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if bets[0].ID != "b2" {
		t.Error("input slice reordered")
	}
}

func TestBetPoints_Empty(t *testing.T) {
	if got := BetPoints(nil); len(got) != 0 {
		t.Errorf("got %d points, want 0", len(got))
	}
}

func TestHistoryPoints_BracketsTheSeries(t *testing.T) {
	c := &contract.Contract{
		ID:          "c1",
		Mechanism:   contract.MechanismCPMM,
		Pool:        map[model.Outcome]float64{model.Yes: 100, model.No: 300},
		P:           0.5,
		InitialProb: 0.5,
		CreatedTime: 5,
	}
	bets := []*model.Bet{
		{ID: "b1", ProbAfter: 0.6, CreatedTime: 10},
		{ID: "b2", ProbAfter: 0.75, CreatedTime: 20},
	}

	got := HistoryPoints(c, bets, 99)
	if len(got) != 4 {
		t.Fatalf("got %d points, want 4", len(got))
	}
	if got[0] != (Point{5, 0.5}) {
		t.Errorf("opening point = %+v", got[0])
	}
	if got[1] != (Point{10, 0.6}) || got[2] != (Point{20, 0.75}) {
		t.Errorf("bet points = %+v, %+v", got[1], got[2])
	}
	// Pool {YES:100, NO:300} at p=0.5 prices YES at 0.75.
	if got[3] != (Point{99, 0.75}) {
		t.Errorf("closing point = %+v", got[3])
	}
}

func TestHistoryPoints_ResolvedFreezesClosingProb(t *testing.T) {
	c := &contract.Contract{
		ID:          "c1",
		Mechanism:   contract.MechanismCPMM,
		Pool:        map[model.Outcome]float64{model.Yes: 100, model.No: 100},
		P:           0.5,
		InitialProb: 0.5,
		IsResolved:  true,
		Resolution:  "YES",
	}
	got := HistoryPoints(c, nil, 50)
	if got[len(got)-1].Prob != 1 {
		t.Errorf("closing prob = %v, want 1 for YES resolution", got[len(got)-1].Prob)
	}
}
