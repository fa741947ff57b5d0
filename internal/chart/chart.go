// Package chart derives probability time series from bet history for the
// market graph.
package chart

import (
	"sort"

	"github.com/outcomelabs/market-engine/internal/contract"
	"github.com/outcomelabs/market-engine/internal/model"
)

// Point is one sample of the probability series.
type Point struct {
	Time int64   `json:"time"`
	Prob float64 `json:"prob"`
}

// BetPoints maps a bet history to its post-trade probability samples in
// chronological order. The input is not mutated.
func BetPoints(bets []*model.Bet) []Point {
	sorted := make([]*model.Bet, len(bets))
	copy(sorted, bets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedTime < sorted[j].CreatedTime
	})

	points := make([]Point, len(sorted))
	for i, b := range sorted {
		points[i] = Point{Time: b.CreatedTime, Prob: b.ProbAfter}
	}
	return points
}

// HistoryPoints assembles the full series the market graph renders: the
// opening probability at creation time, every bet's sample, and the
// current probability at now.
func HistoryPoints(c *contract.Contract, bets []*model.Bet, now int64) []Point {
	points := make([]Point, 0, len(bets)+2)
	points = append(points, Point{Time: c.CreatedTime, Prob: contract.InitialProbability(c)})
	points = append(points, BetPoints(bets)...)
	points = append(points, Point{Time: now, Prob: contract.Probability(c)})
	return points
}
