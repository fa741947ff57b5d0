// Package risk implements exposure limits that account for topical
// correlation between markets.
//
// When an election spans twenty constituency markets, a user buying YES
// on all of them has correlated risk. Markets sharing a topic group are
// treated as one exposure bucket and capped in aggregate, on top of the
// per-market cap.
package risk

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrMarketLimitExceeded is returned when a trade would push a single
	// market's net position beyond the per-market maximum.
	ErrMarketLimitExceeded = errors.New("risk: per-market position limit exceeded")

	// ErrGroupLimitExceeded is returned when a trade would push the
	// aggregate exposure across the market's topic group beyond the
	// group maximum.
	ErrGroupLimitExceeded = errors.New("risk: correlated group exposure limit exceeded")
)

// BetLimiter enforces position limits with topic-group awareness.
//
// Grouping is supplied by the caller as a market → group mapping; a
// market absent from the mapping is its own group. Exposure is the
// signed net position in mana (+YES / -NO direction); limits apply to
// absolute values.
type BetLimiter struct {
	// MaxPerMarket is the maximum absolute net position in any single
	// market.
	MaxPerMarket decimal.Decimal

	// MaxPerGroup is the maximum aggregate absolute exposure across all
	// markets sharing the target market's group.
	MaxPerGroup decimal.Decimal
}

// NewBetLimiter creates a limiter with the given per-market and group
// exposure limits.
func NewBetLimiter(maxPerMarket, maxPerGroup decimal.Decimal) *BetLimiter {
	return &BetLimiter{MaxPerMarket: maxPerMarket, MaxPerGroup: maxPerGroup}
}

// CheckBet validates whether a trade respects position limits.
//
// Parameters:
//   - targetMarket: ID of the market being traded
//   - exposureDelta: signed change in exposure (+YES / -NO direction)
//   - exposures: map of market ID → current net exposure for this user
//   - groups: map of market ID → topic group ID
//
// Returns nil if the trade is within limits, or an error describing the
// violation.
func (l *BetLimiter) CheckBet(
	targetMarket string,
	exposureDelta decimal.Decimal,
	exposures map[string]decimal.Decimal,
	groups map[string]string,
) error {
	current := exposures[targetMarket]
	newPosition := current.Add(exposureDelta)

	if newPosition.Abs().GreaterThan(l.MaxPerMarket) {
		return ErrMarketLimitExceeded
	}

	// Aggregate exposure: sum |exposure| across the target's group.
	targetGroup := marketGroup(groups, targetMarket)
	totalGroup := newPosition.Abs()

	for marketID, exposure := range exposures {
		if marketID == targetMarket {
			continue // already counted via newPosition above
		}
		if marketGroup(groups, marketID) == targetGroup {
			totalGroup = totalGroup.Add(exposure.Abs())
		}
	}

	if totalGroup.GreaterThan(l.MaxPerGroup) {
		return ErrGroupLimitExceeded
	}

	return nil
}

// marketGroup resolves a market's topic group; ungrouped markets are
// their own group.
func marketGroup(groups map[string]string, marketID string) string {
	if g, ok := groups[marketID]; ok {
		return g
	}
	return marketID
}
