package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// weightPrecision is the number of decimal places kept when dividing the
// remaining window by the full window. Fixed so that a persisted weight
// can always be reproduced from (principal, placedAt, pool window).
const weightPrecision = 18

// WeightEngine converts a bet's (principal, timestamp, pool window) into
// its time-weighted score. Earlier bets score higher:
//
//	weight = principal * (1 + maxBonus * remaining/window)
//
// remaining/window is in [0,1], so weight is always >= principal (a late
// bet never counts for less than its stake, it only loses relative share)
// and is monotonically non-increasing as placedAt approaches the window
// end.
type WeightEngine struct {
	maxBonus decimal.Decimal
}

// NewWeightEngine creates a WeightEngine with the given bonus ceiling.
// maxBonus 0.5 means a bet at the exact window start scores 1.5x its
// principal.
func NewWeightEngine(maxBonus decimal.Decimal) WeightEngine {
	return WeightEngine{maxBonus: maxBonus}
}

// Weight computes the time-weighted score of a bet placed at placedAt in
// the window [poolStart, poolEnd). The result is deterministic: identical
// inputs always produce an identical weight, so the value may be
// persisted at acceptance and never recomputed.
//
// placedAt outside [poolStart, poolEnd) returns ErrInvalidBetTiming;
// a non-positive principal returns ErrZeroAmount.
func (e WeightEngine) Weight(principal decimal.Decimal, placedAt, poolStart, poolEnd time.Time) (decimal.Decimal, error) {
	if principal.Sign() <= 0 {
		return decimal.Zero, ErrZeroAmount
	}
	if placedAt.Before(poolStart) || !placedAt.Before(poolEnd) {
		return decimal.Zero, ErrInvalidBetTiming
	}

	windowSec := int64(poolEnd.Sub(poolStart) / time.Second)
	if windowSec <= 0 {
		return decimal.Zero, ErrInvalidBetTiming
	}
	remainingSec := int64(poolEnd.Sub(placedAt) / time.Second)

	frac := decimal.NewFromInt(remainingSec).
		DivRound(decimal.NewFromInt(windowSec), weightPrecision)

	bonus := e.maxBonus.Mul(frac)
	return principal.Mul(decimal.NewFromInt(1).Add(bonus)), nil
}

// MaxBonus returns the configured bonus ceiling.
func (e WeightEngine) MaxBonus() decimal.Decimal {
	return e.maxBonus
}
