package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// secondsPerYear is the divisor for the simple-interest projection.
const secondsPerYear = 365 * 24 * 60 * 60

// YieldSplit is the constant policy for dividing settled yield between
// the prize pool (winners) and the pool creator. The two shares must sum
// to 100; any rounding residue from the fixed-point division goes to the
// prize pool.
type YieldSplit struct {
	PrizePoolPercent int64
	CreatorPercent   int64
}

// DefaultSplit is the 60/40 winners/creator policy.
func DefaultSplit() YieldSplit {
	return YieldSplit{PrizePoolPercent: 60, CreatorPercent: 40}
}

// Validate checks that the shares are non-negative and sum to 100.
func (s YieldSplit) Validate() error {
	if s.PrizePoolPercent < 0 || s.CreatorPercent < 0 {
		return fmt.Errorf("yield split: shares must be non-negative")
	}
	if s.PrizePoolPercent+s.CreatorPercent != 100 {
		return fmt.Errorf("yield split: shares must sum to 100, got %d+%d",
			s.PrizePoolPercent, s.CreatorPercent)
	}
	return nil
}

// YieldProjection is a projected or settled yield figure and its split.
// PrizePool + CreatorReward always equals Total exactly.
type YieldProjection struct {
	Total         decimal.Decimal
	PrizePool     decimal.Decimal
	CreatorReward decimal.Decimal

	// Settled marks the figure as the authority's settled yield rather
	// than a live estimate. Settled projections are never extrapolated.
	Settled bool
}

// YieldProjector estimates total yield for a pool and applies the split
// policy. Projections are display estimates only; at settlement the
// authority's reported yield is used verbatim via Settled.
type YieldProjector struct {
	split YieldSplit
	scale int32 // asset decimal places for the split rounding
}

// NewYieldProjector creates a projector with the given split policy and
// asset decimal precision.
func NewYieldProjector(split YieldSplit, scale int32) YieldProjector {
	return YieldProjector{split: split, scale: scale}
}

// Project estimates the total yield for a pool that is not yet resolved:
// the accrued-so-far figure plus a simple-interest linear extrapolation
// of the remaining window at the given APY. Not compounding, and never
// authoritative.
//
//	total = accrued + principal * (apy/100) * (remaining / secondsPerYear)
func (p YieldProjector) Project(totalPrincipal, accrued, apyPercent decimal.Decimal, remaining time.Duration) YieldProjection {
	remainingSec := int64(remaining / time.Second)
	if remainingSec < 0 {
		remainingSec = 0
	}

	future := totalPrincipal.
		Mul(apyPercent).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromInt(remainingSec)).
		DivRound(decimal.NewFromInt(secondsPerYear), weightPrecision)

	return p.split.apply(accrued.Add(future), p.scale, false)
}

// Settled wraps the authority's settled yield figure. No extrapolation is
// applied; the split is computed on the figure verbatim.
func (p YieldProjector) Settled(actualYield decimal.Decimal) YieldProjection {
	return p.split.apply(actualYield, p.scale, true)
}

// apply splits a total into creator and prize-pool shares. The creator
// share is truncated to the asset precision and the prize pool takes the
// remainder, so the two always reconstruct the total exactly.
func (s YieldSplit) apply(total decimal.Decimal, scale int32, settled bool) YieldProjection {
	creator := total.
		Mul(decimal.NewFromInt(s.CreatorPercent)).
		Div(decimal.NewFromInt(100)).
		Truncate(scale)
	return YieldProjection{
		Total:         total,
		PrizePool:     total.Sub(creator),
		CreatorReward: creator,
		Settled:       settled,
	}
}
