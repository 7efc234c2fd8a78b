package domain

import (
	"github.com/shopspring/decimal"
)

// Payout is the amount owed to one participant of a resolved pool,
// broken into its no-loss components. Total = Principal + YieldShare.
type Payout struct {
	Principal  decimal.Decimal
	YieldShare decimal.Decimal
	Total      decimal.Decimal
	Won        bool
}

// PayoutCalculator computes claim amounts for resolved pools. All
// bettors receive their principal back; winners additionally share the
// prize pool pro-rata by weight. Shares are truncated to the asset
// precision, so the sum of all winner shares never exceeds the prize
// pool (residual dust stays unclaimed).
type PayoutCalculator struct {
	scale int32
}

// NewPayoutCalculator creates a calculator for an asset with the given
// number of decimal places.
func NewPayoutCalculator(scale int32) PayoutCalculator {
	return PayoutCalculator{scale: scale}
}

// BettorPayout computes the payout owed to one bet in a resolved pool.
//
// Losers get exactly their principal. Winners get principal plus
// (weight / winningSideWeight) * prizePool, truncated. If the winning
// side has zero total weight (nobody bet on the winning side, so no
// winner exists to call this) the yield share is zero.
func (c PayoutCalculator) BettorPayout(p Pool, b Bet, prizePool decimal.Decimal) (Payout, error) {
	if !p.Resolved {
		return Payout{}, ErrNotResolved
	}

	out := Payout{
		Principal: b.Principal,
		Total:     b.Principal,
		Won:       b.Won(p),
	}
	if !out.Won {
		return out, nil
	}

	sideWeight := p.SideWeight(p.Outcome)
	if sideWeight.Sign() <= 0 {
		return out, nil
	}

	out.YieldShare = b.Weight.
		Mul(prizePool).
		Div(sideWeight).
		Truncate(c.scale)
	out.Total = out.Principal.Add(out.YieldShare)
	return out, nil
}

// CreatorPayout computes the creator's claim on a resolved pool: the
// creator's own deposit back plus the creator share of the yield.
func (c PayoutCalculator) CreatorPayout(p Pool, creatorReward decimal.Decimal) (Payout, error) {
	if !p.Resolved {
		return Payout{}, ErrNotResolved
	}
	return Payout{
		Principal:  p.CreatorPrincipal,
		YieldShare: creatorReward,
		Total:      p.CreatorPrincipal.Add(creatorReward),
	}, nil
}
