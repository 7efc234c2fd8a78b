package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResolutionState is the lifecycle state of a pool. It is strictly
// one-directional: Open -> BettingEnded -> ResolutionRequested -> Resolved.
//
// Only the request timestamp and the final outcome are stored; the
// Open/BettingEnded boundary is purely a function of the clock, so State
// derives it instead of persisting it.
type ResolutionState string

const (
	StateOpen                ResolutionState = "open"
	StateBettingEnded        ResolutionState = "betting_ended"
	StateResolutionRequested ResolutionState = "resolution_requested"
	StateResolved            ResolutionState = "resolved"
)

// Pool is one no-loss prediction market: bettor principal accrues yield
// for the duration of the betting window, and at resolution the yield
// (never the principal) is split between winners and the creator.
//
// The principal and weight fields are monotonically non-decreasing
// accumulators, updated only by accepted bets. The invariant
// YesPrincipal + NoPrincipal == TotalPrincipal holds at all times.
type Pool struct {
	ID             uint64
	Chain          string
	Question       string
	Creator        string // lowercased hex address
	CreatedAt      time.Time
	BettingEndTime time.Time

	TotalPrincipal decimal.Decimal
	YesPrincipal   decimal.Decimal
	NoPrincipal    decimal.Decimal
	TotalYesWeight decimal.Decimal
	TotalNoWeight  decimal.Decimal

	// CreatorPrincipal is the creator's own deposit, held apart from
	// bettor principal and claimable in full plus the creator yield share.
	CreatorPrincipal decimal.Decimal
	CreatorClaimed   bool

	ResolutionRequestedAt *time.Time
	Resolved              bool
	Outcome               bool // meaningful only when Resolved

	// SettledYield is the authority's reported total yield, recorded at
	// resolution. Zero until Resolved.
	SettledYield decimal.Decimal

	UpdatedAt time.Time
}

// IsLive reports whether the pool still accepts bets at the given instant.
func (p Pool) IsLive(now time.Time) bool {
	return !p.Resolved && p.ResolutionRequestedAt == nil && now.Before(p.BettingEndTime)
}

// BettingEnded reports whether the betting window has closed.
func (p Pool) BettingEnded(now time.Time) bool {
	return !now.Before(p.BettingEndTime)
}

// State derives the lifecycle state at the given instant. The
// Open/BettingEnded boundary is never written anywhere; it exists only
// as this projection.
func (p Pool) State(now time.Time) ResolutionState {
	switch {
	case p.Resolved:
		return StateResolved
	case p.ResolutionRequestedAt != nil:
		return StateResolutionRequested
	case p.BettingEnded(now):
		return StateBettingEnded
	default:
		return StateOpen
	}
}

// CanSettle reports whether settleResolution would be accepted at the
// given instant: a resolution request exists and the liveness window has
// fully elapsed since it.
func (p Pool) CanSettle(now time.Time, liveness time.Duration) bool {
	if p.Resolved || p.ResolutionRequestedAt == nil {
		return false
	}
	return !now.Before(p.ResolutionRequestedAt.Add(liveness))
}

// TimeLeft returns the remaining betting time, floored at zero.
func (p Pool) TimeLeft(now time.Time) time.Duration {
	if d := p.BettingEndTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Window returns the full betting window duration.
func (p Pool) Window() time.Duration {
	return p.BettingEndTime.Sub(p.CreatedAt)
}

// SideWeight returns the accumulated weight of the given side.
func (p Pool) SideWeight(side bool) decimal.Decimal {
	if side {
		return p.TotalYesWeight
	}
	return p.TotalNoWeight
}

// CheckPrincipalInvariant verifies YesPrincipal + NoPrincipal ==
// TotalPrincipal. The ledger enforces it; stores and tests assert it.
func (p Pool) CheckPrincipalInvariant() bool {
	return p.YesPrincipal.Add(p.NoPrincipal).Equal(p.TotalPrincipal)
}
