package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side labels for the boolean bet side.
const (
	SideYes = true
	SideNo  = false
)

// Bet is one participant's position in one pool. At most one Bet exists
// per (pool, bettor) pair; repeat bets are rejected, not merged.
//
// Principal, Side, Weight and PlacedAt are fixed at acceptance time.
// Weight is computed once by the weight engine and persisted; recomputing
// it from PlacedAt and the pool window must reproduce the same value.
type Bet struct {
	PoolID    uint64
	Chain     string
	Bettor    string // lowercased hex address
	Principal decimal.Decimal
	Side      bool
	Weight    decimal.Decimal
	PlacedAt  time.Time

	// Claimed flips to true exactly once, on a successful claim. A second
	// claim attempt fails; it never double-pays.
	Claimed bool
}

// SideLabel renders a side value for logs and API payloads.
func SideLabel(side bool) string {
	if side {
		return "YES"
	}
	return "NO"
}

// SideString renders the bet's side for logs and API payloads.
func (b Bet) SideString() string {
	return SideLabel(b.Side)
}

// Won reports whether the bet is on the winning side of a resolved pool.
func (b Bet) Won(p Pool) bool {
	return p.Resolved && b.Side == p.Outcome
}
