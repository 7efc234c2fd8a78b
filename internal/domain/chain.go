package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ChainEvent is one pool event observed on chain, in log order.
type ChainEvent struct {
	ID          string // chain-unique: txhash:logindex
	Chain       string
	BlockNumber uint64
	Event       PoolEvent
	ObservedAt  time.Time
}

// MarketAuthority is the on-chain contract that owns pool funds. The
// settlement core mirrors its state and submits resolution transactions
// through it; it never computes balances the authority disagrees with.
type MarketAuthority interface {
	// FetchPool reads the authoritative pool state.
	FetchPool(ctx context.Context, id uint64) (*Pool, error)

	// PoolCount returns the number of pools ever created on this chain.
	PoolCount(ctx context.Context) (uint64, error)

	// CurrentYield returns the total yield the pool has accrued so far,
	// resolved or not. Projections build on this figure; it is never
	// extrapolated backwards.
	CurrentYield(ctx context.Context, id uint64) (decimal.Decimal, error)

	// SettledYield returns the total yield the authority reports for a
	// resolved pool. Only meaningful after settlement.
	SettledYield(ctx context.Context, id uint64) (decimal.Decimal, error)

	// SubmitResolution sends the settle transaction for a pool whose
	// liveness window has elapsed. Returns the transaction hash.
	SubmitResolution(ctx context.Context, id uint64, outcome bool) (string, error)
}

// OutcomeOracle answers the pool's question after betting closes.
type OutcomeOracle interface {
	Outcome(ctx context.Context, p Pool) (bool, error)
}

// YieldRateOracle reports the current lending APY, in percent.
type YieldRateOracle interface {
	CurrentAPY(ctx context.Context) (decimal.Decimal, error)
}

// IdentityResolver turns a raw address into a display name. Resolvers
// must degrade, never fail a page: when no name exists they return a
// truncated form of the address itself.
type IdentityResolver interface {
	DisplayName(ctx context.Context, address string) string
}
