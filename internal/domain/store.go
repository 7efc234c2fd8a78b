package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts controls pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// PoolFilter narrows pool list queries.
type PoolFilter struct {
	Chain    string
	Creator  string
	Resolved *bool
	LiveAt   *time.Time
}

// PoolStore persists pools, keyed by (chain, id). Accumulator updates go
// through AccumulateBet so that the bet insert and the pool totals move
// in one transaction.
type PoolStore interface {
	CreatePool(ctx context.Context, p *Pool) error
	GetPool(ctx context.Context, chain string, id uint64) (*Pool, error)
	ListPools(ctx context.Context, f PoolFilter, opts ListOpts) ([]Pool, error)
	CountPools(ctx context.Context, chain string) (uint64, error)

	// AccumulateBet inserts the bet and adds its principal and weight to
	// the pool accumulators atomically. A second bet by the same bettor on
	// the same pool fails with ErrDuplicateBet.
	AccumulateBet(ctx context.Context, b *Bet) error

	// MarkResolutionRequested records the request timestamp. Fails with
	// ErrAlreadyRequested if a timestamp is already set.
	MarkResolutionRequested(ctx context.Context, chain string, id uint64, at time.Time) error

	// Resolve records the final outcome and the settled yield figure.
	Resolve(ctx context.Context, chain string, id uint64, outcome bool, settledYield decimal.Decimal) error

	// MarkCreatorClaimed flips the creator-claimed flag exactly once;
	// a second call fails with ErrAlreadyClaimed.
	MarkCreatorClaimed(ctx context.Context, chain string, id uint64) error
}

// BetStore reads bets. Writes go through PoolStore.AccumulateBet.
type BetStore interface {
	GetBet(ctx context.Context, chain string, poolID uint64, bettor string) (*Bet, error)
	ListBetsByPool(ctx context.Context, chain string, poolID uint64) ([]Bet, error)
	ListBetsByBettor(ctx context.Context, chain, bettor string, opts ListOpts) ([]Bet, error)

	// MarkClaimed flips the claimed flag with a compare-and-set: it
	// succeeds only if the flag was false, and fails with
	// ErrAlreadyClaimed otherwise.
	MarkClaimed(ctx context.Context, chain string, poolID uint64, bettor string) error
}

// AuditRecord is one append-only settlement event.
type AuditRecord struct {
	ID        uint64
	Chain     string
	PoolID    uint64
	Event     string
	Actor     string
	Detail    string
	CreatedAt time.Time
}

// AuditStore appends and reads settlement audit events.
type AuditStore interface {
	Append(ctx context.Context, rec *AuditRecord) error
	ListByPool(ctx context.Context, chain string, poolID uint64) ([]AuditRecord, error)
}
