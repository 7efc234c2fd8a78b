package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ApyCache holds the most recently observed yield rate per chain so
// projections keep working while the rate oracle is unreachable.
type ApyCache interface {
	SetAPY(ctx context.Context, chain string, apyPercent decimal.Decimal, ttl time.Duration) error
	GetAPY(ctx context.Context, chain string) (decimal.Decimal, error)
}

// LockManager serializes settlement operations on a single pool across
// processes. Acquire fails with ErrLockHeld when another holder exists;
// on success it returns an unlock function that is safe to call more
// than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// PoolEvent is one lifecycle broadcast fanned out to subscribers.
type PoolEvent struct {
	Type      string          `json:"type"`
	Chain     string          `json:"chain"`
	PoolID    uint64          `json:"pool_id"`
	Bettor    string          `json:"bettor,omitempty"`
	Amount    decimal.Decimal `json:"amount,omitempty"`
	Side      *bool           `json:"side,omitempty"`
	Outcome   *bool           `json:"outcome,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Event type values published on the signal bus.
const (
	EventPoolCreated         = "pool_created"
	EventBetPlaced           = "bet_placed"
	EventResolutionRequested = "resolution_requested"
	EventPoolResolved        = "pool_resolved"
	EventPayoutClaimed       = "payout_claimed"
)

// StreamMessage is one durable entry read back from the event stream.
type StreamMessage struct {
	ID    string
	Event PoolEvent
}

// SignalBus broadcasts pool lifecycle events to interested processes,
// including the websocket hub, and keeps a durable trimmed stream for
// consumers that need replay.
type SignalBus interface {
	Publish(ctx context.Context, ev PoolEvent) error
	Subscribe(ctx context.Context) (<-chan PoolEvent, error)
	StreamRead(ctx context.Context, lastID string, count int) ([]StreamMessage, error)
}

// RateLimiter bounds request rates per caller key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ProcessedSet remembers chain events already mirrored so a restarted
// poller does not double-apply them.
type ProcessedSet interface {
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (first bool, err error)
}
