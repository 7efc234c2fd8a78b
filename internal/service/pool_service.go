package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/extralife/marketd/internal/domain"
)

// betLockTTL bounds how long one bet acceptance may hold a pool's lock.
const betLockTTL = 10 * time.Second

// PoolService owns the pool ledger: creating pools and accepting bets with
// their preconditions and atomic accumulator updates.
type PoolService struct {
	pools   domain.PoolStore
	bets    domain.BetStore
	audit   domain.AuditStore
	weights domain.WeightEngine
	locks   domain.LockManager
	bus     domain.SignalBus
	clock   domain.Clock

	minBet          decimal.Decimal
	allowCreatorBet bool
	logger          *slog.Logger
}

// NewPoolService creates a PoolService with all required dependencies.
func NewPoolService(
	pools domain.PoolStore,
	bets domain.BetStore,
	audit domain.AuditStore,
	weights domain.WeightEngine,
	locks domain.LockManager,
	bus domain.SignalBus,
	clock domain.Clock,
	minBet decimal.Decimal,
	allowCreatorBet bool,
	logger *slog.Logger,
) *PoolService {
	return &PoolService{
		pools:           pools,
		bets:            bets,
		audit:           audit,
		weights:         weights,
		locks:           locks,
		bus:             bus,
		clock:           clock,
		minBet:          minBet,
		allowCreatorBet: allowCreatorBet,
		logger:          logger.With(slog.String("component", "pool_service")),
	}
}

func poolLockKey(chain string, id uint64) string {
	return fmt.Sprintf("pool:%s:%d", chain, id)
}

// CreatePool records a new pool. The creator's deposit is held apart from
// bettor principal; it never enters the accumulators.
func (s *PoolService) CreatePool(ctx context.Context, p *domain.Pool) error {
	if p.Question == "" {
		return fmt.Errorf("pool_service: create pool: question must not be empty")
	}
	if !p.BettingEndTime.After(p.CreatedAt) {
		return fmt.Errorf("pool_service: create pool: %w", domain.ErrInvalidBetTiming)
	}
	p.Creator = strings.ToLower(p.Creator)
	if p.TotalPrincipal.IsZero() {
		p.TotalPrincipal = decimal.Zero
		p.YesPrincipal = decimal.Zero
		p.NoPrincipal = decimal.Zero
		p.TotalYesWeight = decimal.Zero
		p.TotalNoWeight = decimal.Zero
	}

	if err := s.pools.CreatePool(ctx, p); err != nil {
		return fmt.Errorf("pool_service: create pool: %w", err)
	}

	s.publish(ctx, domain.PoolEvent{
		Type:      domain.EventPoolCreated,
		Chain:     p.Chain,
		PoolID:    p.ID,
		Timestamp: s.clock.Now(),
	})
	s.auditLog(ctx, p.Chain, p.ID, domain.EventPoolCreated, p.Creator,
		fmt.Sprintf("question=%q end=%s", p.Question, p.BettingEndTime.Format(time.RFC3339)))

	s.logger.InfoContext(ctx, "pool created",
		slog.String("chain", p.Chain),
		slog.Uint64("pool_id", p.ID),
		slog.String("creator", p.Creator),
	)
	return nil
}

// AcceptBet validates a bet against the pool's state, computes its
// time-weighted score, and applies it to the ledger. The per-pool lock
// serializes concurrent bets so the accumulators move under one writer at
// a time.
//
// Preconditions, checked in order: positive principal above the minimum,
// pool exists and is live, bettor is not the creator (unless configured
// otherwise), and the bettor has no prior bet on this pool.
func (s *PoolService) AcceptBet(ctx context.Context, chain string, poolID uint64, bettor string, principal decimal.Decimal, side bool) (*domain.Bet, error) {
	bettor = strings.ToLower(bettor)

	if principal.Sign() <= 0 {
		return nil, domain.ErrZeroAmount
	}
	if principal.LessThan(s.minBet) {
		return nil, fmt.Errorf("pool_service: principal below minimum %s: %w", s.minBet, domain.ErrZeroAmount)
	}

	unlock, err := s.locks.Acquire(ctx, poolLockKey(chain, poolID), betLockTTL)
	if err != nil {
		return nil, fmt.Errorf("pool_service: accept bet: %w", err)
	}
	defer unlock()

	pool, err := s.pools.GetPool(ctx, chain, poolID)
	if err != nil {
		return nil, fmt.Errorf("pool_service: accept bet: %w", err)
	}

	now := s.clock.Now()
	if !pool.IsLive(now) {
		return nil, domain.ErrBettingClosed
	}
	if !s.allowCreatorBet && bettor == pool.Creator {
		return nil, domain.ErrSelfBetNotAllowed
	}

	weight, err := s.weights.Weight(principal, now, pool.CreatedAt, pool.BettingEndTime)
	if err != nil {
		return nil, fmt.Errorf("pool_service: accept bet: %w", err)
	}

	bet := &domain.Bet{
		PoolID:    poolID,
		Chain:     chain,
		Bettor:    bettor,
		Principal: principal,
		Side:      side,
		Weight:    weight,
		PlacedAt:  now,
	}

	if err := s.pools.AccumulateBet(ctx, bet); err != nil {
		return nil, fmt.Errorf("pool_service: accept bet: %w", err)
	}

	s.publish(ctx, domain.PoolEvent{
		Type:      domain.EventBetPlaced,
		Chain:     chain,
		PoolID:    poolID,
		Bettor:    bettor,
		Amount:    principal,
		Side:      &side,
		Timestamp: now,
	})
	s.auditLog(ctx, chain, poolID, domain.EventBetPlaced, bettor,
		fmt.Sprintf("principal=%s side=%s weight=%s", principal, bet.SideString(), weight))

	s.logger.InfoContext(ctx, "bet accepted",
		slog.String("chain", chain),
		slog.Uint64("pool_id", poolID),
		slog.String("bettor", bettor),
		slog.String("principal", principal.String()),
		slog.String("side", bet.SideString()),
	)
	return bet, nil
}

// GetPool returns a single pool.
func (s *PoolService) GetPool(ctx context.Context, chain string, id uint64) (*domain.Pool, error) {
	pool, err := s.pools.GetPool(ctx, chain, id)
	if err != nil {
		return nil, fmt.Errorf("pool_service: get pool: %w", err)
	}
	return pool, nil
}

// ListPools returns pools matching the filter.
func (s *PoolService) ListPools(ctx context.Context, f domain.PoolFilter, opts domain.ListOpts) ([]domain.Pool, error) {
	pools, err := s.pools.ListPools(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("pool_service: list pools: %w", err)
	}
	return pools, nil
}

// PoolCount returns the number of pools mirrored for a chain.
func (s *PoolService) PoolCount(ctx context.Context, chain string) (uint64, error) {
	n, err := s.pools.CountPools(ctx, chain)
	if err != nil {
		return 0, fmt.Errorf("pool_service: count pools: %w", err)
	}
	return n, nil
}

// ListBets returns all bets on a pool, earliest first.
func (s *PoolService) ListBets(ctx context.Context, chain string, poolID uint64) ([]domain.Bet, error) {
	bets, err := s.bets.ListBetsByPool(ctx, chain, poolID)
	if err != nil {
		return nil, fmt.Errorf("pool_service: list bets: %w", err)
	}
	return bets, nil
}

// publish sends a lifecycle event; failures are logged, never fatal.
func (s *PoolService) publish(ctx context.Context, ev domain.PoolEvent) {
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("type", ev.Type),
			slog.Uint64("pool_id", ev.PoolID),
			slog.String("error", err.Error()),
		)
	}
}

// auditLog appends an audit record; failures are logged, never fatal.
func (s *PoolService) auditLog(ctx context.Context, chain string, poolID uint64, event, actor, detail string) {
	rec := &domain.AuditRecord{
		Chain:  chain,
		PoolID: poolID,
		Event:  event,
		Actor:  actor,
		Detail: detail,
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "audit append failed",
			slog.String("event", event),
			slog.Uint64("pool_id", poolID),
			slog.String("error", err.Error()),
		)
	}
}
