package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/extralife/marketd/internal/domain"
)

// settleLockTTL bounds how long one settlement may hold a pool's lock. It
// covers the oracle query and the on-chain transaction.
const settleLockTTL = 2 * time.Minute

// ResolutionService drives pools through the one-way resolution lifecycle:
// requestResolution after the betting window closes, settleResolution after
// the liveness window elapses.
type ResolutionService struct {
	pools domain.PoolStore
	audit domain.AuditStore
	locks domain.LockManager
	bus   domain.SignalBus
	clock domain.Clock

	authorities map[string]domain.MarketAuthority
	oracle      domain.OutcomeOracle
	liveness    time.Duration
	logger      *slog.Logger
}

// NewResolutionService creates a ResolutionService. authorities maps chain
// name to that chain's market contract.
func NewResolutionService(
	pools domain.PoolStore,
	audit domain.AuditStore,
	locks domain.LockManager,
	bus domain.SignalBus,
	clock domain.Clock,
	authorities map[string]domain.MarketAuthority,
	oracle domain.OutcomeOracle,
	liveness time.Duration,
	logger *slog.Logger,
) *ResolutionService {
	return &ResolutionService{
		pools:       pools,
		audit:       audit,
		locks:       locks,
		bus:         bus,
		clock:       clock,
		authorities: authorities,
		oracle:      oracle,
		liveness:    liveness,
		logger:      logger.With(slog.String("component", "resolution_service")),
	}
}

// RequestResolution opens the liveness window for a pool. Callable by anyone
// once the betting window has closed; a second request fails instead of
// restarting the clock.
func (s *ResolutionService) RequestResolution(ctx context.Context, chain string, poolID uint64, actor string) error {
	unlock, err := s.locks.Acquire(ctx, poolLockKey(chain, poolID), settleLockTTL)
	if err != nil {
		return fmt.Errorf("resolution_service: request: %w", err)
	}
	defer unlock()

	pool, err := s.pools.GetPool(ctx, chain, poolID)
	if err != nil {
		return fmt.Errorf("resolution_service: request: %w", err)
	}

	now := s.clock.Now()
	if pool.Resolved {
		return domain.ErrAlreadyResolved
	}
	if pool.ResolutionRequestedAt != nil {
		return domain.ErrAlreadyRequested
	}
	if !pool.BettingEnded(now) {
		return domain.ErrBettingStillOpen
	}

	if err := s.pools.MarkResolutionRequested(ctx, chain, poolID, now); err != nil {
		return fmt.Errorf("resolution_service: request: %w", err)
	}

	s.publish(ctx, domain.PoolEvent{
		Type:      domain.EventResolutionRequested,
		Chain:     chain,
		PoolID:    poolID,
		Timestamp: now,
	})
	s.auditLog(ctx, chain, poolID, domain.EventResolutionRequested, actor,
		fmt.Sprintf("requested_at=%s liveness=%s", now.Format(time.RFC3339), s.liveness))

	s.logger.InfoContext(ctx, "resolution requested",
		slog.String("chain", chain),
		slog.Uint64("pool_id", poolID),
	)
	return nil
}

// SettleResolution finalizes a pool once its liveness window has elapsed:
// it asks the outcome oracle for the answer, submits the resolution to the
// chain's market contract, and records the outcome together with the
// contract's settled yield figure.
func (s *ResolutionService) SettleResolution(ctx context.Context, chain string, poolID uint64, actor string) error {
	authority, ok := s.authorities[chain]
	if !ok {
		return fmt.Errorf("resolution_service: settle: unknown chain %q", chain)
	}

	unlock, err := s.locks.Acquire(ctx, poolLockKey(chain, poolID), settleLockTTL)
	if err != nil {
		return fmt.Errorf("resolution_service: settle: %w", err)
	}
	defer unlock()

	pool, err := s.pools.GetPool(ctx, chain, poolID)
	if err != nil {
		return fmt.Errorf("resolution_service: settle: %w", err)
	}

	now := s.clock.Now()
	if pool.Resolved {
		return domain.ErrAlreadyResolved
	}
	if pool.ResolutionRequestedAt == nil {
		return domain.ErrNotRequested
	}
	if !pool.CanSettle(now, s.liveness) {
		return domain.ErrLivenessNotElapsed
	}

	outcome, err := s.oracle.Outcome(ctx, *pool)
	if err != nil {
		return fmt.Errorf("resolution_service: settle: oracle: %w", domain.ErrExternal)
	}

	txHash, err := authority.SubmitResolution(ctx, poolID, outcome)
	if err != nil {
		return fmt.Errorf("resolution_service: settle: submit: %w", domain.ErrExternal)
	}

	settledYield, err := authority.SettledYield(ctx, poolID)
	if err != nil {
		return fmt.Errorf("resolution_service: settle: yield: %w", domain.ErrExternal)
	}

	if err := s.pools.Resolve(ctx, chain, poolID, outcome, settledYield); err != nil {
		return fmt.Errorf("resolution_service: settle: %w", err)
	}

	s.publish(ctx, domain.PoolEvent{
		Type:      domain.EventPoolResolved,
		Chain:     chain,
		PoolID:    poolID,
		Outcome:   &outcome,
		Timestamp: now,
	})
	s.auditLog(ctx, chain, poolID, domain.EventPoolResolved, actor,
		fmt.Sprintf("outcome=%t settled_yield=%s tx=%s", outcome, settledYield, txHash))

	s.logger.InfoContext(ctx, "pool settled",
		slog.String("chain", chain),
		slog.Uint64("pool_id", poolID),
		slog.Bool("outcome", outcome),
		slog.String("tx", txHash),
	)
	return nil
}

// SettleDue finds pools whose liveness window has elapsed and settles each
// one. Terminal per-pool failures are logged and skipped so one stuck pool
// never blocks the rest.
func (s *ResolutionService) SettleDue(ctx context.Context, chain string) error {
	resolved := false
	pools, err := s.pools.ListPools(ctx, domain.PoolFilter{Chain: chain, Resolved: &resolved}, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("resolution_service: settle due: %w", err)
	}

	now := s.clock.Now()
	for _, pool := range pools {
		if !pool.CanSettle(now, s.liveness) {
			continue
		}
		if err := s.SettleResolution(ctx, chain, pool.ID, "settler"); err != nil {
			s.logger.WarnContext(ctx, "settle failed",
				slog.String("chain", chain),
				slog.Uint64("pool_id", pool.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (s *ResolutionService) publish(ctx context.Context, ev domain.PoolEvent) {
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("type", ev.Type),
			slog.Uint64("pool_id", ev.PoolID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ResolutionService) auditLog(ctx context.Context, chain string, poolID uint64, event, actor, detail string) {
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
