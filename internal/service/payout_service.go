package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/extralife/marketd/internal/domain"
)

// PayoutService computes and records claims on resolved pools. Claims are
// idempotent: the claimed flag flips exactly once via compare-and-set, so
// racing duplicate claims collapse to one payout and the rest fail with
// ErrAlreadyClaimed.
type PayoutService struct {
	pools domain.PoolStore
	bets  domain.BetStore
	audit domain.AuditStore
	bus   domain.SignalBus
	clock domain.Clock

	// Per-chain math, since asset precision differs by deployment.
	calculators map[string]domain.PayoutCalculator
	projectors  map[string]domain.YieldProjector

	logger *slog.Logger
}

// NewPayoutService creates a PayoutService. calculators and projectors map
// chain name to that chain's asset-precision math.
func NewPayoutService(
	pools domain.PoolStore,
	bets domain.BetStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	clock domain.Clock,
	calculators map[string]domain.PayoutCalculator,
	projectors map[string]domain.YieldProjector,
	logger *slog.Logger,
) *PayoutService {
	return &PayoutService{
		pools:       pools,
		bets:        bets,
		audit:       audit,
		bus:         bus,
		clock:       clock,
		calculators: calculators,
		projectors:  projectors,
		logger:      logger.With(slog.String("component", "payout_service")),
	}
}

func (s *PayoutService) chainMath(chain string) (domain.PayoutCalculator, domain.YieldProjector, error) {
	calc, ok := s.calculators[chain]
	if !ok {
		return domain.PayoutCalculator{}, domain.YieldProjector{}, fmt.Errorf("payout_service: unknown chain %q", chain)
	}
	return calc, s.projectors[chain], nil
}

// PreviewPayout computes what a bettor would receive from a resolved pool
// without recording a claim.
func (s *PayoutService) PreviewPayout(ctx context.Context, chain string, poolID uint64, bettor string) (*domain.Payout, error) {
	bettor = strings.ToLower(bettor)

	calc, projector, err := s.chainMath(chain)
	if err != nil {
		return nil, err
	}

	pool, err := s.pools.GetPool(ctx, chain, poolID)
	if err != nil {
		return nil, fmt.Errorf("payout_service: preview: %w", err)
	}
	bet, err := s.bets.GetBet(ctx, chain, poolID, bettor)
	if err != nil {
		return nil, fmt.Errorf("payout_service: preview: %w", err)
	}

	split := projector.Settled(pool.SettledYield)
	payout, err := calc.BettorPayout(*pool, *bet, split.PrizePool)
	if err != nil {
		return nil, fmt.Errorf("payout_service: preview: %w", err)
	}
	return &payout, nil
}

// ClaimPayout records a bettor's claim on a resolved pool and returns the
// amount owed. The claimed flag is flipped first; if another claim already
// won the race this fails with ErrAlreadyClaimed and pays nothing.
func (s *PayoutService) ClaimPayout(ctx context.Context, chain string, poolID uint64, bettor string) (*domain.Payout, error) {
	bettor = strings.ToLower(bettor)

	calc, projector, err := s.chainMath(chain)
	if err != nil {
		return nil, err
	}

	pool, err := s.pools.GetPool(ctx, chain, poolID)
	if err != nil {
		return nil, fmt.Errorf("payout_service: claim: %w", err)
	}
	if !pool.Resolved {
		return nil, domain.ErrNotResolved
	}
	bet, err := s.bets.GetBet(ctx, chain, poolID, bettor)
	if err != nil {
		return nil, fmt.Errorf("payout_service: claim: %w", err)
	}

	split := projector.Settled(pool.SettledYield)
	payout, err := calc.BettorPayout(*pool, *bet, split.PrizePool)
	if err != nil {
		return nil, fmt.Errorf("payout_service: claim: %w", err)
	}

	// Compare-and-set: exactly one claim wins.
	if err := s.bets.MarkClaimed(ctx, chain, poolID, bettor); err != nil {
		return nil, fmt.Errorf("payout_service: claim: %w", err)
	}

	now := s.clock.Now()
	s.publish(ctx, domain.PoolEvent{
		Type:      domain.EventPayoutClaimed,
		Chain:     chain,
		PoolID:    poolID,
		Bettor:    bettor,
		Amount:    payout.Total,
		Timestamp: now,
	})
	s.auditLog(ctx, chain, poolID, domain.EventPayoutClaimed, bettor,
		fmt.Sprintf("principal=%s yield_share=%s won=%t", payout.Principal, payout.YieldShare, payout.Won))

	s.logger.InfoContext(ctx, "payout claimed",
		slog.String("chain", chain),
		slog.Uint64("pool_id", poolID),
		slog.String("bettor", bettor),
		slog.String("total", payout.Total.String()),
		slog.Bool("won", payout.Won),
	)
	return &payout, nil
}

// ClaimCreator records the creator's claim: their own deposit back plus the
// creator share of the settled yield. Only the pool's creator may claim, and
// only once.
func (s *PayoutService) ClaimCreator(ctx context.Context, chain string, poolID uint64, actor string) (*domain.Payout, error) {
	actor = strings.ToLower(actor)

	calc, projector, err := s.chainMath(chain)
	if err != nil {
		return nil, err
	}

	pool, err := s.pools.GetPool(ctx, chain, poolID)
	if err != nil {
		return nil, fmt.Errorf("payout_service: creator claim: %w", err)
	}
	if !pool.Resolved {
		return nil, domain.ErrNotResolved
	}
	if actor != pool.Creator {
		return nil, fmt.Errorf("payout_service: creator claim: %s is not the creator: %w", actor, domain.ErrNotFound)
	}

	split := projector.Settled(pool.SettledYield)
	payout, err := calc.CreatorPayout(*pool, split.CreatorReward)
	if err != nil {
		return nil, fmt.Errorf("payout_service: creator claim: %w", err)
	}

	if err := s.pools.MarkCreatorClaimed(ctx, chain, poolID); err != nil {
		return nil, fmt.Errorf("payout_service: creator claim: %w", err)
	}

	now := s.clock.Now()
	s.publish(ctx, domain.PoolEvent{
		Type:      domain.EventPayoutClaimed,
		Chain:     chain,
		PoolID:    poolID,
		Bettor:    actor,
		Amount:    payout.Total,
		Timestamp: now,
	})
	s.auditLog(ctx, chain, poolID, domain.EventPayoutClaimed, actor,
		fmt.Sprintf("creator_principal=%s creator_reward=%s", payout.Principal, payout.YieldShare))

	s.logger.InfoContext(ctx, "creator payout claimed",
		slog.String("chain", chain),
		slog.Uint64("pool_id", poolID),
		slog.String("creator", actor),
		slog.String("total", payout.Total.String()),
	)
	return &payout, nil
}

func (s *PayoutService) publish(ctx context.Context, ev domain.PoolEvent) {
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("type", ev.Type),
			slog.Uint64("pool_id", ev.PoolID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *PayoutService) auditLog(ctx context.Context, chain string, poolID uint64, event, actor, detail string) {
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
