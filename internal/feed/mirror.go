// Package feed mirrors on-chain market state into the local store. The
// contract is the source of truth; the mirror replays its logs so reads and
// settlement sweeps never need an RPC round trip.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/extralife/marketd/internal/domain"
)

// Mirror applies decoded chain events to the local pool and bet stores.
// Every apply path tolerates replays: the poller delivers at-least-once.
type Mirror struct {
	chain     string
	authority domain.MarketAuthority
	pools     domain.PoolStore
	bets      domain.BetStore
	weights   domain.WeightEngine
	logger    *slog.Logger
}

// NewMirror creates a Mirror for one chain.
func NewMirror(
	chainName string,
	authority domain.MarketAuthority,
	pools domain.PoolStore,
	bets domain.BetStore,
	weights domain.WeightEngine,
	logger *slog.Logger,
) *Mirror {
	return &Mirror{
		chain:     chainName,
		authority: authority,
		pools:     pools,
		bets:      bets,
		weights:   weights,
		logger:    logger.With(slog.String("component", "mirror"), slog.String("chain", chainName)),
	}
}

// Backfill mirrors every pool the contract knows about. Existing rows are
// left untouched, so it is safe to run on every startup.
func (m *Mirror) Backfill(ctx context.Context) error {
	count, err := m.authority.PoolCount(ctx)
	if err != nil {
		return fmt.Errorf("feed: backfill %s: %w", m.chain, err)
	}

	for id := uint64(0); id < count; id++ {
		p, err := m.authority.FetchPool(ctx, id)
		if err != nil {
			return fmt.Errorf("feed: backfill %s pool %d: %w", m.chain, id, err)
		}
		if err := m.pools.CreatePool(ctx, p); err != nil {
			return fmt.Errorf("feed: backfill %s pool %d: %w", m.chain, id, err)
		}
	}

	m.logger.Info("backfill complete", slog.Uint64("pools", count))
	return nil
}

// Apply mirrors one event at the given block time. Events already reflected
// in the store are no-ops.
func (m *Mirror) Apply(ctx context.Context, ev domain.ChainEvent, at time.Time) error {
	pe := ev.Event

	switch pe.Type {
	case domain.EventPoolCreated:
		p, err := m.authority.FetchPool(ctx, pe.PoolID)
		if err != nil {
			return fmt.Errorf("feed: mirror pool %d: %w", pe.PoolID, err)
		}
		return m.pools.CreatePool(ctx, p)

	case domain.EventBetPlaced:
		return m.applyBet(ctx, pe, at)

	case domain.EventResolutionRequested:
		err := m.pools.MarkResolutionRequested(ctx, m.chain, pe.PoolID, at)
		if errors.Is(err, domain.ErrAlreadyRequested) || errors.Is(err, domain.ErrAlreadyResolved) {
			return nil
		}
		return err

	case domain.EventPoolResolved:
		if pe.Outcome == nil {
			return fmt.Errorf("feed: resolved event %s without outcome", ev.ID)
		}
		yield, err := m.authority.SettledYield(ctx, pe.PoolID)
		if err != nil {
			return fmt.Errorf("feed: settled yield pool %d: %w", pe.PoolID, err)
		}
		err = m.pools.Resolve(ctx, m.chain, pe.PoolID, *pe.Outcome, yield)
		if errors.Is(err, domain.ErrAlreadyResolved) {
			return nil
		}
		return err

	case domain.EventPayoutClaimed:
		return m.applyClaim(ctx, pe)
	}

	m.logger.Warn("unknown event type", slog.String("type", pe.Type), slog.String("event_id", ev.ID))
	return nil
}

func (m *Mirror) applyBet(ctx context.Context, pe domain.PoolEvent, at time.Time) error {
	if pe.Side == nil {
		return fmt.Errorf("feed: bet event on pool %d without side", pe.PoolID)
	}

	p, err := m.pools.GetPool(ctx, m.chain, pe.PoolID)
	if errors.Is(err, domain.ErrNotFound) {
		// Bet observed before its pool: mirror the pool first.
		p, err = m.authority.FetchPool(ctx, pe.PoolID)
		if err != nil {
			return fmt.Errorf("feed: mirror pool %d for bet: %w", pe.PoolID, err)
		}
		if err := m.pools.CreatePool(ctx, p); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	weight, err := m.weights.Weight(pe.Amount, at, p.CreatedAt, p.BettingEndTime)
	if err != nil {
		// The contract accepted the bet, so a timing rejection here means
		// block-time skew. Record the bet with its principal as weight.
		m.logger.Warn("bet weight fell back to principal",
			slog.Uint64("pool_id", pe.PoolID),
			slog.String("bettor", pe.Bettor),
			slog.String("error", err.Error()),
		)
		weight = pe.Amount
	}

	err = m.pools.AccumulateBet(ctx, &domain.Bet{
		PoolID:    pe.PoolID,
		Chain:     m.chain,
		Bettor:    pe.Bettor,
		Principal: pe.Amount,
		Side:      *pe.Side,
		Weight:    weight,
		PlacedAt:  at,
	})
	if errors.Is(err, domain.ErrDuplicateBet) {
		return nil
	}
	return err
}

func (m *Mirror) applyClaim(ctx context.Context, pe domain.PoolEvent) error {
	err := m.bets.MarkClaimed(ctx, m.chain, pe.PoolID, pe.Bettor)
	if err == nil || errors.Is(err, domain.ErrAlreadyClaimed) {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	// No bet row: the claimer may be the creator collecting the reward.
	p, perr := m.pools.GetPool(ctx, m.chain, pe.PoolID)
	if perr != nil {
		return perr
	}
	if p.Creator != pe.Bettor {
		m.logger.Warn("claim for unknown bettor",
			slog.Uint64("pool_id", pe.PoolID),
			slog.String("claimer", pe.Bettor),
		)
		return nil
	}
	err = m.pools.MarkCreatorClaimed(ctx, m.chain, pe.PoolID)
	if errors.Is(err, domain.ErrAlreadyClaimed) {
		return nil
	}
	return err
}
