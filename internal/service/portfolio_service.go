package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/extralife/marketd/internal/domain"
)

// PortfolioService assembles one address's positions across every
// configured chain: the pools they bet on and the pools they created.
// Chains are queried concurrently; a chain that fails is logged and
// omitted, so one dead RPC never blanks the whole page.
type PortfolioService struct {
	pools       domain.PoolStore
	bets        domain.BetStore
	identity    domain.IdentityResolver
	clock       domain.Clock
	chains      []string
	calculators map[string]domain.PayoutCalculator
	projectors  map[string]domain.YieldProjector
	logger      *slog.Logger
}

// NewPortfolioService creates a PortfolioService over the given chain names.
// calculators and projectors map chain name to that chain's payout and
// split math, used to price resolved positions.
func NewPortfolioService(
	pools domain.PoolStore,
	bets domain.BetStore,
	identity domain.IdentityResolver,
	clock domain.Clock,
	chains []string,
	calculators map[string]domain.PayoutCalculator,
	projectors map[string]domain.YieldProjector,
	logger *slog.Logger,
) *PortfolioService {
	return &PortfolioService{
		pools:       pools,
		bets:        bets,
		identity:    identity,
		clock:       clock,
		chains:      chains,
		calculators: calculators,
		projectors:  projectors,
		logger:      logger.With(slog.String("component", "portfolio_service")),
	}
}

// GetPortfolio gathers and merges the address's positions from all chains.
// The merge dedups on (chain, pool, bettor) and recomputes stats, so the
// result is independent of which chain answers first.
func (s *PortfolioService) GetPortfolio(ctx context.Context, address string) (*domain.Portfolio, error) {
	address = strings.ToLower(address)

	sources := make([][]domain.Position, len(s.chains))
	g, gctx := errgroup.WithContext(ctx)

	for i, chain := range s.chains {
		g.Go(func() error {
			positions, err := s.chainPositions(gctx, chain, address)
			if err != nil {
				// Degrade instead of failing the fan-out.
				s.logger.WarnContext(gctx, "chain positions unavailable",
					slog.String("chain", chain),
					slog.String("address", address),
					slog.String("error", err.Error()),
				)
				return nil
			}
			sources[i] = positions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pf := domain.BuildPortfolio(address, sources...)
	pf.DisplayName = s.identity.DisplayName(ctx, address)
	return &pf, nil
}

// chainPositions loads one chain's positions for the address: its bets,
// enriched with each pool's question, lifecycle state and resolved profit,
// plus an entry for every pool the address created.
func (s *PortfolioService) chainPositions(ctx context.Context, chain, address string) ([]domain.Position, error) {
	bets, err := s.bets.ListBetsByBettor(ctx, chain, address, domain.ListOpts{})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	positions := make([]domain.Position, 0, len(bets))
	for _, b := range bets {
		pos := domain.Position{
			PoolID:    b.PoolID,
			Chain:     chain,
			Bettor:    b.Bettor,
			Principal: b.Principal,
			Side:      b.Side,
			Weight:    b.Weight,
			PlacedAt:  b.PlacedAt,
			Claimed:   b.Claimed,
			Profit:    decimal.Zero,
		}

		pool, err := s.pools.GetPool(ctx, chain, b.PoolID)
		if err != nil {
			s.logger.WarnContext(ctx, "pool lookup failed for position",
				slog.String("chain", chain),
				slog.Uint64("pool_id", b.PoolID),
				slog.String("error", err.Error()),
			)
			pos.State = domain.StateOpen
		} else {
			pos.Question = pool.Question
			pos.State = pool.State(now)
			pos.Won = b.Won(*pool)
			pos.Profit = s.betProfit(ctx, chain, *pool, b)
		}

		positions = append(positions, pos)
	}

	created, err := s.createdPositions(ctx, chain, address, now)
	if err != nil {
		return nil, err
	}
	return append(positions, created...), nil
}

// createdPositions lists the pools the address created on one chain as
// portfolio entries: the creator deposit as principal, and the creator
// reward as profit once resolved.
func (s *PortfolioService) createdPositions(ctx context.Context, chain, address string, now time.Time) ([]domain.Position, error) {
	pools, err := s.pools.ListPools(ctx, domain.PoolFilter{Chain: chain, Creator: address}, domain.ListOpts{})
	if err != nil {
		return nil, err
	}

	positions := make([]domain.Position, 0, len(pools))
	for _, p := range pools {
		pos := domain.Position{
			PoolID:    p.ID,
			Chain:     chain,
			Question:  p.Question,
			Bettor:    p.Creator,
			Principal: p.CreatorPrincipal,
			PlacedAt:  p.CreatedAt,
			State:     p.State(now),
			Claimed:   p.CreatorClaimed,
			Created:   true,
			Profit:    decimal.Zero,
		}
		if p.Resolved {
			if projector, ok := s.projectors[chain]; ok {
				pos.Profit = projector.Settled(p.SettledYield).CreatorReward
			}
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// betProfit is the yield the bet earned on top of its principal: the
// winner's prize share once the pool resolves, zero otherwise.
func (s *PortfolioService) betProfit(ctx context.Context, chain string, p domain.Pool, b domain.Bet) decimal.Decimal {
	if !p.Resolved {
		return decimal.Zero
	}
	calc, ok := s.calculators[chain]
	if !ok {
		return decimal.Zero
	}
	projector, ok := s.projectors[chain]
	if !ok {
		return decimal.Zero
	}

	payout, err := calc.BettorPayout(p, b, projector.Settled(p.SettledYield).PrizePool)
	if err != nil {
		s.logger.WarnContext(ctx, "payout pricing failed for position",
			slog.String("chain", chain),
			slog.Uint64("pool_id", p.ID),
			slog.String("error", err.Error()),
		)
		return decimal.Zero
	}
	return payout.YieldShare
}
