package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/extralife/marketd/internal/domain"
)

// apyCacheTTL is how long an oracle-observed rate stays fresh. Past the TTL
// the next read falls through to the oracle again.
const apyCacheTTL = 10 * time.Minute

// YieldService produces display yield projections for live pools. Rates come
// from the chain's rate oracle, cached in Redis; when both the oracle and
// the cache fail, a configured fallback rate keeps projections rendering.
type YieldService struct {
	pools       domain.PoolStore
	cache       domain.ApyCache
	authorities map[string]domain.MarketAuthority
	oracles     map[string]domain.YieldRateOracle
	projectors  map[string]domain.YieldProjector
	clock       domain.Clock
	fallbackAPY decimal.Decimal
	logger      *slog.Logger
}

// NewYieldService creates a YieldService. authorities, oracles and
// projectors map chain name to that chain's yield source, rate source and
// split math.
func NewYieldService(
	pools domain.PoolStore,
	cache domain.ApyCache,
	authorities map[string]domain.MarketAuthority,
	oracles map[string]domain.YieldRateOracle,
	projectors map[string]domain.YieldProjector,
	clock domain.Clock,
	fallbackAPY decimal.Decimal,
	logger *slog.Logger,
) *YieldService {
	return &YieldService{
		pools:       pools,
		cache:       cache,
		authorities: authorities,
		oracles:     oracles,
		projectors:  projectors,
		clock:       clock,
		fallbackAPY: fallbackAPY,
		logger:      logger.With(slog.String("component", "yield_service")),
	}
}

// CurrentAPY returns the rate used for projections on a chain: the oracle's
// live rate when reachable, the last cached observation otherwise, and the
// configured fallback when neither exists.
func (s *YieldService) CurrentAPY(ctx context.Context, chain string) decimal.Decimal {
	if oracle, ok := s.oracles[chain]; ok {
		apy, err := oracle.CurrentAPY(ctx)
		if err == nil && apy.Sign() > 0 {
			if cacheErr := s.cache.SetAPY(ctx, chain, apy, apyCacheTTL); cacheErr != nil {
				s.logger.WarnContext(ctx, "cache apy failed",
					slog.String("chain", chain),
					slog.String("error", cacheErr.Error()),
				)
			}
			return apy
		}
		if err != nil {
			s.logger.WarnContext(ctx, "rate oracle unreachable",
				slog.String("chain", chain),
				slog.String("error", err.Error()),
			)
		}
	}

	if apy, err := s.cache.GetAPY(ctx, chain); err == nil && apy.Sign() > 0 {
		return apy
	}

	return s.fallbackAPY
}

// ProjectPool estimates the total yield a live pool will have produced by
// its betting end, split into prize pool and creator shares. For resolved
// pools the settled figure is returned instead; projections never override
// settlement.
func (s *YieldService) ProjectPool(ctx context.Context, chain string, poolID uint64) (*domain.YieldProjection, error) {
	projector, ok := s.projectors[chain]
	if !ok {
		return nil, fmt.Errorf("yield_service: unknown chain %q", chain)
	}

	pool, err := s.pools.GetPool(ctx, chain, poolID)
	if err != nil {
		return nil, fmt.Errorf("yield_service: project: %w", err)
	}

	if pool.Resolved {
		proj := projector.Settled(pool.SettledYield)
		return &proj, nil
	}

	apy := s.CurrentAPY(ctx, chain)
	remaining := pool.TimeLeft(s.clock.Now())
	principal := pool.TotalPrincipal.Add(pool.CreatorPrincipal)
	accrued := s.accruedYield(ctx, chain, poolID)

	proj := projector.Project(principal, accrued, apy, remaining)
	return &proj, nil
}

// accruedYield reads the yield the pool has already earned from the chain
// authority. Authority failures degrade to zero accrued rather than failing
// the projection; the extrapolated remainder still renders.
func (s *YieldService) accruedYield(ctx context.Context, chain string, poolID uint64) decimal.Decimal {
	authority, ok := s.authorities[chain]
	if !ok {
		return decimal.Zero
	}

	accrued, err := authority.CurrentYield(ctx, poolID)
	if err != nil {
		s.logger.WarnContext(ctx, "accrued yield read failed",
			slog.String("chain", chain),
			slog.Uint64("pool_id", poolID),
			slog.String("error", err.Error()),
		)
		return decimal.Zero
	}
	return accrued
}
