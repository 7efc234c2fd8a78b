package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extralife/marketd/internal/domain"
)

func newYieldService(store *memStore, cache *memApyCache, authority *fakeAuthority, oracle *fakeRateOracle, clock *fakeClock) *YieldService {
	return NewYieldService(
		store, cache,
		map[string]domain.MarketAuthority{testChain: authority},
		map[string]domain.YieldRateOracle{testChain: oracle},
		map[string]domain.YieldProjector{testChain: domain.NewYieldProjector(domain.DefaultSplit(), 6)},
		clock,
		decimal.RequireFromString("3.5"),
		testLogger(),
	)
}

func TestCurrentAPYPrefersOracle(t *testing.T) {
	cache := newMemApyCache()
	oracle := &fakeRateOracle{apy: decimal.RequireFromString("4.2")}
	svc := newYieldService(newMemStore(), cache, &fakeAuthority{}, oracle, &fakeClock{now: time.Now()})
	ctx := context.Background()

	apy := svc.CurrentAPY(ctx, testChain)
	assert.Equal(t, "4.2", apy.String())

	// The observation is cached for the degraded path.
	cached, err := cache.GetAPY(ctx, testChain)
	require.NoError(t, err)
	assert.Equal(t, "4.2", cached.String())
}

func TestCurrentAPYFallsBackToCacheThenDefault(t *testing.T) {
	cache := newMemApyCache()
	oracle := &fakeRateOracle{err: fmt.Errorf("rpc unavailable")}
	svc := newYieldService(newMemStore(), cache, &fakeAuthority{}, oracle, &fakeClock{now: time.Now()})
	ctx := context.Background()

	// Nothing cached yet: the configured fallback applies.
	assert.Equal(t, "3.5", svc.CurrentAPY(ctx, testChain).String())

	require.NoError(t, cache.SetAPY(ctx, testChain, decimal.RequireFromString("5.1"), 0))
	assert.Equal(t, "5.1", svc.CurrentAPY(ctx, testChain).String())
}

func TestProjectPoolLive(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	oracle := &fakeRateOracle{apy: decimal.RequireFromString("3.5")}
	svc := newYieldService(store, newMemApyCache(), &fakeAuthority{}, oracle, clock)
	ctx := context.Background()

	require.NoError(t, store.CreatePool(ctx, &domain.Pool{
		ID: 1, Chain: testChain, Question: "q",
		Creator:          "0xcccc000000000000000000000000000000000000",
		CreatedAt:        clock.Now(),
		BettingEndTime:   clock.Now().Add(24 * time.Hour),
		TotalPrincipal:   decimal.NewFromInt(10000),
		YesPrincipal:     decimal.NewFromInt(10000),
		CreatorPrincipal: decimal.NewFromInt(500),
	}))

	proj, err := svc.ProjectPool(ctx, testChain, 1)
	require.NoError(t, err)
	assert.False(t, proj.Settled)
	assert.True(t, proj.Total.Sign() > 0)
	assert.True(t, proj.PrizePool.Add(proj.CreatorReward).Equal(proj.Total))
}

func TestProjectPoolIncludesAccruedYield(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	authority := &fakeAuthority{accrued: decimal.RequireFromString("12.345678")}
	oracle := &fakeRateOracle{apy: decimal.RequireFromString("3.5")}
	svc := newYieldService(store, newMemApyCache(), authority, oracle, clock)
	ctx := context.Background()

	// Betting ended, resolution pending: nothing is left to extrapolate,
	// so the projection is exactly what the pool has earned so far.
	require.NoError(t, store.CreatePool(ctx, &domain.Pool{
		ID: 1, Chain: testChain, Question: "q",
		Creator:          "0xcccc000000000000000000000000000000000000",
		CreatedAt:        clock.Now().Add(-30 * 24 * time.Hour),
		BettingEndTime:   clock.Now().Add(-time.Hour),
		TotalPrincipal:   decimal.NewFromInt(10000),
		YesPrincipal:     decimal.NewFromInt(10000),
		CreatorPrincipal: decimal.NewFromInt(500),
	}))

	proj, err := svc.ProjectPool(ctx, testChain, 1)
	require.NoError(t, err)
	assert.False(t, proj.Settled)
	assert.Equal(t, "12.345678", proj.Total.String())
	assert.Equal(t, "7.407407", proj.PrizePool.String())
	assert.Equal(t, "4.938271", proj.CreatorReward.String())
}

func TestProjectPoolAccruedPlusRemaining(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	accrued := decimal.RequireFromString("2.5")
	authority := &fakeAuthority{accrued: accrued}
	oracle := &fakeRateOracle{apy: decimal.RequireFromString("3.5")}
	svc := newYieldService(store, newMemApyCache(), authority, oracle, clock)
	ctx := context.Background()

	require.NoError(t, store.CreatePool(ctx, &domain.Pool{
		ID: 1, Chain: testChain, Question: "q",
		Creator:          "0xcccc000000000000000000000000000000000000",
		CreatedAt:        clock.Now().Add(-12 * time.Hour),
		BettingEndTime:   clock.Now().Add(12 * time.Hour),
		TotalPrincipal:   decimal.NewFromInt(10000),
		YesPrincipal:     decimal.NewFromInt(10000),
		CreatorPrincipal: decimal.NewFromInt(500),
	}))

	proj, err := svc.ProjectPool(ctx, testChain, 1)
	require.NoError(t, err)
	// Half the window remains: earned yield plus a positive extrapolation.
	assert.True(t, proj.Total.GreaterThan(accrued))
}

func TestProjectPoolDegradesWhenAccruedUnreadable(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	authority := &fakeAuthority{accruedErr: fmt.Errorf("rpc unavailable")}
	oracle := &fakeRateOracle{apy: decimal.RequireFromString("3.5")}
	svc := newYieldService(store, newMemApyCache(), authority, oracle, clock)
	ctx := context.Background()

	require.NoError(t, store.CreatePool(ctx, &domain.Pool{
		ID: 1, Chain: testChain, Question: "q",
		Creator:          "0xcccc000000000000000000000000000000000000",
		CreatedAt:        clock.Now(),
		BettingEndTime:   clock.Now().Add(24 * time.Hour),
		TotalPrincipal:   decimal.NewFromInt(10000),
		YesPrincipal:     decimal.NewFromInt(10000),
		CreatorPrincipal: decimal.NewFromInt(500),
	}))

	proj, err := svc.ProjectPool(ctx, testChain, 1)
	require.NoError(t, err)
	assert.True(t, proj.Total.Sign() > 0)
}

func TestProjectPoolResolvedUsesSettledYield(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	// Oracle would give a wildly different figure; it must be ignored.
	oracle := &fakeRateOracle{apy: decimal.NewFromInt(99)}
	svc := newYieldService(store, newMemApyCache(), &fakeAuthority{}, oracle, clock)
	ctx := context.Background()

	require.NoError(t, store.CreatePool(ctx, &domain.Pool{
		ID: 1, Chain: testChain, Question: "q",
		Creator:        "0xcccc000000000000000000000000000000000000",
		CreatedAt:      clock.Now().Add(-2 * time.Hour),
		BettingEndTime: clock.Now().Add(-time.Hour),
	}))
	require.NoError(t, store.Resolve(ctx, testChain, 1, domain.SideYes,
		decimal.RequireFromString("0.2877")))

	proj, err := svc.ProjectPool(ctx, testChain, 1)
	require.NoError(t, err)
	assert.True(t, proj.Settled)
	assert.Equal(t, "0.2877", proj.Total.String())
	assert.Equal(t, "0.17262", proj.PrizePool.String())
	assert.Equal(t, "0.11508", proj.CreatorReward.String())
}
