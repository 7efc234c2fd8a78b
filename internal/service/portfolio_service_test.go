package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extralife/marketd/internal/domain"
)

func newPortfolioService(store *memStore, identity *fakeIdentity, clock *fakeClock, chains []string) *PortfolioService {
	calculators := make(map[string]domain.PayoutCalculator, len(chains))
	projectors := make(map[string]domain.YieldProjector, len(chains))
	for _, c := range chains {
		calculators[c] = domain.NewPayoutCalculator(6)
		projectors[c] = domain.NewYieldProjector(domain.DefaultSplit(), 6)
	}
	return NewPortfolioService(store, store, identity, clock, chains,
		calculators, projectors, testLogger())
}

func TestGetPortfolioMergesChains(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)}
	ctx := context.Background()
	addr := "0xaaaa000000000000000000000000000000000001"
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	seed := func(chain string, poolID uint64, resolved, outcome bool) {
		require.NoError(t, store.CreatePool(ctx, &domain.Pool{
			ID: poolID, Chain: chain, Question: "q",
			Creator:        "0xcccc000000000000000000000000000000000000",
			CreatedAt:      start, BettingEndTime: start.Add(time.Hour),
			Resolved:       resolved, Outcome: outcome,
		}))
		require.NoError(t, store.AccumulateBet(ctx, &domain.Bet{
			PoolID: poolID, Chain: chain, Bettor: addr,
			Principal: decimal.NewFromInt(10), Side: domain.SideYes,
			Weight: decimal.NewFromInt(12), PlacedAt: start,
		}))
	}
	seed("base-sepolia", 1, true, domain.SideYes)
	seed("base-sepolia", 2, false, false)
	seed("sepolia", 1, true, domain.SideNo)

	svc := newPortfolioService(store, &fakeIdentity{name: "alice.eth"}, clock,
		[]string{"base-sepolia", "sepolia"})

	pf, err := svc.GetPortfolio(ctx, addr)
	require.NoError(t, err)

	assert.Equal(t, "alice.eth", pf.DisplayName)
	assert.Len(t, pf.Positions, 3)
	assert.Equal(t, 3, pf.Stats.TotalPools)
	assert.Equal(t, 2, pf.Stats.ResolvedPools)
	assert.Equal(t, 1, pf.Stats.Wins)
	assert.Equal(t, 1, pf.Stats.Losses)
	assert.True(t, pf.Stats.TotalPrincipal.Equal(decimal.NewFromInt(30)))
}

func TestGetPortfolioCaseInsensitiveAddress(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)}
	ctx := context.Background()
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	addr := "0xaaaa000000000000000000000000000000000001"

	require.NoError(t, store.CreatePool(ctx, &domain.Pool{
		ID: 1, Chain: "base-sepolia", Question: "q",
		Creator:        "0xcccc000000000000000000000000000000000000",
		CreatedAt:      start, BettingEndTime: start.Add(time.Hour),
	}))
	require.NoError(t, store.AccumulateBet(ctx, &domain.Bet{
		PoolID: 1, Chain: "base-sepolia", Bettor: addr,
		Principal: decimal.NewFromInt(5), Side: domain.SideNo,
		Weight: decimal.NewFromInt(6), PlacedAt: start,
	}))

	svc := newPortfolioService(store, &fakeIdentity{}, clock, []string{"base-sepolia"})

	pf, err := svc.GetPortfolio(ctx, "0xAAAA000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Len(t, pf.Positions, 1)
}

func TestGetPortfolioIncludesCreatedPools(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)}
	ctx := context.Background()
	creator := "0xcafe000000000000000000000000000000000000"
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// The creator placed no bets; the portfolio must still show the pool.
	require.NoError(t, store.CreatePool(ctx, &domain.Pool{
		ID: 1, Chain: "base-sepolia", Question: "q",
		Creator:          creator,
		CreatedAt:        start, BettingEndTime: start.Add(48 * time.Hour),
		CreatorPrincipal: decimal.NewFromInt(500),
	}))

	svc := newPortfolioService(store, &fakeIdentity{}, clock, []string{"base-sepolia"})

	pf, err := svc.GetPortfolio(ctx, creator)
	require.NoError(t, err)

	require.Len(t, pf.Positions, 1)
	pos := pf.Positions[0]
	assert.True(t, pos.Created)
	assert.Equal(t, domain.StateOpen, pos.State)
	assert.True(t, pos.Principal.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, start, pos.PlacedAt)

	assert.Equal(t, 1, pf.Stats.TotalPools)
	assert.Equal(t, 1, pf.Stats.CreatedPools)
	assert.Equal(t, 0, pf.Stats.TotalBets)
	assert.True(t, pf.Stats.TotalPrincipal.Equal(decimal.NewFromInt(500)))
	assert.True(t, pf.Stats.WinRate.IsZero())
}

func TestGetPortfolioResolvedProfitAndWinRate(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)}
	ctx := context.Background()
	creator := "0xcafe000000000000000000000000000000000000"
	bettor := "0xaaaa000000000000000000000000000000000001"
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreatePool(ctx, &domain.Pool{
		ID: 1, Chain: "base-sepolia", Question: "q",
		Creator:          creator,
		CreatedAt:        start, BettingEndTime: start.Add(time.Hour),
		CreatorPrincipal: decimal.NewFromInt(500),
	}))
	require.NoError(t, store.AccumulateBet(ctx, &domain.Bet{
		PoolID: 1, Chain: "base-sepolia", Bettor: bettor,
		Principal: decimal.NewFromInt(100), Side: domain.SideYes,
		Weight: decimal.NewFromInt(120), PlacedAt: start,
	}))
	// Settled yield 10 splits 6 to the prize pool, 4 to the creator.
	require.NoError(t, store.Resolve(ctx, "base-sepolia", 1, domain.SideYes,
		decimal.NewFromInt(10)))

	svc := newPortfolioService(store, &fakeIdentity{}, clock, []string{"base-sepolia"})

	// The sole winner takes the whole prize pool.
	pf, err := svc.GetPortfolio(ctx, bettor)
	require.NoError(t, err)
	require.Len(t, pf.Positions, 1)
	assert.True(t, pf.Positions[0].Won)
	assert.Equal(t, "6", pf.Positions[0].Profit.String())
	assert.Equal(t, "1", pf.Stats.WinRate.String())
	assert.Equal(t, "6", pf.Stats.Profit.String())

	// The creator's entry carries the creator reward.
	cf, err := svc.GetPortfolio(ctx, creator)
	require.NoError(t, err)
	require.Len(t, cf.Positions, 1)
	assert.True(t, cf.Positions[0].Created)
	assert.Equal(t, "4", cf.Positions[0].Profit.String())
	assert.Equal(t, "4", cf.Stats.Profit.String())
	assert.True(t, cf.Stats.WinRate.IsZero())
}

func TestGetPortfolioEmptyAddress(t *testing.T) {
	svc := newPortfolioService(newMemStore(), &fakeIdentity{},
		&fakeClock{now: time.Now()}, []string{"base-sepolia"})

	pf, err := svc.GetPortfolio(context.Background(), "0xdead000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.Empty(t, pf.Positions)
	assert.Equal(t, 0, pf.Stats.TotalPools)
}
