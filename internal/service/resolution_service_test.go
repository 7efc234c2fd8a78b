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

const testLiveness = 30 * time.Second

type resolutionFixture struct {
	store     *memStore
	clock     *fakeClock
	authority *fakeAuthority
	oracle    *fakeOracle
	bus       *memBus
	svc       *ResolutionService
}

func newResolutionFixture(t *testing.T) *resolutionFixture {
	t.Helper()
	f := &resolutionFixture{
		store:     newMemStore(),
		clock:     &fakeClock{now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		authority: &fakeAuthority{yield: decimal.RequireFromString("0.2877")},
		oracle:    &fakeOracle{outcome: domain.SideYes},
		bus:       &memBus{},
	}
	f.svc = NewResolutionService(
		f.store, &memAudit{}, newMemLocks(), f.bus, f.clock,
		map[string]domain.MarketAuthority{testChain: f.authority},
		f.oracle, testLiveness,
		testLogger(),
	)
	return f
}

func (f *resolutionFixture) seedPool(t *testing.T, id uint64, window time.Duration) {
	t.Helper()
	require.NoError(t, f.store.CreatePool(context.Background(), &domain.Pool{
		ID:             id,
		Chain:          testChain,
		Question:       "q",
		Creator:        "0xcccc000000000000000000000000000000000000",
		CreatedAt:      f.clock.Now(),
		BettingEndTime: f.clock.Now().Add(window),
	}))
}

func TestRequestResolutionLifecycle(t *testing.T) {
	f := newResolutionFixture(t)
	f.seedPool(t, 1, time.Hour)
	ctx := context.Background()

	// Too early: betting still open.
	err := f.svc.RequestResolution(ctx, testChain, 1, "0xabc")
	assert.ErrorIs(t, err, domain.ErrBettingStillOpen)

	f.clock.Advance(time.Hour)
	require.NoError(t, f.svc.RequestResolution(ctx, testChain, 1, "0xabc"))

	// A repeat request must not restart the liveness clock.
	err = f.svc.RequestResolution(ctx, testChain, 1, "0xdef")
	assert.ErrorIs(t, err, domain.ErrAlreadyRequested)

	pool, err := f.store.GetPool(ctx, testChain, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StateResolutionRequested, pool.State(f.clock.Now()))
}

func TestSettleRequiresLiveness(t *testing.T) {
	f := newResolutionFixture(t)
	f.seedPool(t, 1, time.Hour)
	ctx := context.Background()

	// Settling an unrequested pool fails.
	f.clock.Advance(2 * time.Hour)
	err := f.svc.SettleResolution(ctx, testChain, 1, "settler")
	assert.ErrorIs(t, err, domain.ErrNotRequested)

	require.NoError(t, f.svc.RequestResolution(ctx, testChain, 1, "0xabc"))

	// Inside the liveness window.
	f.clock.Advance(testLiveness - time.Second)
	err = f.svc.SettleResolution(ctx, testChain, 1, "settler")
	assert.ErrorIs(t, err, domain.ErrLivenessNotElapsed)

	// Window elapsed: settles with the oracle outcome and authority yield.
	f.clock.Advance(time.Second)
	require.NoError(t, f.svc.SettleResolution(ctx, testChain, 1, "settler"))

	pool, err := f.store.GetPool(ctx, testChain, 1)
	require.NoError(t, err)
	assert.True(t, pool.Resolved)
	assert.Equal(t, domain.SideYes, pool.Outcome)
	assert.Equal(t, "0.2877", pool.SettledYield.String())
	assert.Equal(t, 1, f.authority.submits)

	// Settlement is one-way.
	err = f.svc.SettleResolution(ctx, testChain, 1, "settler")
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
	assert.Equal(t, 1, f.authority.submits)
}

func TestSettleSubmitFailureLeavesPoolUnresolved(t *testing.T) {
	f := newResolutionFixture(t)
	f.seedPool(t, 1, time.Hour)
	ctx := context.Background()

	f.clock.Advance(time.Hour)
	require.NoError(t, f.svc.RequestResolution(ctx, testChain, 1, "0xabc"))
	f.clock.Advance(testLiveness)

	f.authority.failTx = true
	err := f.svc.SettleResolution(ctx, testChain, 1, "settler")
	assert.ErrorIs(t, err, domain.ErrExternal)

	pool, err := f.store.GetPool(ctx, testChain, 1)
	require.NoError(t, err)
	assert.False(t, pool.Resolved, "a failed submit must leave the pool retryable")

	// Retry after the RPC recovers.
	f.authority.failTx = false
	require.NoError(t, f.svc.SettleResolution(ctx, testChain, 1, "settler"))
}

func TestSettleDueSweepsEligiblePools(t *testing.T) {
	f := newResolutionFixture(t)
	f.seedPool(t, 1, time.Hour)
	f.seedPool(t, 2, 3*time.Hour)
	ctx := context.Background()

	f.clock.Advance(time.Hour)
	require.NoError(t, f.svc.RequestResolution(ctx, testChain, 1, "0xabc"))
	f.clock.Advance(testLiveness)

	require.NoError(t, f.svc.SettleDue(ctx, testChain))

	p1, err := f.store.GetPool(ctx, testChain, 1)
	require.NoError(t, err)
	assert.True(t, p1.Resolved)

	p2, err := f.store.GetPool(ctx, testChain, 2)
	require.NoError(t, err)
	assert.False(t, p2.Resolved, "pool 2 was never requested")
}
