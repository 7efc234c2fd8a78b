package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extralife/marketd/internal/domain"
)

const testChain = "base-sepolia"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type poolFixture struct {
	store *memStore
	audit *memAudit
	bus   *memBus
	clock *fakeClock
	svc   *PoolService
}

func newPoolFixture(t *testing.T) *poolFixture {
	t.Helper()
	f := &poolFixture{
		store: newMemStore(),
		audit: &memAudit{},
		bus:   &memBus{},
		clock: &fakeClock{now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	f.svc = NewPoolService(
		f.store, f.store, f.audit,
		domain.NewWeightEngine(decimal.RequireFromString("0.5")),
		newMemLocks(), f.bus, f.clock,
		decimal.RequireFromString("0.000001"), false,
		testLogger(),
	)
	return f
}

func (f *poolFixture) createPool(t *testing.T, id uint64, window time.Duration) *domain.Pool {
	t.Helper()
	p := &domain.Pool{
		ID:             id,
		Chain:          testChain,
		Question:       "Will it rain tomorrow?",
		Creator:        "0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC",
		CreatedAt:      f.clock.Now(),
		BettingEndTime: f.clock.Now().Add(window),
	}
	require.NoError(t, f.svc.CreatePool(context.Background(), p))
	return p
}

func TestAcceptBetUpdatesAccumulators(t *testing.T) {
	f := newPoolFixture(t)
	f.createPool(t, 1, 24*time.Hour)
	ctx := context.Background()

	bet, err := f.svc.AcceptBet(ctx, testChain, 1, "0xAAAA000000000000000000000000000000000001",
		decimal.NewFromInt(100), domain.SideYes)
	require.NoError(t, err)
	assert.True(t, bet.Weight.Equal(decimal.NewFromInt(150)), "window start bet scores 1.5x, got %s", bet.Weight)

	_, err = f.svc.AcceptBet(ctx, testChain, 1, "0xAAAA000000000000000000000000000000000002",
		decimal.NewFromInt(40), domain.SideNo)
	require.NoError(t, err)

	pool, err := f.svc.GetPool(ctx, testChain, 1)
	require.NoError(t, err)
	assert.True(t, pool.TotalPrincipal.Equal(decimal.NewFromInt(140)))
	assert.True(t, pool.YesPrincipal.Equal(decimal.NewFromInt(100)))
	assert.True(t, pool.NoPrincipal.Equal(decimal.NewFromInt(40)))
	assert.True(t, pool.CheckPrincipalInvariant())

	assert.Contains(t, f.bus.types(), domain.EventBetPlaced)
}

func TestAcceptBetRejectsDuplicate(t *testing.T) {
	f := newPoolFixture(t)
	f.createPool(t, 1, 24*time.Hour)
	ctx := context.Background()
	bettor := "0xaaaa000000000000000000000000000000000001"

	_, err := f.svc.AcceptBet(ctx, testChain, 1, bettor, decimal.NewFromInt(10), domain.SideYes)
	require.NoError(t, err)

	_, err = f.svc.AcceptBet(ctx, testChain, 1, bettor, decimal.NewFromInt(10), domain.SideNo)
	assert.ErrorIs(t, err, domain.ErrDuplicateBet)

	// A failed duplicate must not move the accumulators.
	pool, err := f.svc.GetPool(ctx, testChain, 1)
	require.NoError(t, err)
	assert.True(t, pool.TotalPrincipal.Equal(decimal.NewFromInt(10)))
}

func TestAcceptBetRejectsCreator(t *testing.T) {
	f := newPoolFixture(t)
	p := f.createPool(t, 1, 24*time.Hour)

	_, err := f.svc.AcceptBet(context.Background(), testChain, 1, p.Creator,
		decimal.NewFromInt(10), domain.SideYes)
	assert.ErrorIs(t, err, domain.ErrSelfBetNotAllowed)
}

func TestAcceptBetRejectsClosedPool(t *testing.T) {
	f := newPoolFixture(t)
	f.createPool(t, 1, time.Hour)
	f.clock.Advance(time.Hour)

	_, err := f.svc.AcceptBet(context.Background(), testChain, 1, "0xaaaa000000000000000000000000000000000001",
		decimal.NewFromInt(10), domain.SideYes)
	assert.ErrorIs(t, err, domain.ErrBettingClosed)
}

func TestAcceptBetRejectsZeroAndDust(t *testing.T) {
	f := newPoolFixture(t)
	f.createPool(t, 1, time.Hour)
	ctx := context.Background()

	_, err := f.svc.AcceptBet(ctx, testChain, 1, "0xaaaa000000000000000000000000000000000001",
		decimal.Zero, domain.SideYes)
	assert.ErrorIs(t, err, domain.ErrZeroAmount)

	_, err = f.svc.AcceptBet(ctx, testChain, 1, "0xaaaa000000000000000000000000000000000001",
		decimal.RequireFromString("0.0000001"), domain.SideYes)
	assert.ErrorIs(t, err, domain.ErrZeroAmount)
}

func TestAcceptBetUnknownPool(t *testing.T) {
	f := newPoolFixture(t)

	_, err := f.svc.AcceptBet(context.Background(), testChain, 99, "0xaaaa000000000000000000000000000000000001",
		decimal.NewFromInt(10), domain.SideYes)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLaterBetWeighsLess(t *testing.T) {
	f := newPoolFixture(t)
	f.createPool(t, 1, 10*time.Hour)
	ctx := context.Background()
	stake := decimal.NewFromInt(100)

	early, err := f.svc.AcceptBet(ctx, testChain, 1, "0xaaaa000000000000000000000000000000000001", stake, domain.SideYes)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Hour)
	late, err := f.svc.AcceptBet(ctx, testChain, 1, "0xaaaa000000000000000000000000000000000002", stake, domain.SideYes)
	require.NoError(t, err)

	assert.True(t, early.Weight.GreaterThan(late.Weight),
		"early %s should outweigh late %s", early.Weight, late.Weight)
	assert.True(t, late.Weight.GreaterThanOrEqual(stake))
}
