package feed

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

// memPools implements the slice of domain.PoolStore the mirror touches.
// The embedded nil interface panics on anything else, which is what a test
// should do for an unexpected call.
type memPools struct {
	domain.PoolStore
	pools map[uint64]*domain.Pool
	bets  map[string]*domain.Bet
}

func newMemPools() *memPools {
	return &memPools{
		pools: make(map[uint64]*domain.Pool),
		bets:  make(map[string]*domain.Bet),
	}
}

func (s *memPools) CreatePool(_ context.Context, p *domain.Pool) error {
	if _, ok := s.pools[p.ID]; ok {
		return nil
	}
	cp := *p
	s.pools[p.ID] = &cp
	return nil
}

func (s *memPools) GetPool(_ context.Context, _ string, id uint64) (*domain.Pool, error) {
	p, ok := s.pools[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memPools) AccumulateBet(_ context.Context, b *domain.Bet) error {
	if _, ok := s.bets[b.Bettor]; ok {
		return domain.ErrDuplicateBet
	}
	cb := *b
	s.bets[b.Bettor] = &cb
	p := s.pools[b.PoolID]
	p.TotalPrincipal = p.TotalPrincipal.Add(b.Principal)
	if b.Side == domain.SideYes {
		p.YesPrincipal = p.YesPrincipal.Add(b.Principal)
		p.TotalYesWeight = p.TotalYesWeight.Add(b.Weight)
	} else {
		p.NoPrincipal = p.NoPrincipal.Add(b.Principal)
		p.TotalNoWeight = p.TotalNoWeight.Add(b.Weight)
	}
	return nil
}

func (s *memPools) MarkResolutionRequested(_ context.Context, _ string, id uint64, at time.Time) error {
	p, ok := s.pools[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.ResolutionRequestedAt != nil {
		return domain.ErrAlreadyRequested
	}
	p.ResolutionRequestedAt = &at
	return nil
}

func (s *memPools) Resolve(_ context.Context, _ string, id uint64, outcome bool, yield decimal.Decimal) error {
	p, ok := s.pools[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Resolved {
		return domain.ErrAlreadyResolved
	}
	p.Resolved = true
	p.Outcome = outcome
	p.SettledYield = yield
	return nil
}

func (s *memPools) MarkCreatorClaimed(_ context.Context, _ string, id uint64) error {
	p, ok := s.pools[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.CreatorClaimed {
		return domain.ErrAlreadyClaimed
	}
	p.CreatorClaimed = true
	return nil
}

type memBets struct {
	domain.BetStore
	pools *memPools
}

func (s *memBets) MarkClaimed(_ context.Context, _ string, _ uint64, bettor string) error {
	b, ok := s.pools.bets[bettor]
	if !ok {
		return domain.ErrNotFound
	}
	if b.Claimed {
		return domain.ErrAlreadyClaimed
	}
	b.Claimed = true
	return nil
}

type fakeAuthority struct {
	pools map[uint64]*domain.Pool
	yield decimal.Decimal
}

func (a *fakeAuthority) FetchPool(_ context.Context, id uint64) (*domain.Pool, error) {
	p, ok := a.pools[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (a *fakeAuthority) PoolCount(_ context.Context) (uint64, error) {
	return uint64(len(a.pools)), nil
}

func (a *fakeAuthority) CurrentYield(_ context.Context, _ uint64) (decimal.Decimal, error) {
	return a.yield, nil
}

func (a *fakeAuthority) SettledYield(_ context.Context, _ uint64) (decimal.Decimal, error) {
	return a.yield, nil
}

func (a *fakeAuthority) SubmitResolution(_ context.Context, _ uint64, _ bool) (string, error) {
	return "0xdead", nil
}

func chainPool(id uint64) *domain.Pool {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Pool{
		ID:             id,
		Chain:          testChain,
		Question:       "Will it settle?",
		Creator:        "0xc0ffee",
		CreatedAt:      start,
		BettingEndTime: start.Add(24 * time.Hour),
	}
}

func newTestMirror(auth *fakeAuthority) (*Mirror, *memPools) {
	pools := newMemPools()
	weights := domain.NewWeightEngine(decimal.RequireFromString("0.5"))
	m := NewMirror(testChain, auth, pools, &memBets{pools: pools}, weights, testLogger())
	return m, pools
}

func TestMirrorBackfill(t *testing.T) {
	auth := &fakeAuthority{pools: map[uint64]*domain.Pool{
		0: chainPool(0),
		1: chainPool(1),
	}}
	m, pools := newTestMirror(auth)

	require.NoError(t, m.Backfill(context.Background()))
	assert.Len(t, pools.pools, 2)

	// Re-running must not disturb existing rows.
	require.NoError(t, m.Backfill(context.Background()))
	assert.Len(t, pools.pools, 2)
}

func TestMirrorBetPlaced(t *testing.T) {
	auth := &fakeAuthority{pools: map[uint64]*domain.Pool{7: chainPool(7)}}
	m, pools := newTestMirror(auth)
	ctx := context.Background()

	side := domain.SideYes
	ev := domain.ChainEvent{
		ID:    "0xabc:0",
		Chain: testChain,
		Event: domain.PoolEvent{
			Type:   domain.EventBetPlaced,
			Chain:  testChain,
			PoolID: 7,
			Bettor: "0xbettor",
			Amount: decimal.RequireFromString("100"),
			Side:   &side,
		},
	}
	at := chainPool(7).CreatedAt.Add(6 * time.Hour)

	require.NoError(t, m.Apply(ctx, ev, at))

	p := pools.pools[7]
	assert.True(t, p.TotalPrincipal.Equal(decimal.RequireFromString("100")))
	b := pools.bets["0xbettor"]
	require.NotNil(t, b)
	// 18 of 24 hours remaining: weight = 100 * (1 + 0.5 * 0.75) = 137.5.
	assert.True(t, b.Weight.Equal(decimal.RequireFromString("137.5")), "weight = %s", b.Weight)

	// Replay is a no-op.
	require.NoError(t, m.Apply(ctx, ev, at))
	assert.True(t, pools.pools[7].TotalPrincipal.Equal(decimal.RequireFromString("100")))
}

func TestMirrorBetBeforePool(t *testing.T) {
	auth := &fakeAuthority{pools: map[uint64]*domain.Pool{3: chainPool(3)}}
	m, pools := newTestMirror(auth)

	side := domain.SideNo
	ev := domain.ChainEvent{
		ID: "0xdef:1",
		Event: domain.PoolEvent{
			Type:   domain.EventBetPlaced,
			PoolID: 3,
			Bettor: "0xeager",
			Amount: decimal.RequireFromString("40"),
			Side:   &side,
		},
	}

	require.NoError(t, m.Apply(context.Background(), ev, chainPool(3).CreatedAt.Add(time.Hour)))
	assert.Contains(t, pools.pools, uint64(3))
	assert.Contains(t, pools.bets, "0xeager")
}

func TestMirrorLifecycleEvents(t *testing.T) {
	auth := &fakeAuthority{
		pools: map[uint64]*domain.Pool{5: chainPool(5)},
		yield: decimal.RequireFromString("0.2877"),
	}
	m, pools := newTestMirror(auth)
	ctx := context.Background()
	require.NoError(t, m.Backfill(ctx))

	at := chainPool(5).BettingEndTime.Add(time.Minute)
	req := domain.ChainEvent{
		ID:    "0x1:0",
		Event: domain.PoolEvent{Type: domain.EventResolutionRequested, PoolID: 5},
	}
	require.NoError(t, m.Apply(ctx, req, at))
	require.NotNil(t, pools.pools[5].ResolutionRequestedAt)

	// Replay tolerated.
	require.NoError(t, m.Apply(ctx, req, at))

	outcome := true
	res := domain.ChainEvent{
		ID:    "0x2:0",
		Event: domain.PoolEvent{Type: domain.EventPoolResolved, PoolID: 5, Outcome: &outcome},
	}
	require.NoError(t, m.Apply(ctx, res, at.Add(time.Minute)))
	p := pools.pools[5]
	assert.True(t, p.Resolved)
	assert.True(t, p.Outcome)
	assert.True(t, p.SettledYield.Equal(decimal.RequireFromString("0.2877")))

	require.NoError(t, m.Apply(ctx, res, at.Add(time.Minute)))
}

func TestMirrorCreatorClaim(t *testing.T) {
	auth := &fakeAuthority{pools: map[uint64]*domain.Pool{9: chainPool(9)}}
	m, pools := newTestMirror(auth)
	ctx := context.Background()
	require.NoError(t, m.Backfill(ctx))

	claim := domain.ChainEvent{
		ID: "0x3:0",
		Event: domain.PoolEvent{
			Type:   domain.EventPayoutClaimed,
			PoolID: 9,
			Bettor: "0xc0ffee",
			Amount: decimal.RequireFromString("0.11508"),
		},
	}
	require.NoError(t, m.Apply(ctx, claim, time.Now()))
	assert.True(t, pools.pools[9].CreatorClaimed)

	require.NoError(t, m.Apply(ctx, claim, time.Now()))
}
