package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/extralife/marketd/internal/domain"
)

// In-memory fakes for the domain store and cache interfaces. They enforce
// the same uniqueness and compare-and-set semantics as the real postgres
// implementations so service tests exercise the full precondition paths.

type memKey struct {
	chain string
	id    uint64
}

type betKey struct {
	chain  string
	poolID uint64
	bettor string
}

type memStore struct {
	mu    sync.Mutex
	pools map[memKey]*domain.Pool
	bets  map[betKey]*domain.Bet
}

func newMemStore() *memStore {
	return &memStore{
		pools: make(map[memKey]*domain.Pool),
		bets:  make(map[betKey]*domain.Bet),
	}
}

func (m *memStore) CreatePool(_ context.Context, p *domain.Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{p.Chain, p.ID}
	if _, ok := m.pools[k]; ok {
		return nil
	}
	cp := *p
	m.pools[k] = &cp
	return nil
}

func (m *memStore) GetPool(_ context.Context, chain string, id uint64) (*domain.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[memKey{chain, id}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListPools(_ context.Context, f domain.PoolFilter, _ domain.ListOpts) ([]domain.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Pool
	for _, p := range m.pools {
		if f.Chain != "" && p.Chain != f.Chain {
			continue
		}
		if f.Creator != "" && p.Creator != f.Creator {
			continue
		}
		if f.Resolved != nil && p.Resolved != *f.Resolved {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *memStore) CountPools(_ context.Context, chain string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n uint64
	for _, p := range m.pools {
		if p.Chain == chain {
			n++
		}
	}
	return n, nil
}

func (m *memStore) AccumulateBet(_ context.Context, b *domain.Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bk := betKey{b.Chain, b.PoolID, b.Bettor}
	if _, ok := m.bets[bk]; ok {
		return domain.ErrDuplicateBet
	}
	p, ok := m.pools[memKey{b.Chain, b.PoolID}]
	if !ok {
		return domain.ErrNotFound
	}
	cp := *b
	m.bets[bk] = &cp

	p.TotalPrincipal = p.TotalPrincipal.Add(b.Principal)
	if b.Side {
		p.YesPrincipal = p.YesPrincipal.Add(b.Principal)
		p.TotalYesWeight = p.TotalYesWeight.Add(b.Weight)
	} else {
		p.NoPrincipal = p.NoPrincipal.Add(b.Principal)
		p.TotalNoWeight = p.TotalNoWeight.Add(b.Weight)
	}
	return nil
}

func (m *memStore) MarkResolutionRequested(_ context.Context, chain string, id uint64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[memKey{chain, id}]
	if !ok {
		return domain.ErrNotFound
	}
	if p.ResolutionRequestedAt != nil || p.Resolved {
		return domain.ErrAlreadyRequested
	}
	t := at
	p.ResolutionRequestedAt = &t
	return nil
}

func (m *memStore) Resolve(_ context.Context, chain string, id uint64, outcome bool, settledYield decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[memKey{chain, id}]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Resolved {
		return domain.ErrAlreadyResolved
	}
	p.Resolved = true
	p.Outcome = outcome
	p.SettledYield = settledYield
	return nil
}

func (m *memStore) MarkCreatorClaimed(_ context.Context, chain string, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[memKey{chain, id}]
	if !ok {
		return domain.ErrNotFound
	}
	if p.CreatorClaimed {
		return domain.ErrAlreadyClaimed
	}
	p.CreatorClaimed = true
	return nil
}

func (m *memStore) GetBet(_ context.Context, chain string, poolID uint64, bettor string) (*domain.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[betKey{chain, poolID, bettor}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) ListBetsByPool(_ context.Context, chain string, poolID uint64) ([]domain.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Bet
	for k, b := range m.bets {
		if k.chain == chain && k.poolID == poolID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) ListBetsByBettor(_ context.Context, chain, bettor string, _ domain.ListOpts) ([]domain.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Bet
	for k, b := range m.bets {
		if k.chain == chain && k.bettor == bettor {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) MarkClaimed(_ context.Context, chain string, poolID uint64, bettor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[betKey{chain, poolID, bettor}]
	if !ok {
		return domain.ErrNotFound
	}
	if b.Claimed {
		return domain.ErrAlreadyClaimed
	}
	b.Claimed = true
	return nil
}

type memAudit struct {
	mu   sync.Mutex
	recs []domain.AuditRecord
}

func (a *memAudit) Append(_ context.Context, rec *domain.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec.ID = uint64(len(a.recs) + 1)
	rec.CreatedAt = time.Now()
	a.recs = append(a.recs, *rec)
	return nil
}

func (a *memAudit) ListByPool(_ context.Context, chain string, poolID uint64) ([]domain.AuditRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.AuditRecord
	for _, r := range a.recs {
		if r.Chain == chain && r.PoolID == poolID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocks() *memLocks {
	return &memLocks{held: make(map[string]bool)}
}

func (l *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

type memBus struct {
	mu     sync.Mutex
	events []domain.PoolEvent
}

func (b *memBus) Publish(_ context.Context, ev domain.PoolEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *memBus) Subscribe(context.Context) (<-chan domain.PoolEvent, error) {
	ch := make(chan domain.PoolEvent)
	close(ch)
	return ch, nil
}

func (b *memBus) StreamRead(context.Context, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *memBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.Type
	}
	return out
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memApyCache struct {
	mu   sync.Mutex
	apys map[string]decimal.Decimal
}

func newMemApyCache() *memApyCache {
	return &memApyCache{apys: make(map[string]decimal.Decimal)}
}

func (c *memApyCache) SetAPY(_ context.Context, chain string, apy decimal.Decimal, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apys[chain] = apy
	return nil
}

func (c *memApyCache) GetAPY(_ context.Context, chain string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	apy, ok := c.apys[chain]
	if !ok {
		return decimal.Zero, domain.ErrNotFound
	}
	return apy, nil
}

// fakeAuthority answers settlement calls with canned values.
type fakeAuthority struct {
	yield      decimal.Decimal
	accrued    decimal.Decimal
	accruedErr error
	failTx     bool
	submits    int
}

func (a *fakeAuthority) FetchPool(context.Context, uint64) (*domain.Pool, error) {
	return nil, domain.ErrNotFound
}

func (a *fakeAuthority) PoolCount(context.Context) (uint64, error) { return 0, nil }

func (a *fakeAuthority) CurrentYield(context.Context, uint64) (decimal.Decimal, error) {
	if a.accruedErr != nil {
		return decimal.Zero, a.accruedErr
	}
	return a.accrued, nil
}

func (a *fakeAuthority) SettledYield(context.Context, uint64) (decimal.Decimal, error) {
	return a.yield, nil
}

func (a *fakeAuthority) SubmitResolution(_ context.Context, id uint64, _ bool) (string, error) {
	if a.failTx {
		return "", fmt.Errorf("rpc unavailable")
	}
	a.submits++
	return fmt.Sprintf("0xtx%d", id), nil
}

// fakeOracle answers every pool with a fixed outcome.
type fakeOracle struct {
	outcome bool
	err     error
}

func (o *fakeOracle) Outcome(context.Context, domain.Pool) (bool, error) {
	return o.outcome, o.err
}

// fakeRateOracle reports a fixed APY or an error.
type fakeRateOracle struct {
	apy decimal.Decimal
	err error
}

func (o *fakeRateOracle) CurrentAPY(context.Context) (decimal.Decimal, error) {
	return o.apy, o.err
}

// fakeIdentity resolves every address to a canned name.
type fakeIdentity struct {
	name string
}

func (r *fakeIdentity) DisplayName(_ context.Context, address string) string {
	if r.name != "" {
		return r.name
	}
	return address
}
