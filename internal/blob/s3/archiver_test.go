package s3blob

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extralife/marketd/internal/domain"
)

type capturingWriter struct {
	puts map[string][]byte
}

func (w *capturingWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.puts == nil {
		w.puts = make(map[string][]byte)
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.puts[path] = b
	return nil
}

type fakePools struct {
	domain.PoolStore
	pools map[uint64]*domain.Pool
}

func (s *fakePools) GetPool(_ context.Context, _ string, id uint64) (*domain.Pool, error) {
	p, ok := s.pools[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (s *fakePools) ListPools(_ context.Context, f domain.PoolFilter, _ domain.ListOpts) ([]domain.Pool, error) {
	var out []domain.Pool
	for _, p := range s.pools {
		if f.Resolved != nil && p.Resolved != *f.Resolved {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

type fakeBets struct {
	domain.BetStore
	bets []domain.Bet
}

func (s *fakeBets) ListBetsByPool(_ context.Context, _ string, _ uint64) ([]domain.Bet, error) {
	return s.bets, nil
}

type fakeAudit struct {
	domain.AuditStore
	records []domain.AuditRecord
}

func (s *fakeAudit) ListByPool(_ context.Context, _ string, _ uint64) ([]domain.AuditRecord, error) {
	return s.records, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func resolvedPool(id uint64, updatedAt time.Time) *domain.Pool {
	return &domain.Pool{
		ID:           id,
		Chain:        "base-sepolia",
		Question:     "Will it archive?",
		Resolved:     true,
		Outcome:      true,
		SettledYield: decimal.RequireFromString("0.2877"),
		UpdatedAt:    updatedAt,
	}
}

func TestArchivePool(t *testing.T) {
	updated := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	w := &capturingWriter{}
	a := NewSettlementArchive(
		w,
		&fakePools{pools: map[uint64]*domain.Pool{42: resolvedPool(42, updated)}},
		&fakeBets{bets: []domain.Bet{{PoolID: 42, Bettor: "0xwinner", Side: domain.SideYes}}},
		&fakeAudit{records: []domain.AuditRecord{{PoolID: 42, Event: "pool_resolved"}}},
		testLogger(),
	)

	path, err := a.ArchivePool(context.Background(), "base-sepolia", 42)
	require.NoError(t, err)
	assert.Equal(t, "archive/base-sepolia/2026-08/pool-42.json", path)

	var rec settlementRecord
	require.NoError(t, json.Unmarshal(w.puts[path], &rec))
	assert.Equal(t, uint64(42), rec.Pool.ID)
	require.Len(t, rec.Bets, 1)
	assert.Equal(t, "0xwinner", rec.Bets[0].Bettor)
	require.Len(t, rec.Audit, 1)
}

func TestArchivePoolUnresolved(t *testing.T) {
	p := resolvedPool(7, time.Now())
	p.Resolved = false
	a := NewSettlementArchive(
		&capturingWriter{},
		&fakePools{pools: map[uint64]*domain.Pool{7: p}},
		&fakeBets{}, &fakeAudit{}, testLogger(),
	)

	_, err := a.ArchivePool(context.Background(), "base-sepolia", 7)
	assert.ErrorIs(t, err, domain.ErrNotResolved)
}

func TestArchiveResolvedSweep(t *testing.T) {
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	w := &capturingWriter{}
	a := NewSettlementArchive(
		w,
		&fakePools{pools: map[uint64]*domain.Pool{
			1: resolvedPool(1, cutoff.Add(-time.Hour)),
			2: resolvedPool(2, cutoff.Add(time.Hour)), // too recent
		}},
		&fakeBets{}, &fakeAudit{}, testLogger(),
	)

	count, err := a.ArchiveResolved(context.Background(), "base-sepolia", cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Len(t, w.puts, 1)
}
