package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/extralife/marketd/internal/domain"
)

// archiveBatch caps how many resolved pools one sweep pulls from the store.
const archiveBatch = 500

// settlementRecord is the archived shape of one settled pool: the final pool
// state, every bet with its weight, and the full audit trail.
type settlementRecord struct {
	ArchivedAt time.Time            `json:"archived_at"`
	Pool       *domain.Pool         `json:"pool"`
	Bets       []domain.Bet         `json:"bets"`
	Audit      []domain.AuditRecord `json:"audit"`
}

// SettlementArchive implements domain.SettlementArchiver over a blob writer.
// It reads the settled state from the primary stores and uploads one JSON
// document per pool; re-archiving a pool overwrites the previous object.
type SettlementArchive struct {
	writer domain.BlobWriter
	pools  domain.PoolStore
	bets   domain.BetStore
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewSettlementArchive creates a SettlementArchive.
func NewSettlementArchive(
	writer domain.BlobWriter,
	pools domain.PoolStore,
	bets domain.BetStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *SettlementArchive {
	return &SettlementArchive{
		writer: writer,
		pools:  pools,
		bets:   bets,
		audit:  audit,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchivePool uploads the settlement record for one resolved pool.
func (a *SettlementArchive) ArchivePool(ctx context.Context, chain string, poolID uint64) (string, error) {
	p, err := a.pools.GetPool(ctx, chain, poolID)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive pool %s/%d: %w", chain, poolID, err)
	}
	if !p.Resolved {
		return "", fmt.Errorf("s3blob: archive pool %s/%d: %w", chain, poolID, domain.ErrNotResolved)
	}

	bets, err := a.bets.ListBetsByPool(ctx, chain, poolID)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive pool %s/%d bets: %w", chain, poolID, err)
	}
	trail, err := a.audit.ListByPool(ctx, chain, poolID)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive pool %s/%d audit: %w", chain, poolID, err)
	}

	rec := settlementRecord{
		ArchivedAt: time.Now().UTC(),
		Pool:       p,
		Bets:       bets,
		Audit:      trail,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return "", fmt.Errorf("s3blob: archive pool %s/%d marshal: %w", chain, poolID, err)
	}

	path := archivePath(chain, p)
	if err := a.writer.Put(ctx, path, &buf, "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive pool %s/%d upload: %w", chain, poolID, err)
	}

	a.logger.Info("pool archived",
		slog.String("chain", chain),
		slog.Uint64("pool_id", poolID),
		slog.String("path", path),
		slog.Int("bets", len(bets)),
	)
	return path, nil
}

// ArchiveResolved archives every resolved pool on the chain last updated
// before the cutoff. A pool that fails to archive is logged and skipped so
// one bad record cannot stall the sweep.
func (a *SettlementArchive) ArchiveResolved(ctx context.Context, chain string, before time.Time) (int64, error) {
	resolved := true
	pools, err := a.pools.ListPools(ctx, domain.PoolFilter{Chain: chain, Resolved: &resolved},
		domain.ListOpts{Limit: archiveBatch})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive sweep %s: %w", chain, err)
	}

	var count int64
	for _, p := range pools {
		if !p.UpdatedAt.Before(before) {
			continue
		}
		if _, err := a.ArchivePool(ctx, chain, p.ID); err != nil {
			a.logger.WarnContext(ctx, "pool archive failed",
				slog.String("chain", chain),
				slog.Uint64("pool_id", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		count++
	}
	return count, nil
}

// archivePath builds the object key for a pool's settlement record,
// partitioned by the year-month the pool was last updated.
//
//	archive/base-sepolia/2026-08/pool-42.json
func archivePath(chain string, p *domain.Pool) string {
	return fmt.Sprintf("archive/%s/%s/pool-%d.json", chain, p.UpdatedAt.Format("2006-01"), p.ID)
}

var _ domain.SettlementArchiver = (*SettlementArchive)(nil)
