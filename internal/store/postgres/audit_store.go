package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/extralife/marketd/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL. The table is
// append-only; settlement decisions are reconstructed from it verbatim.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates a new AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Append inserts a new audit record and fills in its assigned id and
// timestamp.
func (s *AuditStore) Append(ctx context.Context, rec *domain.AuditRecord) error {
	const query = `
		INSERT INTO settlement_audit (chain, pool_id, event, actor, detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := s.pool.QueryRow(ctx, query,
		rec.Chain, rec.PoolID, rec.Event, rec.Actor, rec.Detail,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: append audit event %s for %s/%d: %w",
			rec.Event, rec.Chain, rec.PoolID, err)
	}
	return nil
}

// ListByPool returns all audit records for a pool in insertion order.
func (s *AuditStore) ListByPool(ctx context.Context, chain string, poolID uint64) ([]domain.AuditRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, chain, pool_id, event, actor, detail, created_at
		 FROM settlement_audit
		 WHERE chain = $1 AND pool_id = $2
		 ORDER BY id ASC`, chain, poolID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit for %s/%d: %w", chain, poolID, err)
	}
	defer rows.Close()

	var recs []domain.AuditRecord
	for rows.Next() {
		var r domain.AuditRecord
		if err := rows.Scan(&r.ID, &r.Chain, &r.PoolID, &r.Event, &r.Actor, &r.Detail, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit record: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list audit rows: %w", err)
	}
	return recs, nil
}
