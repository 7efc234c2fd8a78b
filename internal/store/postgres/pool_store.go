package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/extralife/marketd/internal/domain"
)

// PoolStore implements domain.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *pgxpool.Pool
}

// NewPoolStore creates a new PoolStore backed by the given connection pool.
func NewPoolStore(pool *pgxpool.Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

const poolSelectCols = `chain, pool_id, question, creator, created_at, betting_end_time,
	total_principal, yes_principal, no_principal, total_yes_weight, total_no_weight,
	creator_principal, creator_claimed,
	resolution_requested_at, resolved, outcome, settled_yield, updated_at`

func scanPoolRow(row pgx.Row) (domain.Pool, error) {
	var p domain.Pool
	err := row.Scan(
		&p.Chain, &p.ID, &p.Question, &p.Creator, &p.CreatedAt, &p.BettingEndTime,
		&p.TotalPrincipal, &p.YesPrincipal, &p.NoPrincipal, &p.TotalYesWeight, &p.TotalNoWeight,
		&p.CreatorPrincipal, &p.CreatorClaimed,
		&p.ResolutionRequestedAt, &p.Resolved, &p.Outcome, &p.SettledYield, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Pool{}, err
	}
	return p, nil
}

func scanPoolRows(rows pgx.Rows) ([]domain.Pool, error) {
	var pools []domain.Pool
	for rows.Next() {
		p, err := scanPoolRow(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// CreatePool inserts a pool mirrored from chain. Re-mirroring an existing
// pool is a no-op so the poller can safely replay events.
func (s *PoolStore) CreatePool(ctx context.Context, p *domain.Pool) error {
	const query = `
		INSERT INTO pools (
			chain, pool_id, question, creator, created_at, betting_end_time,
			total_principal, yes_principal, no_principal, total_yes_weight, total_no_weight,
			creator_principal, creator_claimed,
			resolution_requested_at, resolved, outcome, settled_yield, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13,
			$14, $15, $16, $17, NOW()
		)
		ON CONFLICT (chain, pool_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		p.Chain, p.ID, p.Question, p.Creator, p.CreatedAt, p.BettingEndTime,
		p.TotalPrincipal, p.YesPrincipal, p.NoPrincipal, p.TotalYesWeight, p.TotalNoWeight,
		p.CreatorPrincipal, p.CreatorClaimed,
		p.ResolutionRequestedAt, p.Resolved, p.Outcome, p.SettledYield,
	)
	if err != nil {
		return fmt.Errorf("postgres: create pool %s/%d: %w", p.Chain, p.ID, err)
	}
	return nil
}

// GetPool retrieves a single pool by chain and id.
func (s *PoolStore) GetPool(ctx context.Context, chain string, id uint64) (*domain.Pool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+poolSelectCols+` FROM pools WHERE chain = $1 AND pool_id = $2`, chain, id)

	p, err := scanPoolRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get pool %s/%d: %w", chain, id, err)
	}
	return &p, nil
}

// ListPools returns pools matching the filter, newest first.
func (s *PoolStore) ListPools(ctx context.Context, f domain.PoolFilter, opts domain.ListOpts) ([]domain.Pool, error) {
	query := `SELECT ` + poolSelectCols + ` FROM pools WHERE 1=1`
	var args []any
	argIdx := 1

	if f.Chain != "" {
		query += fmt.Sprintf(" AND chain = $%d", argIdx)
		args = append(args, f.Chain)
		argIdx++
	}
	if f.Creator != "" {
		query += fmt.Sprintf(" AND creator = $%d", argIdx)
		args = append(args, f.Creator)
		argIdx++
	}
	if f.Resolved != nil {
		query += fmt.Sprintf(" AND resolved = $%d", argIdx)
		args = append(args, *f.Resolved)
		argIdx++
	}
	if f.LiveAt != nil {
		query += fmt.Sprintf(" AND betting_end_time > $%d AND resolution_requested_at IS NULL AND NOT resolved", argIdx)
		args = append(args, *f.LiveAt)
		argIdx++
	}

	query += " ORDER BY pool_id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pools: %w", err)
	}
	defer rows.Close()

	pools, err := scanPoolRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan pools: %w", err)
	}
	return pools, nil
}

// CountPools returns the number of pools mirrored for a chain.
func (s *PoolStore) CountPools(ctx context.Context, chain string) (uint64, error) {
	var n uint64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM pools WHERE chain = $1`, chain).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count pools: %w", err)
	}
	return n, nil
}

// AccumulateBet inserts the bet and bumps the pool accumulators in one
// transaction. The unique (chain, pool_id, bettor) key turns a repeat bet
// into domain.ErrDuplicateBet.
func (s *PoolStore) AccumulateBet(ctx context.Context, b *domain.Bet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin accumulate bet: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertBet = `
		INSERT INTO bets (chain, pool_id, bettor, principal, side, weight, placed_at, claimed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)`

	if _, err := tx.Exec(ctx, insertBet,
		b.Chain, b.PoolID, b.Bettor, b.Principal, b.Side, b.Weight, b.PlacedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateBet
		}
		return fmt.Errorf("postgres: insert bet %s/%d/%s: %w", b.Chain, b.PoolID, b.Bettor, err)
	}

	sideCol := "no_principal"
	weightCol := "total_no_weight"
	if b.Side {
		sideCol = "yes_principal"
		weightCol = "total_yes_weight"
	}

	update := fmt.Sprintf(`
		UPDATE pools SET
			total_principal = total_principal + $3,
			%s = %s + $3,
			%s = %s + $4,
			updated_at = NOW()
		WHERE chain = $1 AND pool_id = $2`,
		sideCol, sideCol, weightCol, weightCol)

	tag, err := tx.Exec(ctx, update, b.Chain, b.PoolID, b.Principal, b.Weight)
	if err != nil {
		return fmt.Errorf("postgres: accumulate bet %s/%d: %w", b.Chain, b.PoolID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit accumulate bet: %w", err)
	}
	return nil
}

// MarkResolutionRequested records the resolution request timestamp. The
// WHERE clause makes a second request fail instead of moving the clock.
func (s *PoolStore) MarkResolutionRequested(ctx context.Context, chain string, id uint64, at time.Time) error {
	const query = `
		UPDATE pools SET
			resolution_requested_at = $3,
			updated_at = NOW()
		WHERE chain = $1 AND pool_id = $2
		  AND resolution_requested_at IS NULL AND NOT resolved`

	tag, err := s.pool.Exec(ctx, query, chain, id, at)
	if err != nil {
		return fmt.Errorf("postgres: mark resolution requested %s/%d: %w", chain, id, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing pool from a repeat request.
		if _, getErr := s.GetPool(ctx, chain, id); getErr != nil {
			return getErr
		}
		return domain.ErrAlreadyRequested
	}
	return nil
}

// Resolve records the final outcome and the settled yield figure exactly once.
func (s *PoolStore) Resolve(ctx context.Context, chain string, id uint64, outcome bool, settledYield decimal.Decimal) error {
	const query = `
		UPDATE pools SET
			resolved = TRUE,
			outcome = $3,
			settled_yield = $4,
			updated_at = NOW()
		WHERE chain = $1 AND pool_id = $2 AND NOT resolved`

	tag, err := s.pool.Exec(ctx, query, chain, id, outcome, settledYield)
	if err != nil {
		return fmt.Errorf("postgres: resolve pool %s/%d: %w", chain, id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetPool(ctx, chain, id); getErr != nil {
			return getErr
		}
		return domain.ErrAlreadyResolved
	}
	return nil
}

// MarkCreatorClaimed flips the creator-claimed flag with a compare-and-set.
func (s *PoolStore) MarkCreatorClaimed(ctx context.Context, chain string, id uint64) error {
	const query = `
		UPDATE pools SET
			creator_claimed = TRUE,
			updated_at = NOW()
		WHERE chain = $1 AND pool_id = $2 AND NOT creator_claimed`

	tag, err := s.pool.Exec(ctx, query, chain, id)
	if err != nil {
		return fmt.Errorf("postgres: mark creator claimed %s/%d: %w", chain, id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetPool(ctx, chain, id); getErr != nil {
			return getErr
		}
		return domain.ErrAlreadyClaimed
	}
	return nil
}
