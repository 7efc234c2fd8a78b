package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/extralife/marketd/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

const betSelectCols = `chain, pool_id, bettor, principal, side, weight, placed_at, claimed`

func scanBetRow(row pgx.Row) (domain.Bet, error) {
	var b domain.Bet
	err := row.Scan(
		&b.Chain, &b.PoolID, &b.Bettor, &b.Principal, &b.Side, &b.Weight, &b.PlacedAt, &b.Claimed,
	)
	if err != nil {
		return domain.Bet{}, err
	}
	return b, nil
}

func scanBetRows(rows pgx.Rows) ([]domain.Bet, error) {
	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBetRow(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// GetBet retrieves a single bet by its (chain, pool, bettor) key.
func (s *BetStore) GetBet(ctx context.Context, chain string, poolID uint64, bettor string) (*domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betSelectCols+` FROM bets
		 WHERE chain = $1 AND pool_id = $2 AND bettor = $3`, chain, poolID, bettor)

	b, err := scanBetRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get bet %s/%d/%s: %w", chain, poolID, bettor, err)
	}
	return &b, nil
}

// ListBetsByPool returns all bets on a pool, earliest first.
func (s *BetStore) ListBetsByPool(ctx context.Context, chain string, poolID uint64) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betSelectCols+` FROM bets
		 WHERE chain = $1 AND pool_id = $2
		 ORDER BY placed_at ASC`, chain, poolID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for pool %s/%d: %w", chain, poolID, err)
	}
	defer rows.Close()

	bets, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bets for pool %s/%d: %w", chain, poolID, err)
	}
	return bets, nil
}

// ListBetsByBettor returns a bettor's bets on one chain, newest pool first.
func (s *BetStore) ListBetsByBettor(ctx context.Context, chain, bettor string, opts domain.ListOpts) ([]domain.Bet, error) {
	query := `SELECT ` + betSelectCols + ` FROM bets
		 WHERE chain = $1 AND bettor = $2
		 ORDER BY pool_id DESC`
	args := []any{chain, bettor}
	argIdx := 3

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
		return nil, fmt.Errorf("postgres: list bets for %s: %w", bettor, err)
	}
	defer rows.Close()

	bets, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bets for %s: %w", bettor, err)
	}
	return bets, nil
}

// MarkClaimed flips the claimed flag with a compare-and-set so a payout is
// handed out at most once, no matter how many claims race.
func (s *BetStore) MarkClaimed(ctx context.Context, chain string, poolID uint64, bettor string) error {
	const query = `
		UPDATE bets SET claimed = TRUE
		WHERE chain = $1 AND pool_id = $2 AND bettor = $3 AND claimed = FALSE`

	tag, err := s.pool.Exec(ctx, query, chain, poolID, bettor)
	if err != nil {
		return fmt.Errorf("postgres: mark claimed %s/%d/%s: %w", chain, poolID, bettor, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetBet(ctx, chain, poolID, bettor); getErr != nil {
			return getErr
		}
		return domain.ErrAlreadyClaimed
	}
	return nil
}
