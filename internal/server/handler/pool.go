package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/extralife/marketd/internal/domain"
)

// PoolService is the surface of the pool ledger the handler uses.
type PoolService interface {
	CreatePool(ctx context.Context, p *domain.Pool) error
	GetPool(ctx context.Context, chain string, id uint64) (*domain.Pool, error)
	ListPools(ctx context.Context, f domain.PoolFilter, opts domain.ListOpts) ([]domain.Pool, error)
	PoolCount(ctx context.Context, chain string) (uint64, error)
	ListBets(ctx context.Context, chain string, poolID uint64) ([]domain.Bet, error)
	AcceptBet(ctx context.Context, chain string, poolID uint64, bettor string, principal decimal.Decimal, side bool) (*domain.Bet, error)
}

// PoolHandler serves pool and bet endpoints.
type PoolHandler struct {
	pools  PoolService
	clock  domain.Clock
	logger *slog.Logger
}

// NewPoolHandler creates a PoolHandler.
func NewPoolHandler(pools PoolService, clock domain.Clock, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{
		pools:  pools,
		clock:  clock,
		logger: logHandler(logger, "pools"),
	}
}

type listPoolsResponse struct {
	Pools  []poolView `json:"pools"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// ListPools returns pools, optionally filtered.
// GET /api/pools?chain=&creator=&resolved=&live=&limit=&offset=
func (h *PoolHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := h.clock.Now()

	f := domain.PoolFilter{
		Chain:   q.Get("chain"),
		Creator: strings.ToLower(q.Get("creator")),
	}
	if v := q.Get("resolved"); v != "" {
		resolved := v == "true"
		f.Resolved = &resolved
	}
	if q.Get("live") == "true" {
		f.LiveAt = &now
	}
	opts := parseListOpts(r)

	pools, err := h.pools.ListPools(r.Context(), f, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list pools failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list pools")
		return
	}

	views := make([]poolView, 0, len(pools))
	for _, p := range pools {
		views = append(views, toPoolView(p, now))
	}
	writeJSON(w, http.StatusOK, listPoolsResponse{Pools: views, Limit: opts.Limit, Offset: opts.Offset})
}

// GetPool returns one pool.
// GET /api/pools/{chain}/{id}
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	chain, id, err := poolRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.pools.GetPool(r.Context(), chain, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPoolView(*p, h.clock.Now()))
}

// PoolCount returns the number of pools mirrored for a chain.
// GET /api/chains/{chain}/pool-count
func (h *PoolHandler) PoolCount(w http.ResponseWriter, r *http.Request) {
	chain := r.PathValue("chain")
	if chain == "" {
		writeError(w, http.StatusBadRequest, "missing chain")
		return
	}

	count, err := h.pools.PoolCount(r.Context(), chain)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chain": chain, "pool_count": count})
}

// ListBets returns every bet in a pool.
// GET /api/pools/{chain}/{id}/bets
func (h *PoolHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	chain, id, err := poolRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bets, err := h.pools.ListBets(r.Context(), chain, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]betView, 0, len(bets))
	for _, b := range bets {
		views = append(views, toBetView(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": views})
}

type createPoolRequest struct {
	PoolID         uint64    `json:"pool_id"`
	Question       string    `json:"question"`
	Creator        string    `json:"creator"`
	BettingEndTime time.Time `json:"betting_end_time"`
	CreatorDeposit string    `json:"creator_deposit"`
}

// CreatePool records a new pool. Exposed for deployments where the daemon
// fronts the contract; the pool id must match the contract's so the mirror
// and the API agree.
// POST /api/pools/{chain}
func (h *PoolHandler) CreatePool(w http.ResponseWriter, r *http.Request) {
	chain := r.PathValue("chain")
	if chain == "" {
		writeError(w, http.StatusBadRequest, "missing chain")
		return
	}

	var req createPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	creator := strings.ToLower(strings.TrimSpace(req.Creator))
	if !validAddress(creator) {
		writeError(w, http.StatusBadRequest, "invalid creator address")
		return
	}
	deposit := decimal.Zero
	if req.CreatorDeposit != "" {
		var err error
		deposit, err = decimal.NewFromString(req.CreatorDeposit)
		if err != nil || deposit.Sign() < 0 {
			writeError(w, http.StatusBadRequest, "invalid creator_deposit")
			return
		}
	}

	now := h.clock.Now()
	p := &domain.Pool{
		ID:               req.PoolID,
		Chain:            chain,
		Question:         strings.TrimSpace(req.Question),
		Creator:          creator,
		CreatedAt:        now,
		BettingEndTime:   req.BettingEndTime,
		CreatorPrincipal: deposit,
	}
	if err := h.pools.CreatePool(r.Context(), p); err != nil {
		if domain.Kind(err) == domain.KindUnknown {
			h.logger.ErrorContext(r.Context(), "create pool failed",
				slog.String("chain", chain),
				slog.Uint64("pool_id", req.PoolID),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPoolView(*p, now))
}

type placeBetRequest struct {
	Bettor string `json:"bettor"`
	Amount string `json:"amount"`
	Side   string `json:"side"` // "yes" or "no"
}

// PlaceBet records a bet through the ledger. Exposed for deployments where
// the daemon fronts the contract; in mirror mode bets arrive via the poller
// and this endpoint is not routed.
// POST /api/pools/{chain}/{id}/bets
func (h *PoolHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	chain, id, err := poolRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bettor := strings.ToLower(strings.TrimSpace(req.Bettor))
	if !validAddress(bettor) {
		writeError(w, http.StatusBadRequest, "invalid bettor address")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	var side bool
	switch strings.ToLower(req.Side) {
	case "yes":
		side = domain.SideYes
	case "no":
		side = domain.SideNo
	default:
		writeError(w, http.StatusBadRequest, `side must be "yes" or "no"`)
		return
	}

	bet, err := h.pools.AcceptBet(r.Context(), chain, id, bettor, amount, side)
	if err != nil {
		if domain.Kind(err) == domain.KindUnknown {
			h.logger.ErrorContext(r.Context(), "accept bet failed",
				slog.String("chain", chain),
				slog.Uint64("pool_id", id),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBetView(*bet))
}
