package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/extralife/marketd/internal/domain"
)

// YieldService is the surface of the yield projector the handler uses.
type YieldService interface {
	CurrentAPY(ctx context.Context, chain string) decimal.Decimal
	ProjectPool(ctx context.Context, chain string, poolID uint64) (*domain.YieldProjection, error)
}

// YieldHandler serves yield projection endpoints.
type YieldHandler struct {
	yields YieldService
	logger *slog.Logger
}

// NewYieldHandler creates a YieldHandler.
func NewYieldHandler(yields YieldService, logger *slog.Logger) *YieldHandler {
	return &YieldHandler{
		yields: yields,
		logger: logHandler(logger, "yield"),
	}
}

// CurrentAPY returns the APY the projector is currently using for a chain.
// GET /api/chains/{chain}/apy
func (h *YieldHandler) CurrentAPY(w http.ResponseWriter, r *http.Request) {
	chain := r.PathValue("chain")
	if chain == "" {
		writeError(w, http.StatusBadRequest, "missing chain")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chain":       chain,
		"apy_percent": h.yields.CurrentAPY(r.Context(), chain),
	})
}

type projectionView struct {
	Total         decimal.Decimal `json:"total"`
	PrizePool     decimal.Decimal `json:"prize_pool"`
	CreatorReward decimal.Decimal `json:"creator_reward"`
	Settled       bool            `json:"settled"`
}

// ProjectPool returns the projected (or settled) yield split for a pool.
// GET /api/pools/{chain}/{id}/yield
func (h *YieldHandler) ProjectPool(w http.ResponseWriter, r *http.Request) {
	chain, id, err := poolRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	proj, err := h.yields.ProjectPool(r.Context(), chain, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectionView{
		Total:         proj.Total,
		PrizePool:     proj.PrizePool,
		CreatorReward: proj.CreatorReward,
		Settled:       proj.Settled,
	})
}
