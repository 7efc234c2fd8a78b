package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/extralife/marketd/internal/domain"
)

// PayoutService is the surface of the payout calculator the handler uses.
type PayoutService interface {
	PreviewPayout(ctx context.Context, chain string, poolID uint64, bettor string) (*domain.Payout, error)
	ClaimPayout(ctx context.Context, chain string, poolID uint64, bettor string) (*domain.Payout, error)
	ClaimCreator(ctx context.Context, chain string, poolID uint64, actor string) (*domain.Payout, error)
}

// PayoutHandler serves payout preview and claim endpoints.
type PayoutHandler struct {
	payouts PayoutService
	logger  *slog.Logger
}

// NewPayoutHandler creates a PayoutHandler.
func NewPayoutHandler(payouts PayoutService, logger *slog.Logger) *PayoutHandler {
	return &PayoutHandler{
		payouts: payouts,
		logger:  logHandler(logger, "payouts"),
	}
}

// PreviewPayout returns what a bettor would receive, without claiming.
// GET /api/pools/{chain}/{id}/payouts/{address}
func (h *PayoutHandler) PreviewPayout(w http.ResponseWriter, r *http.Request) {
	chain, id, err := poolRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.payouts.PreviewPayout(r.Context(), chain, id, addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutView(*p))
}

// ClaimPayout marks a bettor's payout claimed, exactly once.
// POST /api/pools/{chain}/{id}/payouts/{address}/claim
func (h *PayoutHandler) ClaimPayout(w http.ResponseWriter, r *http.Request) {
	chain, id, err := poolRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.payouts.ClaimPayout(r.Context(), chain, id, addr)
	if err != nil {
		if domain.Kind(err) == domain.KindUnknown {
			h.logger.ErrorContext(r.Context(), "claim payout failed",
				slog.String("chain", chain),
				slog.Uint64("pool_id", id),
				slog.String("bettor", addr),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutView(*p))
}

// ClaimCreator marks the creator reward claimed, exactly once.
// POST /api/pools/{chain}/{id}/payouts/creator/claim
func (h *PayoutHandler) ClaimCreator(w http.ResponseWriter, r *http.Request) {
	chain, id, err := poolRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor := decodeActor(r)

	p, err := h.payouts.ClaimCreator(r.Context(), chain, id, actor)
	if err != nil {
		if domain.Kind(err) == domain.KindUnknown {
			h.logger.ErrorContext(r.Context(), "claim creator failed",
				slog.String("chain", chain),
				slog.Uint64("pool_id", id),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutView(*p))
}
