package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/extralife/marketd/internal/domain"
)

// ResolutionService is the surface of the resolution lifecycle the handler
// uses.
type ResolutionService interface {
	RequestResolution(ctx context.Context, chain string, poolID uint64, actor string) error
	SettleResolution(ctx context.Context, chain string, poolID uint64, actor string) error
}

// ResolutionHandler serves the resolution lifecycle endpoints.
type ResolutionHandler struct {
	resolution ResolutionService
	logger     *slog.Logger
}

// NewResolutionHandler creates a ResolutionHandler.
func NewResolutionHandler(resolution ResolutionService, logger *slog.Logger) *ResolutionHandler {
	return &ResolutionHandler{
		resolution: resolution,
		logger:     logHandler(logger, "resolution"),
	}
}

type actorRequest struct {
	Actor string `json:"actor"`
}

func decodeActor(r *http.Request) string {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "api"
	}
	if actor := strings.TrimSpace(req.Actor); actor != "" {
		return strings.ToLower(actor)
	}
	return "api"
}

// RequestResolution opens the liveness window for a pool whose betting
// period has ended.
// POST /api/pools/{chain}/{id}/resolution/request
func (h *ResolutionHandler) RequestResolution(w http.ResponseWriter, r *http.Request) {
	chain, id, err := poolRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor := decodeActor(r)

	if err := h.resolution.RequestResolution(r.Context(), chain, id, actor); err != nil {
		if domain.Kind(err) == domain.KindUnknown {
			h.logger.ErrorContext(r.Context(), "request resolution failed",
				slog.String("chain", chain),
				slog.Uint64("pool_id", id),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"chain":   chain,
		"pool_id": id,
		"state":   string(domain.StateResolutionRequested),
	})
}

// SettleResolution settles a pool whose liveness window has elapsed.
// POST /api/pools/{chain}/{id}/resolution/settle
func (h *ResolutionHandler) SettleResolution(w http.ResponseWriter, r *http.Request) {
	chain, id, err := poolRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor := decodeActor(r)

	if err := h.resolution.SettleResolution(r.Context(), chain, id, actor); err != nil {
		if domain.Kind(err) == domain.KindUnknown {
			h.logger.ErrorContext(r.Context(), "settle resolution failed",
				slog.String("chain", chain),
				slog.Uint64("pool_id", id),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chain":   chain,
		"pool_id": id,
		"state":   string(domain.StateResolved),
	})
}
