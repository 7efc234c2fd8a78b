package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/extralife/marketd/internal/domain"
)

// PortfolioService is the surface of the portfolio aggregator the handler
// uses.
type PortfolioService interface {
	GetPortfolio(ctx context.Context, address string) (*domain.Portfolio, error)
}

// PortfolioHandler serves the cross-chain portfolio endpoint.
type PortfolioHandler struct {
	portfolios PortfolioService
	logger     *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(portfolios PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		portfolios: portfolios,
		logger:     logHandler(logger, "portfolio"),
	}
}

type positionView struct {
	Chain     string          `json:"chain"`
	PoolID    uint64          `json:"pool_id"`
	Question  string          `json:"question"`
	Principal decimal.Decimal `json:"principal"`
	Side      string          `json:"side"`
	Weight    decimal.Decimal `json:"weight"`
	PlacedAt  time.Time       `json:"placed_at"`
	State     string          `json:"state"`
	Won       *bool           `json:"won,omitempty"`
	Claimed   bool            `json:"claimed"`
	Created   bool            `json:"created"`
	Profit    decimal.Decimal `json:"profit"`
}

type portfolioStatsView struct {
	TotalPools     int             `json:"total_pools"`
	ActivePools    int             `json:"active_pools"`
	ResolvedPools  int             `json:"resolved_pools"`
	CreatedPools   int             `json:"created_pools"`
	TotalBets      int             `json:"total_bets"`
	TotalPrincipal decimal.Decimal `json:"total_principal"`
	Wins           int             `json:"wins"`
	Losses         int             `json:"losses"`
	WinRate        decimal.Decimal `json:"win_rate"`
	Profit         decimal.Decimal `json:"profit"`
}

type portfolioView struct {
	Address     string             `json:"address"`
	DisplayName string             `json:"display_name"`
	Positions   []positionView     `json:"positions"`
	Stats       portfolioStatsView `json:"stats"`
	History     []positionView     `json:"history"`
}

func toPositionViews(positions []domain.Position) []positionView {
	views := make([]positionView, 0, len(positions))
	for _, pos := range positions {
		v := positionView{
			Chain:     pos.Chain,
			PoolID:    pos.PoolID,
			Question:  pos.Question,
			Principal: pos.Principal,
			Side:      domain.SideLabel(pos.Side),
			Weight:    pos.Weight,
			PlacedAt:  pos.PlacedAt,
			State:     string(pos.State),
			Claimed:   pos.Claimed,
			Created:   pos.Created,
			Profit:    pos.Profit,
		}
		if pos.Created {
			// Created entries have no side or outcome.
			v.Side = ""
		} else if pos.State == domain.StateResolved {
			won := pos.Won
			v.Won = &won
		}
		views = append(views, v)
	}
	return views
}

// GetPortfolio returns the merged cross-chain portfolio for an address.
// GET /api/portfolio/{address}
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.portfolios.GetPortfolio(r.Context(), addr)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get portfolio failed",
			slog.String("address", addr),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, portfolioView{
		Address:     p.Address,
		DisplayName: p.DisplayName,
		Positions:   toPositionViews(p.Positions),
		Stats: portfolioStatsView{
			TotalPools:     p.Stats.TotalPools,
			ActivePools:    p.Stats.ActivePools,
			ResolvedPools:  p.Stats.ResolvedPools,
			CreatedPools:   p.Stats.CreatedPools,
			TotalBets:      p.Stats.TotalBets,
			TotalPrincipal: p.Stats.TotalPrincipal,
			Wins:           p.Stats.Wins,
			Losses:         p.Stats.Losses,
			WinRate:        p.Stats.WinRate,
			Profit:         p.Stats.Profit,
		},
		History: toPositionViews(p.History),
	})
}
