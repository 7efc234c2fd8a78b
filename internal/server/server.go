// Package server exposes the settlement core over HTTP and WebSocket. All
// reads come from the local mirror; the mutating endpoints drive the
// resolution lifecycle and claims.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/extralife/marketd/internal/domain"
	"github.com/extralife/marketd/internal/server/handler"
	"github.com/extralife/marketd/internal/server/middleware"
	"github.com/extralife/marketd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port          int
	CORSOrigins   []string
	APIKey        string // empty disables auth on mutating routes
	RatePerMinute int    // 0 disables rate limiting
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health     *handler.HealthHandler
	Pools      *handler.PoolHandler
	Resolution *handler.ResolutionHandler
	Payouts    *handler.PayoutHandler
	Portfolio  *handler.PortfolioHandler
	Yield      *handler.YieldHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain. limiter
// may be nil when rate limiting is disabled.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health (no auth).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Pool reads.
	mux.HandleFunc("GET /api/pools", handlers.Pools.ListPools)
	mux.HandleFunc("GET /api/pools/{chain}/{id}", handlers.Pools.GetPool)
	mux.HandleFunc("GET /api/pools/{chain}/{id}/bets", handlers.Pools.ListBets)
	mux.HandleFunc("GET /api/chains/{chain}/pool-count", handlers.Pools.PoolCount)

	// Yield projections.
	mux.HandleFunc("GET /api/chains/{chain}/apy", handlers.Yield.CurrentAPY)
	mux.HandleFunc("GET /api/pools/{chain}/{id}/yield", handlers.Yield.ProjectPool)

	// Payouts.
	mux.HandleFunc("GET /api/pools/{chain}/{id}/payouts/{address}", handlers.Payouts.PreviewPayout)

	// Portfolio.
	mux.HandleFunc("GET /api/portfolio/{address}", handlers.Portfolio.GetPortfolio)

	// Mutating routes, guarded by auth when an API key is configured.
	auth := middleware.Auth(cfg.APIKey)
	mux.Handle("POST /api/pools/{chain}",
		auth(http.HandlerFunc(handlers.Pools.CreatePool)))
	mux.Handle("POST /api/pools/{chain}/{id}/bets",
		auth(http.HandlerFunc(handlers.Pools.PlaceBet)))
	mux.Handle("POST /api/pools/{chain}/{id}/resolution/request",
		auth(http.HandlerFunc(handlers.Resolution.RequestResolution)))
	mux.Handle("POST /api/pools/{chain}/{id}/resolution/settle",
		auth(http.HandlerFunc(handlers.Resolution.SettleResolution)))
	mux.Handle("POST /api/pools/{chain}/{id}/payouts/creator/claim",
		auth(http.HandlerFunc(handlers.Payouts.ClaimCreator)))
	mux.Handle("POST /api/pools/{chain}/{id}/payouts/{address}/claim",
		auth(http.HandlerFunc(handlers.Payouts.ClaimPayout)))

	// WebSocket event stream.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil && cfg.RatePerMinute > 0 {
		h = middleware.RateLimit(limiter, cfg.RatePerMinute, time.Minute)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

// Start listens until the server errors or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
