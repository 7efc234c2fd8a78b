package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/extralife/marketd/internal/domain"
	"github.com/extralife/marketd/internal/feed"
	"github.com/extralife/marketd/internal/server"
	"github.com/extralife/marketd/internal/server/handler"
	"github.com/extralife/marketd/internal/server/ws"
)

const (
	// settleInterval is how often the settler scans for pools whose
	// liveness window has elapsed.
	settleInterval = 30 * time.Second

	// archiveInterval is how often resolved pools are swept into the
	// settlement archive.
	archiveInterval = time.Hour

	// shutdownTimeout bounds the HTTP server drain on exit.
	shutdownTimeout = 10 * time.Second
)

// MirrorMode follows the contract event streams and keeps the local pool and
// bet mirror current. It serves no traffic and submits no transactions.
func (a *App) MirrorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting mirror mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startPollers(ctx, g, deps)
	a.startNotifier(ctx, g, deps)
	return g.Wait()
}

// SettleMode mirrors the chains and additionally drives resolution: pools
// whose liveness window has elapsed get their outcome read from the oracle
// and settled on chain.
func (a *App) SettleMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting settle mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startPollers(ctx, g, deps)
	a.startSettler(ctx, g, deps)
	a.startNotifier(ctx, g, deps)
	return g.Wait()
}

// ServerMode serves the HTTP API and websocket stream off the mirrored state.
// It assumes another instance (mirror or settle mode) keeps the mirror fresh.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs everything in one process: mirroring, settlement, the
// archive sweep, notifications, and the HTTP server when enabled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startPollers(ctx, g, deps)
	a.startSettler(ctx, g, deps)
	a.startArchiver(ctx, g, deps)
	a.startNotifier(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}
	return g.Wait()
}

// startPollers launches one event poller per configured chain.
func (a *App) startPollers(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	for _, chainCfg := range a.cfg.Chains {
		name := chainCfg.Name
		reader, ok := deps.Readers[name]
		if !ok {
			a.logger.WarnContext(ctx, "no event reader wired, skipping chain",
				slog.String("chain", name))
			continue
		}

		mirror := feed.NewMirror(
			name,
			deps.Authorities[name],
			deps.PoolStore,
			deps.BetStore,
			deps.Weights,
			a.base,
		)
		poller := feed.NewPoller(
			name,
			reader,
			mirror,
			deps.ProcessedSet,
			deps.SignalBus,
			chainCfg.PollInterval.Duration,
			a.base,
		)
		g.Go(func() error {
			return poller.Run(ctx)
		})
	}
}

// startSettler launches the periodic scan that settles due pools.
func (a *App) startSettler(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		ticker := time.NewTicker(settleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				for _, chainCfg := range a.cfg.Chains {
					if err := deps.Resolution.SettleDue(ctx, chainCfg.Name); err != nil {
						a.logger.WarnContext(ctx, "settle scan failed",
							slog.String("chain", chainCfg.Name),
							slog.String("error", err.Error()),
						)
					}
				}
			}
		}
	})
}

// startArchiver launches the sweep that copies resolved pools into blob
// storage. Skipped when no archiver is wired (non-full modes).
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}
	g.Go(func() error {
		ticker := time.NewTicker(archiveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				cutoff := time.Now().UTC()
				for _, chainCfg := range a.cfg.Chains {
					n, err := deps.Archiver.ArchiveResolved(ctx, chainCfg.Name, cutoff)
					if err != nil {
						a.logger.WarnContext(ctx, "archive sweep failed",
							slog.String("chain", chainCfg.Name),
							slog.String("error", err.Error()),
						)
						continue
					}
					if n > 0 {
						a.logger.InfoContext(ctx, "archived settled pools",
							slog.String("chain", chainCfg.Name),
							slog.Int64("count", n),
						)
					}
				}
			}
		}
	})
}

// startNotifier forwards bus events to the configured senders.
func (a *App) startNotifier(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		return deps.Notifier.Run(ctx)
	})
}

// startServer launches the HTTP API, the websocket hub, and a drain goroutine
// that shuts the server down when the context is cancelled.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	startedAt := time.Now().UTC()

	hub := ws.NewHub(deps.SignalBus, a.base, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: startedAt,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(startedAt, a.base),
		Pools:      handler.NewPoolHandler(deps.Pools, domain.RealClock{}, a.base),
		Resolution: handler.NewResolutionHandler(deps.Resolution, a.base),
		Payouts:    handler.NewPayoutHandler(deps.Payouts, a.base),
		Portfolio:  handler.NewPortfolioHandler(deps.Portfolio, a.base),
		Yield:      handler.NewYieldHandler(deps.Yield, a.base),
	}

	srv := server.NewServer(server.Config{
		Port:          a.cfg.Server.Port,
		CORSOrigins:   a.cfg.Server.CORSOrigins,
		APIKey:        a.cfg.Server.APIKey,
		RatePerMinute: a.cfg.Server.RatePerMinute,
	}, handlers, hub, deps.RateLimiter, a.base)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(drainCtx)
	})
}
