package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/extralife/marketd/internal/domain"
)

// processedTTL bounds how long event ids stay in the dedup set. Reorgs and
// poller restarts replay well inside this window.
const processedTTL = 24 * time.Hour

// LogSource is the slice of a chain event reader the poller needs.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FetchEvents(ctx context.Context, from, to uint64) ([]domain.ChainEvent, error)
	BlockTime(ctx context.Context, n uint64) (time.Time, error)
}

// Poller tails one chain's market contract logs and feeds them through the
// mirror. Delivery is at least once; the mirror and the processed set
// between them make replays harmless.
type Poller struct {
	chain     string
	source    LogSource
	mirror    *Mirror
	processed domain.ProcessedSet
	bus       domain.SignalBus
	interval  time.Duration
	logger    *slog.Logger

	lastBlock uint64
}

// NewPoller creates a Poller for one chain.
func NewPoller(
	chainName string,
	source LogSource,
	mirror *Mirror,
	processed domain.ProcessedSet,
	bus domain.SignalBus,
	interval time.Duration,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		chain:     chainName,
		source:    source,
		mirror:    mirror,
		processed: processed,
		bus:       bus,
		interval:  interval,
		logger:    logger.With(slog.String("component", "poller"), slog.String("chain", chainName)),
	}
}

// Run backfills the mirror, then polls for new logs until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.mirror.Backfill(ctx); err != nil {
		return err
	}

	head, err := p.source.BlockNumber(ctx)
	if err != nil {
		return err
	}
	p.lastBlock = head
	p.logger.Info("poller started",
		slog.Uint64("from_block", head),
		slog.Duration("interval", p.interval),
	)
	defer p.logger.Info("poller stopped")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.logger.WarnContext(ctx, "poll failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	head, err := p.source.BlockNumber(ctx)
	if err != nil {
		return err
	}
	if head <= p.lastBlock {
		return nil
	}

	events, err := p.source.FetchEvents(ctx, p.lastBlock+1, head)
	if err != nil {
		return err
	}

	blockTimes := make(map[uint64]time.Time, 4)
	for _, ev := range events {
		first, err := p.processed.MarkProcessed(ctx, ev.ID, processedTTL)
		if err != nil {
			p.logger.WarnContext(ctx, "dedup check failed, applying anyway",
				slog.String("event_id", ev.ID),
				slog.String("error", err.Error()),
			)
		} else if !first {
			continue
		}

		at, ok := blockTimes[ev.BlockNumber]
		if !ok {
			at, err = p.source.BlockTime(ctx, ev.BlockNumber)
			if err != nil {
				p.logger.WarnContext(ctx, "block time lookup failed",
					slog.Uint64("block", ev.BlockNumber),
					slog.String("error", err.Error()),
				)
				at = ev.ObservedAt
			}
			blockTimes[ev.BlockNumber] = at
		}

		if err := p.mirror.Apply(ctx, ev, at); err != nil {
			p.logger.WarnContext(ctx, "mirror apply failed",
				slog.String("event_id", ev.ID),
				slog.String("type", ev.Event.Type),
				slog.String("error", err.Error()),
			)
			continue
		}

		out := ev.Event
		out.Timestamp = at
		if err := p.bus.Publish(ctx, out); err != nil {
			p.logger.WarnContext(ctx, "event publish failed",
				slog.String("event_id", ev.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	p.lastBlock = head
	return nil
}
