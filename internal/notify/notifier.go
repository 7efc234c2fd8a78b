// Package notify pushes pool lifecycle alerts to operators. A Notifier
// subscribes to the pool event bus and fans each event out to the configured
// channels (Telegram, Discord), filtered by event type.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/extralife/marketd/internal/domain"
	"github.com/extralife/marketd/internal/identity"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel in logs (e.g. "telegram").
	Name() string
}

// Notifier watches the pool event bus and dispatches alerts. Only events
// whose type is in the configured set are forwarded; an empty set forwards
// everything.
type Notifier struct {
	senders []Sender
	bus     domain.SignalBus
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders.
func NewNotifier(senders []Sender, bus domain.SignalBus, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		bus:     bus,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Run subscribes to the event bus and dispatches until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	if len(n.senders) == 0 {
		n.logger.Info("no senders configured, notifier idle")
		<-ctx.Done()
		return ctx.Err()
	}

	ch, err := n.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("notify: subscribe: %w", err)
	}
	n.logger.Info("notifier started", slog.Int("senders", len(n.senders)))
	defer n.logger.Info("notifier stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if len(n.events) > 0 && !n.events[ev.Type] {
				continue
			}
			title, message := format(ev)
			if err := n.dispatch(ctx, title, message); err != nil {
				n.logger.WarnContext(ctx, "notification delivery degraded",
					slog.String("event", ev.Type),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Announce sends a message to every channel regardless of the event filter.
// Used for daemon lifecycle messages.
func (n *Notifier) Announce(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// format renders a pool event as a short operator-facing message.
func format(ev domain.PoolEvent) (string, string) {
	ref := fmt.Sprintf("pool %d on %s", ev.PoolID, ev.Chain)

	switch ev.Type {
	case domain.EventPoolCreated:
		return "Pool created", ref

	case domain.EventBetPlaced:
		side := "?"
		if ev.Side != nil {
			side = domain.SideLabel(*ev.Side)
		}
		return "Bet placed", fmt.Sprintf("%s bet %s on %s, %s",
			identity.Truncate(ev.Bettor), ev.Amount.String(), side, ref)

	case domain.EventResolutionRequested:
		return "Resolution requested", ref + ", liveness window open"

	case domain.EventPoolResolved:
		outcome := "?"
		if ev.Outcome != nil {
			outcome = domain.SideLabel(*ev.Outcome)
		}
		return "Pool resolved", fmt.Sprintf("%s, outcome %s", ref, outcome)

	case domain.EventPayoutClaimed:
		return "Payout claimed", fmt.Sprintf("%s claimed %s, %s",
			identity.Truncate(ev.Bettor), ev.Amount.String(), ref)
	}

	return ev.Type, ref
}

// dispatch delivers to every sender, collecting failures so one dead channel
// never blocks the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
