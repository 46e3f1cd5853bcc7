// Package notify alerts operators about bundle outcomes and cycle errors over
// Telegram and Discord.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// DefaultEvents are forwarded when no event filter is configured.
var DefaultEvents = []domain.EventType{
	domain.EventBundleLanded,
	domain.EventBundleFailed,
	domain.EventBundleUnknown,
	domain.EventCycleError,
}

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier forwards selected loop events to every sender.
type Notifier struct {
	senders []Sender
	events  map[domain.EventType]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list means DefaultEvents;
// "all" lets every event type through.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventType]bool)
	all := false
	for _, e := range events {
		e = strings.TrimSpace(e)
		if e == "all" {
			all = true
			continue
		}
		if e != "" {
			allowed[domain.EventType(e)] = true
		}
	}
	if all {
		allowed = nil
	} else if len(allowed) == 0 {
		for _, e := range DefaultEvents {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool { return len(n.senders) > 0 }

// Wants reports whether events of type t pass the filter.
func (n *Notifier) Wants(t domain.EventType) bool {
	return n.events == nil || n.events[t]
}

// NotifyEvent formats ev and delivers it when its type passes the filter.
func (n *Notifier) NotifyEvent(ctx context.Context, ev domain.Event) error {
	if !n.Wants(ev.Type) {
		return nil
	}
	title, message := Format(ev)
	return n.dispatch(ctx, title, message)
}

// NotifyAll sends a free-form message regardless of the filter.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch delivers to every sender; one failing sender does not stop the
// others.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}

// Format renders an event as a title and body.
func Format(ev domain.Event) (title, message string) {
	switch ev.Type {
	case domain.EventBundleLanded:
		title = "Bundle landed"
	case domain.EventBundleFailed:
		title = "Bundle failed"
	case domain.EventBundleUnknown:
		title = "Bundle outcome unknown"
	case domain.EventCycleError:
		title = "Cycle error"
	case domain.EventOpportunity:
		title = "Opportunity detected"
	default:
		title = string(ev.Type)
	}

	var b strings.Builder
	line := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
	}
	line("asset", ev.AssetID)
	line("spread", ev.Spread)
	line("bundle", ev.BundleID)
	line("status", ev.Status)
	line("detail", ev.Message)
	line("cycle", ev.CycleID)
	return title, strings.TrimRight(b.String(), "\n")
}
