package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/jitoarb/internal/domain"
	"github.com/alanyoungcy/jitoarb/internal/notify"
)

const (
	eventBuffer         = 256
	eventPublishTimeout = 5 * time.Second
)

// namedPublisher pairs a sink with a name for logging.
type namedPublisher struct {
	name string
	pub  domain.EventPublisher
}

// Fanout is the loop's event sink. Emit never blocks the loop; a single
// worker delivers each event to every publisher in registration order.
type Fanout struct {
	ch     chan domain.Event
	pubs   []namedPublisher
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	logger *slog.Logger
}

// NewFanout creates an empty Fanout.
func NewFanout(logger *slog.Logger) *Fanout {
	return &Fanout{
		ch:     make(chan domain.Event, eventBuffer),
		logger: logger.With(slog.String("component", "events")),
	}
}

// Add registers a publisher. Call before Run.
func (f *Fanout) Add(name string, pub domain.EventPublisher) {
	f.pubs = append(f.pubs, namedPublisher{name: name, pub: pub})
}

// Emit queues ev, dropping it when the buffer is full or Close was called.
func (f *Fanout) Emit(_ context.Context, ev domain.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- ev:
	default:
		f.logger.Warn("event buffer full, dropping event", slog.String("type", string(ev.Type)))
	}
}

// Run delivers events until Close is called and the buffer is drained.
// Publishing uses ctx values but not its cancellation, so events emitted
// while shutting down still go out.
func (f *Fanout) Run(ctx context.Context) error {
	base := context.WithoutCancel(ctx)
	for ev := range f.ch {
		f.dispatch(base, ev)
	}
	return nil
}

// Close stops accepting events. Run returns after the backlog is sent.
func (f *Fanout) Close() {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		close(f.ch)
		f.mu.Unlock()
	})
}

func (f *Fanout) dispatch(ctx context.Context, ev domain.Event) {
	for _, p := range f.pubs {
		pctx, cancel := context.WithTimeout(ctx, eventPublishTimeout)
		err := p.pub.PublishEvent(pctx, ev)
		cancel()
		if err != nil {
			f.logger.Warn("event publish failed",
				slog.String("sink", p.name),
				slog.String("type", string(ev.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// busPublisher publishes events as JSON on a SignalBus channel.
type busPublisher struct {
	bus     domain.SignalBus
	channel string
}

func (b busPublisher) PublishEvent(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.bus.Publish(ctx, b.channel, payload)
}

// notifierPublisher adapts a Notifier to domain.EventPublisher.
type notifierPublisher struct {
	n *notify.Notifier
}

func (p notifierPublisher) PublishEvent(ctx context.Context, ev domain.Event) error {
	return p.n.NotifyEvent(ctx, ev)
}
