package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (r *recordingPublisher) PublishEvent(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func TestFanoutDeliversToEverySink(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("down")}
	ok := &recordingPublisher{}

	f := NewFanout(discardLogger())
	f.Add("failing", failing)
	f.Add("ok", ok)

	done := make(chan struct{})
	go func() {
		_ = f.Run(context.Background())
		close(done)
	}()

	f.Emit(context.Background(), domain.Event{Type: domain.EventOpportunity, CycleID: "1"})
	f.Emit(context.Background(), domain.Event{Type: domain.EventBundleLanded, CycleID: "1"})
	f.Close()
	<-done

	if len(ok.events) != 2 || len(failing.events) != 2 {
		t.Fatalf("ok=%d failing=%d, want 2 each", len(ok.events), len(failing.events))
	}
	if ok.events[1].Type != domain.EventBundleLanded {
		t.Fatalf("order not preserved: %+v", ok.events)
	}

	// Emit after Close is a no-op, not a panic.
	f.Emit(context.Background(), domain.Event{Type: domain.EventCycleError})
	f.Close()
}

func TestFanoutDrainsAfterContextCancel(t *testing.T) {
	sink := &recordingPublisher{}
	f := NewFanout(discardLogger())
	f.Add("sink", sink)

	ctx, cancel := context.WithCancel(context.Background())
	f.Emit(ctx, domain.Event{Type: domain.EventBundleUnknown})
	cancel()
	f.Close()

	if err := f.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
}

type memBus struct {
	channel string
	payload []byte
}

func (m *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	m.channel, m.payload = channel, payload
	return nil
}

func (m *memBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }

func TestBusPublisherEncodesJSON(t *testing.T) {
	bus := &memBus{}
	p := busPublisher{bus: bus, channel: "events"}
	if err := p.PublishEvent(context.Background(), domain.Event{Type: domain.EventBundleFailed, BundleID: "x"}); err != nil {
		t.Fatal(err)
	}
	var got domain.Event
	if err := json.Unmarshal(bus.payload, &got); err != nil {
		t.Fatal(err)
	}
	if bus.channel != "events" || got.BundleID != "x" {
		t.Fatalf("channel=%q event=%+v", bus.channel, got)
	}
}
