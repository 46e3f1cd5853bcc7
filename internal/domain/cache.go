package domain

import (
	"context"
	"time"
)

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// QuoteStore keeps the most recent quote per asset for observers. The price
// oracle never reads from it.
type QuoteStore interface {
	SetQuotes(ctx context.Context, quotes QuoteSet) error
	GetQuotes(ctx context.Context, assetIDs []string) ([]Quote, error)
}

// SignalBus provides pub/sub messaging.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// EventPublisher delivers loop events to an external sink.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev Event) error
}
