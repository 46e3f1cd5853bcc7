// Package queue publishes loop events to Kafka for downstream consumers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// Encoding selects the wire format of published events.
type Encoding string

const (
	EncodingJSON     Encoding = "json"
	EncodingProtobuf Encoding = "protobuf"
)

// Config holds the publisher settings.
type Config struct {
	Brokers  []string
	Topic    string
	Encoding Encoding
	// BatchTimeout caps how long the writer holds a partial batch.
	BatchTimeout time.Duration
}

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements domain.EventPublisher on a Kafka topic. Messages are
// keyed by cycle ID so every event of one cycle lands on one partition.
type Publisher struct {
	writer   MessageWriter
	topic    string
	encoding Encoding
}

// NewPublisher creates a publisher with a kafka-go writer.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("queue: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("queue: topic is required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(w, cfg.Topic, cfg.Encoding)
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w MessageWriter, topic string, enc Encoding) (*Publisher, error) {
	switch enc {
	case "":
		enc = EncodingJSON
	case EncodingJSON, EncodingProtobuf:
	default:
		return nil, fmt.Errorf("queue: unknown encoding %q", enc)
	}
	return &Publisher{writer: w, topic: topic, encoding: enc}, nil
}

// PublishEvent writes ev to the topic.
func (p *Publisher) PublishEvent(ctx context.Context, ev domain.Event) error {
	value, err := Encode(ev, p.encoding)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.CycleID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
			{Key: "encoding", Value: []byte(p.encoding)},
		},
		Time: ev.At,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("queue: write %s to %s: %w", ev.Type, p.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Encode renders ev in the requested encoding. The protobuf form is a
// google.protobuf.Struct carrying the same fields as the JSON form.
func Encode(ev domain.Event, enc Encoding) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal event: %w", err)
	}
	if enc != EncodingProtobuf {
		return raw, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("queue: event fields: %w", err)
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("queue: build struct: %w", err)
	}
	out, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal proto: %w", err)
	}
	return out, nil
}
