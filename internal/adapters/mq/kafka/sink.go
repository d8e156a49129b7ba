// Package kafka writes selection events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/okian/whodle/internal/adapters/mq/queue"
)

// ErrNoBrokers is returned when the sink is built without brokers.
var ErrNoBrokers = errors.New("kafka: no brokers configured")

// MessageWriter is the subset of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Sink encodes events as JSON keyed by date.
type Sink struct {
	w            MessageWriter
	writeTimeout time.Duration
}

// Option configures a Sink.
type Option func(*Sink)

// WithWriter replaces the kafka-go writer, mostly for tests.
func WithWriter(w MessageWriter) Option {
	return func(s *Sink) {
		if w != nil {
			s.w = w
		}
	}
}

// WithWriteTimeout bounds a single delivery.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// NewSink builds a sink for topic on brokers.
func NewSink(brokers []string, topic string, opts ...Option) (*Sink, error) {
	s := &Sink{writeTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	if s.w == nil {
		if len(brokers) == 0 {
			return nil, ErrNoBrokers
		}
		s.w = &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireOne,
			Async:        false,
		}
	}
	return s, nil
}

// Deliver writes one event.
func (s *Sink) Deliver(ctx context.Context, e queue.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	if err := s.w.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(e.Date),
		Value: payload,
		Time:  e.At,
	}); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *Sink) Close() error {
	return s.w.Close()
}
