// Package worker relays queued selection events to an outbound sink.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/whodle/internal/adapters/mq/queue"
	"github.com/okian/whodle/pkg/logger"
	"github.com/okian/whodle/pkg/metrics"
)

const (
	defaultRetries    = 3
	defaultRetryDelay = 500 * time.Millisecond
)

// Sink delivers one event, e.g. to a Kafka topic.
type Sink interface {
	Deliver(ctx context.Context, e queue.Event) error
}

// Queue defines how the relay receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Event
}

// Relay drains a queue into a sink until the queue closes or ctx is done.
type Relay struct {
	queue      Queue
	sink       Sink
	name       string
	retries    int
	retryDelay time.Duration

	done   chan struct{}
	logger logger.Logger
}

// NewRelay creates a relay worker.
func NewRelay(q Queue, sink Sink, opts ...Option) *Relay {
	r := &Relay{
		queue:      q,
		sink:       sink,
		name:       "relay",
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named(r.name)
	}
	return r
}

// Run delivers events until the queue channel closes or ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.done)

	events := r.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := r.deliver(ctx, e); err != nil {
				r.logger.Error(ctx, "event delivery failed",
					logger.String("run_id", e.RunID),
					logger.String("date", e.Date),
					logger.Error(err),
				)
			}
		}
	}
}

// Wait blocks until Run returns or ctx is done.
func (r *Relay) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		r.logger.Warn(ctx, "relay shutdown timed out")
		return fmt.Errorf("relay shutdown timed out: %w", ctx.Err())
	}
}

func (r *Relay) deliver(ctx context.Context, e queue.Event) error {
	var err error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.retryDelay * time.Duration(attempt)):
			}
		}
		if err = r.sink.Deliver(ctx, e); err == nil {
			metrics.RecordEventPublished(true)
			return nil
		}
		r.logger.Warn(ctx, "event delivery attempt failed",
			logger.Int("attempt", attempt+1),
			logger.Error(err),
		)
	}
	metrics.RecordEventPublished(false)
	metrics.RecordErrorByComponent("relay", "delivery_failed")
	return fmt.Errorf("deliver event %s after %d attempts: %w", e.RunID, r.retries+1, err)
}
