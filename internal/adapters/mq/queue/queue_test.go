package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/whodle/internal/domain/model"
)

func event(date string) model.SelectionEvent {
	return model.SelectionEvent{RunID: "run-" + date, Date: date, Variants: model.Variants, Added: 3}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if err := q.Publish(ctx, event("2026-04-01")); err != nil {
		t.Fatalf("expected publish to succeed: %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.Date != "2026-04-01" || got.Added != 3 {
		t.Errorf("unexpected event %+v", got)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for _, d := range []string{"2026-04-01", "2026-04-02"} {
		if err := q.Publish(ctx, event(d)); err != nil {
			t.Fatalf("publish %s: %v", d, err)
		}
	}

	if err := q.Publish(ctx, event("2026-04-03")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = q.Publish(ctx, event(fmt.Sprintf("%d-%d", id, j)))
			}
		}(i)
	}
	wg.Wait()
	_ = q.Close()

	seen := 0
	for range q.Dequeue(ctx) {
		seen++
	}
	if seen != 100 {
		t.Errorf("expected 100 events, got %d", seen)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	if err := q.Publish(ctx, event("2026-04-01")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if err := q.Publish(ctx, event("2026-04-02")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	ch := q.Dequeue(ctx)
	select {
	case e, ok := <-ch:
		if !ok || e.Date != "2026-04-01" {
			t.Errorf("expected queued event to drain after close, got %+v ok=%v", e, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out draining closed queue")
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel to close after drain")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	_ = q.Publish(context.Background(), event("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Full queue with a done context: either error is acceptable, but it must not block.
	if err := q.Publish(ctx, event("b")); err == nil {
		t.Error("expected publish to fail")
	}
}

func TestInMemoryQueue_DequeueStopsOnCancelWhileIdle(t *testing.T) {
	q := NewInMemoryQueue()
	defer func() { _ = q.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	ch := q.Dequeue(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected no event from an empty queue")
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not stop after its context was cancelled")
	}
	if q.IsClosed() {
		t.Error("cancelling a consumer must not close the queue")
	}
}
