package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adforge/ad-recipe-back/internal/domain"
)

func TestLocalQueueDeliversEnqueuedMessages(t *testing.T) {
	q := NewLocalQueue(8, 3, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Enqueue(ctx, domain.QueueMessage{TaskID: "task-1", Kind: domain.TaskKindAdConcept}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	received := make(chan domain.QueueMessage, 1)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, message domain.QueueMessage) error {
			received <- message
			cancel()
			return nil
		})
	}()

	select {
	case message := <-received:
		if message.TaskID != "task-1" {
			t.Fatalf("unexpected task id: %s", message.TaskID)
		}
	case <-time.After(time.Second):
		t.Fatalf("message not delivered")
	}
}

func TestLocalQueueDeadLettersAfterMaxAttempts(t *testing.T) {
	q := NewLocalQueue(8, 2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Enqueue(ctx, domain.QueueMessage{TaskID: "task-1", Kind: domain.TaskKindSalesPage}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		_ = q.Consume(ctx, func(context.Context, domain.QueueMessage) error {
			if calls.Add(1) == 2 {
				close(done)
			}
			return errors.New("store unreachable")
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("message was not redelivered")
	}

	deadline := time.Now().Add(time.Second)
	for q.DLQSize() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected message in dlq after %d attempts", calls.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := calls.Load(); got != 2 {
		t.Fatalf("expected exactly 2 delivery attempts, got %d", got)
	}
}
