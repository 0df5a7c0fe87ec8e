package queue

import (
	"context"
	"log"
	"sync"

	"github.com/adforge/ad-recipe-back/internal/domain"
)

// LocalQueue is a fallback queue used when Redis is not configured. All task
// kinds share one channel; routing only matters for the Streams backend.
type LocalQueue struct {
	ch          chan domain.QueueMessage
	maxAttempts int
	logger      *log.Logger

	dlqMu sync.Mutex
	dlq   []domain.QueueMessage
}

func NewLocalQueue(bufferSize, maxAttempts int, logger *log.Logger) *LocalQueue {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &LocalQueue{
		ch:          make(chan domain.QueueMessage, bufferSize),
		maxAttempts: maxAttempts,
		logger:      logger,
		dlq:         make([]domain.QueueMessage, 0),
	}
}

func (q *LocalQueue) Enqueue(ctx context.Context, message domain.QueueMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- message:
		return nil
	}
}

func (q *LocalQueue) Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message := <-q.ch:
			err := handler(ctx, message)
			if err == nil {
				continue
			}

			message.Attempt++
			if message.Attempt >= q.maxAttempts {
				q.moveToDLQ(message, err)
				continue
			}
			if requeueErr := q.Enqueue(ctx, message); requeueErr != nil {
				q.moveToDLQ(message, requeueErr)
			}
		}
	}
}

func (q *LocalQueue) moveToDLQ(message domain.QueueMessage, cause error) {
	q.dlqMu.Lock()
	q.dlq = append(q.dlq, message)
	q.dlqMu.Unlock()

	if q.logger != nil {
		q.logger.Printf("task moved to local dlq task_id=%s kind=%s cause=%v", message.TaskID, message.Kind, cause)
	}
}

// DLQSize reports dead-lettered messages, used by health reporting and tests.
func (q *LocalQueue) DLQSize() int {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return len(q.dlq)
}
