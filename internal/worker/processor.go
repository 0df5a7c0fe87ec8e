// Package worker executes queued tasks and owns every status transition in
// the task store. A task record moves queued → processing → completed|failed;
// terminal states are written exactly once by the worker that owns the task.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/adforge/ad-recipe-back/internal/domain"
	"github.com/adforge/ad-recipe-back/internal/queue"
	"github.com/adforge/ad-recipe-back/internal/taskstore"
)

// Handler produces the result payload for one task. Any returned error is
// terminal for the task: it is recorded as a failed status, never redelivered
// by the queue layer.
type Handler func(ctx context.Context, taskID string, payload json.RawMessage) (json.RawMessage, error)

// TaskFailure marks an application-level failure that has already been
// recorded in the task store. The consume loop treats it as handled.
type TaskFailure struct {
	TaskID string
	Err    error
}

func (f *TaskFailure) Error() string {
	return fmt.Sprintf("task %s failed: %v", f.TaskID, f.Err)
}

func (f *TaskFailure) Unwrap() error {
	return f.Err
}

// Processor consumes queue messages, dispatches to registered handlers and
// persists status transitions. It also exposes Execute for inline sub-task
// runs so chained tasks share the exact same state-writing path.
type Processor struct {
	consumer queue.Consumer
	store    taskstore.Store
	handlers map[domain.TaskKind]Handler
	logger   *log.Logger
}

func NewProcessor(consumer queue.Consumer, store taskstore.Store, logger *log.Logger) *Processor {
	return &Processor{
		consumer: consumer,
		store:    store,
		handlers: make(map[domain.TaskKind]Handler),
		logger:   logger,
	}
}

func (p *Processor) Register(kind domain.TaskKind, handler Handler) {
	p.handlers[kind] = handler
}

func (p *Processor) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.processMessage)
		if err == nil || ctx.Err() != nil {
			return
		}
		p.logf("worker consume loop error: %v", err)

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// processMessage runs one queued task. Application failures are already
// recorded as terminal failed records, so only infrastructure errors (task
// store unreachable) propagate to the consumer for redelivery.
func (p *Processor) processMessage(ctx context.Context, message domain.QueueMessage) error {
	_, err := p.Execute(ctx, message.Kind, message.TaskID, message.Payload)
	if err == nil {
		p.logf("task processed kind=%s task_id=%s", message.Kind, message.TaskID)
		return nil
	}

	var failure *TaskFailure
	if errors.As(err, &failure) {
		p.logf("task failed kind=%s task_id=%s error=%v", message.Kind, message.TaskID, failure.Err)
		return nil
	}
	return err
}

// Execute runs the handler for kind under taskID, writing processing before
// any work and exactly one terminal record after. It is the single execution
// path for both queued messages and inline sub-tasks. The returned error is a
// *TaskFailure when the failure was recorded in the store, or a plain error
// when a status write itself failed.
func (p *Processor) Execute(
	ctx context.Context,
	kind domain.TaskKind,
	taskID string,
	payload json.RawMessage,
) (result json.RawMessage, err error) {
	if putErr := p.store.Put(ctx, taskID, domain.TaskRecord{Status: domain.TaskStatusProcessing}); putErr != nil {
		return nil, fmt.Errorf("mark processing: %w", putErr)
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("handler panic: %v", recovered)
			result, err = nil, p.recordFailure(ctx, taskID, panicErr)
		}
	}()

	handler, ok := p.handlers[kind]
	if !ok {
		return nil, p.recordFailure(ctx, taskID, fmt.Errorf("unsupported task kind: %s", kind))
	}

	result, handleErr := handler(ctx, taskID, payload)
	if handleErr != nil {
		return nil, p.recordFailure(ctx, taskID, handleErr)
	}

	if putErr := p.store.Put(ctx, taskID, domain.TaskRecord{
		Status: domain.TaskStatusCompleted,
		Result: result,
	}); putErr != nil {
		return nil, fmt.Errorf("mark completed: %w", putErr)
	}
	return result, nil
}

func (p *Processor) recordFailure(ctx context.Context, taskID string, cause error) error {
	record := domain.TaskRecord{
		Status: domain.TaskStatusFailed,
		Error:  cause.Error(),
	}
	if putErr := p.store.Put(ctx, taskID, record); putErr != nil {
		return fmt.Errorf("mark failed (cause: %v): %w", cause, putErr)
	}
	return &TaskFailure{TaskID: taskID, Err: cause}
}

func (p *Processor) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
