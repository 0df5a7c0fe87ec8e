package queue

import (
	"context"

	"github.com/adforge/ad-recipe-back/internal/domain"
)

// Producer sends async tasks to a queue backend. Routing to a named queue is
// derived from the message kind so worker pools can scale per task type.
type Producer interface {
	Enqueue(ctx context.Context, message domain.QueueMessage) error
}

// Consumer receives async tasks and executes handlers. A non-nil handler
// error signals an infrastructure failure worth redelivering; application
// failures are recorded in the task store and return nil.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error
}
