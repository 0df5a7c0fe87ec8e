package taskstore

import (
	"context"
	"errors"

	"github.com/adforge/ad-recipe-back/internal/domain"
)

var ErrNotFound = errors.New("task not found")

// Store is the source of truth for task state. Put overwrites unconditionally
// (last-writer-wins; the design guarantees one owning worker per task ID) and
// refreshes the retention window. Entries expire after a fixed TTL refreshed
// only on write; reads after expiry return ErrNotFound.
type Store interface {
	Put(ctx context.Context, taskID string, record domain.TaskRecord) error
	Get(ctx context.Context, taskID string) (domain.TaskRecord, error)
}
