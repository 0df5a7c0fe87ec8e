package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adforge/ad-recipe-back/internal/domain"
	"github.com/adforge/ad-recipe-back/internal/queue"
	"github.com/adforge/ad-recipe-back/internal/taskstore"
)

// TasksService is the enqueue boundary: it mints the task identifier, writes
// the initial queued record and hands the message to the queue. Execution is
// asynchronous; the returned ID is valid for status reads immediately.
type TasksService struct {
	store    taskstore.Store
	producer queue.Producer
}

func NewTasksService(store taskstore.Store, producer queue.Producer) *TasksService {
	return &TasksService{store: store, producer: producer}
}

func (s *TasksService) EnqueueAdConcept(ctx context.Context, payload domain.AdConceptPayload) (string, error) {
	return s.enqueue(ctx, domain.TaskKindAdConcept, payload)
}

func (s *TasksService) EnqueueSalesPage(ctx context.Context, payload domain.SalesPagePayload) (string, error) {
	return s.enqueue(ctx, domain.TaskKindSalesPage, payload)
}

func (s *TasksService) EnqueueAdRecipe(ctx context.Context, payload domain.AdRecipePayload) (string, error) {
	return s.enqueue(ctx, domain.TaskKindAdRecipe, payload)
}

func (s *TasksService) GetTask(ctx context.Context, taskID string) (domain.TaskRecord, error) {
	return s.store.Get(ctx, taskID)
}

func (s *TasksService) enqueue(ctx context.Context, kind domain.TaskKind, payload any) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	taskID := uuid.NewString()
	if err := s.store.Put(ctx, taskID, domain.TaskRecord{Status: domain.TaskStatusQueued}); err != nil {
		return "", fmt.Errorf("write queued record: %w", err)
	}

	message := domain.QueueMessage{
		TaskID:      taskID,
		Kind:        kind,
		Payload:     encoded,
		Attempt:     0,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.producer.Enqueue(ctx, message); err != nil {
		failed := domain.TaskRecord{
			Status: domain.TaskStatusFailed,
			Error:  fmt.Sprintf("enqueue failed: %v", err),
		}
		_ = s.store.Put(ctx, taskID, failed)
		return "", fmt.Errorf("enqueue task: %w", err)
	}

	return taskID, nil
}
