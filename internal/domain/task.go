package domain

import (
	"encoding/json"
	"time"
)

type TaskKind string

const (
	TaskKindAdConcept TaskKind = "ad_concept"
	TaskKindSalesPage TaskKind = "sales_page"
	TaskKindAdRecipe  TaskKind = "ad_recipe"
)

type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether no further status transitions can occur.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskRecord is the wire shape persisted in the task store. Exactly one of
// Result/Error is populated once Status is terminal; both are null before.
type TaskRecord struct {
	Status TaskStatus      `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// QueueMessage is the transport format sent to queue backends.
type QueueMessage struct {
	TaskID      string          `json:"task_id"`
	Kind        TaskKind        `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	RequestedAt time.Time       `json:"requested_at"`
}

// Child task IDs are derived by suffixing so sub-task status can be queried
// independently and expires with the parent's retention window.
const (
	childSuffixConcept = "_concept"
	childSuffixSales   = "_sales"
)

func ConceptChildID(parentID string) string { return parentID + childSuffixConcept }
func SalesChildID(parentID string) string   { return parentID + childSuffixSales }
