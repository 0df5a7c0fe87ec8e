package taskstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/adforge/ad-recipe-back/internal/domain"
)

type memoryEntry struct {
	record    domain.TaskRecord
	expiresAt time.Time
}

// MemoryStore is a fallback task store used when Redis is not configured.
// It mirrors the Redis semantics: TTL refreshed on write, not on read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Put(_ context.Context, taskID string, record domain.TaskRecord) error {
	record.Result = append(json.RawMessage(nil), record.Result...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[taskID] = memoryEntry{
		record:    record,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, taskID string) (domain.TaskRecord, error) {
	s.mu.RLock()
	entry, exists := s.entries[taskID]
	s.mu.RUnlock()

	if !exists {
		return domain.TaskRecord{}, ErrNotFound
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, taskID)
		s.mu.Unlock()
		return domain.TaskRecord{}, ErrNotFound
	}

	record := entry.record
	record.Result = append(json.RawMessage(nil), record.Result...)
	return record, nil
}
