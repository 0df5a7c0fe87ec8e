package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adforge/ad-recipe-back/internal/domain"
)

const keyPrefix = "task:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore persists task records as JSON under "task:<id>" with a fixed
// expiry, matching the wire shape served by the status endpoints.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Put(ctx context.Context, taskID string, record domain.TaskRecord) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode task record: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+taskID, encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("set task record: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, taskID string) (domain.TaskRecord, error) {
	raw, err := s.client.Get(ctx, keyPrefix+taskID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.TaskRecord{}, ErrNotFound
		}
		return domain.TaskRecord{}, fmt.Errorf("get task record: %w", err)
	}

	var record domain.TaskRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.TaskRecord{}, fmt.Errorf("decode task record: %w", err)
	}
	return record, nil
}
