package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adforge/ad-recipe-back/internal/domain"
)

// DefaultStreams is the task-kind to queue-name routing. Operators can remap
// it via configuration to scale worker pools per task type.
func DefaultStreams() map[domain.TaskKind]string {
	return map[domain.TaskKind]string{
		domain.TaskKindAdConcept: "ad-concept",
		domain.TaskKindSalesPage: "sales-page",
		domain.TaskKindAdRecipe:  "ad-recipe",
	}
}

type StreamsConfig struct {
	Addr        string
	Password    string
	DB          int
	Streams     map[domain.TaskKind]string
	DLQStream   string
	Group       string
	Consumer    string
	MaxAttempts int
}

// StreamsQueue implements Producer+Consumer backed by Redis Streams with one
// stream per task kind and a shared consumer group.
type StreamsQueue struct {
	client      *redis.Client
	streams     map[domain.TaskKind]string
	dlqStream   string
	group       string
	consumer    string
	maxAttempts int
}

func NewStreamsQueue(ctx context.Context, cfg StreamsConfig) (*StreamsQueue, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if len(cfg.Streams) == 0 {
		cfg.Streams = DefaultStreams()
	}
	if cfg.DLQStream == "" {
		cfg.DLQStream = "ad-tasks-dlq"
	}
	if cfg.Group == "" {
		cfg.Group = "ad_workers"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "worker-1"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	queue := &StreamsQueue{
		client:      client,
		streams:     cfg.Streams,
		dlqStream:   cfg.DLQStream,
		group:       cfg.Group,
		consumer:    cfg.Consumer,
		maxAttempts: cfg.MaxAttempts,
	}
	if err := queue.ensureGroups(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return queue, nil
}

func (q *StreamsQueue) Close() error {
	return q.client.Close()
}

func (q *StreamsQueue) streamFor(kind domain.TaskKind) (string, error) {
	stream, ok := q.streams[kind]
	if !ok {
		return "", fmt.Errorf("no stream mapped for task kind %q", kind)
	}
	return stream, nil
}

func (q *StreamsQueue) Enqueue(ctx context.Context, message domain.QueueMessage) error {
	stream, err := q.streamFor(message.Kind)
	if err != nil {
		return err
	}
	_, err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"task_id":      message.TaskID,
			"kind":         string(message.Kind),
			"payload":      string(message.Payload),
			"attempt":      message.Attempt,
			"requested_at": message.RequestedAt.Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue to stream %s: %w", stream, err)
	}
	return nil
}

func (q *StreamsQueue) Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error {
	if err := q.ensureGroups(ctx); err != nil {
		return err
	}

	streamArgs := q.readArgs()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  streamArgs,
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("xreadgroup: %w", err)
		}

		for _, stream := range streams {
			for _, item := range stream.Messages {
				message, parseErr := parseStreamMessage(item)
				if parseErr != nil {
					_ = q.sendToDLQ(ctx, stream.Stream, domain.QueueMessage{}, item, parseErr.Error())
					_ = q.ackAndDelete(ctx, stream.Stream, item.ID)
					continue
				}

				handleErr := handler(ctx, message)
				if handleErr == nil {
					_ = q.ackAndDelete(ctx, stream.Stream, item.ID)
					continue
				}

				message.Attempt++
				if message.Attempt >= q.maxAttempts {
					_ = q.sendToDLQ(ctx, stream.Stream, message, item, handleErr.Error())
					_ = q.ackAndDelete(ctx, stream.Stream, item.ID)
					continue
				}

				if requeueErr := q.Enqueue(ctx, message); requeueErr != nil {
					_ = q.sendToDLQ(ctx, stream.Stream, message, item, fmt.Sprintf("requeue failed: %v", requeueErr))
				}
				_ = q.ackAndDelete(ctx, stream.Stream, item.ID)
			}
		}
	}
}

// readArgs builds the XReadGroup stream list: all stream names followed by a
// ">" cursor per stream.
func (q *StreamsQueue) readArgs() []string {
	names := make([]string, 0, len(q.streams))
	for _, name := range q.streams {
		names = append(names, name)
	}
	args := make([]string, 0, len(names)*2)
	args = append(args, names...)
	for range names {
		args = append(args, ">")
	}
	return args
}

func (q *StreamsQueue) ensureGroups(ctx context.Context) error {
	for _, stream := range q.streams {
		err := q.client.XGroupCreateMkStream(ctx, stream, q.group, "$").Err()
		if err == nil {
			continue
		}
		if strings.Contains(err.Error(), "BUSYGROUP") {
			continue
		}
		return fmt.Errorf("ensure group for stream %s: %w", stream, err)
	}
	return nil
}

func (q *StreamsQueue) ackAndDelete(ctx context.Context, stream, streamID string) error {
	if err := q.client.XAck(ctx, stream, q.group, streamID).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	if err := q.client.XDel(ctx, stream, streamID).Err(); err != nil {
		return fmt.Errorf("xdel: %w", err)
	}
	return nil
}

func (q *StreamsQueue) sendToDLQ(
	ctx context.Context,
	stream string,
	message domain.QueueMessage,
	item redis.XMessage,
	errorMessage string,
) error {
	values := map[string]any{
		"source_stream": stream,
		"stream_id":     item.ID,
		"task_id":       message.TaskID,
		"kind":          string(message.Kind),
		"payload":       string(message.Payload),
		"attempt":       message.Attempt,
		"error":         errorMessage,
		"moved_at":      time.Now().UTC().Format(time.RFC3339Nano),
	}
	if _, err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.dlqStream, Values: values}).Result(); err != nil {
		return fmt.Errorf("send to dlq: %w", err)
	}
	return nil
}

func parseStreamMessage(item redis.XMessage) (domain.QueueMessage, error) {
	getString := func(key string) (string, error) {
		value, ok := item.Values[key]
		if !ok {
			return "", fmt.Errorf("missing field %s", key)
		}
		switch casted := value.(type) {
		case string:
			return casted, nil
		case []byte:
			return string(casted), nil
		default:
			return fmt.Sprintf("%v", casted), nil
		}
	}

	taskID, err := getString("task_id")
	if err != nil {
		return domain.QueueMessage{}, err
	}
	kindValue, err := getString("kind")
	if err != nil {
		return domain.QueueMessage{}, err
	}
	payloadString, err := getString("payload")
	if err != nil {
		return domain.QueueMessage{}, err
	}

	attemptString, err := getString("attempt")
	if err != nil {
		return domain.QueueMessage{}, err
	}
	attempt, err := strconv.Atoi(attemptString)
	if err != nil {
		return domain.QueueMessage{}, fmt.Errorf("invalid attempt: %w", err)
	}

	requestedAtString, err := getString("requested_at")
	if err != nil {
		return domain.QueueMessage{}, err
	}
	requestedAt, err := time.Parse(time.RFC3339Nano, requestedAtString)
	if err != nil {
		return domain.QueueMessage{}, fmt.Errorf("invalid requested_at: %w", err)
	}

	return domain.QueueMessage{
		TaskID:      taskID,
		Kind:        domain.TaskKind(kindValue),
		Payload:     []byte(payloadString),
		Attempt:     attempt,
		RequestedAt: requestedAt,
	}, nil
}
