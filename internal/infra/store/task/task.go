package taskstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/you-humble/videogen/internal/domain"

	"github.com/redis/go-redis/v9"
)

const taskKeyPrefix = "vg_task:"

// redisTaskStore keeps one JSON-serialized record per task key. Records are
// written whole: a concurrent reader sees either the previous or the next
// version, never a partial one.
type redisTaskStore struct {
	rdb redis.Cmdable
}

func NewRedisTaskStore(rdb redis.Cmdable) *redisTaskStore {
	return &redisTaskStore{rdb: rdb}
}

// Create persists a new record and fails with ErrTaskExists if the id is taken.
func (s *redisTaskStore) Create(ctx context.Context, task domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}

	ok, err := s.rdb.SetNX(ctx, taskKey(task.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis create task: %w", err)
	}
	if !ok {
		return domain.ErrTaskExists
	}
	return nil
}

func (s *redisTaskStore) Task(ctx context.Context, id string) (domain.Task, error) {
	data, err := s.rdb.Get(ctx, taskKey(id)).Bytes()
	if err == redis.Nil {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("redis get task: %w", err)
	}

	var t domain.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return domain.Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	return t, nil
}

// Update applies mutate to the current record and persists the result as a
// single SET. Only the worker that dequeued a task mutates it, so the
// read-modify-write never races another writer on the same id.
func (s *redisTaskStore) Update(ctx context.Context, id string, mutate func(*domain.Task)) (domain.Task, error) {
	t, err := s.Task(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}

	mutate(&t)
	t.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(t)
	if err != nil {
		return domain.Task{}, fmt.Errorf("encode task %s: %w", id, err)
	}
	if err := s.rdb.Set(ctx, taskKey(id), data, 0).Err(); err != nil {
		return domain.Task{}, fmt.Errorf("redis update task: %w", err)
	}
	return t, nil
}

func taskKey(id string) string {
	return taskKeyPrefix + id
}
