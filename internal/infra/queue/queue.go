package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/you-humble/videogen/internal/domain"

	"github.com/redis/go-redis/v9"
)

const queueKey = "videogen_queue"

// redisQueue is the FIFO list of submissions awaiting a worker slot.
// Enqueue appends to the tail, DequeueOne pops the head. All dequeues
// are funneled through the dispatcher's admission loop.
type redisQueue struct {
	rdb redis.Cmdable
	key string
}

func New(rdb redis.Cmdable) *redisQueue {
	return &redisQueue{rdb: rdb, key: queueKey}
}

func (q *redisQueue) Enqueue(ctx context.Context, sub domain.Submission) error {
	if sub.TaskID == "" {
		return fmt.Errorf("empty taskID")
	}

	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode submission %s: %w", sub.TaskID, err)
	}

	if err := q.rdb.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue task %s: %w", sub.TaskID, err)
	}

	slog.Debug("task enqueued",
		slog.String("task_id", sub.TaskID),
		slog.String("queue", q.key),
	)
	return nil
}

func (q *redisQueue) DequeueOne(ctx context.Context) (domain.Submission, error) {
	data, err := q.rdb.LPop(ctx, q.key).Bytes()
	if err == redis.Nil {
		return domain.Submission{}, domain.ErrQueueEmpty
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("dequeue: %w", err)
	}

	var sub domain.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return domain.Submission{}, fmt.Errorf("decode submission: %w", err)
	}
	return sub, nil
}
