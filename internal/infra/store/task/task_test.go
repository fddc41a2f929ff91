package taskstore

import (
	"context"
	"testing"
	"time"

	"github.com/you-humble/videogen/internal/domain"

	mrd "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniClient(t *testing.T) *redis.Client {
	t.Helper()
	s := mrd.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func newTask(id string) domain.Task {
	now := time.Now().UTC()
	return domain.Task{
		ID:   id,
		Kind: domain.KindPlain,
		Params: domain.GenerationParams{
			Prompt:      "A tiger walking in snow",
			AspectRatio: domain.DefaultAspectRatio,
			Loop:        true,
			UserID:      domain.DefaultUserID,
		},
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRedisTaskStore_CreateAndGet(t *testing.T) {
	s := NewRedisTaskStore(newMiniClient(t))
	ctx := context.Background()

	task := newTask("t-1")
	require.NoError(t, s.Create(ctx, task))

	got, err := s.Task(ctx, "t-1")
	require.NoError(t, err)
	require.Equal(t, task.ID, got.ID)
	require.Equal(t, domain.StatusPending, got.Status)
	require.Equal(t, task.Params, got.Params)
	require.True(t, got.CreatedAt.Equal(task.CreatedAt))
	require.Nil(t, got.Result)
	require.Nil(t, got.CompletedAt)
	require.Empty(t, got.Error)
}

func TestRedisTaskStore_Create_DuplicateID(t *testing.T) {
	s := NewRedisTaskStore(newMiniClient(t))
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newTask("t-1")))
	err := s.Create(ctx, newTask("t-1"))
	require.ErrorIs(t, err, domain.ErrTaskExists)
}

func TestRedisTaskStore_Task_NotFound(t *testing.T) {
	s := NewRedisTaskStore(newMiniClient(t))

	_, err := s.Task(context.Background(), "never-created")
	require.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestRedisTaskStore_Update(t *testing.T) {
	s := NewRedisTaskStore(newMiniClient(t))
	ctx := context.Background()

	task := newTask("t-1")
	require.NoError(t, s.Create(ctx, task))

	updated, err := s.Update(ctx, "t-1", func(tk *domain.Task) {
		tk.Status = domain.StatusProcessing
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusProcessing, updated.Status)
	require.False(t, updated.UpdatedAt.Before(task.UpdatedAt))

	now := time.Now().UTC()
	_, err = s.Update(ctx, "t-1", func(tk *domain.Task) {
		tk.Status = domain.StatusCompleted
		tk.CompletedAt = &now
		tk.Result = &domain.TaskResult{VideoURL: "https://x/video.mp4"}
	})
	require.NoError(t, err)

	got, err := s.Task(ctx, "t-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Result)
	require.Equal(t, "https://x/video.mp4", got.Result.VideoURL)
	require.Empty(t, got.Error)
}

func TestRedisTaskStore_Update_NotFound(t *testing.T) {
	s := NewRedisTaskStore(newMiniClient(t))

	_, err := s.Update(context.Background(), "never-created", func(tk *domain.Task) {
		tk.Status = domain.StatusProcessing
	})
	require.ErrorIs(t, err, domain.ErrTaskNotFound)
}
