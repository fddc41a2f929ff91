package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/you-humble/videogen/internal/domain"

	"github.com/google/uuid"
)

type TaskStore interface {
	Create(ctx context.Context, task domain.Task) error
	Task(ctx context.Context, id string) (domain.Task, error)
	Update(ctx context.Context, id string, mutate func(*domain.Task)) (domain.Task, error)
}

type TaskQueue interface {
	Enqueue(ctx context.Context, sub domain.Submission) error
}

type FileStore interface {
	Save(ctx context.Context, reader io.Reader, objectName string, size int64) (string, error)
	List(ctx context.Context, prefix string) ([]domain.VideoObject, error)
}

type usecase struct {
	taskStore TaskStore
	queue     TaskQueue
	fileStore FileStore
}

func New(taskStore TaskStore, queue TaskQueue, fileStore FileStore) *usecase {
	return &usecase{
		taskStore: taskStore,
		queue:     queue,
		fileStore: fileStore,
	}
}

// Submit validates the submission, persists a pending record and enqueues it.
// It returns immediately with the new task id; callers poll for the outcome.
func (uc *usecase) Submit(ctx context.Context, kind domain.TaskKind, p domain.GenerationParams) (string, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return "", domain.ErrEmptyPrompt
	}
	if p.AspectRatio == "" {
		p.AspectRatio = domain.DefaultAspectRatio
	}
	if p.UserID == "" {
		p.UserID = domain.DefaultUserID
	}
	if kind == domain.KindSoundful && p.AudioNegativePrompt == "" {
		p.AudioNegativePrompt = domain.DefaultAudioNegativePrompt
	}

	now := time.Now().UTC()
	task := domain.Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Params:    p,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.taskStore.Create(ctx, task); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}

	sub := domain.Submission{
		TaskID:    task.ID,
		Kind:      kind,
		Params:    p,
		CreatedAt: now,
	}
	if err := uc.queue.Enqueue(ctx, sub); err != nil {
		slog.Error("Enqueue failed",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
		// the record already exists; resolve it so the caller is not left
		// polling a task no worker will ever pick up
		if _, uerr := uc.taskStore.Update(ctx, task.ID, func(t *domain.Task) {
			completed := time.Now().UTC()
			t.Status = domain.StatusFailed
			t.Error = err.Error()
			t.CompletedAt = &completed
		}); uerr != nil {
			slog.Warn("mark enqueue failure",
				slog.String("task_id", task.ID),
				slog.String("error", uerr.Error()),
			)
		}
		return "", fmt.Errorf("enqueue: %w", err)
	}

	return task.ID, nil
}

// GetStatus is a read-only projection of the task record. No side effects.
func (uc *usecase) GetStatus(ctx context.Context, taskID string) (domain.StatusResponse, error) {
	task, err := uc.taskStore.Task(ctx, taskID)
	if err != nil {
		return domain.StatusResponse{}, err
	}

	resp := domain.StatusResponse{
		TaskID:    task.ID,
		Status:    task.Status,
		CreatedAt: task.CreatedAt.Format(time.RFC3339Nano),
	}
	if task.CompletedAt != nil {
		resp.CompletedAt = task.CompletedAt.Format(time.RFC3339Nano)
	}

	switch task.Status {
	case domain.StatusCompleted:
		resp.Result = task.Result
	case domain.StatusFailed:
		resp.Error = task.Error
	}

	return resp, nil
}

// UploadVideo stores a caller-provided video in the blob store under the
// owner's prefix and returns its reference.
func (uc *usecase) UploadVideo(ctx context.Context, file io.Reader, filename, userID string, size int64) (domain.UploadResponse, error) {
	if userID == "" {
		userID = domain.DefaultUserID
	}

	ext := strings.ToLower(filepath.Ext(filename))
	objectName := path.Join("public/uploads", userID, uuid.NewString()+ext)

	ref, err := uc.fileStore.Save(ctx, file, objectName, size)
	if err != nil {
		return domain.UploadResponse{}, fmt.Errorf("save video: %w", err)
	}

	return domain.UploadResponse{
		Message:  "video uploaded",
		Filename: path.Base(objectName),
		Path:     ref,
	}, nil
}

// ListVideos enumerates the videos stored under the owner's upload prefix.
func (uc *usecase) ListVideos(ctx context.Context, userID string) (domain.ListVideosResponse, error) {
	if userID == "" {
		userID = domain.DefaultUserID
	}

	videos, err := uc.fileStore.List(ctx, path.Join("public/uploads", userID))
	if err != nil {
		return domain.ListVideosResponse{}, fmt.Errorf("list videos: %w", err)
	}
	if videos == nil {
		videos = []domain.VideoObject{}
	}

	return domain.ListVideosResponse{Videos: videos}, nil
}
