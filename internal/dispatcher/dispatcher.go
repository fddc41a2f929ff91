package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/you-humble/videogen/internal/domain"

	"golang.org/x/sync/semaphore"
)

type TaskStore interface {
	Task(ctx context.Context, id string) (domain.Task, error)
	Update(ctx context.Context, id string, mutate func(*domain.Task)) (domain.Task, error)
}

type PendingQueue interface {
	DequeueOne(ctx context.Context) (domain.Submission, error)
}

type JobDriver interface {
	Run(ctx context.Context, task domain.Task) (string, error)
}

type EventPublisher interface {
	TaskFinished(ctx context.Context, task domain.Task) error
}

// dispatcher admits queued submissions into execution, at most maxConcurrent
// at a time. Admission is a polling loop: drain the queue while slots are
// free, then sleep a short fixed interval and re-check.
type dispatcher struct {
	queue  PendingQueue
	store  TaskStore
	driver JobDriver
	events EventPublisher

	maxConcurrent int
	sem           *semaphore.Weighted
	pollEvery     time.Duration

	wg sync.WaitGroup
}

func New(
	queue PendingQueue,
	store TaskStore,
	driver JobDriver,
	events EventPublisher,
	maxConcurrent int,
	pollEvery time.Duration,
) *dispatcher {
	return &dispatcher{
		queue:         queue,
		store:         store,
		driver:        driver,
		events:        events,
		maxConcurrent: maxConcurrent,
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		pollEvery:     pollEvery,
	}
}

// Run blocks until ctx is done, then waits for in-flight workers to finish
// their final status write.
func (d *dispatcher) Run(ctx context.Context) {
	slog.Info("dispatcher running",
		slog.Int("max_concurrent", d.maxConcurrent),
		slog.String("poll_interval", d.pollEvery.String()),
	)

	ticker := time.NewTicker(d.pollEvery)
	defer ticker.Stop()

	d.admit(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopping")
			d.wg.Wait()
			slog.Info("dispatcher stopped")
			return
		case <-ticker.C:
			d.admit(ctx)
		}
	}
}

// admit dequeues submissions into workers while a slot is free, stopping for
// this cycle when the queue is empty. Every acquired slot is either handed to
// a worker or released here; the ceiling cannot leak.
func (d *dispatcher) admit(ctx context.Context) {
	for d.sem.TryAcquire(1) {
		sub, err := d.queue.DequeueOne(ctx)
		if err != nil {
			d.sem.Release(1)
			if !errors.Is(err, domain.ErrQueueEmpty) && !errors.Is(err, context.Canceled) {
				slog.Warn("dequeue", slog.String("error", err.Error()))
			}
			return
		}

		d.wg.Add(1)
		go d.runWorker(ctx, sub)
	}
}

// runWorker owns one task end to end: pending→processing, drive the job,
// processing→terminal. The slot is released on every exit path, and a
// panicking driver becomes a failed record instead of a crashed dispatcher.
func (d *dispatcher) runWorker(ctx context.Context, sub domain.Submission) {
	defer d.wg.Done()
	defer d.sem.Release(1)

	taskID := sub.TaskID

	// the submission is already off the queue, so every store write from here
	// on must land even when ctx was canceled mid-run; otherwise the record
	// is stranded pending with no queue entry left to re-admit it
	storeCtx := context.WithoutCancel(ctx)

	task, err := d.store.Update(storeCtx, taskID, func(t *domain.Task) {
		t.Status = domain.StatusProcessing
	})
	if err != nil {
		slog.Error("mark processing",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)

		now := time.Now().UTC()
		if _, ferr := d.store.Update(storeCtx, taskID, func(t *domain.Task) {
			t.Status = domain.StatusFailed
			t.Error = fmt.Sprintf("admit task: %v", err)
			t.CompletedAt = &now
		}); ferr != nil {
			slog.Error("mark admit failure",
				slog.String("task_id", taskID),
				slog.String("error", ferr.Error()),
			)
		}
		return
	}

	slog.Info("task processing", slog.String("task_id", taskID))

	var ref string
	var runErr error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				runErr = fmt.Errorf("worker panic: %v", rec)
				slog.Error("worker panic",
					slog.String("task_id", taskID),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		ref, runErr = d.driver.Run(ctx, task)
	}()

	now := time.Now().UTC()

	final, err := d.store.Update(storeCtx, taskID, func(t *domain.Task) {
		t.CompletedAt = &now
		if runErr != nil {
			t.Status = domain.StatusFailed
			t.Error = runErr.Error()
		} else {
			t.Status = domain.StatusCompleted
			t.Result = &domain.TaskResult{VideoURL: ref}
		}
	})
	if err != nil {
		slog.Error("mark finished",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		return
	}

	if runErr != nil {
		slog.Error("task failed",
			slog.String("task_id", taskID),
			slog.String("error", runErr.Error()),
		)
	} else {
		slog.Info("task completed", slog.String("task_id", taskID))
	}

	if err := d.events.TaskFinished(storeCtx, final); err != nil {
		slog.Warn("publish task event",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
	}
}
