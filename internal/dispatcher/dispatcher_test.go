package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/you-humble/videogen/internal/domain"
	"github.com/you-humble/videogen/internal/events"
	"github.com/you-humble/videogen/internal/infra/queue"
	taskstore "github.com/you-humble/videogen/internal/infra/store/task"

	mrd "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type testStore interface {
	TaskStore
	Create(ctx context.Context, task domain.Task) error
}

type testQueue interface {
	PendingQueue
	Enqueue(ctx context.Context, sub domain.Submission) error
}

// blockingDriver holds every task until released and records how many ran at
// once and in which order they started.
type blockingDriver struct {
	mu      sync.Mutex
	running int
	maxSeen int
	started []string
	release chan struct{}

	panicOn string
}

func newBlockingDriver() *blockingDriver {
	return &blockingDriver{release: make(chan struct{})}
}

func (d *blockingDriver) Run(ctx context.Context, task domain.Task) (string, error) {
	d.mu.Lock()
	d.running++
	if d.running > d.maxSeen {
		d.maxSeen = d.running
	}
	d.started = append(d.started, task.ID)
	shouldPanic := task.ID == d.panicOn
	d.mu.Unlock()

	<-d.release

	d.mu.Lock()
	d.running--
	d.mu.Unlock()

	if shouldPanic {
		panic("driver exploded")
	}
	return "https://x/video.mp4", nil
}

func (d *blockingDriver) startedIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.started...)
}

func (d *blockingDriver) startedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.started)
}

func newEnv(t *testing.T) (testStore, testQueue) {
	t.Helper()
	s := mrd.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return taskstore.NewRedisTaskStore(rdb), queue.New(rdb)
}

func submitTask(t *testing.T, store testStore, q testQueue, id string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	task := domain.Task{
		ID:        id,
		Kind:      domain.KindPlain,
		Params:    domain.GenerationParams{Prompt: "p", UserID: domain.DefaultUserID},
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Create(ctx, task))
	require.NoError(t, q.Enqueue(ctx, domain.Submission{
		TaskID:    id,
		Kind:      task.Kind,
		Params:    task.Params,
		CreatedAt: now,
	}))
}

func TestDispatcher_ConcurrencyCeiling(t *testing.T) {
	store, q := newEnv(t)
	drv := newBlockingDriver()

	ids := []string{"t-1", "t-2", "t-3", "t-4", "t-5"}
	for _, id := range ids {
		submitTask(t, store, q, id)
	}

	const maxConcurrent = 2
	d := New(q, store, drv, events.NewNoopPublisher(), maxConcurrent, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	// both slots fill and no more
	require.Eventually(t, func() bool {
		return drv.startedCount() == maxConcurrent
	}, time.Second, time.Millisecond)

	// the ceiling holds while workers are blocked
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, maxConcurrent, drv.startedCount())
	require.LessOrEqual(t, drv.maxSeen, maxConcurrent)

	processing := 0
	for _, id := range ids {
		task, err := store.Task(context.Background(), id)
		require.NoError(t, err)
		if task.Status == domain.StatusProcessing {
			processing++
		}
	}
	require.LessOrEqual(t, processing, maxConcurrent)

	// unblock: every submitted task must eventually resolve
	close(drv.release)
	require.Eventually(t, func() bool {
		for _, id := range ids {
			task, err := store.Task(context.Background(), id)
			if err != nil || task.Status != domain.StatusCompleted {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)

	require.LessOrEqual(t, drv.maxSeen, maxConcurrent)

	for _, id := range ids {
		task, err := store.Task(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, task.CompletedAt)
		require.NotNil(t, task.Result)
		require.Equal(t, "https://x/video.mp4", task.Result.VideoURL)
		require.Empty(t, task.Error)
	}

	cancel()
	<-done
}

func TestDispatcher_FIFOAdmission(t *testing.T) {
	store, q := newEnv(t)
	drv := newBlockingDriver()
	close(drv.release) // run tasks straight through

	ids := []string{"t-a", "t-b", "t-c", "t-d"}
	for _, id := range ids {
		submitTask(t, store, q, id)
	}

	// single slot so admission order is observable without ties
	d := New(q, store, drv, events.NewNoopPublisher(), 1, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return drv.startedCount() == len(ids)
	}, time.Second, time.Millisecond)

	require.Equal(t, ids, drv.startedIDs())

	cancel()
	<-done
}

func TestDispatcher_PanicBecomesFailedRecord(t *testing.T) {
	store, q := newEnv(t)
	drv := newBlockingDriver()
	drv.panicOn = "t-bad"
	close(drv.release)

	submitTask(t, store, q, "t-bad")
	submitTask(t, store, q, "t-good")

	d := New(q, store, drv, events.NewNoopPublisher(), 1, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	// the panicking worker must not leak its slot: the next task still runs
	require.Eventually(t, func() bool {
		task, err := store.Task(context.Background(), "t-good")
		return err == nil && task.Status == domain.StatusCompleted
	}, time.Second, time.Millisecond)

	bad, err := store.Task(context.Background(), "t-bad")
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, bad.Status)
	require.Contains(t, bad.Error, "worker panic")
	require.NotNil(t, bad.CompletedAt)
	require.Nil(t, bad.Result)

	cancel()
	<-done
}

func TestDispatcher_IdleQueueKeepsRunning(t *testing.T) {
	store, q := newEnv(t)
	drv := newBlockingDriver()
	close(drv.release)

	d := New(q, store, drv, events.NewNoopPublisher(), 2, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, drv.startedCount())

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

// flakyStore fails the first n Update calls, then behaves normally.
type flakyStore struct {
	testStore
	mu       sync.Mutex
	failures int
}

func (s *flakyStore) Update(ctx context.Context, id string, mutate func(*domain.Task)) (domain.Task, error) {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return domain.Task{}, errors.New("connection reset")
	}
	s.mu.Unlock()
	return s.testStore.Update(ctx, id, mutate)
}

func TestDispatcher_CanceledContextStillResolvesTask(t *testing.T) {
	store, q := newEnv(t)
	drv := newBlockingDriver()
	close(drv.release)

	submitTask(t, store, q, "t-late")

	d := New(q, store, drv, events.NewNoopPublisher(), 1, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := q.DequeueOne(ctx)
	require.NoError(t, err)

	// shutdown lands between the dequeue and the first store write
	cancel()

	require.True(t, d.sem.TryAcquire(1))
	d.wg.Add(1)
	d.runWorker(ctx, sub)

	task, err := store.Task(context.Background(), "t-late")
	require.NoError(t, err)
	require.True(t, task.Status.Terminal(), "task must not stay pending: %s", task.Status)
	require.Equal(t, domain.StatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
}

func TestDispatcher_MarkProcessingFailureResolvesRecord(t *testing.T) {
	store, q := newEnv(t)
	flaky := &flakyStore{testStore: store, failures: 1}
	drv := newBlockingDriver()
	close(drv.release)

	submitTask(t, store, q, "t-flaky")

	d := New(q, flaky, drv, events.NewNoopPublisher(), 1, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	// the dequeued submission is gone; its record must still reach a
	// terminal state instead of staying pending forever
	require.Eventually(t, func() bool {
		task, err := store.Task(context.Background(), "t-flaky")
		return err == nil && task.Status == domain.StatusFailed
	}, time.Second, time.Millisecond)

	task, err := store.Task(context.Background(), "t-flaky")
	require.NoError(t, err)
	require.Contains(t, task.Error, "admit task")
	require.Contains(t, task.Error, "connection reset")
	require.NotNil(t, task.CompletedAt)
	require.Zero(t, drv.startedCount())

	_, err = q.DequeueOne(context.Background())
	require.ErrorIs(t, err, domain.ErrQueueEmpty)

	cancel()
	<-done
}
