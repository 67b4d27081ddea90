package inmemory

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/expense-tracker/internal/jobs"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, store *Store, id string, want jobs.JobStatus) *jobs.Job {
	t.Helper()
	var got *jobs.Job
	require.Eventually(t, func() bool {
		j, err := store.GetJob(context.Background(), id)
		if err != nil {
			return false
		}
		got = j
		return j.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestPublishFillsDefaults(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store)
	defer q.Close()

	job := &jobs.Job{Type: jobs.JobTypePersistBatch, WizardID: "w-1"}
	require.NoError(t, q.Publish(context.Background(), job))

	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, jobs.JobStatusPending, job.Status)
	assert.False(t, job.CreatedAt.IsZero())
	assert.Equal(t, 3, job.MaxRetries)

	stored, err := store.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, "w-1", stored.WizardID)
}

func TestExtractJobsAreNotRetried(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store, WithWorkers(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		calls.Add(1)
		return errors.New("model unavailable")
	}))

	job := &jobs.Job{Type: jobs.JobTypeExtractStatement}
	require.NoError(t, q.Publish(ctx, job))

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, "model unavailable", got.Error)
	assert.Equal(t, int32(1), calls.Load())
	require.NoError(t, q.Stop(context.Background()))
}

func TestRetryThenSucceed(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store, WithWorkers(2), WithBackoff(func(int) time.Duration { return time.Millisecond }))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	job := &jobs.Job{Type: jobs.JobTypePersistBatch}
	require.NoError(t, q.Publish(ctx, job))

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 2, got.RetryCount)
	assert.Empty(t, got.Error)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHandlerPanicFailsJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(1, store, WithWorkers(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		panic("boom")
	}))
	job := &jobs.Job{Type: jobs.JobTypeExtractStatement}
	require.NoError(t, q.Publish(ctx, job))

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Contains(t, got.Error, "boom")
}

func TestMuxDispatch(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := jobs.NewMux()
	mux.Handle(jobs.JobTypeExtractStatement, func(ctx context.Context, job *jobs.Job) error { return nil })
	require.NoError(t, q.Start(ctx, mux.Handler()))

	ok := &jobs.Job{Type: jobs.JobTypeExtractStatement}
	unknown := &jobs.Job{Type: "reindex"}
	require.NoError(t, q.Publish(ctx, ok))
	require.NoError(t, q.Publish(ctx, unknown))

	waitForStatus(t, store, ok.JobID, jobs.JobStatusCompleted)
	got := waitForStatus(t, store, unknown.JobID, jobs.JobStatusFailed)
	assert.Contains(t, got.Error, "no handler")
}

func TestClosedQueueRejects(t *testing.T) {
	q := NewQueue(1, nil)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.Publish(context.Background(), &jobs.Job{Type: jobs.JobTypeExtractStatement})
	assert.ErrorIs(t, err, jobs.ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), jobs.ErrQueueClosed)
}

// runningFailsStore rejects the RUNNING status update and keeps the rest.
type runningFailsStore struct {
	*Store
}

func (s runningFailsStore) SaveJob(ctx context.Context, job *jobs.Job) error {
	if job.Status == jobs.JobStatusRunning {
		return errors.New("store unavailable")
	}
	return s.Store.SaveJob(ctx, job)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStoreFailureIsLoggedAndJobStillRuns(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, runningFailsStore{store}, WithWorkers(1))
	var out syncBuffer
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), logger.NewWithWriter(&out)))
	defer cancel()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		return nil
	}))

	job := &jobs.Job{Type: jobs.JobTypePersistBatch}
	require.NoError(t, q.Publish(ctx, job))

	waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "save job state")
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, out.String(), job.JobID)
}
