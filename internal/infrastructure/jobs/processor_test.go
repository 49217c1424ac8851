package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/catalogmirror/backend/internal/domain/job"
)

// memoryRepository is an in-memory job.Repository
type memoryRepository struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*job.Job
	claimErr error
	deleted  time.Time
}

func newMemoryRepository(jobs ...*job.Job) *memoryRepository {
	r := &memoryRepository{jobs: make(map[uuid.UUID]*job.Job)}
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *memoryRepository) Save(_ context.Context, jobs ...*job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	return nil
}

func (r *memoryRepository) ClaimDue(_ context.Context, now time.Time, staleAfter time.Duration, limit int) ([]*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	var due []*job.Job
	for _, j := range r.jobs {
		if (j.Status == job.StatusPending || j.Status == job.StatusFailed) && !j.AvailableAt.After(now) {
			due = append(due, j)
		}
		if staleAfter > 0 && j.Status == job.StatusProcessing && j.UpdatedAt.Before(now.Add(-staleAfter)) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(a, b int) bool { return due[a].AvailableAt.Before(due[b].AvailableAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	claimed := make([]*job.Job, 0, len(due))
	for _, j := range due {
		if j.Status == job.StatusProcessing {
			_ = j.Reclaim()
		} else {
			_ = j.MarkProcessing()
		}
		cp := *j
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

func (r *memoryRepository) Update(_ context.Context, j *job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.jobs[j.ID] = &cp
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id uuid.UUID) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, job.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *memoryRepository) FindDead(context.Context, int, int) ([]*job.Job, int64, error) {
	return nil, 0, nil
}

func (r *memoryRepository) DeleteCompletedBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = before
	var n int64
	for id, j := range r.jobs {
		if j.Status == job.StatusCompleted && j.ProcessedAt != nil && j.ProcessedAt.Before(before) {
			delete(r.jobs, id)
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) CountByStatus(context.Context) (map[job.Status]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[job.Status]int64)
	for _, j := range r.jobs {
		out[j.Status]++
	}
	return out, nil
}

type recordedJob struct{ kind, outcome string }

type memoryRecorder struct {
	mu   sync.Mutex
	seen []recordedJob
}

func (m *memoryRecorder) RecordJob(_ context.Context, kind, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, recordedJob{kind, outcome})
}

type memoryNotifier struct {
	mu   sync.Mutex
	sent []job.FailureNotification
	err  error
}

func (m *memoryNotifier) NotifyFailure(_ context.Context, n job.FailureNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return m.err
}

func newJob(t *testing.T, kind job.Kind, maxAttempts int) *job.Job {
	t.Helper()
	j, err := job.New(kind, map[string]int{"product_id": 1}, maxAttempts)
	require.NoError(t, err)
	j.AvailableAt = time.Now().Add(-time.Second)
	return j
}

func testConfig() ProcessorConfig {
	cfg := DefaultProcessorConfig()
	cfg.Backoff = []time.Duration{time.Minute}
	cfg.JobTimeout = time.Second
	return cfg
}

func TestProcessor_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("completes successful jobs", func(t *testing.T) {
		j := newJob(t, job.KindReplicateCreate, 3)
		repo := newMemoryRepository(j)
		rec := &memoryRecorder{}
		var calls atomic.Int32
		p := NewProcessor(repo, map[job.Kind]job.Handler{
			job.KindReplicateCreate: job.HandlerFunc(func(context.Context, *job.Job) error {
				calls.Add(1)
				return nil
			}),
		}, testConfig(), zap.NewNop(), WithRecorder(rec))

		assert.Equal(t, 1, p.RunOnce(ctx))
		assert.Equal(t, int32(1), calls.Load())

		got, err := repo.FindByID(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, job.StatusCompleted, got.Status)
		assert.NotNil(t, got.ProcessedAt)
		assert.Equal(t, []recordedJob{{"replicate.create", OutcomeCompleted}}, rec.seen)

		assert.Equal(t, 0, p.RunOnce(ctx), "completed job is not reclaimed")
	})

	t.Run("failed job is retried after backoff", func(t *testing.T) {
		j := newJob(t, job.KindReplicateUpdate, 3)
		repo := newMemoryRepository(j)
		p := NewProcessor(repo, map[job.Kind]job.Handler{
			job.KindReplicateUpdate: job.HandlerFunc(func(context.Context, *job.Job) error {
				return errors.New("remote unavailable")
			}),
		}, testConfig(), zap.NewNop())

		before := time.Now()
		p.RunOnce(ctx)

		got, _ := repo.FindByID(ctx, j.ID)
		assert.Equal(t, job.StatusFailed, got.Status)
		assert.Equal(t, 1, got.Attempts)
		assert.Equal(t, "remote unavailable", got.LastError)
		assert.True(t, got.AvailableAt.After(before.Add(59*time.Second)))
	})

	t.Run("released job goes back to pending", func(t *testing.T) {
		j := newJob(t, job.KindGateWatermark, 10)
		repo := newMemoryRepository(j)
		rec := &memoryRecorder{}
		p := NewProcessor(repo, map[job.Kind]job.Handler{
			job.KindGateWatermark: job.HandlerFunc(func(context.Context, *job.Job) error {
				return job.Release(time.Minute, "2 targets pending")
			}),
		}, testConfig(), zap.NewNop(), WithRecorder(rec))

		p.RunOnce(ctx)

		got, _ := repo.FindByID(ctx, j.ID)
		assert.Equal(t, job.StatusPending, got.Status)
		assert.Equal(t, 1, got.Attempts)
		assert.Empty(t, got.LastError)
		assert.True(t, got.AvailableAt.After(time.Now().Add(50*time.Second)))
		assert.Equal(t, OutcomeReleased, rec.seen[0].outcome)
	})

	t.Run("exhausted job is dead and notified", func(t *testing.T) {
		j := newJob(t, job.KindReplicateCreate, 1)
		repo := newMemoryRepository(j)
		notifier := &memoryNotifier{err: errors.New("hook down")}
		core, logs := observer.New(zap.WarnLevel)
		p := NewProcessor(repo, map[job.Kind]job.Handler{
			job.KindReplicateCreate: job.HandlerFunc(func(context.Context, *job.Job) error {
				return errors.New("productCreate: invalid handle")
			}),
		}, testConfig(), zap.New(core), WithNotifier(notifier))

		p.RunOnce(ctx)

		got, _ := repo.FindByID(ctx, j.ID)
		assert.Equal(t, job.StatusDead, got.Status)
		require.Len(t, notifier.sent, 1)
		assert.Equal(t, job.KindReplicateCreate, notifier.sent[0].Kind)
		assert.Equal(t, j.ID.String(), notifier.sent[0].JobID)
		assert.Equal(t, "productCreate: invalid handle", notifier.sent[0].LastError)
		assert.Equal(t, 1, logs.FilterMessage("job moved to dead letter queue").Len())
		assert.Equal(t, 1, logs.FilterMessage("failed to send dead job notification").Len())

		entry := logs.FilterMessage("job moved to dead letter queue").All()[0]
		assert.Equal(t, j.ID.String(), entry.ContextMap()["job_id"])
	})

	t.Run("release on last attempt is a failure", func(t *testing.T) {
		j := newJob(t, job.KindGateWatermark, 1)
		repo := newMemoryRepository(j)
		p := NewProcessor(repo, map[job.Kind]job.Handler{
			job.KindGateWatermark: job.HandlerFunc(func(context.Context, *job.Job) error {
				return job.Release(time.Minute, "pending")
			}),
		}, testConfig(), zap.NewNop())

		p.RunOnce(ctx)

		got, _ := repo.FindByID(ctx, j.ID)
		assert.Equal(t, job.StatusDead, got.Status)
	})

	t.Run("unknown kind fails", func(t *testing.T) {
		j := newJob(t, job.KindImagesBackup, 2)
		repo := newMemoryRepository(j)
		p := NewProcessor(repo, nil, testConfig(), zap.NewNop())

		p.RunOnce(ctx)

		got, _ := repo.FindByID(ctx, j.ID)
		assert.Equal(t, job.StatusFailed, got.Status)
		assert.Contains(t, got.LastError, "no handler")
	})

	t.Run("panic becomes failure", func(t *testing.T) {
		j := newJob(t, job.KindWebhook, 2)
		repo := newMemoryRepository(j)
		p := NewProcessor(repo, map[job.Kind]job.Handler{
			job.KindWebhook: job.HandlerFunc(func(context.Context, *job.Job) error { panic("nil payload") }),
		}, testConfig(), zap.NewNop())

		p.RunOnce(ctx)

		got, _ := repo.FindByID(ctx, j.ID)
		assert.Equal(t, job.StatusFailed, got.Status)
		assert.Contains(t, got.LastError, "nil payload")
	})

	t.Run("handler timeout", func(t *testing.T) {
		j := newJob(t, job.KindReplicateUpdate, 2)
		repo := newMemoryRepository(j)
		cfg := testConfig()
		cfg.JobTimeout = 20 * time.Millisecond
		p := NewProcessor(repo, map[job.Kind]job.Handler{
			job.KindReplicateUpdate: job.HandlerFunc(func(ctx context.Context, _ *job.Job) error {
				<-ctx.Done()
				return ctx.Err()
			}),
		}, cfg, zap.NewNop())

		p.RunOnce(ctx)

		got, _ := repo.FindByID(ctx, j.ID)
		assert.Equal(t, job.StatusFailed, got.Status)
		assert.Contains(t, got.LastError, "timed out")
	})

	t.Run("stale processing job is claimed again", func(t *testing.T) {
		j := newJob(t, job.KindReplicateUpdate, 3)
		require.NoError(t, j.MarkProcessing())
		j.UpdatedAt = time.Now().Add(-time.Hour)
		fresh := newJob(t, job.KindReplicateUpdate, 3)
		require.NoError(t, fresh.MarkProcessing())
		repo := newMemoryRepository(j, fresh)
		var calls atomic.Int32
		p := NewProcessor(repo, map[job.Kind]job.Handler{
			job.KindReplicateUpdate: job.HandlerFunc(func(context.Context, *job.Job) error {
				calls.Add(1)
				return nil
			}),
		}, testConfig(), zap.NewNop())

		assert.Equal(t, 1, p.RunOnce(ctx))
		assert.Equal(t, int32(1), calls.Load())

		got, _ := repo.FindByID(ctx, j.ID)
		assert.Equal(t, job.StatusCompleted, got.Status)
		assert.Equal(t, 2, got.Attempts)
		running, _ := repo.FindByID(ctx, fresh.ID)
		assert.Equal(t, job.StatusProcessing, running.Status)
	})

	t.Run("abandoned last attempt is dead", func(t *testing.T) {
		j := newJob(t, job.KindReplicateCreate, 1)
		require.NoError(t, j.MarkProcessing())
		j.UpdatedAt = time.Now().Add(-time.Hour)
		repo := newMemoryRepository(j)
		notifier := &memoryNotifier{}
		p := NewProcessor(repo, map[job.Kind]job.Handler{
			job.KindReplicateCreate: job.HandlerFunc(func(context.Context, *job.Job) error {
				t.Error("handler ran past max attempts")
				return nil
			}),
		}, testConfig(), zap.NewNop(), WithNotifier(notifier))

		assert.Equal(t, 1, p.RunOnce(ctx))

		got, _ := repo.FindByID(ctx, j.ID)
		assert.Equal(t, job.StatusDead, got.Status)
		assert.Equal(t, job.ErrJobAbandoned.Error(), got.LastError)
		require.Len(t, notifier.sent, 1)
	})

	t.Run("claim error", func(t *testing.T) {
		repo := newMemoryRepository()
		repo.claimErr = errors.New("db down")
		p := NewProcessor(repo, nil, testConfig(), zap.NewNop())
		assert.Equal(t, 0, p.RunOnce(ctx))
	})
}

func TestProcessor_WorkerLimit(t *testing.T) {
	ctx := context.Background()
	var jobs []*job.Job
	for i := 0; i < 6; i++ {
		jobs = append(jobs, newJob(t, job.KindReplicateUpdate, 3))
	}
	repo := newMemoryRepository(jobs...)

	var running, peak atomic.Int32
	cfg := testConfig()
	cfg.Workers = 2
	p := NewProcessor(repo, map[job.Kind]job.Handler{
		job.KindReplicateUpdate: job.HandlerFunc(func(context.Context, *job.Job) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		}),
	}, cfg, zap.NewNop())

	assert.Equal(t, 6, p.RunOnce(ctx))
	assert.LessOrEqual(t, peak.Load(), int32(2))

	counts, _ := repo.CountByStatus(ctx)
	assert.Equal(t, int64(6), counts[job.StatusCompleted])
}

func TestProcessor_StartStop(t *testing.T) {
	j := newJob(t, job.KindReplicateCreate, 3)
	repo := newMemoryRepository(j)
	done := make(chan struct{})
	cfg := testConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.CleanupEnabled = false

	p := NewProcessor(repo, map[job.Kind]job.Handler{
		job.KindReplicateCreate: job.HandlerFunc(func(context.Context, *job.Job) error {
			close(done)
			return nil
		}),
	}, cfg, zap.NewNop())

	require.NoError(t, p.Start(context.Background()))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job was not processed")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
}

func TestProcessor_Cleanup(t *testing.T) {
	ctx := context.Background()
	old := newJob(t, job.KindReplicateCreate, 3)
	old.MarkCompleted()
	past := time.Now().Add(-30 * 24 * time.Hour)
	old.ProcessedAt = &past
	fresh := newJob(t, job.KindReplicateCreate, 3)
	fresh.MarkCompleted()

	repo := newMemoryRepository(old, fresh)
	p := NewProcessor(repo, nil, testConfig(), zap.NewNop())

	p.Cleanup(ctx)

	_, err := repo.FindByID(ctx, old.ID)
	assert.ErrorIs(t, err, job.ErrJobNotFound)
	_, err = repo.FindByID(ctx, fresh.ID)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(-7*24*time.Hour), repo.deleted, time.Minute)
}
