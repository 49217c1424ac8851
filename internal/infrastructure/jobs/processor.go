// Package jobs runs queued replication jobs in the background.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/catalogmirror/backend/internal/domain/job"
	"github.com/catalogmirror/backend/internal/infrastructure/logger"
	"github.com/catalogmirror/backend/internal/infrastructure/telemetry"
)

// Outcomes reported to the Recorder
const (
	OutcomeCompleted = "completed"
	OutcomeReleased  = "released"
	OutcomeFailed    = "failed"
	OutcomeDead      = "dead"
)

// ProcessorConfig holds configuration for the job processor
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	Workers          int
	JobTimeout       time.Duration
	StaleAfter       time.Duration
	Backoff          []time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultProcessorConfig returns default configuration
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     2 * time.Second,
		BatchSize:        20,
		Workers:          4,
		JobTimeout:       5 * time.Minute,
		Backoff:          job.DefaultBackoff,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Recorder receives one measurement per handled job.
type Recorder interface {
	RecordJob(ctx context.Context, kind, outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordJob(context.Context, string, string, time.Duration) {}

// Processor claims due jobs and runs them on a bounded worker pool
type Processor struct {
	repo     job.Repository
	handlers map[job.Kind]job.Handler
	notifier job.FailureNotifier
	recorder Recorder
	config   ProcessorConfig
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ProcessorOption configures a Processor
type ProcessorOption func(*Processor)

// WithNotifier sets the notifier for dead jobs
func WithNotifier(n job.FailureNotifier) ProcessorOption {
	return func(p *Processor) { p.notifier = n }
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) ProcessorOption {
	return func(p *Processor) { p.recorder = r }
}

// NewProcessor creates a new job processor
func NewProcessor(
	repo job.Repository,
	handlers map[job.Kind]job.Handler,
	config ProcessorConfig,
	logger *zap.Logger,
	opts ...ProcessorOption,
) *Processor {
	defaults := DefaultProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.StaleAfter <= 0 && config.JobTimeout > 0 {
		config.StaleAfter = 2 * config.JobTimeout
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.CleanupRetention <= 0 {
		config.CleanupRetention = defaults.CleanupRetention
	}
	p := &Processor{
		repo:     repo,
		handlers: handlers,
		recorder: nopRecorder{},
		config:   config,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start starts the background processing
func (p *Processor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.processLoop(ctx)

	if p.config.CleanupEnabled {
		p.wg.Add(1)
		go p.cleanupLoop(ctx)
	}

	p.logger.Info("job processor started",
		zap.Int("workers", p.config.Workers),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
	)
	return nil
}

// Stop cancels polling and waits for in-flight jobs until ctx is done
func (p *Processor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("job processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) processLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// drain while full batches keep coming
			for ctx.Err() == nil {
				if p.RunOnce(ctx) < p.config.BatchSize {
					break
				}
			}
		}
	}
}

// RunOnce claims one batch of due jobs and runs them, returning the number
// claimed.
func (p *Processor) RunOnce(ctx context.Context) int {
	claimed, err := p.repo.ClaimDue(ctx, time.Now(), p.config.StaleAfter, p.config.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("failed to claim due jobs", zap.Error(err))
		}
		return 0
	}
	if len(claimed) == 0 {
		return 0
	}

	var g errgroup.Group
	g.SetLimit(p.config.Workers)
	for _, j := range claimed {
		g.Go(func() error {
			p.process(ctx, j)
			return nil
		})
	}
	_ = g.Wait()
	return len(claimed)
}

func (p *Processor) process(ctx context.Context, j *job.Job) {
	ctx, jobLogger := logger.WithJobID(ctx, p.logger, j.ID.String())
	log := jobLogger.With(
		zap.String("kind", string(j.Kind)),
		zap.Int("attempt", j.Attempts),
	)

	// state updates use a context that survives shutdown
	persistCtx := context.WithoutCancel(ctx)

	start := time.Now()
	var err error
	if j.Exhausted() {
		err = job.ErrJobAbandoned
	} else {
		err = p.run(ctx, j)
	}
	elapsed := time.Since(start)

	if err == nil {
		j.MarkCompleted()
		p.persist(persistCtx, j, log)
		p.recorder.RecordJob(ctx, string(j.Kind), OutcomeCompleted, elapsed)
		log.Debug("job completed", zap.Duration("elapsed", elapsed))
		return
	}

	if rel, ok := job.AsRelease(err); ok && j.Attempts < j.MaxAttempts {
		j.Release(rel.Delay)
		p.persist(persistCtx, j, log)
		p.recorder.RecordJob(ctx, string(j.Kind), OutcomeReleased, elapsed)
		log.Info("job released", zap.Duration("delay", rel.Delay), zap.String("reason", rel.Reason))
		return
	}

	j.MarkFailed(err.Error(), p.config.Backoff)
	p.persist(persistCtx, j, log)

	if !j.IsDead() {
		p.recorder.RecordJob(ctx, string(j.Kind), OutcomeFailed, elapsed)
		log.Warn("job failed, will retry", zap.Time("available_at", j.AvailableAt), zap.Error(err))
		return
	}

	p.recorder.RecordJob(ctx, string(j.Kind), OutcomeDead, elapsed)
	log.Error("job moved to dead letter queue",
		zap.Int("attempts", j.Attempts),
		zap.String("last_error", j.LastError),
	)
	if p.notifier != nil {
		if nerr := p.notifier.NotifyFailure(persistCtx, job.NotificationFor(j)); nerr != nil {
			log.Warn("failed to send dead job notification", zap.Error(nerr))
		}
	}
}

// run invokes the handler under the job timeout, turning panics into errors
func (p *Processor) run(ctx context.Context, j *job.Job) (err error) {
	h, ok := p.handlers[j.Kind]
	if !ok {
		return fmt.Errorf("no handler for job kind %q", j.Kind)
	}

	if p.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.JobTimeout)
		defer cancel()
	}

	ctx, span := telemetry.StartSpan(ctx, "job."+string(j.Kind),
		attribute.String("job.id", j.ID.String()),
		attribute.Int("job.attempt", j.Attempts),
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
		if _, released := job.AsRelease(err); released {
			telemetry.EndSpan(span, nil)
			return
		}
		telemetry.EndSpan(span, err)
	}()

	err = h.Handle(ctx, j)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("job timed out after %s: %w", p.config.JobTimeout, err)
	}
	return err
}

func (p *Processor) persist(ctx context.Context, j *job.Job, log *zap.Logger) {
	if err := p.repo.Update(ctx, j); err != nil {
		log.Error("failed to update job", zap.String("status", string(j.Status)), zap.Error(err))
	}
}

func (p *Processor) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Cleanup(ctx)
		}
	}
}

// Cleanup removes completed jobs older than the retention
func (p *Processor) Cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to clean up completed jobs", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("cleaned up completed jobs",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
