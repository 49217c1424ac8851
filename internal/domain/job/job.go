package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the status of a queued job
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusDead       Status = "DEAD"
)

// Kind identifies the handler of a job
type Kind string

const (
	KindWebhook         Kind = "webhook.process"
	KindReplicateCreate Kind = "replicate.create"
	KindReplicateUpdate Kind = "replicate.update"
	KindGateWatermark   Kind = "gate.watermark"
	KindImagesBackup    Kind = "source.images_backup"
)

// Default retry configuration
const (
	DefaultMaxAttempts = 5
)

// DefaultBackoff holds the delays applied after the 1st, 2nd, 3rd and later
// failed attempts.
var DefaultBackoff = []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second, 120 * time.Second}

var (
	ErrJobNotFound      = errors.New("job: not found")
	ErrJobInvalidStatus = errors.New("job: invalid status transition")
	// ErrJobAbandoned is recorded on a job whose last allowed attempt was
	// claimed but never reported back.
	ErrJobAbandoned = errors.New("job: last attempt abandoned by its worker")
)

// Job is a durable unit of work. Attempts counts claims, so a job released
// back to the queue still consumes an attempt; the coordination gate relies
// on this to cap its polling.
type Job struct {
	ID          uuid.UUID
	Kind        Kind
	Payload     []byte
	Status      Status
	Attempts    int
	MaxAttempts int
	LastError   string
	AvailableAt time.Time
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New creates a pending job with payload marshaled as JSON
func New(kind Kind, payload any, maxAttempts int) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("job: marshal %s payload: %w", kind, err)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	now := time.Now()
	return &Job{
		ID:          uuid.New(),
		Kind:        kind,
		Payload:     raw,
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Decode unmarshals the payload into v
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("job: decode %s payload: %w", j.Kind, err)
	}
	return nil
}

// Delay postpones the first run
func (j *Job) Delay(d time.Duration) *Job {
	j.AvailableAt = time.Now().Add(d)
	return j
}

// MarkProcessing claims the job
func (j *Job) MarkProcessing() error {
	if j.Status != StatusPending && j.Status != StatusFailed {
		return ErrJobInvalidStatus
	}
	j.Status = StatusProcessing
	j.Attempts++
	j.UpdatedAt = time.Now()
	return nil
}

// Reclaim takes over a processing job whose claim went stale, counting a new
// attempt.
func (j *Job) Reclaim() error {
	if j.Status != StatusProcessing {
		return ErrJobInvalidStatus
	}
	j.Attempts++
	j.UpdatedAt = time.Now()
	return nil
}

// Exhausted reports whether the job was claimed more times than it may run.
// Only a reclaimed job can get there.
func (j *Job) Exhausted() bool {
	return j.Attempts > j.MaxAttempts
}

// MarkCompleted marks the job as done
func (j *Job) MarkCompleted() {
	now := time.Now()
	j.Status = StatusCompleted
	j.LastError = ""
	j.ProcessedAt = &now
	j.UpdatedAt = now
}

// Release puts the job back in the queue after delay without counting it as
// a failure.
func (j *Job) Release(delay time.Duration) {
	now := time.Now()
	j.Status = StatusPending
	j.AvailableAt = now.Add(delay)
	j.UpdatedAt = now
}

// MarkFailed records a failed attempt. The job becomes DEAD once attempts
// reach MaxAttempts, otherwise it is retried after the backoff tier for the
// attempt number.
func (j *Job) MarkFailed(errMsg string, backoff []time.Duration) {
	now := time.Now()
	j.LastError = errMsg
	j.UpdatedAt = now

	if j.Attempts >= j.MaxAttempts {
		j.Status = StatusDead
		return
	}
	j.Status = StatusFailed
	j.AvailableAt = now.Add(BackoffFor(j.Attempts, backoff))
}

// BackoffFor returns the delay after the given attempt number (1-based).
// Attempts beyond the table reuse its last tier.
func BackoffFor(attempt int, backoff []time.Duration) time.Duration {
	if len(backoff) == 0 {
		backoff = DefaultBackoff
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoff) {
		idx = len(backoff) - 1
	}
	return backoff[idx]
}

// ResetForRetry resets a dead job
func (j *Job) ResetForRetry() error {
	if j.Status != StatusDead {
		return ErrJobInvalidStatus
	}
	j.Status = StatusPending
	j.Attempts = 0
	j.LastError = ""
	j.AvailableAt = time.Now()
	j.UpdatedAt = time.Now()
	return nil
}

// IsDead returns true if the job exhausted its attempts
func (j *Job) IsDead() bool {
	return j.Status == StatusDead
}

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// Repository defines the interface for job persistence
type Repository interface {
	// Save persists one or more jobs
	Save(ctx context.Context, jobs ...*Job) error
	// ClaimDue atomically claims up to limit pending or failed jobs whose
	// AvailableAt is not after now, marking them processing. Processing jobs
	// not updated for staleAfter are claimed again; zero disables that.
	ClaimDue(ctx context.Context, now time.Time, staleAfter time.Duration, limit int) ([]*Job, error)
	// Update updates an existing job
	Update(ctx context.Context, j *Job) error
	// FindByID retrieves a single job
	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)
	// FindDead retrieves dead jobs with pagination
	FindDead(ctx context.Context, page, pageSize int) ([]*Job, int64, error)
	// DeleteCompletedBefore deletes completed jobs processed before the cutoff
	DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error)
	// CountByStatus returns count of jobs per status
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

// Enqueuer is the write side used by producers
type Enqueuer interface {
	Enqueue(ctx context.Context, jobs ...*Job) error
}

// ReleaseError asks the runner to put the job back with a delay.
type ReleaseError struct {
	Delay  time.Duration
	Reason string
}

// Error implements error.
func (e *ReleaseError) Error() string {
	return fmt.Sprintf("job: released for %s: %s", e.Delay, e.Reason)
}

// Release builds a ReleaseError.
func Release(delay time.Duration, reason string) error {
	return &ReleaseError{Delay: delay, Reason: reason}
}

// AsRelease extracts a ReleaseError from err.
func AsRelease(err error) (*ReleaseError, bool) {
	var re *ReleaseError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Handler runs jobs of one kind. The claimed job is passed so handlers can
// read Attempts.
type Handler interface {
	Handle(ctx context.Context, j *Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, j *Job) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, j *Job) error { return f(ctx, j) }

// FailureNotification describes a job that exhausted its attempts.
type FailureNotification struct {
	Kind      Kind      `json:"kind"`
	JobID     string    `json:"job_id"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	Payload   string    `json:"payload,omitempty"`
	FailedAt  time.Time `json:"failed_at"`
}

// NotificationFor builds the notification of a dead job.
func NotificationFor(j *Job) FailureNotification {
	return FailureNotification{
		Kind:      j.Kind,
		JobID:     j.ID.String(),
		Attempts:  j.Attempts,
		LastError: j.LastError,
		Payload:   string(j.Payload),
		FailedAt:  j.UpdatedAt,
	}
}

// FailureNotifier delivers out-of-band notifications for dead jobs.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, n FailureNotification) error
}
