package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/catalogmirror/backend/internal/domain/job"
)

// ReplicationMetrics records catalog replication activity. It implements the
// replication recorder, the remote call recorder and the job processor
// recorder.
type ReplicationMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	replicationTotal    *Counter
	replicationDuration *Histogram
	variantTotal        *Counter
	remoteCallTotal     *Counter
	jobTotal            *Counter
	jobDuration         *Histogram
	webhookTotal        *Counter

	queueDepth *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	queueProvider QueueStatsProvider
}

// QueueStatsProvider reports the job queue size per status.
type QueueStatsProvider interface {
	CountByStatus(ctx context.Context) (map[job.Status]int64, error)
}

// ReplicationMetricsConfig holds configuration for replication metrics.
type ReplicationMetricsConfig struct {
	Meter         metric.Meter
	Logger        *zap.Logger
	QueueProvider QueueStatsProvider
}

// ReplicationDurationBuckets are bucket boundaries for one replication run (seconds).
var ReplicationDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// NewReplicationMetrics creates a new ReplicationMetrics instance.
func NewReplicationMetrics(cfg ReplicationMetricsConfig) (*ReplicationMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rm := &ReplicationMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		queueProvider: cfg.QueueProvider,
	}

	var err error
	if rm.replicationTotal, err = NewCounter(cfg.Meter,
		"mirror_replication_total", "Replication runs per path and outcome", "{runs}"); err != nil {
		return nil, err
	}
	if rm.replicationDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "mirror_replication_duration_seconds",
		Description: "Duration of one replication run",
		Unit:        "s",
		Boundaries:  ReplicationDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if rm.variantTotal, err = NewCounter(cfg.Meter,
		"mirror_variant_action_total", "Variant actions applied to target shops", "{variants}"); err != nil {
		return nil, err
	}
	if rm.remoteCallTotal, err = NewCounter(cfg.Meter,
		"mirror_remote_call_total", "Calls made to the remote catalog API", "{calls}"); err != nil {
		return nil, err
	}
	if rm.jobTotal, err = NewCounter(cfg.Meter,
		"mirror_job_total", "Queued jobs handled per kind and outcome", "{jobs}"); err != nil {
		return nil, err
	}
	if rm.jobDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "mirror_job_duration_seconds",
		Description: "Duration of one job handler invocation",
		Unit:        "s",
		Boundaries:  ReplicationDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if rm.webhookTotal, err = NewCounter(cfg.Meter,
		"mirror_webhook_total", "Inbound webhook deliveries per topic and result", "{deliveries}"); err != nil {
		return nil, err
	}
	if rm.queueDepth, err = NewGauge(cfg.Meter,
		"mirror_job_queue_depth", "Jobs in the queue per status", "{jobs}"); err != nil {
		return nil, err
	}

	return rm, nil
}

// RecordReplication records one replication run.
func (rm *ReplicationMetrics) RecordReplication(ctx context.Context, path, outcome string, d time.Duration) {
	attrs := []attribute.KeyValue{AttrReplicationPath.String(path), AttrOutcome.String(outcome)}
	rm.replicationTotal.Inc(ctx, attrs...)
	rm.replicationDuration.RecordDuration(ctx, d, attrs...)
}

// RecordVariant records one variant action on a target.
func (rm *ReplicationMetrics) RecordVariant(ctx context.Context, action, outcome string) {
	rm.variantTotal.Inc(ctx, AttrVariantAction.String(action), AttrOutcome.String(outcome))
}

// RecordRemoteCall records one remote catalog API call.
func (rm *ReplicationMetrics) RecordRemoteCall(ctx context.Context, operation, outcome string) {
	rm.remoteCallTotal.Inc(ctx, AttrRemoteOperation.String(operation), AttrOutcome.String(outcome))
}

// RecordJob records one job handler invocation.
func (rm *ReplicationMetrics) RecordJob(ctx context.Context, kind, outcome string, d time.Duration) {
	attrs := []attribute.KeyValue{AttrJobKind.String(kind), AttrOutcome.String(outcome)}
	rm.jobTotal.Inc(ctx, attrs...)
	rm.jobDuration.RecordDuration(ctx, d, attrs...)
}

// RecordWebhook records one inbound webhook delivery.
func (rm *ReplicationMetrics) RecordWebhook(ctx context.Context, topic, result string) {
	rm.webhookTotal.Inc(ctx, AttrWebhookTopic.String(topic), AttrOutcome.String(result))
}

// StartPeriodicCollection samples the queue depth every interval until Stop
// is called or ctx is done. Non-blocking.
func (rm *ReplicationMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	rm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}
		go rm.runPeriodicCollection(ctx, interval)
	})
}

func (rm *ReplicationMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rm.collectQueueDepth(ctx)

	for {
		select {
		case <-rm.stopChan:
			rm.logger.Info("Stopping periodic queue metrics collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			rm.collectQueueDepth(ctx)
		}
	}
}

func (rm *ReplicationMetrics) collectQueueDepth(ctx context.Context) {
	if rm.queueProvider == nil {
		return
	}
	counts, err := rm.queueProvider.CountByStatus(ctx)
	if err != nil {
		rm.logger.Warn("Failed to count jobs for queue metrics", zap.Error(err))
		return
	}
	for _, status := range []job.Status{job.StatusPending, job.StatusProcessing, job.StatusFailed, job.StatusDead} {
		rm.queueDepth.Record(ctx, counts[status], AttrJobStatus.String(string(status)))
	}
}

// Stop stops the periodic collection.
func (rm *ReplicationMetrics) Stop() {
	rm.stopOnce.Do(func() {
		close(rm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewReplicationMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
