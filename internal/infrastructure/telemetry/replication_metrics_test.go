package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/catalogmirror/backend/internal/domain/job"
	"github.com/catalogmirror/backend/internal/infrastructure/telemetry"
)

func newManualMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestNewReplicationMetrics_NilMeter(t *testing.T) {
	rm, err := telemetry.NewReplicationMetrics(telemetry.ReplicationMetricsConfig{})
	require.Error(t, err)
	assert.Nil(t, rm)
	assert.Equal(t, "NewReplicationMetrics: meter cannot be nil", err.Error())
}

func TestReplicationMetrics_NoopMeter(t *testing.T) {
	rm, err := telemetry.NewReplicationMetrics(telemetry.ReplicationMetricsConfig{
		Meter: noop.NewMeterProvider().Meter("test"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	rm.RecordReplication(ctx, "create", "success", time.Second)
	rm.RecordVariant(ctx, "update", "success")
	rm.RecordRemoteCall(ctx, "product.get", "ok")
	rm.RecordJob(ctx, "replicate.create", "completed", time.Millisecond)
	rm.RecordWebhook(ctx, "products/create", "queued")
}

func TestReplicationMetrics_Counters(t *testing.T) {
	reader, mp := newManualMeter(t)
	rm, err := telemetry.NewReplicationMetrics(telemetry.ReplicationMetricsConfig{Meter: mp.Meter("test")})
	require.NoError(t, err)

	ctx := context.Background()
	rm.RecordReplication(ctx, "update", "success", 2*time.Second)
	rm.RecordReplication(ctx, "update", "success", time.Second)
	rm.RecordReplication(ctx, "create", "failed", time.Second)
	rm.RecordVariant(ctx, "delete", "success")
	rm.RecordRemoteCall(ctx, "product.update", "error")

	metrics := collect(t, reader)

	total := metrics["mirror_replication_total"]
	assert.Equal(t, int64(2), sumFor(t, total,
		telemetry.AttrReplicationPath.String("update"), telemetry.AttrOutcome.String("success")))
	assert.Equal(t, int64(1), sumFor(t, total,
		telemetry.AttrReplicationPath.String("create"), telemetry.AttrOutcome.String("failed")))

	assert.Equal(t, int64(1), sumFor(t, metrics["mirror_variant_action_total"],
		telemetry.AttrVariantAction.String("delete"), telemetry.AttrOutcome.String("success")))
	assert.Equal(t, int64(1), sumFor(t, metrics["mirror_remote_call_total"],
		telemetry.AttrRemoteOperation.String("product.update"), telemetry.AttrOutcome.String("error")))

	hist, ok := metrics["mirror_replication_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

type stubQueue struct {
	counts map[job.Status]int64
	err    error
}

func (s stubQueue) CountByStatus(context.Context) (map[job.Status]int64, error) {
	return s.counts, s.err
}

func TestReplicationMetrics_QueueDepth(t *testing.T) {
	t.Run("records every open status", func(t *testing.T) {
		reader, mp := newManualMeter(t)
		rm, err := telemetry.NewReplicationMetrics(telemetry.ReplicationMetricsConfig{
			Meter:         mp.Meter("test"),
			QueueProvider: stubQueue{counts: map[job.Status]int64{job.StatusPending: 4, job.StatusDead: 1}},
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rm.StartPeriodicCollection(ctx, time.Hour)
		defer rm.Stop()

		assert.Eventually(t, func() bool {
			_, ok := collect(t, reader)["mirror_job_queue_depth"]
			return ok
		}, time.Second, 10*time.Millisecond)

		gauge, ok := collect(t, reader)["mirror_job_queue_depth"].Data.(metricdata.Gauge[int64])
		require.True(t, ok)
		values := make(map[string]int64)
		for _, dp := range gauge.DataPoints {
			v, _ := dp.Attributes.Value(telemetry.AttrJobStatus)
			values[v.AsString()] = dp.Value
		}
		assert.Equal(t, int64(4), values["PENDING"])
		assert.Equal(t, int64(1), values["DEAD"])
		assert.Equal(t, int64(0), values["PROCESSING"])
	})

	t.Run("provider error records nothing", func(t *testing.T) {
		reader, mp := newManualMeter(t)
		rm, err := telemetry.NewReplicationMetrics(telemetry.ReplicationMetricsConfig{
			Meter:         mp.Meter("test"),
			QueueProvider: stubQueue{err: errors.New("db down")},
		})
		require.NoError(t, err)

		rm.StartPeriodicCollection(context.Background(), time.Hour)
		rm.Stop()
		rm.Stop()

		_, ok := collect(t, reader)["mirror_job_queue_depth"]
		assert.False(t, ok)
	})
}
