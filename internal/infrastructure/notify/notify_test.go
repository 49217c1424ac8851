package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/catalogmirror/backend/internal/domain/job"
	"github.com/catalogmirror/backend/internal/infrastructure/config"
)

func sampleNotification() job.FailureNotification {
	return job.FailureNotification{
		Kind:      job.KindReplicateCreate,
		JobID:     "4b1b0f5e-0000-0000-0000-000000000001",
		Attempts:  5,
		LastError: "productCreate: Handle has already been taken",
		Payload:   `{"product_id":42}`,
		FailedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.NotifyFailure(context.Background(), sampleNotification()))

	entries := logs.FilterMessage("replication job failed permanently").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "replicate.create", fields["kind"])
	assert.Equal(t, int64(5), fields["attempts"])
	assert.Equal(t, "productCreate: Handle has already been taken", fields["last_error"])
}

func TestWebhookNotifier(t *testing.T) {
	t.Run("posts JSON body", func(t *testing.T) {
		var got job.FailureNotification
		var contentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType = r.Header.Get("Content-Type")
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decode body: %v", err)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		n := NewWebhookNotifier(srv.URL, srv.Client(), zap.NewNop())
		require.NoError(t, n.NotifyFailure(context.Background(), sampleNotification()))

		assert.Equal(t, "application/json", contentType)
		assert.Equal(t, sampleNotification(), got)
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		err := NewWebhookNotifier(srv.URL, nil, zap.NewNop()).NotifyFailure(context.Background(), sampleNotification())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		err := NewWebhookNotifier(url, nil, zap.NewNop()).NotifyFailure(context.Background(), sampleNotification())
		assert.Error(t, err)
	})
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) NotifyFailure(context.Context, job.FailureNotification) error {
	s.calls++
	return s.err
}

func TestMulti(t *testing.T) {
	failing := &stubNotifier{err: errors.New("down")}
	ok := &stubNotifier{}

	err := Multi{failing, ok}.NotifyFailure(context.Background(), sampleNotification())

	assert.EqualError(t, err, "down")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}

func TestNew(t *testing.T) {
	assert.IsType(t, &LogNotifier{}, New(config.NotifyConfig{}, zap.NewNop()))

	n := New(config.NotifyConfig{WebhookURL: "http://hooks.local/fail", Timeout: time.Second}, zap.NewNop())
	multi, ok := n.(Multi)
	require.True(t, ok)
	assert.Len(t, multi, 2)
}
