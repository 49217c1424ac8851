// Package notify delivers notifications for jobs that exhausted their
// attempts.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/catalogmirror/backend/internal/domain/job"
	"github.com/catalogmirror/backend/internal/infrastructure/config"
)

// LogNotifier writes failure notifications to the log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyFailure implements job.FailureNotifier.
func (n *LogNotifier) NotifyFailure(_ context.Context, f job.FailureNotification) error {
	n.logger.Error("replication job failed permanently",
		zap.String("kind", string(f.Kind)),
		zap.String("job_id", f.JobID),
		zap.Int("attempts", f.Attempts),
		zap.String("last_error", f.LastError),
		zap.String("payload", f.Payload),
		zap.Time("failed_at", f.FailedAt),
	)
	return nil
}

// WebhookNotifier posts failure notifications as JSON to a URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookNotifier creates a WebhookNotifier
func NewWebhookNotifier(url string, client *http.Client, logger *zap.Logger) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: url, client: client, logger: logger}
}

// NotifyFailure implements job.FailureNotifier.
func (n *WebhookNotifier) NotifyFailure(ctx context.Context, f job.FailureNotification) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("notify: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook answered %d", resp.StatusCode)
	}
	n.logger.Debug("failure notification delivered", zap.String("job_id", f.JobID))
	return nil
}

// Multi fans a notification out to several notifiers, returning the first
// error after trying all of them.
type Multi []job.FailureNotifier

// NotifyFailure implements job.FailureNotifier.
func (m Multi) NotifyFailure(ctx context.Context, f job.FailureNotification) error {
	var first error
	for _, n := range m {
		if err := n.NotifyFailure(ctx, f); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// New always logs failures and also posts them when a webhook URL is set.
func New(cfg config.NotifyConfig, logger *zap.Logger) job.FailureNotifier {
	logNotifier := NewLogNotifier(logger)
	if cfg.WebhookURL == "" {
		return logNotifier
	}
	return Multi{logNotifier, NewWebhookNotifier(cfg.WebhookURL, &http.Client{Timeout: cfg.Timeout}, logger)}
}
