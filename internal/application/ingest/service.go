// Package ingest accepts authenticated product events, drops redeliveries and
// queues the rest for fan-out.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/catalogmirror/backend/internal/application/replication"
	"github.com/catalogmirror/backend/internal/domain/job"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/domain/shared"
	"go.uber.org/zap"
)

var (
	ErrInvalidDelivery = errors.New("ingest: delivery is missing topic, shop, id or body")
	ErrInvalidPayload  = errors.New("ingest: payload is not valid JSON")
	ErrUnknownShop     = errors.New("ingest: unknown shop")
)

// Result is the outcome of accepting a delivery
type Result string

const (
	ResultQueued    Result = "queued"
	ResultDuplicate Result = "duplicate"
)

const dedupKeyPrefix = "webhook:"

// Delivery is one inbound event, already authenticated.
type Delivery struct {
	WebhookID  string
	Topic      string
	ShopDomain string
	Payload    []byte
}

// Validate checks that every field is present
func (d Delivery) Validate() error {
	if strings.TrimSpace(d.WebhookID) == "" || strings.TrimSpace(d.Topic) == "" ||
		strings.TrimSpace(d.ShopDomain) == "" || len(d.Payload) == 0 {
		return ErrInvalidDelivery
	}
	if !json.Valid(d.Payload) {
		return ErrInvalidPayload
	}
	return nil
}

// Config configures the service
type Config struct {
	DedupTTL    time.Duration
	MaxAttempts int
}

// Service accepts deliveries from the HTTP receiver and the Kafka consumer.
type Service struct {
	shops  mirror.ShopReader
	events mirror.WebhookEventRepository
	dedup  shared.IdempotencyStore
	queue  job.Enqueuer
	cfg    Config
	logger *zap.Logger
}

// NewService creates a new Service. dedup may be nil, in which case only the
// event log detects redeliveries.
func NewService(
	shops mirror.ShopReader,
	events mirror.WebhookEventRepository,
	dedup shared.IdempotencyStore,
	queue job.Enqueuer,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = shared.DefaultDedupTTL
	}
	return &Service{
		shops:  shops,
		events: events,
		dedup:  dedup,
		queue:  queue,
		cfg:    cfg,
		logger: logger,
	}
}

// Accept records the delivery and queues its fan-out. A redelivery of a known
// webhook id returns ResultDuplicate without queueing anything.
func (s *Service) Accept(ctx context.Context, d Delivery) (Result, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	log := s.logger.With(
		zap.String("webhook_id", d.WebhookID),
		zap.String("topic", d.Topic),
		zap.String("shop", d.ShopDomain),
	)

	shop, err := s.shops.FindByDomain(ctx, mirror.NormalizeDomain(d.ShopDomain))
	if errors.Is(err, mirror.ErrShopNotFound) {
		log.Warn("delivery from unknown shop")
		return "", ErrUnknownShop
	}
	if err != nil {
		return "", fmt.Errorf("ingest: load shop: %w", err)
	}

	marked := false
	if s.dedup != nil {
		fresh, err := s.dedup.MarkProcessed(ctx, dedupKeyPrefix+d.WebhookID, s.cfg.DedupTTL)
		switch {
		case err != nil:
			log.Warn("dedup cache unavailable, relying on event log", zap.Error(err))
		case !fresh:
			log.Info("duplicate delivery dropped by cache")
			return ResultDuplicate, nil
		default:
			marked = true
		}
	}

	event, err := mirror.NewWebhookEvent(d.WebhookID, shop, d.Topic, d.Payload)
	if err != nil {
		s.forget(ctx, log, d.WebhookID, marked, false)
		return "", err
	}
	created, err := s.events.FirstOrCreate(ctx, event)
	if err != nil {
		s.forget(ctx, log, d.WebhookID, marked, false)
		return "", fmt.Errorf("ingest: record event: %w", err)
	}
	if !created {
		log.Info("duplicate delivery dropped by event log")
		return ResultDuplicate, nil
	}

	j, err := job.New(job.KindWebhook, replication.WebhookTask{
		WebhookID:  d.WebhookID,
		ShopDomain: shop.Domain,
		Topic:      d.Topic,
		Payload:    d.Payload,
	}, s.cfg.MaxAttempts)
	if err == nil {
		err = s.queue.Enqueue(ctx, j)
	}
	if err != nil {
		s.forget(ctx, log, d.WebhookID, marked, true)
		return "", fmt.Errorf("ingest: enqueue: %w", err)
	}
	log.Info("delivery queued", zap.String("job_id", j.ID.String()))
	return ResultQueued, nil
}

// forget undoes the dedup markers of a delivery that was not queued, so the
// platform's redelivery is accepted.
func (s *Service) forget(ctx context.Context, log *zap.Logger, webhookID string, cached, recorded bool) {
	if cached {
		if err := s.dedup.Forget(ctx, dedupKeyPrefix+webhookID); err != nil {
			log.Warn("failed to clear dedup marker", zap.Error(err))
		}
	}
	if recorded {
		if err := s.events.Delete(ctx, webhookID); err != nil {
			log.Error("failed to clear event record, redelivery will be dropped", zap.Error(err))
		}
	}
}
