// Package kafka consumes product change events from a Kafka topic and hands
// them to the ingestion service.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/catalogmirror/backend/internal/application/ingest"
	"github.com/catalogmirror/backend/internal/infrastructure/config"
)

// Message is the value of one event record.
type Message struct {
	Topic      string          `json:"topic" validate:"required"`
	ShopDomain string          `json:"shop_domain" validate:"required,hostname"`
	WebhookID  string          `json:"webhook_id" validate:"required"`
	Payload    json.RawMessage `json:"payload" validate:"required"`
}

// Acceptor takes a delivery into the ingestion pipeline.
type Acceptor interface {
	Accept(ctx context.Context, d ingest.Delivery) (ingest.Result, error)
}

// Reader is the subset of *kafkago.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer reads event records, accepts them and commits their offsets.
// Records that can never be accepted are committed and logged; transient
// failures are retried with backoff before the offset moves.
type Consumer struct {
	reader   Reader
	acceptor Acceptor
	validate *validator.Validate
	logger   *zap.Logger

	retryBase time.Duration
	retryMax  time.Duration
}

// NewReader builds a consumer group reader from configuration.
func NewReader(cfg config.KafkaConfig) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kafkago.FirstOffset,
	})
}

// NewConsumer creates a new Consumer
func NewConsumer(reader Reader, acceptor Acceptor, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:    reader,
		acceptor:  acceptor,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		retryBase: time.Second,
		retryMax:  time.Minute,
	}
}

// Run consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("kafka consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("failed to close kafka reader", zap.Error(err))
		}
		c.logger.Info("kafka consumer stopped")
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka: fetch: %w", err)
		}

		if err := c.handleWithRetry(ctx, msg); err != nil {
			// only cancellation ends the retry loop
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka: commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafkago.Message) error {
	delay := c.retryBase
	for {
		err := c.Handle(ctx, msg)
		if err == nil {
			return nil
		}
		c.logger.Warn("kafka record not accepted, retrying",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.retryMax {
			delay = c.retryMax
		}
	}
}

// Handle processes one record. It returns an error only for failures worth
// retrying; malformed records and permanent rejections are logged and
// reported as handled.
func (c *Consumer) Handle(ctx context.Context, msg kafkago.Message) error {
	log := c.logger.With(zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))

	var m Message
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		log.Error("dropping malformed kafka record", zap.Error(err))
		return nil
	}
	if err := c.validate.Struct(m); err != nil {
		log.Error("dropping invalid kafka record", zap.Error(err))
		return nil
	}

	res, err := c.acceptor.Accept(ctx, ingest.Delivery{
		WebhookID:  m.WebhookID,
		Topic:      m.Topic,
		ShopDomain: m.ShopDomain,
		Payload:    m.Payload,
	})
	switch {
	case errors.Is(err, ingest.ErrInvalidDelivery), errors.Is(err, ingest.ErrInvalidPayload), errors.Is(err, ingest.ErrUnknownShop):
		log.Warn("kafka record rejected", zap.String("webhook_id", m.WebhookID), zap.Error(err))
		return nil
	case err != nil:
		return err
	}

	log.Info("kafka record accepted",
		zap.String("webhook_id", m.WebhookID),
		zap.String("topic", m.Topic),
		zap.String("result", string(res)),
	)
	return nil
}
