package mirror

import (
	"context"

	"github.com/catalogmirror/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Topics handled by the fan-out.
const (
	TopicProductsCreate = "products/create"
	TopicProductsUpdate = "products/update"
)

// WebhookEvent is an accepted inbound delivery. WebhookID is unique, which
// makes a redelivery detectable.
type WebhookEvent struct {
	shared.BaseEntity
	WebhookID  string
	ShopID     uuid.UUID
	ShopDomain string
	Topic      string
	Payload    []byte
}

// NewWebhookEvent creates a webhook event record
func NewWebhookEvent(webhookID string, shop *Shop, topic string, payload []byte) (*WebhookEvent, error) {
	if webhookID == "" || topic == "" {
		return nil, ErrWebhookInvalid
	}
	if len(payload) == 0 {
		return nil, ErrWebhookInvalid
	}
	return &WebhookEvent{
		BaseEntity: shared.NewBaseEntity(),
		WebhookID:  webhookID,
		ShopID:     shop.ID,
		ShopDomain: shop.Domain,
		Topic:      topic,
		Payload:    payload,
	}, nil
}

// WebhookEventRepository persists webhook events
type WebhookEventRepository interface {
	// FirstOrCreate inserts the event unless one with the same WebhookID
	// exists; created reports whether this call inserted it.
	FirstOrCreate(ctx context.Context, e *WebhookEvent) (created bool, err error)
	// Delete removes the record of a delivery that could not be queued
	Delete(ctx context.Context, webhookID string) error
}
