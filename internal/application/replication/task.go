package replication

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task is one unit of replication work: one source product event applied to
// one target shop.
type Task struct {
	SourceShopID uuid.UUID       `json:"source_shop_id"`
	TargetShopID uuid.UUID       `json:"target_shop_id"`
	ProductID    int64           `json:"product_id"`
	Payload      json.RawMessage `json:"payload"`
}

// WebhookTask is an accepted inbound event waiting to be fanned out.
type WebhookTask struct {
	WebhookID  string          `json:"webhook_id"`
	ShopDomain string          `json:"shop_domain"`
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
}

// GateTask waits for every target of a source product before running the
// source-side follow-up.
type GateTask struct {
	SourceShopID uuid.UUID       `json:"source_shop_id"`
	ProductID    int64           `json:"product_id"`
	Payload      json.RawMessage `json:"payload"`
}

// BackupTask writes the source image backup metafield.
type BackupTask struct {
	SourceShopID uuid.UUID       `json:"source_shop_id"`
	ProductID    int64           `json:"product_id"`
	Payload      json.RawMessage `json:"payload"`
}

// Config holds replication behavior. It is injected at construction.
type Config struct {
	// NewProductTag is appended to the tags of products created on targets
	NewProductTag string
	// CollectionByDomain maps a target domain to a collection gid new
	// products are attached to
	CollectionByDomain map[string]string
	// PublishOnCreate publishes created products to every publication
	PublishOnCreate bool
	// SEODescription writes the global.description_tag metafield on create
	SEODescription bool
	// BootstrapEnabled maps updates without a mirror to a target product
	// found by handle
	BootstrapEnabled bool
	// BootstrapDryRun only logs the mapping BootstrapEnabled would record
	BootstrapDryRun bool
}

// GateConfig configures the coordination gate.
type GateConfig struct {
	MaxAttempts    int
	ReleaseDelay   time.Duration
	IgnoredDomains []string
}

// DefaultGateConfig returns the default gate configuration
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MaxAttempts:  10,
		ReleaseDelay: 60 * time.Second,
	}
}

// Recorder receives replication measurements.
type Recorder interface {
	RecordReplication(ctx context.Context, path, outcome string, d time.Duration)
	RecordVariant(ctx context.Context, action, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordReplication(context.Context, string, string, time.Duration) {}
func (nopRecorder) RecordVariant(context.Context, string, string)                    {}
