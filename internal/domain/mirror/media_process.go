package mirror

import (
	"context"
	"time"

	"github.com/catalogmirror/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MediaStatus is the state of a product's image processing on one shop
type MediaStatus string

const (
	MediaStatusPending    MediaStatus = "pending"
	MediaStatusProcessing MediaStatus = "processing"
	MediaStatusCompleted  MediaStatus = "completed"
	MediaStatusFailed     MediaStatus = "failed"
	MediaStatusSkipped    MediaStatus = "skipped"
)

// IsTerminal reports whether no further processing will happen.
func (s MediaStatus) IsTerminal() bool {
	return s == MediaStatusCompleted || s == MediaStatusFailed || s == MediaStatusSkipped
}

// MediaProcess tracks image processing of one product on one shop. Unique
// per (ShopDomain, ProductID). The coordination gate polls these records.
type MediaProcess struct {
	shared.BaseEntity
	ShopID         uuid.UUID
	ShopDomain     string
	ProductID      int64
	ProductGID     string
	Status         MediaStatus
	ImagesCount    int
	ProcessedCount int
	Attempts       int
	LastError      string
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// NewMediaProcess creates a pending record.
func NewMediaProcess(shopID uuid.UUID, shopDomain string, productID int64, productGID string) *MediaProcess {
	return &MediaProcess{
		BaseEntity: shared.NewBaseEntity(),
		ShopID:     shopID,
		ShopDomain: shopDomain,
		ProductID:  productID,
		ProductGID: productGID,
		Status:     MediaStatusPending,
	}
}

// Start marks the record processing.
func (p *MediaProcess) Start(imagesCount int) {
	now := time.Now()
	p.Status = MediaStatusProcessing
	p.ImagesCount = imagesCount
	p.ProcessedCount = 0
	p.Attempts++
	p.LastError = ""
	p.StartedAt = &now
	p.CompletedAt = nil
	p.UpdatedAt = now
}

// Complete marks the record completed.
func (p *MediaProcess) Complete(processed int) {
	now := time.Now()
	p.Status = MediaStatusCompleted
	p.ProcessedCount = processed
	p.CompletedAt = &now
	p.UpdatedAt = now
}

// Skip marks the record skipped, e.g. when there are no images.
func (p *MediaProcess) Skip(reason string) {
	now := time.Now()
	p.Status = MediaStatusSkipped
	p.LastError = reason
	p.CompletedAt = &now
	p.UpdatedAt = now
}

// Fail marks the record failed.
func (p *MediaProcess) Fail(err error) {
	now := time.Now()
	p.Status = MediaStatusFailed
	if err != nil {
		p.LastError = err.Error()
	}
	p.CompletedAt = &now
	p.UpdatedAt = now
}

// MediaProcessRepository persists media process records
type MediaProcessRepository interface {
	// FindByShopProduct finds the record of a product on a shop
	FindByShopProduct(ctx context.Context, shopDomain string, productID int64) (*MediaProcess, error)
	// Save upserts on (shop_domain, product_id)
	Save(ctx context.Context, p *MediaProcess) error
}
