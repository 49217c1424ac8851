package persistence

import (
	"context"
	"errors"

	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMediaProcessRepository implements mirror.MediaProcessRepository using GORM
type GormMediaProcessRepository struct {
	db *gorm.DB
}

// NewGormMediaProcessRepository creates a new GormMediaProcessRepository
func NewGormMediaProcessRepository(db *gorm.DB) *GormMediaProcessRepository {
	return &GormMediaProcessRepository{db: db}
}

// FindByShopProduct finds the media process of a product
func (r *GormMediaProcessRepository) FindByShopProduct(ctx context.Context, shopDomain string, productID int64) (*mirror.MediaProcess, error) {
	var model models.MediaProcessModel
	if err := r.db.WithContext(ctx).
		Where("shop_domain = ? AND product_id = ?", shopDomain, productID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mirror.ErrMediaProcessNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save upserts on (shop domain, product id)
func (r *GormMediaProcessRepository) Save(ctx context.Context, p *mirror.MediaProcess) error {
	p.Touch()
	model := models.MediaProcessModelFromDomain(p)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "shop_domain"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"shop_id", "product_gid", "status", "images_count", "processed_count",
				"attempts", "last_error", "started_at", "completed_at", "updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		return err
	}

	var stored models.MediaProcessModel
	if err := r.db.WithContext(ctx).Select("id", "created_at").
		Where("shop_domain = ? AND product_id = ?", p.ShopDomain, p.ProductID).
		First(&stored).Error; err != nil {
		return err
	}
	p.ID = stored.ID
	p.CreatedAt = stored.CreatedAt
	return nil
}

var _ mirror.MediaProcessRepository = (*GormMediaProcessRepository)(nil)

// GormWebhookEventRepository implements mirror.WebhookEventRepository using GORM
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// FirstOrCreate records the event unless its webhook id was already seen
func (r *GormWebhookEventRepository) FirstOrCreate(ctx context.Context, e *mirror.WebhookEvent) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "webhook_id"}},
			DoNothing: true,
		}).
		Create(models.WebhookEventModelFromDomain(e))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Delete removes the record of a webhook delivery
func (r *GormWebhookEventRepository) Delete(ctx context.Context, webhookID string) error {
	return r.db.WithContext(ctx).Where("webhook_id = ?", webhookID).Delete(&models.WebhookEventModel{}).Error
}

var _ mirror.WebhookEventRepository = (*GormWebhookEventRepository)(nil)
