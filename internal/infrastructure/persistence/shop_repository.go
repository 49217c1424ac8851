package persistence

import (
	"context"
	"errors"

	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormShopRepository implements mirror.ShopRepository using GORM
type GormShopRepository struct {
	db *gorm.DB
}

// NewGormShopRepository creates a new GormShopRepository
func NewGormShopRepository(db *gorm.DB) *GormShopRepository {
	return &GormShopRepository{db: db}
}

// FindByID finds a shop by its ID
func (r *GormShopRepository) FindByID(ctx context.Context, id uuid.UUID) (*mirror.Shop, error) {
	var model models.ShopModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mirror.ErrShopNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByDomain finds a shop by its normalized domain
func (r *GormShopRepository) FindByDomain(ctx context.Context, domain string) (*mirror.Shop, error) {
	var model models.ShopModel
	if err := r.db.WithContext(ctx).
		Where("domain = ?", mirror.NormalizeDomain(domain)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mirror.ErrShopNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every shop ordered by registration time
func (r *GormShopRepository) FindAll(ctx context.Context) ([]mirror.Shop, error) {
	var rows []models.ShopModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return shopsToDomain(rows), nil
}

// FindActiveTargets returns the active shops connected to the source
func (r *GormShopRepository) FindActiveTargets(ctx context.Context, sourceShopID uuid.UUID) ([]mirror.Shop, error) {
	var rows []models.ShopModel
	if err := r.db.WithContext(ctx).
		Joins("JOIN shop_connections ON shop_connections.target_shop_id = shops.id").
		Where("shop_connections.source_shop_id = ? AND shops.is_active = ?", sourceShopID, true).
		Order("shops.domain ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return shopsToDomain(rows), nil
}

// Save creates or updates a shop. A shop registered again under the same
// domain keeps its ID.
func (r *GormShopRepository) Save(ctx context.Context, shop *mirror.Shop) error {
	model := models.ShopModelFromDomain(shop)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "domain"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "access_token", "api_version", "is_source", "is_active", "location_gid", "updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		return err
	}

	var stored models.ShopModel
	if err := r.db.WithContext(ctx).Select("id", "created_at").
		Where("domain = ?", model.Domain).First(&stored).Error; err != nil {
		return err
	}
	shop.ID = stored.ID
	shop.CreatedAt = stored.CreatedAt
	return nil
}

func shopsToDomain(rows []models.ShopModel) []mirror.Shop {
	shops := make([]mirror.Shop, len(rows))
	for i := range rows {
		shops[i] = *rows[i].ToDomain()
	}
	return shops
}

// Ensure GormShopRepository implements mirror.ShopRepository
var _ mirror.ShopRepository = (*GormShopRepository)(nil)

// GormConnectionRepository implements mirror.ConnectionRepository using GORM
type GormConnectionRepository struct {
	db *gorm.DB
}

// NewGormConnectionRepository creates a new GormConnectionRepository
func NewGormConnectionRepository(db *gorm.DB) *GormConnectionRepository {
	return &GormConnectionRepository{db: db}
}

// Save inserts the connection unless the pair already exists
func (r *GormConnectionRepository) Save(ctx context.Context, conn *mirror.ShopConnection) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.ShopConnectionModelFromDomain(conn))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindBySource returns the connections of a source shop
func (r *GormConnectionRepository) FindBySource(ctx context.Context, sourceShopID uuid.UUID) ([]mirror.ShopConnection, error) {
	var rows []models.ShopConnectionModel
	if err := r.db.WithContext(ctx).
		Where("source_shop_id = ?", sourceShopID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	conns := make([]mirror.ShopConnection, len(rows))
	for i := range rows {
		conns[i] = *rows[i].ToDomain()
	}
	return conns, nil
}

var _ mirror.ConnectionRepository = (*GormConnectionRepository)(nil)
