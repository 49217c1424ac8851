package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductMirrorRepository implements mirror.ProductMirrorRepository using GORM
type GormProductMirrorRepository struct {
	db *gorm.DB
}

// NewGormProductMirrorRepository creates a new GormProductMirrorRepository
func NewGormProductMirrorRepository(db *gorm.DB) *GormProductMirrorRepository {
	return &GormProductMirrorRepository{db: db}
}

// FindOne finds the mirror of a source product on one target
func (r *GormProductMirrorRepository) FindOne(ctx context.Context, sourceShopID uuid.UUID, sourceProductID int64, targetShopID uuid.UUID) (*mirror.ProductMirror, error) {
	var model models.ProductMirrorModel
	if err := r.db.WithContext(ctx).
		Where("source_shop_id = ? AND source_product_id = ? AND target_shop_id = ?", sourceShopID, sourceProductID, targetShopID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mirror.ErrProductMirrorNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySourceProduct returns every target mirror of a source product
func (r *GormProductMirrorRepository) FindBySourceProduct(ctx context.Context, sourceShopID uuid.UUID, sourceProductID int64) ([]mirror.ProductMirror, error) {
	var rows []models.ProductMirrorModel
	if err := r.db.WithContext(ctx).
		Where("source_shop_id = ? AND source_product_id = ?", sourceShopID, sourceProductID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]mirror.ProductMirror, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save upserts on (source shop, source product, target shop). An empty
// target product never overwrites a stored one.
func (r *GormProductMirrorRepository) Save(ctx context.Context, m *mirror.ProductMirror) error {
	model, err := models.ProductMirrorModelFromDomain(m)
	if err != nil {
		return err
	}
	model.UpdatedAt = time.Now()

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "source_shop_id"}, {Name: "source_product_id"}, {Name: "target_shop_id"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "target_product_gid"}, Value: gorm.Expr("COALESCE(NULLIF(excluded.target_product_gid, ''), product_mirrors.target_product_gid)")},
				{Column: clause.Column{Name: "target_product_id"}, Value: gorm.Expr("CASE WHEN excluded.target_product_gid = '' THEN product_mirrors.target_product_id ELSE excluded.target_product_id END")},
				{Column: clause.Column{Name: "source_product_gid"}, Value: gorm.Expr("excluded.source_product_gid")},
				{Column: clause.Column{Name: "last_snapshot"}, Value: gorm.Expr("excluded.last_snapshot")},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
			},
		}).
		Create(model).Error
	if err != nil {
		return err
	}

	var stored models.ProductMirrorModel
	if err := r.db.WithContext(ctx).
		Select("id", "created_at", "target_product_id", "target_product_gid").
		Where("source_shop_id = ? AND source_product_id = ? AND target_shop_id = ?", m.SourceShopID, m.SourceProductID, m.TargetShopID).
		First(&stored).Error; err != nil {
		return err
	}
	m.ID = stored.ID
	m.CreatedAt = stored.CreatedAt
	m.TargetProductID = stored.TargetProductID
	m.TargetProductGID = stored.TargetProductGID
	return nil
}

// UpdateSnapshot replaces the stored snapshot of a mirror
func (r *GormProductMirrorRepository) UpdateSnapshot(ctx context.Context, id uuid.UUID, snapshot *catalog.Snapshot) error {
	if snapshot == nil {
		snapshot = &catalog.Snapshot{}
	}
	raw, err := snapshot.Encode()
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&models.ProductMirrorModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_snapshot": datatypes.JSON(raw),
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return mirror.ErrProductMirrorNotFound
	}
	return nil
}

var _ mirror.ProductMirrorRepository = (*GormProductMirrorRepository)(nil)
