package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormVariantMirrorRepository implements mirror.VariantMirrorRepository using GORM
type GormVariantMirrorRepository struct {
	db *gorm.DB
}

// NewGormVariantMirrorRepository creates a new GormVariantMirrorRepository
func NewGormVariantMirrorRepository(db *gorm.DB) *GormVariantMirrorRepository {
	return &GormVariantMirrorRepository{db: db}
}

// FindByProductMirror returns the variant mirrors of a product mirror
func (r *GormVariantMirrorRepository) FindByProductMirror(ctx context.Context, productMirrorID uuid.UUID) ([]mirror.VariantMirror, error) {
	var rows []models.VariantMirrorModel
	if err := r.db.WithContext(ctx).
		Where("product_mirror_id = ?", productMirrorID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]mirror.VariantMirror, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// FindBySourceVariant finds a variant mirror by source variant id
func (r *GormVariantMirrorRepository) FindBySourceVariant(ctx context.Context, productMirrorID uuid.UUID, sourceVariantID int64) (*mirror.VariantMirror, error) {
	return r.findOne(ctx, "product_mirror_id = ? AND source_variant_id = ?", productMirrorID, sourceVariantID)
}

// FindByKey finds a variant mirror by options key
func (r *GormVariantMirrorRepository) FindByKey(ctx context.Context, productMirrorID uuid.UUID, key string) (*mirror.VariantMirror, error) {
	return r.findOne(ctx, "product_mirror_id = ? AND source_options_key = ?", productMirrorID, key)
}

func (r *GormVariantMirrorRepository) findOne(ctx context.Context, query string, args ...any) (*mirror.VariantMirror, error) {
	var model models.VariantMirrorModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mirror.ErrVariantMirrorNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save updates the mirror by id, or inserts it. An insert that collides with
// an existing row for the same source variant updates that row instead, and m
// takes over the stored id.
func (r *GormVariantMirrorRepository) Save(ctx context.Context, m *mirror.VariantMirror) error {
	if !m.Stored() {
		m.ID = uuid.New()
		m.CreatedAt = time.Now()
	}
	m.UpdatedAt = time.Now()
	model, err := models.VariantMirrorModelFromDomain(m)
	if err != nil {
		return err
	}

	db := r.db.WithContext(ctx)
	result := db.Model(&models.VariantMirrorModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"source_variant_id":     model.SourceVariantID,
			"source_options_key":    model.SourceOptionsKey,
			"target_variant_gid":    model.TargetVariantGID,
			"variant_fingerprint":   model.VariantFingerprint,
			"inventory_fingerprint": model.InventoryFingerprint,
			"last_snapshot":         model.LastSnapshot,
			"updated_at":            model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	if model.SourceVariantID == nil {
		return db.Create(model).Error
	}
	err = db.Clauses(clause.OnConflict{
		Columns:     []clause.Column{{Name: "product_mirror_id"}, {Name: "source_variant_id"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "source_variant_id IS NOT NULL"}}},
		DoUpdates: clause.AssignmentColumns([]string{
			"source_options_key", "target_variant_gid", "variant_fingerprint",
			"inventory_fingerprint", "last_snapshot", "updated_at",
		}),
	}).Create(model).Error
	if err != nil {
		return err
	}

	var stored models.VariantMirrorModel
	if err := db.Select("id", "created_at").
		Where("product_mirror_id = ? AND source_variant_id = ?", model.ProductMirrorID, *model.SourceVariantID).
		First(&stored).Error; err != nil {
		return err
	}
	m.ID = stored.ID
	m.CreatedAt = stored.CreatedAt
	return nil
}

// Delete removes a variant mirror
func (r *GormVariantMirrorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.VariantMirrorModel{}, "id = ?", id).Error
}

var _ mirror.VariantMirrorRepository = (*GormVariantMirrorRepository)(nil)
