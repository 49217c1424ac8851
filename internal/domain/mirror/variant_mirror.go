package mirror

import (
	"context"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// VariantMirror Entity
// ---------------------------------------------------------------------------

// VariantMirror links a source variant to a target variant under one product
// mirror. Unique per (ProductMirrorID, SourceVariantID); SourceVariantID is
// zero for rows bootstrapped from option-key matching alone.
type VariantMirror struct {
	shared.BaseEntity
	ProductMirrorID  uuid.UUID
	SourceVariantID  int64
	SourceOptionsKey string
	TargetVariantGID string
	// VariantFingerprint is empty when an economic update must be forced
	VariantFingerprint string
	// InventoryFingerprint is empty when a quantity write must be forced
	InventoryFingerprint string
	LastSnapshot         catalog.VariantSnapshot
}

// NewVariantMirror creates a variant mirror
func NewVariantMirror(productMirrorID uuid.UUID, key, targetVariantGID string) (*VariantMirror, error) {
	if productMirrorID == uuid.Nil {
		return nil, ErrProductMirrorNotFound
	}
	if key == "" && targetVariantGID == "" {
		return nil, ErrVariantMirrorInvalid
	}
	return &VariantMirror{
		BaseEntity:       shared.NewBaseEntity(),
		ProductMirrorID:  productMirrorID,
		SourceOptionsKey: key,
		TargetVariantGID: targetVariantGID,
	}, nil
}

// RecordFingerprints stores the fingerprints of v.
func (m *VariantMirror) RecordFingerprints(v catalog.Variant) {
	m.VariantFingerprint = v.Fingerprint()
	m.InventoryFingerprint = v.InventoryFingerprint()
	m.Touch()
}

// ForceResync clears the fingerprints so the next cycle rewrites the variant.
func (m *VariantMirror) ForceResync() {
	m.VariantFingerprint = ""
	m.InventoryFingerprint = ""
	m.Touch()
}

// EconomicsChanged reports whether v differs from what was last written.
func (m *VariantMirror) EconomicsChanged(v catalog.Variant) bool {
	return m.VariantFingerprint != v.Fingerprint()
}

// InventoryChanged reports whether v's quantity differs from what was last written.
func (m *VariantMirror) InventoryChanged(v catalog.Variant) bool {
	return m.InventoryFingerprint != v.InventoryFingerprint()
}

// VariantMirrorRepository persists variant mirrors
type VariantMirrorRepository interface {
	// FindByProductMirror lists the variant mirrors of a product mirror
	FindByProductMirror(ctx context.Context, productMirrorID uuid.UUID) ([]VariantMirror, error)
	// FindBySourceVariant finds a row by source variant id
	FindBySourceVariant(ctx context.Context, productMirrorID uuid.UUID, sourceVariantID int64) (*VariantMirror, error)
	// FindByKey finds a row by canonical options key
	FindByKey(ctx context.Context, productMirrorID uuid.UUID, key string) (*VariantMirror, error)
	// Save creates or updates a row
	Save(ctx context.Context, m *VariantMirror) error
	// Delete removes a row
	Delete(ctx context.Context, id uuid.UUID) error
}

// VariantMirrorMap indexes variant mirrors by canonical options key.
type VariantMirrorMap map[string]*VariantMirror

// IndexByKey builds a VariantMirrorMap. Rows without a key are skipped.
func IndexByKey(rows []VariantMirror) VariantMirrorMap {
	out := make(VariantMirrorMap, len(rows))
	for i := range rows {
		if rows[i].SourceOptionsKey == "" {
			continue
		}
		out[rows[i].SourceOptionsKey] = &rows[i]
	}
	return out
}
