package mirror

import (
	"context"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// ProductMirror Entity
// ---------------------------------------------------------------------------

// ProductMirror links one source product to its copy on one target shop and
// remembers what was last replicated. Unique per
// (SourceShopID, SourceProductID, TargetShopID).
type ProductMirror struct {
	shared.BaseEntity
	SourceShopID     uuid.UUID
	SourceProductID  int64
	SourceProductGID string
	TargetShopID     uuid.UUID
	TargetProductID  int64
	// TargetProductGID is never cleared once set
	TargetProductGID string
	// LastSnapshot is the product state as of the last successful cycle
	LastSnapshot *catalog.Snapshot
}

// NewProductMirror creates a mirror for a product that now exists on the target.
func NewProductMirror(sourceShopID uuid.UUID, sourceProductID int64, targetShopID uuid.UUID, targetProductGID string) (*ProductMirror, error) {
	if sourceShopID == uuid.Nil || targetShopID == uuid.Nil {
		return nil, ErrShopNotFound
	}
	if sourceProductID == 0 {
		return nil, ErrMirrorInvalidSourceProduct
	}
	if targetProductGID == "" {
		return nil, ErrTargetProductMissing
	}
	return &ProductMirror{
		BaseEntity:       shared.NewBaseEntity(),
		SourceShopID:     sourceShopID,
		SourceProductID:  sourceProductID,
		SourceProductGID: catalog.ProductGID(sourceProductID),
		TargetShopID:     targetShopID,
		TargetProductID:  int64(catalog.LegacyID(targetProductGID)),
		TargetProductGID: targetProductGID,
		LastSnapshot:     &catalog.Snapshot{},
	}, nil
}

// HasTarget reports whether the mirror points at a remote product.
func (m *ProductMirror) HasTarget() bool {
	return m.TargetProductGID != ""
}

// SetTarget records the remote product. A set target is never cleared.
func (m *ProductMirror) SetTarget(gid string) {
	if gid == "" {
		return
	}
	m.TargetProductGID = gid
	m.TargetProductID = int64(catalog.LegacyID(gid))
	m.Touch()
}

// Snapshot returns the last snapshot, never nil.
func (m *ProductMirror) Snapshot() *catalog.Snapshot {
	if m.LastSnapshot == nil {
		return &catalog.Snapshot{}
	}
	return m.LastSnapshot
}

// RecordSnapshot replaces the last snapshot.
func (m *ProductMirror) RecordSnapshot(s *catalog.Snapshot) {
	m.LastSnapshot = s
	m.Touch()
}

// ProductMirrorRepository persists product mirrors
type ProductMirrorRepository interface {
	// FindOne finds the mirror of a source product on one target
	FindOne(ctx context.Context, sourceShopID uuid.UUID, sourceProductID int64, targetShopID uuid.UUID) (*ProductMirror, error)
	// FindBySourceProduct lists the mirrors of a source product on every target
	FindBySourceProduct(ctx context.Context, sourceShopID uuid.UUID, sourceProductID int64) ([]ProductMirror, error)
	// Save upserts on the natural key. A stored target gid is kept when the
	// incoming mirror has none.
	Save(ctx context.Context, m *ProductMirror) error
	// UpdateSnapshot writes only the snapshot column
	UpdateSnapshot(ctx context.Context, id uuid.UUID, snapshot *catalog.Snapshot) error
}
