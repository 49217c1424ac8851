package models

import (
	"time"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ShopModel is the persistence model for a registered shop
type ShopModel struct {
	BaseModel
	Name        string `gorm:"type:varchar(255)"`
	Domain      string `gorm:"type:varchar(255);not null;uniqueIndex"`
	AccessToken string `gorm:"type:varchar(255);not null"`
	APIVersion  string `gorm:"column:api_version;type:varchar(20);not null"`
	IsSource    bool   `gorm:"not null"`
	IsActive    bool   `gorm:"not null;index"`
	LocationGID string `gorm:"column:location_gid;type:varchar(255)"`
}

// TableName returns the table name for GORM
func (ShopModel) TableName() string {
	return "shops"
}

// ToDomain converts the persistence model to a domain Shop
func (m *ShopModel) ToDomain() *mirror.Shop {
	return &mirror.Shop{
		BaseEntity:  m.BaseModel.ToDomain(),
		Name:        m.Name,
		Domain:      m.Domain,
		AccessToken: m.AccessToken,
		APIVersion:  m.APIVersion,
		IsSource:    m.IsSource,
		IsActive:    m.IsActive,
		LocationGID: m.LocationGID,
	}
}

// FromDomain populates the persistence model from a domain Shop
func (m *ShopModel) FromDomain(s *mirror.Shop) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.Name = s.Name
	m.Domain = s.Domain
	m.AccessToken = s.AccessToken
	m.APIVersion = s.Version()
	m.IsSource = s.IsSource
	m.IsActive = s.IsActive
	m.LocationGID = s.LocationGID
}

// ShopModelFromDomain creates a new persistence model from a domain Shop
func ShopModelFromDomain(s *mirror.Shop) *ShopModel {
	m := &ShopModel{}
	m.FromDomain(s)
	return m
}

// ShopConnectionModel links a source shop to a target shop
type ShopConnectionModel struct {
	BaseModel
	SourceShopID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_shop_connection,priority:1"`
	TargetShopID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_shop_connection,priority:2;index"`
}

// TableName returns the table name for GORM
func (ShopConnectionModel) TableName() string {
	return "shop_connections"
}

// ToDomain converts the persistence model to a domain ShopConnection
func (m *ShopConnectionModel) ToDomain() *mirror.ShopConnection {
	return &mirror.ShopConnection{
		BaseEntity:   m.BaseModel.ToDomain(),
		SourceShopID: m.SourceShopID,
		TargetShopID: m.TargetShopID,
	}
}

// ShopConnectionModelFromDomain creates a new persistence model from a domain ShopConnection
func ShopConnectionModelFromDomain(c *mirror.ShopConnection) *ShopConnectionModel {
	m := &ShopConnectionModel{
		SourceShopID: c.SourceShopID,
		TargetShopID: c.TargetShopID,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// ProductMirrorModel maps a source product to its copy on one target shop
type ProductMirrorModel struct {
	BaseModel
	SourceShopID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_product_mirror_key,priority:1"`
	SourceProductID  int64          `gorm:"not null;uniqueIndex:idx_product_mirror_key,priority:2"`
	SourceProductGID string         `gorm:"column:source_product_gid;type:varchar(255);not null"`
	TargetShopID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_product_mirror_key,priority:3"`
	TargetProductID  int64          `gorm:"index"`
	TargetProductGID string         `gorm:"column:target_product_gid;type:varchar(255)"`
	LastSnapshot     datatypes.JSON `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (ProductMirrorModel) TableName() string {
	return "product_mirrors"
}

// ToDomain converts the persistence model to a domain ProductMirror
func (m *ProductMirrorModel) ToDomain() *mirror.ProductMirror {
	return &mirror.ProductMirror{
		BaseEntity:       m.BaseModel.ToDomain(),
		SourceShopID:     m.SourceShopID,
		SourceProductID:  m.SourceProductID,
		SourceProductGID: m.SourceProductGID,
		TargetShopID:     m.TargetShopID,
		TargetProductID:  m.TargetProductID,
		TargetProductGID: m.TargetProductGID,
		LastSnapshot:     catalog.DecodeSnapshot(m.LastSnapshot),
	}
}

// ProductMirrorModelFromDomain creates a new persistence model from a domain ProductMirror
func ProductMirrorModelFromDomain(pm *mirror.ProductMirror) (*ProductMirrorModel, error) {
	snap, err := pm.Snapshot().Encode()
	if err != nil {
		return nil, err
	}
	m := &ProductMirrorModel{
		SourceShopID:     pm.SourceShopID,
		SourceProductID:  pm.SourceProductID,
		SourceProductGID: pm.SourceProductGID,
		TargetShopID:     pm.TargetShopID,
		TargetProductID:  pm.TargetProductID,
		TargetProductGID: pm.TargetProductGID,
		LastSnapshot:     datatypes.JSON(snap),
	}
	m.FromDomainBaseEntity(pm.BaseEntity)
	return m, nil
}

// VariantMirrorModel maps a source variant to its target variant
type VariantMirrorModel struct {
	BaseModel
	ProductMirrorID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_variant_mirror_key,priority:1;uniqueIndex:idx_variant_mirror_source,priority:1,where:source_variant_id IS NOT NULL"`
	SourceVariantID      *int64         `gorm:"uniqueIndex:idx_variant_mirror_source,priority:2"`
	SourceOptionsKey     string         `gorm:"type:varchar(1024);index:idx_variant_mirror_key,priority:2"`
	TargetVariantGID     string         `gorm:"column:target_variant_gid;type:varchar(255)"`
	VariantFingerprint   string         `gorm:"type:varchar(64)"`
	InventoryFingerprint string         `gorm:"type:varchar(64)"`
	LastSnapshot         datatypes.JSON `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (VariantMirrorModel) TableName() string {
	return "variant_mirrors"
}

// ToDomain converts the persistence model to a domain VariantMirror
func (m *VariantMirrorModel) ToDomain() *mirror.VariantMirror {
	return &mirror.VariantMirror{
		BaseEntity:           m.BaseModel.ToDomain(),
		ProductMirrorID:      m.ProductMirrorID,
		SourceVariantID:      derefID(m.SourceVariantID),
		SourceOptionsKey:     m.SourceOptionsKey,
		TargetVariantGID:     m.TargetVariantGID,
		VariantFingerprint:   m.VariantFingerprint,
		InventoryFingerprint: m.InventoryFingerprint,
		LastSnapshot:         catalog.DecodeVariantSnapshot(m.LastSnapshot),
	}
}

// VariantMirrorModelFromDomain creates a new persistence model from a domain VariantMirror
func VariantMirrorModelFromDomain(vm *mirror.VariantMirror) (*VariantMirrorModel, error) {
	snap, err := vm.LastSnapshot.Encode()
	if err != nil {
		return nil, err
	}
	m := &VariantMirrorModel{
		ProductMirrorID:      vm.ProductMirrorID,
		SourceVariantID:      sourceVariantID(vm.SourceVariantID),
		SourceOptionsKey:     vm.SourceOptionsKey,
		TargetVariantGID:     vm.TargetVariantGID,
		VariantFingerprint:   vm.VariantFingerprint,
		InventoryFingerprint: vm.InventoryFingerprint,
		LastSnapshot:         datatypes.JSON(snap),
	}
	m.FromDomainBaseEntity(vm.BaseEntity)
	return m, nil
}

// MediaProcessModel tracks the image backup of a source product
type MediaProcessModel struct {
	BaseModel
	ShopID         uuid.UUID `gorm:"type:uuid;not null"`
	ShopDomain     string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_media_process_product,priority:1"`
	ProductID      int64     `gorm:"not null;uniqueIndex:idx_media_process_product,priority:2"`
	ProductGID     string    `gorm:"column:product_gid;type:varchar(255)"`
	Status         string    `gorm:"type:varchar(20);not null;default:pending"`
	ImagesCount    int       `gorm:"not null;default:0"`
	ProcessedCount int       `gorm:"not null;default:0"`
	Attempts       int       `gorm:"not null;default:0"`
	LastError      string    `gorm:"type:text"`
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// TableName returns the table name for GORM
func (MediaProcessModel) TableName() string {
	return "product_media_processes"
}

// ToDomain converts the persistence model to a domain MediaProcess
func (m *MediaProcessModel) ToDomain() *mirror.MediaProcess {
	return &mirror.MediaProcess{
		BaseEntity:     m.BaseModel.ToDomain(),
		ShopID:         m.ShopID,
		ShopDomain:     m.ShopDomain,
		ProductID:      m.ProductID,
		ProductGID:     m.ProductGID,
		Status:         mirror.MediaStatus(m.Status),
		ImagesCount:    m.ImagesCount,
		ProcessedCount: m.ProcessedCount,
		Attempts:       m.Attempts,
		LastError:      m.LastError,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
	}
}

// MediaProcessModelFromDomain creates a new persistence model from a domain MediaProcess
func MediaProcessModelFromDomain(p *mirror.MediaProcess) *MediaProcessModel {
	m := &MediaProcessModel{
		ShopID:         p.ShopID,
		ShopDomain:     p.ShopDomain,
		ProductID:      p.ProductID,
		ProductGID:     p.ProductGID,
		Status:         string(p.Status),
		ImagesCount:    p.ImagesCount,
		ProcessedCount: p.ProcessedCount,
		Attempts:       p.Attempts,
		LastError:      p.LastError,
		StartedAt:      p.StartedAt,
		CompletedAt:    p.CompletedAt,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// WebhookEventModel records each accepted webhook delivery once
type WebhookEventModel struct {
	BaseModel
	WebhookID  string         `gorm:"type:varchar(255);not null;uniqueIndex"`
	ShopID     uuid.UUID      `gorm:"type:uuid;not null;index"`
	ShopDomain string         `gorm:"type:varchar(255);not null"`
	Topic      string         `gorm:"type:varchar(100);not null"`
	Payload    datatypes.JSON `gorm:"type:jsonb;not null"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEvent
func (m *WebhookEventModel) ToDomain() *mirror.WebhookEvent {
	return &mirror.WebhookEvent{
		BaseEntity: m.BaseModel.ToDomain(),
		WebhookID:  m.WebhookID,
		ShopID:     m.ShopID,
		ShopDomain: m.ShopDomain,
		Topic:      m.Topic,
		Payload:    []byte(m.Payload),
	}
}

// WebhookEventModelFromDomain creates a new persistence model from a domain WebhookEvent
func WebhookEventModelFromDomain(e *mirror.WebhookEvent) *WebhookEventModel {
	m := &WebhookEventModel{
		WebhookID:  e.WebhookID,
		ShopID:     e.ShopID,
		ShopDomain: e.ShopDomain,
		Topic:      e.Topic,
		Payload:    datatypes.JSON(e.Payload),
	}
	m.FromDomainBaseEntity(e.BaseEntity)
	return m
}

// sourceVariantID stores an unknown source variant (0) as NULL so rows mapped
// by options key alone stay outside the unique source index.
func sourceVariantID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
