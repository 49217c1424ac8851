package replication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/domain/platform"
	"go.uber.org/zap"
)

// backupEntry is one element of the bkp.old_images metafield.
type backupEntry struct {
	Position int    `json:"position"`
	URL      string `json:"url"`
}

// Archive keeps a copy of each backup document outside the shop.
type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// ImageBackup records the source product's current images in a metafield on
// the source product before its images are post-processed.
type ImageBackup struct {
	shops   mirror.ShopReader
	apis    platform.CatalogAPIProvider
	archive Archive
	now     func() time.Time
	logger  *zap.Logger
}

// NewImageBackup creates a new ImageBackup
func NewImageBackup(shops mirror.ShopReader, apis platform.CatalogAPIProvider, logger *zap.Logger) *ImageBackup {
	return &ImageBackup{shops: shops, apis: apis, now: time.Now, logger: logger}
}

// WithArchive copies every written backup document to a
func (b *ImageBackup) WithArchive(a Archive) *ImageBackup {
	b.archive = a
	return b
}

// ArchiveKey is the object key of a backup document taken at ts
func ArchiveKey(shopDomain string, productID int64, ts time.Time) string {
	return fmt.Sprintf("%s/%d/%d.json", shopDomain, productID, ts.Unix())
}

// Handle writes the backup. Every failure is logged and swallowed.
func (b *ImageBackup) Handle(ctx context.Context, t BackupTask) error {
	log := b.logger.With(zap.String("source_shop_id", t.SourceShopID.String()), zap.Int64("product_id", t.ProductID))

	source, err := b.shops.FindByID(ctx, t.SourceShopID)
	if err != nil {
		if !errors.Is(err, mirror.ErrShopNotFound) {
			log.Warn("image backup: load source shop failed", zap.Error(err))
		}
		return nil
	}
	payload, err := catalog.ParsePayload(t.Payload)
	if err != nil {
		log.Warn("image backup: invalid payload", zap.Error(err))
		return nil
	}

	value, ok := BackupValue(catalog.NormalizeImages(payload))
	if !ok {
		log.Debug("image backup: no images, skipping")
		return nil
	}

	api, err := b.apis.For(source)
	if err == nil {
		err = api.SetMetafields(ctx, []platform.MetafieldInput{{
			OwnerID:   catalog.ProductGID(t.ProductID),
			Namespace: "bkp",
			Key:       "old_images",
			Type:      platform.MetafieldTypeJSON,
			Value:     value,
		}})
	}
	if err != nil {
		log.Warn("image backup failed", zap.String("shop", source.Domain), zap.Error(err))
		return nil
	}
	log.Info("image backup written", zap.String("shop", source.Domain))

	if b.archive != nil {
		key := ArchiveKey(source.Domain, t.ProductID, b.now())
		if err := b.archive.Put(ctx, key, []byte(value), "application/json"); err != nil {
			log.Warn("image backup archive failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// BackupValue renders images, already sorted by position, as the backup
// document. ok is false when there is nothing to back up.
func BackupValue(images []catalog.Image) (string, bool) {
	entries := make([]backupEntry, 0, len(images))
	for _, img := range images {
		if img.Src == "" {
			continue
		}
		entries = append(entries, backupEntry{Position: img.Position, URL: img.Src})
	}
	if len(entries) == 0 {
		return "", false
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", false
	}
	return string(raw), true
}
