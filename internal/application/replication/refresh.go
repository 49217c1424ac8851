package replication

import (
	"context"
	"errors"
	"fmt"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/domain/platform"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Refresh outcomes per target
const (
	RefreshMissingTarget     = "snapshot_refreshed_missing_target"
	RefreshDone              = "snapshot_and_variants_refreshed"
	RefreshVariantSyncFailed = "snapshot_refreshed_variant_sync_failed"
)

// refreshConcurrency bounds concurrent target reads during a refresh
const refreshConcurrency = 4

// RefreshResult is the outcome of a refresh on one target.
type RefreshResult struct {
	ProductMirrorID  uuid.UUID
	TargetShopID     uuid.UUID
	TargetDomain     string
	TargetProductGID string
	Outcome          string
	Err              error
}

// RefreshSummary is the outcome of a refresh.
type RefreshSummary struct {
	SourceShopID uuid.UUID
	ProductID    int64
	DryRun       bool
	Targets      []RefreshResult
}

// Refresher re-baselines mirrors from the live source product. It is used
// after manual edits so that the next event only replicates new changes.
type Refresher struct {
	shops    mirror.ShopReader
	products mirror.ProductMirrorRepository
	variants mirror.VariantMirrorRepository
	apis     platform.CatalogAPIProvider
	logger   *zap.Logger
}

// NewRefresher creates a new Refresher
func NewRefresher(
	shops mirror.ShopReader,
	products mirror.ProductMirrorRepository,
	variants mirror.VariantMirrorRepository,
	apis platform.CatalogAPIProvider,
	logger *zap.Logger,
) *Refresher {
	return &Refresher{shops: shops, products: products, variants: variants, apis: apis, logger: logger}
}

// Refresh fetches the source product, stores its snapshot on every mirror
// and realigns variant mirrors with the variants present on each target.
// With dryRun nothing is written.
func (s *Refresher) Refresh(ctx context.Context, sourceShopID uuid.UUID, productID int64, dryRun bool) (*RefreshSummary, error) {
	source, err := s.shops.FindByID(ctx, sourceShopID)
	if err != nil {
		return nil, fmt.Errorf("refresh: load source shop: %w", err)
	}
	api, err := s.apis.For(source)
	if err != nil {
		return nil, fmt.Errorf("refresh: catalog client: %w", err)
	}
	raw, err := api.FetchProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("refresh: fetch product %d from %s: %w", productID, source.Domain, err)
	}
	payload, err := catalog.ParsePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	product := catalog.Normalize(payload)

	mirrors, err := s.products.FindBySourceProduct(ctx, sourceShopID, productID)
	if err != nil {
		return nil, fmt.Errorf("refresh: load mirrors: %w", err)
	}

	summary := &RefreshSummary{
		SourceShopID: sourceShopID,
		ProductID:    productID,
		DryRun:       dryRun,
		Targets:      make([]RefreshResult, len(mirrors)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for i := range mirrors {
		pm := &mirrors[i]
		idx := i
		g.Go(func() error {
			summary.Targets[idx] = s.refreshTarget(gctx, product, pm, dryRun)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *Refresher) refreshTarget(ctx context.Context, product *catalog.Product, pm *mirror.ProductMirror, dryRun bool) RefreshResult {
	res := RefreshResult{
		ProductMirrorID:  pm.ID,
		TargetShopID:     pm.TargetShopID,
		TargetProductGID: pm.TargetProductGID,
	}
	log := s.logger.With(zap.String("product_mirror_id", pm.ID.String()))

	if !dryRun {
		snap := product.Snapshot(pm.Snapshot())
		if err := s.products.UpdateSnapshot(ctx, pm.ID, snap); err != nil {
			res.Outcome = RefreshVariantSyncFailed
			res.Err = err
			log.Error("refresh: save snapshot failed", zap.Error(err))
			return res
		}
	}

	target, err := s.shops.FindByID(ctx, pm.TargetShopID)
	if err != nil || !pm.HasTarget() {
		if err != nil && !errors.Is(err, mirror.ErrShopNotFound) {
			res.Err = err
		}
		res.Outcome = RefreshMissingTarget
		log.Warn("refresh: target product mapping missing, variants not aligned")
		return res
	}
	res.TargetDomain = target.Domain

	if err := s.alignVariants(ctx, product, pm, target, dryRun); err != nil {
		res.Outcome = RefreshVariantSyncFailed
		res.Err = err
		log.Error("refresh: variant alignment failed", zap.String("target_shop", target.Domain), zap.Error(err))
		return res
	}
	res.Outcome = RefreshDone
	return res
}

// alignVariants maps source variants onto the target's current variants.
// New rows take the source fingerprints, treating the target as converged;
// existing rows only get missing values filled in.
func (s *Refresher) alignVariants(ctx context.Context, product *catalog.Product, pm *mirror.ProductMirror, target *mirror.Shop, dryRun bool) error {
	api, err := s.apis.For(target)
	if err != nil {
		return err
	}
	tvs, err := api.FetchVariants(ctx, pm.TargetProductGID)
	if err != nil {
		return err
	}
	byKey := platform.VariantsByKey(tvs, product.KeyOptionNames())

	for _, v := range uniqueVariants(product) {
		vm, err := s.findVariantMirror(ctx, pm.ID, v)
		if err != nil {
			return err
		}
		tv, hasTarget := byKey[v.Key]

		if vm == nil {
			if !hasTarget {
				s.logger.Info("refresh: no target variant for key", zap.String("key", v.Key))
				continue
			}
			vm, err = mirror.NewVariantMirror(pm.ID, v.Key, tv.GID)
			if err != nil {
				return err
			}
			vm.SourceVariantID = v.SourceID
			vm.RecordFingerprints(v)
		} else {
			changed := false
			if vm.SourceOptionsKey != v.Key {
				vm.SourceOptionsKey = v.Key
				changed = true
			}
			if vm.TargetVariantGID == "" && hasTarget {
				vm.TargetVariantGID = tv.GID
				changed = true
			}
			if vm.VariantFingerprint == "" {
				vm.VariantFingerprint = v.Fingerprint()
				changed = true
			}
			if vm.InventoryFingerprint == "" {
				vm.InventoryFingerprint = v.InventoryFingerprint()
				changed = true
			}
			if !changed {
				continue
			}
		}

		if dryRun {
			continue
		}
		if err := s.variants.Save(ctx, vm); err != nil {
			return err
		}
	}
	return nil
}

func (s *Refresher) findVariantMirror(ctx context.Context, productMirrorID uuid.UUID, v catalog.Variant) (*mirror.VariantMirror, error) {
	if v.SourceID != 0 {
		vm, err := s.variants.FindBySourceVariant(ctx, productMirrorID, v.SourceID)
		if err == nil {
			return vm, nil
		}
		if !errors.Is(err, mirror.ErrVariantMirrorNotFound) {
			return nil, err
		}
	}
	vm, err := s.variants.FindByKey(ctx, productMirrorID, v.Key)
	if errors.Is(err, mirror.ErrVariantMirrorNotFound) {
		return nil, nil
	}
	return vm, err
}
