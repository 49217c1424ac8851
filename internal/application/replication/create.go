package replication

import (
	"context"
	"errors"
	"fmt"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/domain/platform"
	"go.uber.org/zap"
)

// create builds the product on the target. Every failure is returned to the
// job runner; the mirror is saved right after the remote product exists so a
// retry converges through the update pipeline instead of creating a
// duplicate.
func (o *Orchestrator) create(ctx context.Context, r *run) error {
	pm, err := o.products.FindOne(ctx, r.source.ID, r.product.SourceID, r.target.ID)
	switch {
	case err == nil && pm.HasTarget():
		r.log.Info("product already mirrored, converging instead of creating",
			zap.String("target_product_gid", pm.TargetProductGID))
		return o.converge(ctx, r, pm)
	case err != nil && !errors.Is(err, mirror.ErrProductMirrorNotFound):
		return fmt.Errorf("replication: resolve mirror: %w", err)
	}
	r.report.advance(StageMirrorResolved)
	r.assumeTracked = true

	created, err := r.api.CreateProduct(ctx, createInput(r.product))
	if err != nil {
		return fmt.Errorf("replication: create product: %w", err)
	}
	pm, err = mirror.NewProductMirror(r.source.ID, r.product.SourceID, r.target.ID, created.GID)
	if err != nil {
		return err
	}
	if err := o.products.Save(ctx, pm); err != nil {
		r.log.Error("product created but mirror not saved", zap.String("target_product_gid", created.GID), zap.Error(err))
		return fmt.Errorf("replication: save mirror: %w", err)
	}
	r.log = r.log.With(zap.String("target_product_gid", created.GID))
	r.log.Info("product created on target")

	if err := r.api.UpdateProduct(ctx, created.GID, o.createFieldsInput(ctx, r)); err != nil {
		return fmt.Errorf("replication: set product fields: %w", err)
	}
	r.report.advance(StageProductPatched)
	// options were created with the product
	r.report.advance(StageOptionsSynced)

	mirrors, err := o.seedVariants(ctx, r, pm, created)
	if err != nil {
		return err
	}
	r.report.advance(StageVariantsReconciled)

	o.attachImages(ctx, r, pm)
	r.report.advance(StageImagesSynced)

	o.syncInventory(ctx, r, mirrors)
	r.report.advance(StageInventorySynced)

	if err := o.persist(ctx, r, pm, pm.Snapshot()); err != nil {
		return err
	}
	r.report.advance(StageSnapshotPersisted)

	o.attachCollection(ctx, r, created.GID)
	o.publish(ctx, r, created.GID)

	if n, first := createFailures(r.report); n > 0 {
		return fmt.Errorf("replication: create on %s finished with %d failures: %w", r.target.Domain, n, first)
	}
	return nil
}

func createInput(p *catalog.Product) platform.ProductInput {
	title := p.Title
	in := platform.ProductInput{
		Title:           &title,
		DescriptionHTML: strOrNil(p.DescriptionHTML),
		Vendor:          strOrNil(p.Vendor),
		ProductType:     strOrNil(p.ProductType),
		Handle:          strOrNil(p.Handle),
	}
	if !p.IsDefaultProduct() {
		in.ProductOptions = optionInputs(p.Options)
	}
	return in
}

// createFieldsInput sets tags, status and the SEO description on a new
// product. New products carry the configured marker tag.
func (o *Orchestrator) createFieldsInput(ctx context.Context, r *run) platform.ProductInput {
	tags := append([]string{}, r.product.Tags...)
	if o.cfg.NewProductTag != "" {
		tags = append(tags, o.cfg.NewProductTag)
	}
	in := platform.ProductInput{
		Tags:    catalog.NormalizeTags(tags),
		SetTags: true,
	}
	if status := catalog.StatusEnum(r.product.Status); status != "" {
		in.Status = &status
	}
	if o.cfg.SEODescription {
		if desc := o.sourceSEODescription(ctx, r); desc != "" {
			in.SEODescription = &desc
			in.Metafields = []platform.MetafieldInput{{
				Namespace: "global",
				Key:       "description_tag",
				Type:      platform.MetafieldTypeSingleLineText,
				Value:     desc,
			}}
		}
	}
	return in
}

func (o *Orchestrator) sourceSEODescription(ctx context.Context, r *run) string {
	api, err := o.apis.For(r.source)
	if err != nil {
		r.log.Warn("meta description fetch skipped", zap.Error(err))
		return ""
	}
	desc, err := api.FetchSEODescription(ctx, r.product.SourceGID)
	if err != nil {
		r.log.Warn("meta description fetch failed", zap.Error(err))
		return ""
	}
	return desc
}

// seedVariants writes the source variants onto a new product. Products with
// real options get all variants from one bulk create that replaces the
// standalone variant; default products update the variant the platform
// created with the product.
func (o *Orchestrator) seedVariants(ctx context.Context, r *run, pm *mirror.ProductMirror, created *platform.CreatedProduct) (mirror.VariantMirrorMap, error) {
	names := r.product.KeyOptionNames()
	variants := uniqueVariants(r.product)
	mirrors := make(mirror.VariantMirrorMap, len(variants))
	r.targetVariants = created.Variants
	r.targetByKey = platform.VariantsByKey(created.Variants, names)
	if len(variants) == 0 {
		return mirrors, nil
	}

	var targets map[string]platform.TargetVariant
	if r.product.IsDefaultProduct() {
		v := variants[0]
		variants = variants[:1]
		tv, ok := r.targetByKey[v.Key]
		if !ok && len(created.Variants) == 1 {
			tv, ok = created.Variants[0], true
		}
		if !ok {
			return nil, fmt.Errorf("replication: seed default variant: %w", errDefaultVariantMissing)
		}
		if err := r.api.BulkUpdateVariants(ctx, pm.TargetProductGID, []platform.VariantInput{fullVariantInput(tv.GID, r.product, v)}); err != nil {
			return nil, fmt.Errorf("replication: update default variant: %w", err)
		}
		targets = map[string]platform.TargetVariant{v.Key: tv}
	} else {
		inputs := make([]platform.VariantInput, 0, len(variants))
		for _, v := range variants {
			inputs = append(inputs, fullVariantInput("", r.product, v))
		}
		out, err := r.api.BulkCreateVariants(ctx, pm.TargetProductGID, inputs, platform.VariantStrategyRemoveStandalone)
		if err != nil {
			return nil, fmt.Errorf("replication: create variants: %w", err)
		}
		targets = platform.VariantsByKey(out, names)
	}

	for _, v := range variants {
		tv, ok := targets[v.Key]
		if !ok {
			r.report.variant(v.Key, ActionCreate, "", errCreatedVariantMissing)
			continue
		}
		vm, err := mirror.NewVariantMirror(pm.ID, v.Key, tv.GID)
		if err != nil {
			r.report.variant(v.Key, ActionCreate, tv.GID, err)
			continue
		}
		vm.SourceVariantID = v.SourceID
		vm.VariantFingerprint = v.Fingerprint()
		vm.LastSnapshot.SKU, vm.LastSnapshot.Barcode = catalog.IdentityOf(v)
		mirrors[v.Key] = vm
		r.targetByKey[v.Key] = tv
		r.touch(vm)
		r.report.variant(v.Key, ActionCreate, tv.GID, nil)
	}
	r.log.Info("variants seeded", zap.Int("count", len(mirrors)))
	return mirrors, nil
}

// attachCollection adds the product to the collection configured for the
// target shop, if any.
func (o *Orchestrator) attachCollection(ctx context.Context, r *run, productGID string) {
	collectionGID := o.cfg.CollectionByDomain[r.target.Domain]
	if collectionGID == "" {
		return
	}
	if err := r.api.AddToCollection(ctx, collectionGID, productGID); err != nil {
		r.log.Warn("add to collection failed", zap.String("collection_gid", collectionGID), zap.Error(err))
		return
	}
	r.log.Debug("product added to collection", zap.String("collection_gid", collectionGID))
}

// publish makes the product available on every sales channel of the target.
func (o *Orchestrator) publish(ctx context.Context, r *run, productGID string) {
	if !o.cfg.PublishOnCreate {
		return
	}
	ids, err := r.api.ListPublications(ctx)
	if err != nil {
		r.log.Warn("list publications failed", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		r.log.Info("no publications on target, skipping publish")
		return
	}
	if err := r.api.Publish(ctx, productGID, ids); err != nil {
		r.log.Warn("publish failed", zap.Int("publications", len(ids)), zap.Error(err))
	}
}

// createOptionalSteps never fail a create. A failed image attach is left out
// of the snapshot, so the next update replaces the images.
var createOptionalSteps = map[string]bool{stepImages: true}

// createFailures counts the failures that fail a create and returns the first.
func createFailures(r *Report) (int, error) {
	var (
		n     int
		first error
	)
	for _, s := range r.Steps {
		if s.Err == nil || createOptionalSteps[s.Step] {
			continue
		}
		if first == nil {
			first = s.Err
		}
		n++
	}
	for _, v := range r.Variants {
		if v.Err == nil {
			continue
		}
		if first == nil {
			first = v.Err
		}
		n++
	}
	return n, first
}

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
