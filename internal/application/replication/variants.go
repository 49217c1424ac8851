package replication

import (
	"context"
	"errors"
	"fmt"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/diff"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/domain/platform"
	"go.uber.org/zap"
)

// reconcileVariants deletes, creates and updates target variants and returns
// the mirror map as it stands afterwards.
func (o *Orchestrator) reconcileVariants(ctx context.Context, r *run, pm *mirror.ProductMirror) (mirror.VariantMirrorMap, error) {
	names := r.product.KeyOptionNames()

	targetVariants, err := r.api.FetchVariants(ctx, pm.TargetProductGID)
	if err != nil {
		r.report.step(stepFetchVariants, err)
		return nil, fmt.Errorf("replication: fetch target variants: %w", err)
	}
	r.targetVariants = targetVariants
	r.targetByKey = platform.VariantsByKey(targetVariants, names)

	rows, err := o.variants.FindByProductMirror(ctx, pm.ID)
	if err != nil {
		return nil, fmt.Errorf("replication: load variant mirrors: %w", err)
	}
	mirrors := mirror.IndexByKey(rows)
	o.ensureVariantMirrors(r, pm, rows, mirrors)

	d := diff.ComputeVariantDiff(r.product, mirrors)
	create, update, remove := d.Keys()
	r.log.Debug("variant diff",
		zap.Strings("create", create),
		zap.Strings("update", update),
		zap.Strings("delete", remove))

	o.deleteVariants(ctx, r, d.ToDelete, mirrors)
	o.createVariants(ctx, r, pm, d.ToCreate, mirrors)

	o.updateEconomics(ctx, r, pm, mirrors)
	o.syncIdentity(ctx, r, pm, mirrors)
	return mirrors, nil
}

// ensureVariantMirrors maps source variants to target variants that exist
// but have no mirror row yet. Such rows start without fingerprints, which
// forces economic and quantity writes on this cycle. Rows that moved to a new
// key (an option value was renamed) are re-keyed instead of recreated.
func (o *Orchestrator) ensureVariantMirrors(r *run, pm *mirror.ProductMirror, rows []mirror.VariantMirror, mirrors mirror.VariantMirrorMap) {
	bySource := make(map[int64]*mirror.VariantMirror, len(rows))
	for i := range rows {
		if rows[i].SourceVariantID != 0 {
			bySource[rows[i].SourceVariantID] = &rows[i]
		}
	}

	for _, v := range r.product.Variants {
		if vm, ok := mirrors[v.Key]; ok {
			if vm.TargetVariantGID == "" {
				if tv, found := r.targetByKey[v.Key]; found {
					vm.TargetVariantGID = tv.GID
					r.touch(vm)
				}
			}
			if vm.SourceVariantID == 0 && v.SourceID != 0 {
				vm.SourceVariantID = v.SourceID
				r.touch(vm)
			}
			continue
		}

		if vm, ok := bySource[v.SourceID]; ok && v.SourceID != 0 {
			if tv, found := r.targetByKey[v.Key]; found && tv.GID == vm.TargetVariantGID {
				delete(mirrors, vm.SourceOptionsKey)
				r.log.Info("variant mirror re-keyed",
					zap.String("from", vm.SourceOptionsKey),
					zap.String("to", v.Key))
				vm.SourceOptionsKey = v.Key
				mirrors[v.Key] = vm
				r.touch(vm)
				continue
			}
		}

		tv, ok := r.targetByKey[v.Key]
		if !ok {
			continue
		}
		vm, err := mirror.NewVariantMirror(pm.ID, v.Key, tv.GID)
		if err != nil {
			r.report.variant(v.Key, ActionBootstrap, tv.GID, err)
			continue
		}
		vm.SourceVariantID = v.SourceID
		mirrors[v.Key] = vm
		r.touch(vm)
		r.report.variant(v.Key, ActionBootstrap, tv.GID, nil)
		r.log.Info("variant mirror bootstrapped", zap.String("key", v.Key), zap.String("variant_gid", tv.GID))
	}
}

// deleteVariants removes target variants whose source variant disappeared.
// Each failure is logged and the remaining deletions continue. The mirror
// row is only removed once the remote delete succeeded.
func (o *Orchestrator) deleteVariants(ctx context.Context, r *run, dels []*mirror.VariantMirror, mirrors mirror.VariantMirrorMap) {
	if len(dels) == 0 {
		return
	}
	removing := make(map[string]struct{}, len(dels))
	for _, vm := range dels {
		removing[vm.SourceOptionsKey] = struct{}{}
	}
	claimed := make(map[string]struct{}, len(mirrors))
	for key, vm := range mirrors {
		if _, ok := removing[key]; !ok && vm.TargetVariantGID != "" {
			claimed[vm.TargetVariantGID] = struct{}{}
		}
	}

	for _, vm := range dels {
		key, gid := vm.SourceOptionsKey, vm.TargetVariantGID
		if _, inUse := claimed[gid]; gid != "" && !inUse {
			err := r.api.DeleteVariant(ctx, gid)
			if err != nil && !errors.Is(err, platform.ErrNotFound) {
				r.report.variant(key, ActionDelete, gid, err)
				r.log.Error("variant delete failed", zap.String("key", key), zap.String("variant_gid", gid), zap.Error(err))
				continue
			}
		}
		if err := o.variants.Delete(ctx, vm.ID); err != nil {
			r.report.variant(key, ActionDelete, gid, err)
			r.log.Error("variant mirror delete failed", zap.String("key", key), zap.Error(err))
			continue
		}
		delete(mirrors, key)
		delete(r.dirty, vm)
		r.report.variant(key, ActionDelete, gid, nil)
		r.log.Info("variant deleted on target", zap.String("key", key), zap.String("variant_gid", gid))
	}
}

// createVariants creates missing target variants in one bulk call. Default
// products never create variants: their single source variant is mapped onto
// the target's existing default variant.
func (o *Orchestrator) createVariants(ctx context.Context, r *run, pm *mirror.ProductMirror, creates []catalog.Variant, mirrors mirror.VariantMirrorMap) {
	if len(creates) == 0 {
		return
	}
	if r.product.IsDefaultProduct() {
		o.bootstrapDefaultVariant(r, pm, creates, mirrors)
		return
	}

	inputs := make([]platform.VariantInput, 0, len(creates))
	for _, v := range creates {
		inputs = append(inputs, fullVariantInput("", r.product, v))
	}
	created, err := r.api.BulkCreateVariants(ctx, pm.TargetProductGID, inputs, platform.VariantStrategyRemoveStandalone)
	if err != nil {
		for _, v := range creates {
			r.report.variant(v.Key, ActionCreate, "", err)
		}
		r.log.Error("variant bulk create failed", zap.Int("count", len(creates)), zap.Error(err))
		return
	}

	byKey := platform.VariantsByKey(created, r.product.KeyOptionNames())
	for _, v := range creates {
		tv, ok := byKey[v.Key]
		if !ok {
			r.report.variant(v.Key, ActionCreate, "", errCreatedVariantMissing)
			r.log.Warn("bulk create did not return variant", zap.String("key", v.Key))
			continue
		}
		vm, err := mirror.NewVariantMirror(pm.ID, v.Key, tv.GID)
		if err != nil {
			r.report.variant(v.Key, ActionCreate, tv.GID, err)
			continue
		}
		vm.SourceVariantID = v.SourceID
		// economics and identity went out with the create; quantity is
		// written by the inventory step
		vm.VariantFingerprint = v.Fingerprint()
		vm.LastSnapshot.SKU, vm.LastSnapshot.Barcode = catalog.IdentityOf(v)
		if err := o.variants.Save(ctx, vm); err != nil {
			r.report.variant(v.Key, ActionCreate, tv.GID, err)
			r.log.Error("variant mirror save failed", zap.String("key", v.Key), zap.Error(err))
			continue
		}
		mirrors[v.Key] = vm
		r.targetByKey[v.Key] = tv
		r.touch(vm)
		r.report.variant(v.Key, ActionCreate, tv.GID, nil)
		r.log.Info("variant created on target", zap.String("key", v.Key), zap.String("variant_gid", tv.GID))
	}
}

func (o *Orchestrator) bootstrapDefaultVariant(r *run, pm *mirror.ProductMirror, creates []catalog.Variant, mirrors mirror.VariantMirrorMap) {
	v := creates[0]
	if len(creates) > 1 {
		r.log.Warn("default product carries several variants, mapping the first", zap.Int("count", len(creates)))
	}
	tv, ok := r.targetByKey[v.Key]
	if !ok && len(r.targetVariants) == 1 {
		tv, ok = r.targetVariants[0], true
	}
	if !ok {
		r.report.variant(v.Key, ActionBootstrap, "", errDefaultVariantMissing)
		r.log.Warn("default variant guard: no target variant to map", zap.String("key", v.Key))
		return
	}
	vm, err := mirror.NewVariantMirror(pm.ID, v.Key, tv.GID)
	if err != nil {
		r.report.variant(v.Key, ActionBootstrap, tv.GID, err)
		return
	}
	vm.SourceVariantID = v.SourceID
	mirrors[v.Key] = vm
	r.targetByKey[v.Key] = tv
	r.touch(vm)
	r.report.variant(v.Key, ActionBootstrap, tv.GID, nil)
	r.log.Info("default variant guard: mapped existing variant", zap.String("key", v.Key), zap.String("variant_gid", tv.GID))
}

// updateEconomics sends one bulk update for every mapped variant whose
// economic fingerprint differs.
func (o *Orchestrator) updateEconomics(ctx context.Context, r *run, pm *mirror.ProductMirror, mirrors mirror.VariantMirrorMap) {
	var (
		inputs  []platform.VariantInput
		pending []catalog.Variant
	)
	for _, v := range uniqueVariants(r.product) {
		vm, ok := mirrors[v.Key]
		if !ok || vm.TargetVariantGID == "" || !vm.EconomicsChanged(v) {
			continue
		}
		inputs = append(inputs, economicInput(vm.TargetVariantGID, v))
		pending = append(pending, v)
	}
	if len(inputs) == 0 {
		r.log.Debug("variant economics unchanged")
		return
	}

	err := r.api.BulkUpdateVariants(ctx, pm.TargetProductGID, inputs)
	if err != nil {
		r.report.step(stepEconomics, err)
		r.log.Error("variant bulk update failed", zap.Int("count", len(inputs)), zap.Error(err))
	}
	for _, v := range pending {
		vm := mirrors[v.Key]
		r.report.variant(v.Key, ActionUpdate, vm.TargetVariantGID, err)
		if err == nil {
			vm.VariantFingerprint = v.Fingerprint()
			r.touch(vm)
		}
	}
	if err == nil {
		r.log.Info("variant economics updated", zap.Int("count", len(pending)))
	}
}

// syncIdentity writes SKU and barcode with one batched call. The call needs
// the full option-value vector of every variant, so all mapped variants are
// sent once any of them changed.
func (o *Orchestrator) syncIdentity(ctx context.Context, r *run, pm *mirror.ProductMirror, mirrors mirror.VariantMirrorMap) {
	changed := false
	var items []platform.VariantIdentityInput
	var sent []catalog.Variant
	for _, v := range uniqueVariants(r.product) {
		vm, ok := mirrors[v.Key]
		if !ok || vm.TargetVariantGID == "" {
			continue
		}
		if diff.IdentityChanged(v, vm.LastSnapshot) {
			changed = true
		}
		sku, barcode := catalog.IdentityOf(v)
		if !v.SKU.Present {
			sku = vm.LastSnapshot.SKU
		}
		if !v.Barcode.Present {
			barcode = vm.LastSnapshot.Barcode
		}
		items = append(items, platform.VariantIdentityInput{
			ID:           vm.TargetVariantGID,
			OptionValues: optionValuesFor(r.product, v),
			SKU:          sku,
			Barcode:      barcode,
		})
		sent = append(sent, v)
	}
	if !changed {
		return
	}

	err := r.api.SetProduct(ctx, platform.ProductSetInput{
		ProductGID: pm.TargetProductGID,
		Options:    productSetOptions(r.product),
		Variants:   items,
	})
	if err != nil {
		r.report.step(stepIdentity, err)
		r.log.Error("variant identity write failed", zap.Int("count", len(items)), zap.Error(err))
		return
	}
	for i, v := range sent {
		vm := mirrors[v.Key]
		vm.LastSnapshot.SKU = items[i].SKU
		vm.LastSnapshot.Barcode = items[i].Barcode
		r.touch(vm)
		r.report.variant(v.Key, ActionIdentity, vm.TargetVariantGID, nil)
	}
	r.log.Info("variant identities written", zap.Int("count", len(items)))
}

// uniqueVariants returns the product's variants with duplicate keys dropped,
// keeping the first.
func uniqueVariants(p *catalog.Product) []catalog.Variant {
	seen := make(map[string]struct{}, len(p.Variants))
	out := make([]catalog.Variant, 0, len(p.Variants))
	for _, v := range p.Variants {
		if _, ok := seen[v.Key]; ok {
			continue
		}
		seen[v.Key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func economicInput(gid string, v catalog.Variant) platform.VariantInput {
	price := v.Price
	compareAt := v.CompareAtPrice
	taxable := v.Taxable
	policy := catalog.InventoryPolicyEnum(v.InventoryPolicy)
	in := platform.VariantInput{
		ID:              gid,
		CompareAtPrice:  &compareAt,
		Taxable:         &taxable,
		InventoryPolicy: &policy,
	}
	if price != "" {
		in.Price = &price
	}
	return in
}

// fullVariantInput carries economics, identity and shipping fields. gid is
// empty when creating.
func fullVariantInput(gid string, p *catalog.Product, v catalog.Variant) platform.VariantInput {
	in := economicInput(gid, v)
	if !p.IsDefaultProduct() {
		in.OptionValues = catalog.DisplayOptionValues(p.Options, v.OptionValues)
	}
	in.SKU, in.Barcode = catalog.IdentityOf(v)
	in.RequiresShipping = v.RequiresShipping
	if v.Weight != nil {
		w := *v.Weight
		unit := catalog.WeightUnitEnum(v.WeightUnit)
		in.Weight = &w
		in.WeightUnit = &unit
	}
	return in
}
