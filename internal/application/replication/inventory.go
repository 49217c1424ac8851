package replication

import (
	"context"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/diff"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/domain/platform"
	"go.uber.org/zap"
)

// liveTracked reads the tracking state of the source variants straight from
// the source shop. A failed read yields an empty map and the payload is used
// instead.
func (o *Orchestrator) liveTracked(ctx context.Context, r *run) map[string]bool {
	out := make(map[string]bool)
	api, err := o.apis.For(r.source)
	if err == nil {
		var variants []platform.TargetVariant
		variants, err = api.FetchVariants(ctx, r.product.SourceGID)
		if err == nil {
			names := r.product.KeyOptionNames()
			for _, v := range variants {
				if v.Tracked != nil {
					out[v.Key(names)] = *v.Tracked
				}
			}
			return out
		}
	}
	r.log.Warn("source tracked state unavailable, using payload", zap.Error(err))
	return out
}

// desiredTracked resolves the tracking state to write for v: the live source
// state first, then the payload. ok is false when it cannot be determined.
func (r *run) desiredTracked(v catalog.Variant, live map[string]bool) (tracked bool, ok bool) {
	if t, found := live[v.Key]; found {
		return t, true
	}
	if v.Tracked != nil {
		return *v.Tracked, true
	}
	if r.assumeTracked && v.Quantity != nil {
		return true, true
	}
	return false, false
}

// syncInventory writes tracking state and absolute quantities per mapped
// variant. Each variant is independent; failures are logged and skipped.
func (o *Orchestrator) syncInventory(ctx context.Context, r *run, mirrors mirror.VariantMirrorMap) {
	live := o.liveTracked(ctx, r)

	for _, v := range uniqueVariants(r.product) {
		vm, ok := mirrors[v.Key]
		if !ok || vm.TargetVariantGID == "" {
			continue
		}
		log := r.log.With(zap.String("key", v.Key), zap.String("variant_gid", vm.TargetVariantGID))
		lookup := itemLookup{api: r.api, variantGID: vm.TargetVariantGID}

		tracked, known := r.desiredTracked(v, live)
		if !known {
			log.Debug("tracked state unknown, target left as is")
		} else if diff.TrackedChanged(tracked, vm.LastSnapshot) {
			err := o.writeTracked(ctx, &lookup, tracked)
			r.report.variant(v.Key, ActionTracked, vm.TargetVariantGID, err)
			if err != nil {
				log.Error("set inventory tracked failed", zap.Bool("tracked", tracked), zap.Error(err))
			} else {
				t := tracked
				vm.LastSnapshot.Tracked = &t
				r.touch(vm)
			}
		}

		if known && !tracked {
			continue
		}
		if !vm.InventoryChanged(v) {
			continue
		}
		if v.Quantity == nil {
			vm.InventoryFingerprint = v.InventoryFingerprint()
			r.touch(vm)
			continue
		}

		err := o.writeQuantity(ctx, r, &lookup, *v.Quantity)
		r.report.variant(v.Key, ActionQuantity, vm.TargetVariantGID, err)
		if err != nil {
			log.Error("set inventory quantity failed", zap.Int("quantity", *v.Quantity), zap.Error(err))
			continue
		}
		q := *v.Quantity
		vm.InventoryFingerprint = v.InventoryFingerprint()
		vm.LastSnapshot.Quantity = &q
		r.touch(vm)
		log.Info("inventory quantity set", zap.Int("quantity", q))
	}
}

func (o *Orchestrator) writeTracked(ctx context.Context, lookup *itemLookup, tracked bool) error {
	item, err := lookup.get(ctx)
	if err != nil {
		return err
	}
	return lookup.api.SetInventoryTracked(ctx, item.GID, tracked)
}

func (o *Orchestrator) writeQuantity(ctx context.Context, r *run, lookup *itemLookup, quantity int) error {
	item, err := lookup.get(ctx)
	if err != nil {
		return err
	}
	locations := item.LocationGIDs
	if len(locations) == 0 && r.target.LocationGID != "" {
		locations = []string{r.target.LocationGID}
	}
	if len(locations) == 0 {
		return errNoLocations
	}
	return lookup.api.SetInventoryQuantities(ctx, item.GID, locations, quantity, platform.InventoryReasonCorrection)
}

// itemLookup fetches a variant's inventory item at most once.
type itemLookup struct {
	api        platform.CatalogAPI
	variantGID string
	item       *platform.InventoryItem
}

func (l *itemLookup) get(ctx context.Context) (*platform.InventoryItem, error) {
	if l.item != nil {
		return l.item, nil
	}
	item, err := l.api.FetchInventoryItemAndLocations(ctx, l.variantGID)
	if err != nil {
		return nil, err
	}
	l.item = item
	return item, nil
}
