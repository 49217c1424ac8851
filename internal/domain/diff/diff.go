// Package diff compares a normalized source product against what was last
// replicated and classifies the work needed on a target.
package diff

import (
	"sort"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/mirror"
)

// ---------------------------------------------------------------------------
// Product patch
// ---------------------------------------------------------------------------

// ProductPatch holds the top-level fields that changed. Nil fields are left
// untouched on the target.
type ProductPatch struct {
	Title           *string
	DescriptionHTML *string
	Vendor          *string
	ProductType     *string
	Tags            []string
	TagsChanged     bool
	// Status is the target enum (ACTIVE, DRAFT, ARCHIVED)
	Status *string
}

// IsEmpty reports whether nothing changed.
func (p ProductPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Fields lists the changed fields by their source names.
func (p ProductPatch) Fields() []string {
	var out []string
	if p.Title != nil {
		out = append(out, "title")
	}
	if p.DescriptionHTML != nil {
		out = append(out, "body_html")
	}
	if p.Vendor != nil {
		out = append(out, "vendor")
	}
	if p.ProductType != nil {
		out = append(out, "product_type")
	}
	if p.TagsChanged {
		out = append(out, "tags")
	}
	if p.Status != nil {
		out = append(out, "status")
	}
	return out
}

// ComputeProductPatch compares current against the stored snapshot. Tags are
// compared only when the payload carried them; status only when it maps to a
// known enum.
func ComputeProductPatch(current *catalog.Product, last *catalog.Snapshot) ProductPatch {
	if last == nil {
		last = &catalog.Snapshot{}
	}
	var patch ProductPatch
	if current.Title != last.Title {
		patch.Title = strPtr(current.Title)
	}
	if current.DescriptionHTML != last.BodyHTML {
		patch.DescriptionHTML = strPtr(current.DescriptionHTML)
	}
	if current.Vendor != last.Vendor {
		patch.Vendor = strPtr(current.Vendor)
	}
	if current.ProductType != last.ProductType {
		patch.ProductType = strPtr(current.ProductType)
	}
	if current.TagsPresent && !equalStrings(current.Tags, catalog.NormalizeTags(last.Tags)) {
		patch.Tags = current.Tags
		patch.TagsChanged = true
	}
	if next := catalog.StatusEnum(current.Status); next != "" && next != catalog.StatusEnum(last.Status) {
		patch.Status = strPtr(next)
	}
	return patch
}

// ImagesChanged reports whether the image set differs from the snapshot.
func ImagesChanged(current *catalog.Product, last *catalog.Snapshot) bool {
	return last == nil || catalog.ImagesFingerprint(current.Images) != last.ImagesFingerprint
}

// OptionsChanged reports whether the option schema differs from the snapshot.
func OptionsChanged(current *catalog.Product, last *catalog.Snapshot) bool {
	return last == nil || catalog.OptionsFingerprint(current.Options) != last.OptionsFingerprint
}

// ---------------------------------------------------------------------------
// Variant diff
// ---------------------------------------------------------------------------

// VariantDiff classifies source variants against the mirror map. Inventory is
// never part of the classification.
type VariantDiff struct {
	ToCreate  []catalog.Variant
	ToUpdate  []catalog.Variant
	ToDelete  []*mirror.VariantMirror
	Unchanged []catalog.Variant
}

// IsEmpty reports whether no variant needs a structural or economic change.
func (d VariantDiff) IsEmpty() bool {
	return len(d.ToCreate) == 0 && len(d.ToUpdate) == 0 && len(d.ToDelete) == 0
}

// Keys returns the canonical keys of each class, for logging.
func (d VariantDiff) Keys() (create, update, remove []string) {
	for _, v := range d.ToCreate {
		create = append(create, v.Key)
	}
	for _, v := range d.ToUpdate {
		update = append(update, v.Key)
	}
	for _, m := range d.ToDelete {
		remove = append(remove, m.SourceOptionsKey)
	}
	return create, update, remove
}

// ComputeVariantDiff classifies current's variants. Output order follows the
// source variant order; deletions are sorted by key.
func ComputeVariantDiff(current *catalog.Product, mirrors mirror.VariantMirrorMap) VariantDiff {
	var d VariantDiff
	seen := make(map[string]struct{}, len(current.Variants))
	for _, v := range current.Variants {
		if _, dup := seen[v.Key]; dup {
			continue
		}
		seen[v.Key] = struct{}{}

		vm, ok := mirrors[v.Key]
		switch {
		case !ok:
			d.ToCreate = append(d.ToCreate, v)
		case vm.EconomicsChanged(v):
			d.ToUpdate = append(d.ToUpdate, v)
		default:
			d.Unchanged = append(d.Unchanged, v)
		}
	}

	for key, vm := range mirrors {
		if _, ok := seen[key]; !ok {
			d.ToDelete = append(d.ToDelete, vm)
		}
	}
	sort.Slice(d.ToDelete, func(i, j int) bool {
		return d.ToDelete[i].SourceOptionsKey < d.ToDelete[j].SourceOptionsKey
	})
	return d
}

// ---------------------------------------------------------------------------
// Variant identity and inventory
// ---------------------------------------------------------------------------

// IdentityChanged reports whether the payload carries an SKU or barcode that
// differs from what was last written. Fields absent from the payload are not
// compared.
func IdentityChanged(v catalog.Variant, last catalog.VariantSnapshot) bool {
	sku, barcode := catalog.IdentityOf(v)
	if v.SKU.Present && !equalPtr(sku, last.SKU) {
		return true
	}
	if v.Barcode.Present && !equalPtr(barcode, last.Barcode) {
		return true
	}
	return false
}

// TrackedChanged reports whether desired differs from the last written
// tracked state.
func TrackedChanged(desired bool, last catalog.VariantSnapshot) bool {
	return last.Tracked == nil || *last.Tracked != desired
}

func strPtr(s string) *string { return &s }

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
