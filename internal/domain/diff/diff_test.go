package diff

import (
	"testing"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variant(key, price string) catalog.Variant {
	return catalog.Variant{Key: key, Price: price, InventoryPolicy: catalog.InventoryPolicyDeny}
}

func mirrored(v catalog.Variant) *mirror.VariantMirror {
	vm := &mirror.VariantMirror{SourceOptionsKey: v.Key, TargetVariantGID: "gid://shopify/ProductVariant/" + v.Key}
	vm.RecordFingerprints(v)
	return vm
}

func TestComputeVariantDiff(t *testing.T) {
	t.Run("price change and new variant", func(t *testing.T) {
		mirrors := mirror.VariantMirrorMap{"a": mirrored(variant("a", "10.00"))}
		current := &catalog.Product{Variants: []catalog.Variant{variant("a", "12.00"), variant("b", "5.00")}}

		d := ComputeVariantDiff(current, mirrors)
		create, update, remove := d.Keys()
		assert.Equal(t, []string{"b"}, create)
		assert.Equal(t, []string{"a"}, update)
		assert.Empty(t, remove)
	})

	t.Run("variant removed from source", func(t *testing.T) {
		mirrors := mirror.VariantMirrorMap{
			"a": mirrored(variant("a", "10.00")),
			"b": mirrored(variant("b", "5.00")),
		}
		current := &catalog.Product{Variants: []catalog.Variant{variant("a", "10.00")}}

		d := ComputeVariantDiff(current, mirrors)
		require.Len(t, d.ToDelete, 1)
		assert.Equal(t, "b", d.ToDelete[0].SourceOptionsKey)
		assert.Empty(t, d.ToCreate)
		assert.Empty(t, d.ToUpdate)
		assert.Len(t, d.Unchanged, 1)
	})

	t.Run("converged set is empty", func(t *testing.T) {
		a := variant("a", "10.00")
		d := ComputeVariantDiff(&catalog.Product{Variants: []catalog.Variant{a}}, mirror.VariantMirrorMap{"a": mirrored(a)})
		assert.True(t, d.IsEmpty())
	})

	t.Run("quantity alone does not classify as update", func(t *testing.T) {
		a := variant("a", "10.00")
		vm := mirrored(a)
		qty := 9
		a.Quantity = &qty
		d := ComputeVariantDiff(&catalog.Product{Variants: []catalog.Variant{a}}, mirror.VariantMirrorMap{"a": vm})
		assert.True(t, d.IsEmpty())
		assert.True(t, vm.InventoryChanged(a))
	})

	t.Run("forced mirror is updated", func(t *testing.T) {
		a := variant("a", "10.00")
		vm := mirrored(a)
		vm.ForceResync()
		d := ComputeVariantDiff(&catalog.Product{Variants: []catalog.Variant{a}}, mirror.VariantMirrorMap{"a": vm})
		assert.Len(t, d.ToUpdate, 1)
	})

	t.Run("duplicate source keys counted once", func(t *testing.T) {
		d := ComputeVariantDiff(&catalog.Product{Variants: []catalog.Variant{variant("a", "1"), variant("a", "2")}}, mirror.VariantMirrorMap{})
		assert.Len(t, d.ToCreate, 1)
	})
}

func TestComputeProductPatch(t *testing.T) {
	last := &catalog.Snapshot{
		Title:       "Shirt",
		BodyHTML:    "<p>x</p>",
		Vendor:      "Acme",
		ProductType: "Apparel",
		Tags:        []string{"a", "b"},
		Status:      "active",
	}
	same := func() *catalog.Product {
		return &catalog.Product{
			Title:           "Shirt",
			DescriptionHTML: "<p>x</p>",
			Vendor:          "Acme",
			ProductType:     "Apparel",
			TagsPresent:     true,
			Tags:            catalog.SplitTags("b, a, a"),
			Status:          "active",
		}
	}

	t.Run("equivalent tag strings produce no patch", func(t *testing.T) {
		assert.True(t, ComputeProductPatch(same(), last).IsEmpty())
	})

	t.Run("only changed fields are included", func(t *testing.T) {
		cur := same()
		cur.Title = "Shirt v2"
		cur.Status = "draft"
		patch := ComputeProductPatch(cur, last)
		assert.Equal(t, []string{"title", "status"}, patch.Fields())
		assert.Equal(t, "Shirt v2", *patch.Title)
		assert.Equal(t, "DRAFT", *patch.Status)
		assert.Nil(t, patch.Vendor)
	})

	t.Run("absent tags are not compared", func(t *testing.T) {
		cur := same()
		cur.TagsPresent = false
		cur.Tags = nil
		assert.True(t, ComputeProductPatch(cur, last).IsEmpty())
	})

	t.Run("unknown status is ignored", func(t *testing.T) {
		cur := same()
		cur.Status = "unlisted"
		assert.True(t, ComputeProductPatch(cur, last).IsEmpty())
	})

	t.Run("empty snapshot patches every set field", func(t *testing.T) {
		patch := ComputeProductPatch(same(), nil)
		assert.ElementsMatch(t, []string{"title", "body_html", "vendor", "product_type", "tags", "status"}, patch.Fields())
	})
}

func TestImagesAndOptionsChanged(t *testing.T) {
	cur := &catalog.Product{
		Images:  []catalog.Image{{SrcCanon: "https://cdn/a.jpg", Position: 1}},
		Options: []catalog.Option{{Name: "Size", Values: []string{"M"}}},
	}
	snap := cur.Snapshot(nil)
	assert.False(t, ImagesChanged(cur, snap))
	assert.False(t, OptionsChanged(cur, snap))

	cur.Images = append(cur.Images, catalog.Image{SrcCanon: "https://cdn/b.jpg", Position: 2})
	assert.True(t, ImagesChanged(cur, snap))
	assert.True(t, OptionsChanged(cur, nil))
}

func TestIdentityChanged(t *testing.T) {
	sku := "SKU-1"
	last := catalog.VariantSnapshot{SKU: &sku}

	assert.False(t, IdentityChanged(catalog.Variant{SKU: catalog.Some("SKU-1")}, last))
	assert.True(t, IdentityChanged(catalog.Variant{SKU: catalog.Some("SKU-2")}, last))
	assert.False(t, IdentityChanged(catalog.Variant{}, last))
	assert.True(t, IdentityChanged(catalog.Variant{Barcode: catalog.Some("123")}, last))
}

func TestTrackedChanged(t *testing.T) {
	yes := true
	assert.True(t, TrackedChanged(true, catalog.VariantSnapshot{}))
	assert.False(t, TrackedChanged(true, catalog.VariantSnapshot{Tracked: &yes}))
	assert.True(t, TrackedChanged(false, catalog.VariantSnapshot{Tracked: &yes}))
}
