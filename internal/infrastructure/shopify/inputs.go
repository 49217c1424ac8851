package shopify

import (
	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/platform"
)

// productVars renders a ProductCreateInput or ProductUpdateInput. Options are
// only accepted on create.
func productVars(gid string, in platform.ProductInput, create bool) map[string]any {
	p := map[string]any{}
	if gid != "" {
		p["id"] = gid
	}
	setString(p, "title", in.Title)
	setString(p, "descriptionHtml", in.DescriptionHTML)
	setString(p, "vendor", in.Vendor)
	setString(p, "productType", in.ProductType)
	setString(p, "handle", in.Handle)
	setString(p, "status", in.Status)
	if in.SetTags {
		tags := in.Tags
		if tags == nil {
			tags = []string{}
		}
		p["tags"] = tags
	}
	if in.SEODescription != nil {
		p["seo"] = map[string]any{"description": *in.SEODescription}
	}
	if create && len(in.ProductOptions) > 0 {
		p["productOptions"] = optionVars(in.ProductOptions)
	}
	if len(in.Metafields) > 0 {
		p["metafields"] = metafieldVars(in.Metafields, false)
	}
	return p
}

func setString(m map[string]any, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

func optionVars(options []platform.OptionInput) []map[string]any {
	out := make([]map[string]any, 0, len(options))
	for _, o := range options {
		values := make([]map[string]any, 0, len(o.Values))
		for _, v := range o.Values {
			values = append(values, map[string]any{"name": v})
		}
		opt := map[string]any{"name": o.Name, "values": values}
		if o.Position > 0 {
			opt["position"] = o.Position
		}
		out = append(out, opt)
	}
	return out
}

func optionValueVars(values []catalog.OptionValue) []map[string]any {
	out := make([]map[string]any, 0, len(values))
	for _, v := range values {
		out = append(out, map[string]any{"optionName": v.OptionName, "name": v.Name})
	}
	return out
}

// variantVars renders a ProductVariantsBulkInput. An empty compare-at price
// clears it on the target.
func variantVars(v platform.VariantInput) map[string]any {
	m := map[string]any{}
	if v.ID != "" {
		m["id"] = v.ID
	}
	if len(v.OptionValues) > 0 {
		m["optionValues"] = optionValueVars(v.OptionValues)
	}
	setString(m, "price", v.Price)
	if v.CompareAtPrice != nil {
		if *v.CompareAtPrice == "" {
			m["compareAtPrice"] = nil
		} else {
			m["compareAtPrice"] = *v.CompareAtPrice
		}
	}
	if v.Taxable != nil {
		m["taxable"] = *v.Taxable
	}
	setString(m, "inventoryPolicy", v.InventoryPolicy)
	setString(m, "barcode", v.Barcode)

	item := map[string]any{}
	setString(item, "sku", v.SKU)
	if v.Tracked != nil {
		item["tracked"] = *v.Tracked
	}
	if v.RequiresShipping != nil {
		item["requiresShipping"] = *v.RequiresShipping
	}
	if v.Weight != nil {
		unit := "GRAMS"
		if v.WeightUnit != nil && *v.WeightUnit != "" {
			unit = *v.WeightUnit
		}
		item["measurement"] = map[string]any{
			"weight": map[string]any{"value": *v.Weight, "unit": unit},
		}
	}
	if len(item) > 0 {
		m["inventoryItem"] = item
	}
	return m
}

func variantVarsList(variants []platform.VariantInput) []map[string]any {
	out := make([]map[string]any, 0, len(variants))
	for _, v := range variants {
		out = append(out, variantVars(v))
	}
	return out
}

// metafieldVars renders MetafieldsSetInput (withOwner) or the product-scoped
// MetafieldInput.
func metafieldVars(metafields []platform.MetafieldInput, withOwner bool) []map[string]any {
	out := make([]map[string]any, 0, len(metafields))
	for _, mf := range metafields {
		m := map[string]any{
			"namespace": mf.Namespace,
			"key":       mf.Key,
			"type":      mf.Type,
			"value":     mf.Value,
		}
		if withOwner {
			m["ownerId"] = mf.OwnerID
		}
		out = append(out, m)
	}
	return out
}
