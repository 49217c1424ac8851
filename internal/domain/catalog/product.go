package catalog

import (
	"sort"
	"strconv"
	"strings"
)

// Inventory policies as delivered by the source shop.
const (
	InventoryPolicyDeny     = "deny"
	InventoryPolicyContinue = "continue"
)

// defaultOptionName is the pseudo-option the platform reports for products
// without real options.
const defaultOptionName = "title"

// DefaultVariantValue is the value the platform assigns to the implicit
// variant of a product without real options.
const DefaultVariantValue = "Default Title"

// DefaultVariantKey is the canonical key of the implicit default variant.
const DefaultVariantKey = "title=default title"

// Image is a canonical product image.
type Image struct {
	Src      string `json:"src"`
	SrcCanon string `json:"src_canon"`
	Alt      string `json:"alt"`
	Position int    `json:"position"`
}

// Option is a canonical product option with ordered, de-duplicated values.
type Option struct {
	Name     string   `json:"name"`
	Position int      `json:"position,omitempty"`
	Values   []string `json:"values"`
}

// Variant is a canonical source variant.
type Variant struct {
	SourceID       int64
	SourceGID      string
	Key            string
	OptionValues   []string
	Price          string
	CompareAtPrice string
	Taxable        bool
	// InventoryPolicy is either InventoryPolicyDeny or InventoryPolicyContinue.
	InventoryPolicy string
	// Tracked is nil when the payload omitted inventory_management.
	Tracked          *bool
	Quantity         *int
	SKU              Optional
	Barcode          Optional
	Weight           *float64
	WeightUnit       string
	RequiresShipping *bool
}

// Fingerprint returns the economic fingerprint of the variant.
func (v Variant) Fingerprint() string {
	return VariantFingerprint(v.Price, v.CompareAtPrice, v.Taxable, v.InventoryPolicy)
}

// InventoryFingerprint returns the quantity fingerprint of the variant.
func (v Variant) InventoryFingerprint() string {
	return InventoryFingerprint(v.Quantity)
}

// Product is the canonical form of a source product. The diff engine only
// ever sees this type.
type Product struct {
	SourceID        int64
	SourceGID       string
	Handle          string
	Title           string
	DescriptionHTML string
	Vendor          string
	ProductType     string
	// TagsPresent is false when the payload carried no tags key.
	TagsPresent bool
	Tags        []string
	Status      string
	Images      []Image
	Options     []Option
	Variants    []Variant
}

// OptionNames returns the option names in declared order.
func (p *Product) OptionNames() []string {
	names := make([]string, len(p.Options))
	for i, o := range p.Options {
		names[i] = o.Name
	}
	return names
}

// KeyOptionNames returns the option names variant keys are built from. A
// product without options keys its variant on the platform's Title option.
func (p *Product) KeyOptionNames() []string {
	if len(p.Options) == 0 {
		return []string{"Title"}
	}
	return p.OptionNames()
}

// IsDefaultProduct reports whether the product has no real options.
func (p *Product) IsDefaultProduct() bool {
	return IsDefaultProduct(p.Options)
}

// VariantsByKey indexes the variants by canonical key. Later duplicates win.
func (p *Product) VariantsByKey() map[string]Variant {
	out := make(map[string]Variant, len(p.Variants))
	for _, v := range p.Variants {
		out[v.Key] = v
	}
	return out
}

// IsDefaultProduct reports whether options describe a product with only the
// implicit default variant.
func IsDefaultProduct(options []Option) bool {
	if len(options) == 0 {
		return true
	}
	if len(options) == 1 {
		return strings.ToLower(strings.TrimSpace(options[0].Name)) == defaultOptionName
	}
	return false
}

// Normalize converts a raw payload into its canonical form.
func Normalize(p *Payload) *Product {
	prod := &Product{
		SourceID:        p.ID,
		SourceGID:       p.AdminGraphqlAPIID,
		Handle:          p.Handle,
		Title:           p.Title,
		DescriptionHTML: p.BodyHTML,
		Vendor:          p.Vendor,
		ProductType:     p.ProductType,
		TagsPresent:     p.Tags.Present,
		Status:          p.Status,
		Images:          NormalizeImages(p),
		Options:         NormalizeOptions(p.Options),
	}
	if prod.SourceGID == "" && p.ID != 0 {
		prod.SourceGID = ProductGID(p.ID)
	}
	if p.Tags.Present {
		prod.Tags = NormalizeTags(p.Tags.Values)
	}

	names := prod.OptionNames()
	prod.Variants = make([]Variant, 0, len(p.Variants))
	for _, raw := range p.Variants {
		prod.Variants = append(prod.Variants, normalizeVariant(raw, names))
	}
	return prod
}

// NormalizeImages prefers the images array and falls back to image media,
// sorting the result by position.
func NormalizeImages(p *Payload) []Image {
	out := make([]Image, 0, len(p.Images))
	switch {
	case len(p.Images) > 0:
		for i, img := range p.Images {
			pos := i + 1
			if img.Position != nil {
				pos = *img.Position
			}
			out = append(out, Image{Src: img.Src, SrcCanon: CanonURL(img.Src), Alt: img.Alt, Position: pos})
		}
	case len(p.Media) > 0:
		for i, m := range p.Media {
			if m.MediaContentType != "IMAGE" {
				continue
			}
			src := ""
			if m.PreviewImage != nil {
				src = m.PreviewImage.Src
			}
			pos := i + 1
			if m.Position != nil {
				pos = *m.Position
			}
			out = append(out, Image{Src: src, SrcCanon: CanonURL(src), Alt: m.Alt, Position: pos})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// NormalizeOptions sorts options by position, drops unnamed ones and
// de-duplicates values keeping first-seen order.
func NormalizeOptions(raw []PayloadOption) []Option {
	sorted := make([]PayloadOption, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	out := make([]Option, 0, len(sorted))
	for _, o := range sorted {
		name := strings.TrimSpace(o.Name)
		if name == "" {
			continue
		}
		seen := make(map[string]struct{}, len(o.Values))
		values := make([]string, 0, len(o.Values))
		for _, v := range o.Values {
			s := string(v)
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			values = append(values, s)
		}
		out = append(out, Option{Name: name, Position: o.Position, Values: values})
	}
	return out
}

func normalizeVariant(raw PayloadVariant, optionNames []string) Variant {
	slots := []*FlexString{raw.Option1, raw.Option2, raw.Option3}
	values := make([]string, len(optionNames))
	for i := range optionNames {
		if i < len(slots) && slots[i] != nil {
			values[i] = string(*slots[i])
		}
	}

	v := Variant{
		SourceID:         raw.ID,
		SourceGID:        raw.AdminGraphqlAPIID,
		Key:              VariantKey(optionNames, values),
		OptionValues:     values,
		Price:            CanonPrice(string(raw.Price)),
		CompareAtPrice:   CanonPrice(string(raw.CompareAtPrice)),
		Taxable:          raw.Taxable != nil && *raw.Taxable,
		InventoryPolicy:  canonPolicy(raw.InventoryPolicy),
		Quantity:         raw.InventoryQuantity,
		SKU:              raw.SKU,
		Barcode:          raw.Barcode,
		Weight:           raw.Weight,
		WeightUnit:       raw.WeightUnit,
		RequiresShipping: raw.RequiresShipping,
	}
	if len(optionNames) == 0 {
		v.Key = DefaultVariantKey
	}
	if v.SourceGID == "" && raw.ID != 0 {
		v.SourceGID = VariantGID(raw.ID)
	}
	if raw.InventoryManagement.Present {
		tracked := !raw.InventoryManagement.Null && raw.InventoryManagement.Value == "shopify"
		v.Tracked = &tracked
	}
	return v
}

func canonPolicy(p string) string {
	if strings.EqualFold(strings.TrimSpace(p), InventoryPolicyContinue) {
		return InventoryPolicyContinue
	}
	return InventoryPolicyDeny
}

// StatusEnum maps a source status to the target enum. Unknown statuses map to
// the empty string.
func StatusEnum(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active":
		return "ACTIVE"
	case "draft":
		return "DRAFT"
	case "archived":
		return "ARCHIVED"
	default:
		return ""
	}
}

// InventoryPolicyEnum maps an inventory policy to the target enum.
func InventoryPolicyEnum(policy string) string {
	if canonPolicy(policy) == InventoryPolicyContinue {
		return "CONTINUE"
	}
	return "DENY"
}

// WeightUnitEnum maps a weight unit to the target enum, defaulting to GRAMS.
func WeightUnitEnum(unit string) string {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "kg", "kilogram", "kilograms":
		return "KILOGRAMS"
	case "lb", "lbs", "pound", "pounds":
		return "POUNDS"
	case "oz", "ounce", "ounces":
		return "OUNCES"
	default:
		return "GRAMS"
	}
}

// ---------------------------------------------------------------------------
// Global ids
// ---------------------------------------------------------------------------

// ProductGID builds a product global id from a legacy numeric id.
func ProductGID(id int64) string { return "gid://shopify/Product/" + strconv.FormatInt(id, 10) }

// VariantGID builds a variant global id from a legacy numeric id.
func VariantGID(id int64) string { return "gid://shopify/ProductVariant/" + strconv.FormatInt(id, 10) }

// LocationGID builds a location global id from a legacy numeric id.
func LocationGID(id int64) string { return "gid://shopify/Location/" + strconv.FormatInt(id, 10) }

// LegacyID extracts the trailing numeric id from a global id. It returns 0
// when the gid does not end in a number.
func LegacyID(gid string) uint64 {
	idx := strings.LastIndex(gid, "/")
	if idx < 0 {
		return 0
	}
	n, err := strconv.ParseUint(gid[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
