package catalog

import "encoding/json"

// Snapshot is the product-level state last replicated to a target. It is
// stored as an opaque JSON document on the product mirror; new fields must be
// additive.
type Snapshot struct {
	ID                 int64    `json:"id"`
	Title              string   `json:"title"`
	BodyHTML           string   `json:"body_html"`
	Vendor             string   `json:"vendor"`
	ProductType        string   `json:"product_type"`
	Tags               []string `json:"tags"`
	Status             string   `json:"status"`
	Images             []Image  `json:"images"`
	ImagesFingerprint  string   `json:"images_fingerprint"`
	Options            []Option `json:"options"`
	OptionsFingerprint string   `json:"options_fingerprint"`
}

// Snapshot builds the snapshot of the product as currently normalized. When
// the payload carried no tags, prev's tags are kept so a later diff does not
// see them as removed.
func (p *Product) Snapshot(prev *Snapshot) *Snapshot {
	s := &Snapshot{
		ID:                 p.SourceID,
		Title:              p.Title,
		BodyHTML:           p.DescriptionHTML,
		Vendor:             p.Vendor,
		ProductType:        p.ProductType,
		Tags:               p.Tags,
		Status:             p.Status,
		Images:             p.Images,
		ImagesFingerprint:  ImagesFingerprint(p.Images),
		Options:            p.Options,
		OptionsFingerprint: OptionsFingerprint(p.Options),
	}
	if !p.TagsPresent {
		s.Tags = nil
		if prev != nil {
			s.Tags = prev.Tags
		}
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return s
}

// DecodeSnapshot decodes a stored snapshot. Empty or malformed documents
// decode to an empty snapshot, which makes every field look changed.
func DecodeSnapshot(raw []byte) *Snapshot {
	s := &Snapshot{}
	if len(raw) == 0 {
		return s
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return &Snapshot{}
	}
	return s
}

// Encode renders the snapshot as JSON.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// VariantSnapshot is the identity and inventory state last written to a
// target variant.
type VariantSnapshot struct {
	SKU      *string `json:"sku,omitempty"`
	Barcode  *string `json:"barcode,omitempty"`
	Tracked  *bool   `json:"tracked,omitempty"`
	Quantity *int    `json:"quantity,omitempty"`
}

// DecodeVariantSnapshot decodes a stored variant snapshot, returning an empty
// one on missing or malformed input.
func DecodeVariantSnapshot(raw []byte) VariantSnapshot {
	var s VariantSnapshot
	if len(raw) == 0 {
		return s
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return VariantSnapshot{}
	}
	return s
}

// Encode renders the variant snapshot as JSON.
func (s VariantSnapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// IdentityOf returns the identity fields of v as they would be stored.
func IdentityOf(v Variant) (sku, barcode *string) {
	if v.SKU.Present && !v.SKU.Null {
		s := v.SKU.Value
		sku = &s
	}
	if v.Barcode.Present && !v.Barcode.Null {
		b := v.Barcode.Value
		barcode = &b
	}
	return sku, barcode
}
