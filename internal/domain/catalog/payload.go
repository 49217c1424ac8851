package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Raw payload
// ---------------------------------------------------------------------------

// Payload is the raw product document delivered by the source shop (webhook
// body or REST resource). Fields that arrive in more than one shape decode
// through the lenient types below.
type Payload struct {
	ID                int64            `json:"id"`
	AdminGraphqlAPIID string           `json:"admin_graphql_api_id"`
	Title             string           `json:"title"`
	BodyHTML          string           `json:"body_html"`
	Vendor            string           `json:"vendor"`
	ProductType       string           `json:"product_type"`
	Handle            string           `json:"handle"`
	Status            string           `json:"status"`
	Tags              TagList          `json:"tags"`
	Options           []PayloadOption  `json:"options"`
	Variants          []PayloadVariant `json:"variants"`
	Images            []PayloadImage   `json:"images"`
	Media             []PayloadMedia   `json:"media"`
}

// PayloadOption is a raw product option.
type PayloadOption struct {
	Name     string       `json:"name"`
	Position int          `json:"position"`
	Values   []FlexString `json:"values"`
}

// PayloadVariant is a raw product variant.
type PayloadVariant struct {
	ID                  int64       `json:"id"`
	AdminGraphqlAPIID   string      `json:"admin_graphql_api_id"`
	Title               string      `json:"title"`
	Option1             *FlexString `json:"option1"`
	Option2             *FlexString `json:"option2"`
	Option3             *FlexString `json:"option3"`
	Price               FlexString  `json:"price"`
	CompareAtPrice      FlexString  `json:"compare_at_price"`
	Taxable             *bool       `json:"taxable"`
	InventoryPolicy     string      `json:"inventory_policy"`
	InventoryManagement Optional    `json:"inventory_management"`
	InventoryQuantity   *int        `json:"inventory_quantity"`
	SKU                 Optional    `json:"sku"`
	Barcode             Optional    `json:"barcode"`
	Weight              *float64    `json:"weight"`
	WeightUnit          string      `json:"weight_unit"`
	RequiresShipping    *bool       `json:"requires_shipping"`
}

// PayloadImage is a raw REST image.
type PayloadImage struct {
	ID       int64  `json:"id"`
	Src      string `json:"src"`
	Alt      string `json:"alt"`
	Position *int   `json:"position"`
}

// PayloadMedia is a raw media entry as delivered by media-aware payloads.
type PayloadMedia struct {
	MediaContentType string `json:"media_content_type"`
	Alt              string `json:"alt"`
	Position         *int   `json:"position"`
	PreviewImage     *struct {
		Src string `json:"src"`
	} `json:"preview_image"`
}

// ParsePayload decodes a raw source payload.
func ParsePayload(raw []byte) (*Payload, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyPayload
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &p, nil
}

// ---------------------------------------------------------------------------
// Lenient JSON types
// ---------------------------------------------------------------------------

// TagList accepts tags either as a comma separated string or as an array of
// strings. Present reports whether the key appeared in the document at all.
type TagList struct {
	Present bool
	Values  []string
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TagList) UnmarshalJSON(data []byte) error {
	t.Present = true
	t.Values = nil
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var arr []FlexString
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		for _, v := range arr {
			t.Values = append(t.Values, string(v))
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t.Values = strings.Split(s, ",")
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t TagList) MarshalJSON() ([]byte, error) {
	if !t.Present {
		return []byte("null"), nil
	}
	return json.Marshal(strings.Join(t.Values, ", "))
}

// FlexString decodes a JSON string, number or bool into its string form.
// null decodes to the empty string.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err == nil {
			*f = FlexString(n.String())
			return nil
		}
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("catalog: unsupported scalar %s", string(data))
		}
		*f = FlexString(strconv.FormatBool(b))
	}
	return nil
}

// Optional is a nullable string that also remembers whether its key was
// present in the decoded document.
type Optional struct {
	Present bool
	Null    bool
	Value   string
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		o.Value = ""
		return nil
	}
	var f FlexString
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	o.Null = false
	o.Value = string(f)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Present || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Some returns a present, non-null Optional.
func Some(v string) Optional {
	return Optional{Present: true, Value: v}
}
