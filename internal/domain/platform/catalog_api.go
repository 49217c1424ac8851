package platform

import (
	"context"
	"encoding/json"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/mirror"
)

// Strategies and enum values used by the remote mutations.
const (
	OptionStrategyLeaveAsIs         = "LEAVE_AS_IS"
	VariantStrategyRemoveStandalone = "REMOVE_STANDALONE_VARIANT"
	InventoryReasonCorrection       = "correction"
	InventoryQuantityNameAvailable  = "available"
	MetafieldTypeJSON               = "json"
	MetafieldTypeSingleLineText     = "single_line_text_field"
	MetafieldTypeBoolean            = "boolean"
	MediaContentTypeImage           = "IMAGE"
)

// ---------------------------------------------------------------------------
// CatalogAPI port
// ---------------------------------------------------------------------------

// CatalogAPI is the remote catalog of one shop. Every method surfaces both
// transport failures and payload-embedded user errors (*UserErrors) as errors.
type CatalogAPI interface {
	// Products
	CreateProduct(ctx context.Context, in ProductInput) (*CreatedProduct, error)
	UpdateProduct(ctx context.Context, productGID string, in ProductInput) error
	FindProductByHandle(ctx context.Context, handle string) (string, error)
	FetchProduct(ctx context.Context, productID int64) (json.RawMessage, error)
	SetProduct(ctx context.Context, in ProductSetInput) error
	FetchSEODescription(ctx context.Context, productGID string) (string, error)

	// Options
	FetchOptions(ctx context.Context, productGID string) ([]TargetOption, error)
	CreateOptions(ctx context.Context, productGID string, options []OptionInput, strategy string) error
	SetOptions(ctx context.Context, productGID string, options []OptionInput, strategy string) error

	// Variants
	FetchVariants(ctx context.Context, productGID string) ([]TargetVariant, error)
	BulkCreateVariants(ctx context.Context, productGID string, variants []VariantInput, strategy string) ([]TargetVariant, error)
	BulkUpdateVariants(ctx context.Context, productGID string, variants []VariantInput) error
	DeleteVariant(ctx context.Context, variantGID string) error

	// Media
	ListMedia(ctx context.Context, productGID string) ([]Media, error)
	DeleteMedia(ctx context.Context, productGID string, mediaIDs []string) error
	CreateMedia(ctx context.Context, productGID string, media []MediaInput) error
	ListLegacyImages(ctx context.Context, productGID string) ([]string, error)
	DeleteLegacyImage(ctx context.Context, productGID, imageGID string) error

	// Inventory
	FetchInventoryItemAndLocations(ctx context.Context, variantGID string) (*InventoryItem, error)
	SetInventoryQuantities(ctx context.Context, itemGID string, locationGIDs []string, quantity int, reason string) error
	SetInventoryTracked(ctx context.Context, itemGID string, tracked bool) error

	// Channels, collections, metafields
	ListPublications(ctx context.Context) ([]string, error)
	Publish(ctx context.Context, productGID string, publicationIDs []string) error
	AddToCollection(ctx context.Context, collectionGID, productGID string) error
	SetMetafields(ctx context.Context, metafields []MetafieldInput) error
}

// CatalogAPIProvider hands out a CatalogAPI bound to a shop's domain,
// credentials and API version.
type CatalogAPIProvider interface {
	For(shop *mirror.Shop) (CatalogAPI, error)
}

// ---------------------------------------------------------------------------
// Inputs
// ---------------------------------------------------------------------------

// ProductInput carries product fields. Nil pointers are omitted.
type ProductInput struct {
	Title           *string
	DescriptionHTML *string
	Vendor          *string
	ProductType     *string
	Handle          *string
	Tags            []string
	SetTags         bool
	Status          *string
	SEODescription  *string
	ProductOptions  []OptionInput
	Metafields      []MetafieldInput
}

// OptionInput describes a product option. Position is 1-based; zero omits it.
type OptionInput struct {
	Name     string
	Position int
	Values   []string
}

// VariantInput describes a variant for bulk create or update. ID is empty on
// create. Nil pointers are omitted.
type VariantInput struct {
	ID               string
	OptionValues     []catalog.OptionValue
	Price            *string
	CompareAtPrice   *string
	Taxable          *bool
	InventoryPolicy  *string
	Barcode          *string
	SKU              *string
	Tracked          *bool
	RequiresShipping *bool
	Weight           *float64
	WeightUnit       *string
}

// ProductSetInput is the productSet payload used for batched identity writes.
type ProductSetInput struct {
	ProductGID string
	Options    []OptionInput
	Variants   []VariantIdentityInput
}

// VariantIdentityInput carries SKU and barcode for one variant together with
// its full option-value vector. A nil field is written as null.
type VariantIdentityInput struct {
	ID           string
	OptionValues []catalog.OptionValue
	SKU          *string
	Barcode      *string
}

// MediaInput is an image to attach by source URL.
type MediaInput struct {
	OriginalSource string
	Alt            string
}

// MetafieldInput is a metafield write.
type MetafieldInput struct {
	OwnerID   string
	Namespace string
	Key       string
	Type      string
	Value     string
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// CreatedProduct is the result of CreateProduct.
type CreatedProduct struct {
	GID      string
	Variants []TargetVariant
}

// TargetOption is an option as stored on a shop.
type TargetOption struct {
	ID       string
	Name     string
	Position int
	Values   []string
	// ValueIDs parallels Values when the shop reports value ids.
	ValueIDs []string
}

// TargetVariant is a variant as stored on a shop.
type TargetVariant struct {
	GID              string
	SelectedOptions  []catalog.SelectedOption
	InventoryItemGID string
	// Tracked is nil when the query did not select it
	Tracked *bool
}

// Key builds the canonical key of the variant in optionNames order.
func (v TargetVariant) Key(optionNames []string) string {
	return catalog.KeyFromSelectedOptions(optionNames, v.SelectedOptions)
}

// Media is a media entry on a product.
type Media struct {
	ID               string
	MediaContentType string
	URL              string
	Alt              string
}

// InventoryItem is a variant's inventory item with the locations it is
// stocked at.
type InventoryItem struct {
	GID          string
	Tracked      bool
	LocationGIDs []string
}

// VariantsByKey indexes target variants by canonical key.
func VariantsByKey(variants []TargetVariant, optionNames []string) map[string]TargetVariant {
	out := make(map[string]TargetVariant, len(variants))
	for _, v := range variants {
		out[v.Key(optionNames)] = v
	}
	return out
}
