package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"go.uber.org/zap"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/platform"
)

// CallRecorder counts remote calls per operation and outcome.
type CallRecorder interface {
	RecordRemoteCall(ctx context.Context, operation, outcome string)
}

type nopCallRecorder struct{}

func (nopCallRecorder) RecordRemoteCall(context.Context, string, string) {}

// Client implements platform.CatalogAPI for one shop over the admin GraphQL
// API, with REST used where GraphQL has no equivalent (raw product document,
// legacy product images).
type Client struct {
	domain string
	api    *goshopify.Client
	calls  CallRecorder
	logger *zap.Logger
}

var _ platform.CatalogAPI = (*Client)(nil)

// NewClient wraps a go-shopify client bound to domain
func NewClient(domain string, api *goshopify.Client, calls CallRecorder, logger *zap.Logger) *Client {
	if calls == nil {
		calls = nopCallRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		domain: domain,
		api:    api,
		calls:  calls,
		logger: logger.With(zap.String("shop", domain)),
	}
}

// Domain returns the shop domain the client is bound to
func (c *Client) Domain() string {
	return c.domain
}

// ---------------------------------------------------------------------------
// Transport helpers
// ---------------------------------------------------------------------------

// graphql runs one GraphQL document and decodes data into out.
func (c *Client) graphql(ctx context.Context, op, document string, vars map[string]any, out any) error {
	err := c.api.GraphQL.Query(ctx, document, vars, out)
	if err != nil {
		c.calls.RecordRemoteCall(ctx, op, "error")
		c.logger.Debug("graphql call failed", zap.String("operation", op), zap.Error(err))
		return mapError(op, err)
	}
	c.calls.RecordRemoteCall(ctx, op, "ok")
	return nil
}

// mutate runs a mutation and turns payload user errors into *platform.UserErrors.
func (c *Client) mutate(ctx context.Context, op, document string, vars map[string]any, out any, userErrors func() []platform.UserError) error {
	if err := c.graphql(ctx, op, document, vars, out); err != nil {
		return err
	}
	if ues := userErrors(); len(ues) > 0 {
		c.calls.RecordRemoteCall(ctx, op, "user_error")
		return &platform.UserErrors{Operation: op, Errors: ues}
	}
	return nil
}

// mapError classifies go-shopify errors into platform errors.
func mapError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shopify: %s: %w", op, err)
	}
	var re goshopify.ResponseError
	if errors.As(err, &re) {
		if re.Status == http.StatusNotFound {
			return fmt.Errorf("%w: %s", platform.ErrNotFound, op)
		}
		if isUnsupported(re) {
			return fmt.Errorf("%w: %s: %s", platform.ErrUnsupported, op, re.Error())
		}
	}
	return fmt.Errorf("%w: %s: %v", platform.ErrRequestFailed, op, err)
}

// isUnsupported detects schema errors raised when an API version lacks a
// field, mutation or input type.
func isUnsupported(re goshopify.ResponseError) bool {
	msgs := append([]string{re.Message}, re.Errors...)
	for _, m := range msgs {
		if strings.Contains(m, "doesn't exist on type") ||
			strings.Contains(m, "isn't a defined input type") ||
			strings.Contains(m, "doesn't accept argument") {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Response shapes
// ---------------------------------------------------------------------------

type gqlSelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gqlVariant struct {
	ID              string              `json:"id"`
	SelectedOptions []gqlSelectedOption `json:"selectedOptions"`
	InventoryItem   *struct {
		ID      string `json:"id"`
		Tracked *bool  `json:"tracked"`
	} `json:"inventoryItem"`
}

func (v gqlVariant) toPlatform() platform.TargetVariant {
	out := platform.TargetVariant{GID: v.ID}
	for _, so := range v.SelectedOptions {
		out.SelectedOptions = append(out.SelectedOptions, catalog.SelectedOption{Name: so.Name, Value: so.Value})
	}
	if v.InventoryItem != nil {
		out.InventoryItemGID = v.InventoryItem.ID
		out.Tracked = v.InventoryItem.Tracked
	}
	return out
}

func toPlatformVariants(nodes []gqlVariant) []platform.TargetVariant {
	out := make([]platform.TargetVariant, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.toPlatform())
	}
	return out
}

type mutationResult struct {
	UserErrors []platform.UserError `json:"userErrors"`
}

type pageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

// maxPages bounds a paginated read against a cursor that never ends.
const maxPages = 100

// paginate calls page with the cursor of each page in turn, starting from
// nil, until a page reports no successor.
func paginate(op string, page func(cursor *string) (pageInfo, error)) error {
	var cursor *string
	for i := 0; i < maxPages; i++ {
		info, err := page(cursor)
		if err != nil {
			return err
		}
		if !info.HasNextPage || info.EndCursor == nil || *info.EndCursor == "" {
			return nil
		}
		cursor = info.EndCursor
	}
	return fmt.Errorf("%w: %s returned more than %d pages", platform.ErrInvalidResponse, op, maxPages)
}

func pageVars(vars map[string]any, cursor *string) map[string]any {
	out := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	if cursor != nil {
		out["cursor"] = *cursor
	}
	return out
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// CreateProduct creates a product and returns it with its initial variants
func (c *Client) CreateProduct(ctx context.Context, in platform.ProductInput) (*platform.CreatedProduct, error) {
	var out struct {
		ProductCreate struct {
			Product *struct {
				ID       string `json:"id"`
				Variants struct {
					Nodes []gqlVariant `json:"nodes"`
				} `json:"variants"`
			} `json:"product"`
			mutationResult
		} `json:"productCreate"`
	}
	vars := map[string]any{"product": productVars("", in, true)}
	err := c.mutate(ctx, "productCreate", mutationProductCreate, vars, &out, func() []platform.UserError {
		return out.ProductCreate.UserErrors
	})
	if err != nil {
		return nil, err
	}
	p := out.ProductCreate.Product
	if p == nil || p.ID == "" {
		return nil, fmt.Errorf("%w: productCreate returned no product", platform.ErrInvalidResponse)
	}
	return &platform.CreatedProduct{GID: p.ID, Variants: toPlatformVariants(p.Variants.Nodes)}, nil
}

// UpdateProduct patches product fields
func (c *Client) UpdateProduct(ctx context.Context, productGID string, in platform.ProductInput) error {
	var out struct {
		ProductUpdate mutationResult `json:"productUpdate"`
	}
	vars := map[string]any{"product": productVars(productGID, in, false)}
	return c.mutate(ctx, "productUpdate", mutationProductUpdate, vars, &out, func() []platform.UserError {
		return out.ProductUpdate.UserErrors
	})
}

// FindProductByHandle returns the gid of the product with handle, or
// platform.ErrNotFound
func (c *Client) FindProductByHandle(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return "", platform.ErrNotFound
	}
	var out struct {
		Products struct {
			Nodes []struct {
				ID     string `json:"id"`
				Handle string `json:"handle"`
			} `json:"nodes"`
		} `json:"products"`
	}
	vars := map[string]any{"query": "handle:" + strconv.Quote(handle)}
	if err := c.graphql(ctx, "productByHandle", queryProductByHandle, vars, &out); err != nil {
		return "", err
	}
	for _, n := range out.Products.Nodes {
		if n.Handle == handle {
			return n.ID, nil
		}
	}
	return "", platform.ErrNotFound
}

// FetchProduct returns the REST product document, shaped like a webhook
// payload
func (c *Client) FetchProduct(ctx context.Context, productID int64) (json.RawMessage, error) {
	var out struct {
		Product json.RawMessage `json:"product"`
	}
	path := fmt.Sprintf("products/%d.json", productID)
	if err := c.api.Get(ctx, path, &out, nil); err != nil {
		c.calls.RecordRemoteCall(ctx, "productGet", "error")
		return nil, mapError("productGet", err)
	}
	c.calls.RecordRemoteCall(ctx, "productGet", "ok")
	if len(out.Product) == 0 || string(out.Product) == "null" {
		return nil, fmt.Errorf("%w: product %d", platform.ErrNotFound, productID)
	}
	return out.Product, nil
}

// SetProduct writes options and variant identity in one productSet call
func (c *Client) SetProduct(ctx context.Context, in platform.ProductSetInput) error {
	variants := make([]map[string]any, 0, len(in.Variants))
	for _, v := range in.Variants {
		item := map[string]any{"sku": nil}
		if v.SKU != nil {
			item["sku"] = *v.SKU
		}
		entry := map[string]any{
			"optionValues":  optionValueVars(v.OptionValues),
			"barcode":       nil,
			"inventoryItem": item,
		}
		if v.ID != "" {
			entry["id"] = v.ID
		}
		if v.Barcode != nil {
			entry["barcode"] = *v.Barcode
		}
		variants = append(variants, entry)
	}
	input := map[string]any{
		"id":             in.ProductGID,
		"productOptions": optionVars(in.Options),
		"variants":       variants,
	}
	var out struct {
		ProductSet mutationResult `json:"productSet"`
	}
	return c.mutate(ctx, "productSet", mutationProductSet, map[string]any{"input": input}, &out, func() []platform.UserError {
		return out.ProductSet.UserErrors
	})
}

// FetchSEODescription returns the product's meta description
func (c *Client) FetchSEODescription(ctx context.Context, productGID string) (string, error) {
	var out struct {
		Product *struct {
			SEO struct {
				Description *string `json:"description"`
			} `json:"seo"`
			Metafield *struct {
				Value string `json:"value"`
			} `json:"metafield"`
		} `json:"product"`
	}
	if err := c.graphql(ctx, "productSEO", queryProductSEO, map[string]any{"id": productGID}, &out); err != nil {
		return "", err
	}
	if out.Product == nil {
		return "", fmt.Errorf("%w: product %s", platform.ErrNotFound, productGID)
	}
	if mf := out.Product.Metafield; mf != nil && strings.TrimSpace(mf.Value) != "" {
		return mf.Value, nil
	}
	if d := out.Product.SEO.Description; d != nil {
		return *d, nil
	}
	return "", nil
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// FetchOptions lists the product's options
func (c *Client) FetchOptions(ctx context.Context, productGID string) ([]platform.TargetOption, error) {
	var out struct {
		Product *struct {
			Options []struct {
				ID           string `json:"id"`
				Name         string `json:"name"`
				Position     int    `json:"position"`
				OptionValues []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"optionValues"`
			} `json:"options"`
		} `json:"product"`
	}
	if err := c.graphql(ctx, "productOptions", queryProductOptions, map[string]any{"id": productGID}, &out); err != nil {
		return nil, err
	}
	if out.Product == nil {
		return nil, fmt.Errorf("%w: product %s", platform.ErrNotFound, productGID)
	}
	options := make([]platform.TargetOption, 0, len(out.Product.Options))
	for _, o := range out.Product.Options {
		opt := platform.TargetOption{ID: o.ID, Name: o.Name, Position: o.Position}
		for _, v := range o.OptionValues {
			opt.Values = append(opt.Values, v.Name)
			opt.ValueIDs = append(opt.ValueIDs, v.ID)
		}
		options = append(options, opt)
	}
	return options, nil
}

// CreateOptions adds options to a product
func (c *Client) CreateOptions(ctx context.Context, productGID string, options []platform.OptionInput, strategy string) error {
	if len(options) == 0 {
		return nil
	}
	vars := map[string]any{
		"productId": productGID,
		"options":   optionVars(options),
	}
	if strategy != "" {
		vars["variantStrategy"] = strategy
	}
	var out struct {
		ProductOptionsCreate mutationResult `json:"productOptionsCreate"`
	}
	return c.mutate(ctx, "productOptionsCreate", mutationOptionsCreate, vars, &out, func() []platform.UserError {
		return out.ProductOptionsCreate.UserErrors
	})
}

// optionDeleteStrategy lets the shop merge variants that only differed by a
// deleted option.
const optionDeleteStrategy = "POSITIONAL"

// SetOptions aligns the product's option schema with options. Options at an
// existing position are renamed, gain missing values and lose values no longer
// wanted. Positions past the wanted options are deleted, missing ones are
// created, and values are reordered when their order drifted.
func (c *Client) SetOptions(ctx context.Context, productGID string, options []platform.OptionInput, strategy string) error {
	current, err := c.FetchOptions(ctx, productGID)
	if err != nil {
		return err
	}
	byPosition := make(map[int]platform.TargetOption, len(current))
	for _, o := range current {
		byPosition[o.Position] = o
	}

	wanted := make(map[int]bool, len(options))
	var missing []platform.OptionInput
	reorder := false
	for i, want := range options {
		pos := want.Position
		if pos == 0 {
			pos = i + 1
		}
		wanted[pos] = true
		have, ok := byPosition[pos]
		if !ok {
			missing = append(missing, want)
			continue
		}
		if err := c.updateOption(ctx, productGID, have, want, strategy); err != nil {
			return err
		}
		if !sameOrder(keptValues(have, want), want.Values) {
			reorder = true
		}
	}

	var stale []string
	for _, o := range current {
		if !wanted[o.Position] && o.ID != "" {
			stale = append(stale, o.ID)
		}
	}
	if err := c.deleteOptions(ctx, productGID, stale); err != nil {
		return err
	}
	if err := c.CreateOptions(ctx, productGID, missing, strategy); err != nil {
		return err
	}
	if reorder {
		return c.reorderOptions(ctx, productGID, options)
	}
	return nil
}

func (c *Client) updateOption(ctx context.Context, productGID string, have platform.TargetOption, want platform.OptionInput, strategy string) error {
	existing := make(map[string]struct{}, len(have.Values))
	for _, v := range have.Values {
		existing[catalog.CanonName(v)] = struct{}{}
	}
	keep := make(map[string]struct{}, len(want.Values))
	var toAdd []map[string]any
	for _, v := range want.Values {
		keep[catalog.CanonName(v)] = struct{}{}
		if _, ok := existing[catalog.CanonName(v)]; !ok {
			toAdd = append(toAdd, map[string]any{"name": v})
		}
	}
	var toDelete []string
	for i, v := range have.Values {
		if _, ok := keep[catalog.CanonName(v)]; !ok && i < len(have.ValueIDs) && have.ValueIDs[i] != "" {
			toDelete = append(toDelete, have.ValueIDs[i])
		}
	}
	if have.Name == want.Name && len(toAdd) == 0 && len(toDelete) == 0 {
		return nil
	}

	vars := map[string]any{
		"productId": productGID,
		"option":    map[string]any{"id": have.ID, "name": want.Name},
	}
	if len(toAdd) > 0 {
		vars["optionValuesToAdd"] = toAdd
	}
	if len(toDelete) > 0 {
		vars["optionValuesToDelete"] = toDelete
	}
	if strategy != "" {
		vars["variantStrategy"] = strategy
	}
	var out struct {
		ProductOptionUpdate mutationResult `json:"productOptionUpdate"`
	}
	return c.mutate(ctx, "productOptionUpdate", mutationOptionUpdate, vars, &out, func() []platform.UserError {
		return out.ProductOptionUpdate.UserErrors
	})
}

func (c *Client) deleteOptions(ctx context.Context, productGID string, optionIDs []string) error {
	if len(optionIDs) == 0 {
		return nil
	}
	vars := map[string]any{
		"productId": productGID,
		"options":   optionIDs,
		"strategy":  optionDeleteStrategy,
	}
	var out struct {
		ProductOptionsDelete mutationResult `json:"productOptionsDelete"`
	}
	return c.mutate(ctx, "productOptionsDelete", mutationOptionsDelete, vars, &out, func() []platform.UserError {
		return out.ProductOptionsDelete.UserErrors
	})
}

// reorderOptions sets the option order and each option's value order by name.
func (c *Client) reorderOptions(ctx context.Context, productGID string, options []platform.OptionInput) error {
	input := make([]map[string]any, 0, len(options))
	for _, o := range options {
		values := make([]map[string]any, 0, len(o.Values))
		for _, v := range o.Values {
			values = append(values, map[string]any{"name": v})
		}
		input = append(input, map[string]any{"name": o.Name, "values": values})
	}
	vars := map[string]any{"productId": productGID, "options": input}
	var out struct {
		ProductOptionsReorder mutationResult `json:"productOptionsReorder"`
	}
	return c.mutate(ctx, "productOptionsReorder", mutationOptionsReorder, vars, &out, func() []platform.UserError {
		return out.ProductOptionsReorder.UserErrors
	})
}

// keptValues is the value order an option ends up with after updateOption:
// surviving values in their stored order, then added ones.
func keptValues(have platform.TargetOption, want platform.OptionInput) []string {
	keep := make(map[string]struct{}, len(want.Values))
	for _, v := range want.Values {
		keep[catalog.CanonName(v)] = struct{}{}
	}
	stored := make(map[string]struct{}, len(have.Values))
	var out []string
	for _, v := range have.Values {
		stored[catalog.CanonName(v)] = struct{}{}
		if _, ok := keep[catalog.CanonName(v)]; ok {
			out = append(out, v)
		}
	}
	for _, v := range want.Values {
		if _, ok := stored[catalog.CanonName(v)]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if catalog.CanonName(a[i]) != catalog.CanonName(b[i]) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Variants
// ---------------------------------------------------------------------------

// FetchVariants lists the product's variants
func (c *Client) FetchVariants(ctx context.Context, productGID string) ([]platform.TargetVariant, error) {
	var nodes []gqlVariant
	err := paginate("productVariants", func(cursor *string) (pageInfo, error) {
		var out struct {
			Product *struct {
				Variants struct {
					Nodes    []gqlVariant `json:"nodes"`
					PageInfo pageInfo     `json:"pageInfo"`
				} `json:"variants"`
			} `json:"product"`
		}
		vars := pageVars(map[string]any{"id": productGID}, cursor)
		if err := c.graphql(ctx, "productVariants", queryProductVariants, vars, &out); err != nil {
			return pageInfo{}, err
		}
		if out.Product == nil {
			return pageInfo{}, fmt.Errorf("%w: product %s", platform.ErrNotFound, productGID)
		}
		nodes = append(nodes, out.Product.Variants.Nodes...)
		return out.Product.Variants.PageInfo, nil
	})
	if err != nil {
		return nil, err
	}
	return toPlatformVariants(nodes), nil
}

// BulkCreateVariants creates variants and returns them as created
func (c *Client) BulkCreateVariants(ctx context.Context, productGID string, variants []platform.VariantInput, strategy string) ([]platform.TargetVariant, error) {
	vars := map[string]any{
		"productId": productGID,
		"variants":  variantVarsList(variants),
	}
	if strategy != "" {
		vars["strategy"] = strategy
	}
	var out struct {
		ProductVariantsBulkCreate struct {
			ProductVariants []gqlVariant `json:"productVariants"`
			mutationResult
		} `json:"productVariantsBulkCreate"`
	}
	err := c.mutate(ctx, "productVariantsBulkCreate", mutationVariantsBulkCreate, vars, &out, func() []platform.UserError {
		return out.ProductVariantsBulkCreate.UserErrors
	})
	if err != nil {
		return nil, err
	}
	return toPlatformVariants(out.ProductVariantsBulkCreate.ProductVariants), nil
}

// BulkUpdateVariants updates existing variants
func (c *Client) BulkUpdateVariants(ctx context.Context, productGID string, variants []platform.VariantInput) error {
	if len(variants) == 0 {
		return nil
	}
	vars := map[string]any{
		"productId": productGID,
		"variants":  variantVarsList(variants),
	}
	var out struct {
		ProductVariantsBulkUpdate mutationResult `json:"productVariantsBulkUpdate"`
	}
	return c.mutate(ctx, "productVariantsBulkUpdate", mutationVariantsBulkUpdate, vars, &out, func() []platform.UserError {
		return out.ProductVariantsBulkUpdate.UserErrors
	})
}

// DeleteVariant deletes a variant. A variant that no longer exists yields
// platform.ErrNotFound.
func (c *Client) DeleteVariant(ctx context.Context, variantGID string) error {
	var out struct {
		ProductVariantDelete struct {
			DeletedProductVariantID *string `json:"deletedProductVariantId"`
			mutationResult
		} `json:"productVariantDelete"`
	}
	err := c.mutate(ctx, "productVariantDelete", mutationVariantDelete, map[string]any{"id": variantGID}, &out, func() []platform.UserError {
		return out.ProductVariantDelete.UserErrors
	})
	var ue *platform.UserErrors
	if errors.As(err, &ue) && mentionsMissing(ue) {
		return fmt.Errorf("%w: variant %s", platform.ErrNotFound, variantGID)
	}
	return err
}

func mentionsMissing(ue *platform.UserErrors) bool {
	for _, e := range ue.Errors {
		msg := strings.ToLower(e.Message)
		if strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found") {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Media
// ---------------------------------------------------------------------------

// ListMedia lists the product's media
func (c *Client) ListMedia(ctx context.Context, productGID string) ([]platform.Media, error) {
	var media []platform.Media
	err := paginate("productMedia", func(cursor *string) (pageInfo, error) {
		var out struct {
			Product *struct {
				Media struct {
					Nodes []struct {
						ID               string  `json:"id"`
						Alt              *string `json:"alt"`
						MediaContentType string  `json:"mediaContentType"`
						Image            *struct {
							URL string `json:"url"`
						} `json:"image"`
					} `json:"nodes"`
					PageInfo pageInfo `json:"pageInfo"`
				} `json:"media"`
			} `json:"product"`
		}
		vars := pageVars(map[string]any{"id": productGID}, cursor)
		if err := c.graphql(ctx, "productMedia", queryProductMedia, vars, &out); err != nil {
			return pageInfo{}, err
		}
		if out.Product == nil {
			return pageInfo{}, fmt.Errorf("%w: product %s", platform.ErrNotFound, productGID)
		}
		for _, n := range out.Product.Media.Nodes {
			m := platform.Media{ID: n.ID, MediaContentType: n.MediaContentType}
			if n.Alt != nil {
				m.Alt = *n.Alt
			}
			if n.Image != nil {
				m.URL = n.Image.URL
			}
			media = append(media, m)
		}
		return out.Product.Media.PageInfo, nil
	})
	if err != nil {
		return nil, err
	}
	return media, nil
}

// DeleteMedia removes media from a product
func (c *Client) DeleteMedia(ctx context.Context, productGID string, mediaIDs []string) error {
	if len(mediaIDs) == 0 {
		return nil
	}
	var out struct {
		ProductDeleteMedia struct {
			MediaUserErrors []platform.UserError `json:"mediaUserErrors"`
		} `json:"productDeleteMedia"`
	}
	vars := map[string]any{"productId": productGID, "mediaIds": mediaIDs}
	return c.mutate(ctx, "productDeleteMedia", mutationDeleteMedia, vars, &out, func() []platform.UserError {
		return out.ProductDeleteMedia.MediaUserErrors
	})
}

// CreateMedia attaches images by source URL
func (c *Client) CreateMedia(ctx context.Context, productGID string, media []platform.MediaInput) error {
	if len(media) == 0 {
		return nil
	}
	inputs := make([]map[string]any, 0, len(media))
	for _, m := range media {
		inputs = append(inputs, map[string]any{
			"originalSource":   m.OriginalSource,
			"alt":              m.Alt,
			"mediaContentType": platform.MediaContentTypeImage,
		})
	}
	vars := map[string]any{
		"product": map[string]any{"id": productGID},
		"media":   inputs,
	}
	var out struct {
		ProductUpdate mutationResult `json:"productUpdate"`
	}
	return c.mutate(ctx, "productUpdateMedia", mutationProductUpdateMedia, vars, &out, func() []platform.UserError {
		return out.ProductUpdate.UserErrors
	})
}

// ListLegacyImages lists REST product images as ProductImage gids. Shops whose
// API version removed the endpoint yield platform.ErrUnsupported.
func (c *Client) ListLegacyImages(ctx context.Context, productGID string) ([]string, error) {
	productID := catalog.LegacyID(productGID)
	if productID == 0 {
		return nil, fmt.Errorf("%w: product gid %q", platform.ErrInvalidResponse, productGID)
	}
	images, err := c.api.Image.List(ctx, productID, nil)
	if err != nil {
		c.calls.RecordRemoteCall(ctx, "productImagesList", "error")
		mapped := mapError("productImagesList", err)
		if errors.Is(mapped, platform.ErrNotFound) {
			return nil, fmt.Errorf("%w: legacy images of %s", platform.ErrUnsupported, productGID)
		}
		return nil, mapped
	}
	c.calls.RecordRemoteCall(ctx, "productImagesList", "ok")
	out := make([]string, 0, len(images))
	for _, img := range images {
		out = append(out, legacyImageGID(img.Id))
	}
	return out, nil
}

// DeleteLegacyImage deletes one REST product image
func (c *Client) DeleteLegacyImage(ctx context.Context, productGID, imageGID string) error {
	productID, imageID := catalog.LegacyID(productGID), catalog.LegacyID(imageGID)
	if productID == 0 || imageID == 0 {
		return fmt.Errorf("%w: image %q of %q", platform.ErrInvalidResponse, imageGID, productGID)
	}
	if err := c.api.Image.Delete(ctx, productID, imageID); err != nil {
		c.calls.RecordRemoteCall(ctx, "productImageDelete", "error")
		return mapError("productImageDelete", err)
	}
	c.calls.RecordRemoteCall(ctx, "productImageDelete", "ok")
	return nil
}

func legacyImageGID(id uint64) string {
	return "gid://shopify/ProductImage/" + strconv.FormatUint(id, 10)
}

// ---------------------------------------------------------------------------
// Inventory
// ---------------------------------------------------------------------------

// FetchInventoryItemAndLocations returns the variant's inventory item and the
// locations it is stocked at
func (c *Client) FetchInventoryItemAndLocations(ctx context.Context, variantGID string) (*platform.InventoryItem, error) {
	var result *platform.InventoryItem
	err := paginate("variantInventory", func(cursor *string) (pageInfo, error) {
		var out struct {
			ProductVariant *struct {
				InventoryItem *struct {
					ID              string `json:"id"`
					Tracked         bool   `json:"tracked"`
					InventoryLevels struct {
						Nodes []struct {
							Location struct {
								ID string `json:"id"`
							} `json:"location"`
						} `json:"nodes"`
						PageInfo pageInfo `json:"pageInfo"`
					} `json:"inventoryLevels"`
				} `json:"inventoryItem"`
			} `json:"productVariant"`
		}
		vars := pageVars(map[string]any{"id": variantGID}, cursor)
		if err := c.graphql(ctx, "variantInventory", queryInventoryItem, vars, &out); err != nil {
			return pageInfo{}, err
		}
		if out.ProductVariant == nil || out.ProductVariant.InventoryItem == nil {
			return pageInfo{}, fmt.Errorf("%w: inventory item of %s", platform.ErrNotFound, variantGID)
		}
		item := out.ProductVariant.InventoryItem
		if result == nil {
			result = &platform.InventoryItem{GID: item.ID, Tracked: item.Tracked}
		}
		for _, n := range item.InventoryLevels.Nodes {
			if n.Location.ID != "" {
				result.LocationGIDs = append(result.LocationGIDs, n.Location.ID)
			}
		}
		return item.InventoryLevels.PageInfo, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetInventoryQuantities sets an absolute available quantity at every location
func (c *Client) SetInventoryQuantities(ctx context.Context, itemGID string, locationGIDs []string, quantity int, reason string) error {
	if len(locationGIDs) == 0 {
		return nil
	}
	quantities := make([]map[string]any, 0, len(locationGIDs))
	for _, loc := range locationGIDs {
		quantities = append(quantities, map[string]any{
			"inventoryItemId": itemGID,
			"locationId":      loc,
			"quantity":        quantity,
		})
	}
	if reason == "" {
		reason = platform.InventoryReasonCorrection
	}
	input := map[string]any{
		"reason":                reason,
		"name":                  platform.InventoryQuantityNameAvailable,
		"ignoreCompareQuantity": true,
		"quantities":            quantities,
	}
	var out struct {
		InventorySetQuantities mutationResult `json:"inventorySetQuantities"`
	}
	return c.mutate(ctx, "inventorySetQuantities", mutationInventorySetQuantities, map[string]any{"input": input}, &out, func() []platform.UserError {
		return out.InventorySetQuantities.UserErrors
	})
}

// SetInventoryTracked toggles inventory tracking of an item
func (c *Client) SetInventoryTracked(ctx context.Context, itemGID string, tracked bool) error {
	vars := map[string]any{
		"id":    itemGID,
		"input": map[string]any{"tracked": tracked},
	}
	var out struct {
		InventoryItemUpdate mutationResult `json:"inventoryItemUpdate"`
	}
	return c.mutate(ctx, "inventoryItemUpdate", mutationInventoryItemUpdate, vars, &out, func() []platform.UserError {
		return out.InventoryItemUpdate.UserErrors
	})
}

// ---------------------------------------------------------------------------
// Channels, collections, metafields
// ---------------------------------------------------------------------------

// ListPublications lists the shop's publication ids
func (c *Client) ListPublications(ctx context.Context) ([]string, error) {
	var ids []string
	err := paginate("publications", func(cursor *string) (pageInfo, error) {
		var out struct {
			Publications struct {
				Nodes []struct {
					ID string `json:"id"`
				} `json:"nodes"`
				PageInfo pageInfo `json:"pageInfo"`
			} `json:"publications"`
		}
		if err := c.graphql(ctx, "publications", queryPublications, pageVars(nil, cursor), &out); err != nil {
			return pageInfo{}, err
		}
		for _, n := range out.Publications.Nodes {
			ids = append(ids, n.ID)
		}
		return out.Publications.PageInfo, nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Publish publishes a product to the given publications
func (c *Client) Publish(ctx context.Context, productGID string, publicationIDs []string) error {
	if len(publicationIDs) == 0 {
		return nil
	}
	input := make([]map[string]any, 0, len(publicationIDs))
	for _, id := range publicationIDs {
		input = append(input, map[string]any{"publicationId": id})
	}
	var out struct {
		PublishablePublish mutationResult `json:"publishablePublish"`
	}
	vars := map[string]any{"id": productGID, "input": input}
	return c.mutate(ctx, "publishablePublish", mutationPublish, vars, &out, func() []platform.UserError {
		return out.PublishablePublish.UserErrors
	})
}

// AddToCollection adds a product to a manual collection
func (c *Client) AddToCollection(ctx context.Context, collectionGID, productGID string) error {
	var out struct {
		CollectionAddProducts mutationResult `json:"collectionAddProducts"`
	}
	vars := map[string]any{"id": collectionGID, "productIds": []string{productGID}}
	return c.mutate(ctx, "collectionAddProducts", mutationCollectionAddProducts, vars, &out, func() []platform.UserError {
		return out.CollectionAddProducts.UserErrors
	})
}

// SetMetafields writes metafields
func (c *Client) SetMetafields(ctx context.Context, metafields []platform.MetafieldInput) error {
	if len(metafields) == 0 {
		return nil
	}
	var out struct {
		MetafieldsSet mutationResult `json:"metafieldsSet"`
	}
	vars := map[string]any{"metafields": metafieldVars(metafields, true)}
	return c.mutate(ctx, "metafieldsSet", mutationMetafieldsSet, vars, &out, func() []platform.UserError {
		return out.MetafieldsSet.UserErrors
	})
}
