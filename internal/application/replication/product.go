package replication

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/diff"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/domain/platform"
	"go.uber.org/zap"
)

// patchProduct applies the changed top-level fields. A rejected patch is
// logged and the pipeline continues; a transport failure aborts the attempt.
func (o *Orchestrator) patchProduct(ctx context.Context, r *run, pm *mirror.ProductMirror, last *catalog.Snapshot) error {
	patch := diff.ComputeProductPatch(r.product, last)
	if patch.IsEmpty() {
		r.log.Debug("product fields unchanged")
		return nil
	}

	in := platform.ProductInput{
		Title:           patch.Title,
		DescriptionHTML: patch.DescriptionHTML,
		Vendor:          patch.Vendor,
		ProductType:     patch.ProductType,
		Tags:            patch.Tags,
		SetTags:         patch.TagsChanged,
		Status:          patch.Status,
	}
	err := r.api.UpdateProduct(ctx, pm.TargetProductGID, in)
	r.report.step(stepProduct, err)
	switch {
	case err == nil:
		r.log.Info("product patched", zap.Strings("fields", patch.Fields()))
		return nil
	case platform.IsUserError(err):
		r.log.Warn("product patch rejected", zap.Strings("fields", patch.Fields()), zap.Error(err))
		return nil
	default:
		return fmt.Errorf("replication: update product: %w", err)
	}
}

// syncOptions pushes the option schema when its fingerprint changed. Products
// still carrying only the placeholder option get their options created;
// otherwise a schema set is attempted and an unsupported API version is
// tolerated.
func (o *Orchestrator) syncOptions(ctx context.Context, r *run, pm *mirror.ProductMirror, last *catalog.Snapshot) {
	if r.product.IsDefaultProduct() || !diff.OptionsChanged(r.product, last) {
		return
	}
	err := o.applyOptions(ctx, r, pm.TargetProductGID)
	r.report.step(stepOptions, err)
	if err != nil {
		r.log.Warn("option schema sync failed", zap.Error(err))
		return
	}
	r.log.Info("option schema synced", zap.Strings("options", r.product.OptionNames()))
}

func (o *Orchestrator) applyOptions(ctx context.Context, r *run, productGID string) error {
	current, err := r.api.FetchOptions(ctx, productGID)
	if err != nil {
		return fmt.Errorf("fetch options: %w", err)
	}
	inputs := optionInputs(r.product.Options)
	if isPlaceholderOptions(current) {
		return r.api.CreateOptions(ctx, productGID, inputs, platform.OptionStrategyLeaveAsIs)
	}
	err = r.api.SetOptions(ctx, productGID, inputs, platform.OptionStrategyLeaveAsIs)
	if errors.Is(err, platform.ErrUnsupported) {
		r.log.Warn("option schema set unsupported by api version, options left as is",
			zap.String("api_version", r.target.Version()))
		return nil
	}
	return err
}

// isPlaceholderOptions reports whether the target only has the implicit
// Title option.
func isPlaceholderOptions(options []platform.TargetOption) bool {
	if len(options) == 0 {
		return true
	}
	if len(options) > 1 || catalog.CanonName(options[0].Name) != "title" {
		return false
	}
	for _, v := range options[0].Values {
		if !strings.EqualFold(strings.TrimSpace(v), catalog.DefaultVariantValue) {
			return false
		}
	}
	return true
}

func optionInputs(options []catalog.Option) []platform.OptionInput {
	out := make([]platform.OptionInput, 0, len(options))
	for i, opt := range options {
		values := make([]string, 0, len(opt.Values))
		for _, v := range opt.Values {
			if v != "" {
				values = append(values, v)
			}
		}
		out = append(out, platform.OptionInput{Name: opt.Name, Position: i + 1, Values: values})
	}
	return out
}

// productSetOptions is the option vector sent with identity writes. A
// product without options is described by the platform's Title option.
func productSetOptions(p *catalog.Product) []platform.OptionInput {
	if len(p.Options) == 0 {
		return []platform.OptionInput{{Name: "Title", Position: 1, Values: []string{catalog.DefaultVariantValue}}}
	}
	return optionInputs(p.Options)
}

// optionValuesFor returns the full option-value vector of v with display
// casing.
func optionValuesFor(p *catalog.Product, v catalog.Variant) []catalog.OptionValue {
	if len(p.Options) == 0 {
		return []catalog.OptionValue{{OptionName: "Title", Name: catalog.DefaultVariantValue}}
	}
	return catalog.DisplayOptionValues(p.Options, v.OptionValues)
}
