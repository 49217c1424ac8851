package replication

import (
	"context"
	"errors"
	"fmt"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/diff"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/domain/platform"
	"go.uber.org/zap"
)

// syncImages replaces every target image when the image fingerprint changed.
// The outcome is tracked in the product's media process record, which the
// coordination gate waits on.
func (o *Orchestrator) syncImages(ctx context.Context, r *run, pm *mirror.ProductMirror, last *catalog.Snapshot) {
	proc, found := o.loadMediaProcess(ctx, r, pm)
	if !diff.ImagesChanged(r.product, last) {
		if !found || !proc.Status.IsTerminal() {
			proc.Skip("images unchanged")
			o.saveMediaProcess(ctx, r, proc)
		}
		return
	}

	proc.Start(len(r.product.Images))
	o.saveMediaProcess(ctx, r, proc)

	created, err := o.replaceImages(ctx, r, pm.TargetProductGID)
	r.report.step(stepImages, err)
	switch {
	case err != nil:
		proc.Fail(err)
		r.log.Error("image replace failed", zap.Error(err))
	case created == 0:
		proc.Skip("no images")
		r.log.Info("target images cleared")
	default:
		proc.Complete(created)
		r.log.Info("target images replaced", zap.Int("count", created))
	}
	o.saveMediaProcess(ctx, r, proc)
}

// replaceImages deletes all image media from the product and recreates the
// source images in position order. It returns the number of images created.
func (o *Orchestrator) replaceImages(ctx context.Context, r *run, productGID string) (int, error) {
	existing, err := r.api.ListMedia(ctx, productGID)
	if err != nil {
		return 0, fmt.Errorf("list media: %w", err)
	}
	ids := make([]string, 0, len(existing))
	for _, m := range existing {
		if m.MediaContentType == "" || m.MediaContentType == platform.MediaContentTypeImage {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) > 0 {
		if err := r.api.DeleteMedia(ctx, productGID, ids); err != nil {
			return 0, fmt.Errorf("delete media: %w", err)
		}
	}

	legacy, err := r.api.ListLegacyImages(ctx, productGID)
	if err != nil && !errors.Is(err, platform.ErrUnsupported) {
		r.log.Warn("list legacy images failed", zap.Error(err))
	}
	for _, imageGID := range legacy {
		if err := r.api.DeleteLegacyImage(ctx, productGID, imageGID); err != nil && !errors.Is(err, platform.ErrNotFound) {
			r.log.Warn("legacy image delete failed", zap.String("image_gid", imageGID), zap.Error(err))
		}
	}

	inputs := mediaInputs(r.product.Images)
	if len(inputs) == 0 {
		return 0, nil
	}
	if err := r.api.CreateMedia(ctx, productGID, inputs); err != nil {
		return 0, fmt.Errorf("create media: %w", err)
	}
	return len(inputs), nil
}

// attachImages adds the source images to a freshly created product.
func (o *Orchestrator) attachImages(ctx context.Context, r *run, pm *mirror.ProductMirror) {
	proc, _ := o.loadMediaProcess(ctx, r, pm)
	inputs := mediaInputs(r.product.Images)
	if len(inputs) == 0 {
		proc.Skip("no images")
		o.saveMediaProcess(ctx, r, proc)
		return
	}

	proc.Start(len(inputs))
	err := r.api.CreateMedia(ctx, pm.TargetProductGID, inputs)
	r.report.step(stepImages, err)
	if err != nil {
		proc.Fail(err)
		r.log.Warn("attach images failed", zap.Error(err))
	} else {
		proc.Complete(len(inputs))
		r.log.Info("images attached", zap.Int("count", len(inputs)))
	}
	o.saveMediaProcess(ctx, r, proc)
}

func mediaInputs(images []catalog.Image) []platform.MediaInput {
	out := make([]platform.MediaInput, 0, len(images))
	for _, img := range images {
		if img.Src == "" {
			continue
		}
		out = append(out, platform.MediaInput{OriginalSource: img.Src, Alt: img.Alt})
	}
	return out
}

// loadMediaProcess returns the stored record of the target product or a new
// pending one; found reports whether it was stored.
func (o *Orchestrator) loadMediaProcess(ctx context.Context, r *run, pm *mirror.ProductMirror) (*mirror.MediaProcess, bool) {
	proc, err := o.media.FindByShopProduct(ctx, r.target.Domain, pm.TargetProductID)
	if err == nil {
		return proc, true
	}
	if !errors.Is(err, mirror.ErrMediaProcessNotFound) {
		r.log.Warn("load media process failed", zap.Error(err))
	}
	return mirror.NewMediaProcess(r.target.ID, r.target.Domain, pm.TargetProductID, pm.TargetProductGID), false
}

func (o *Orchestrator) saveMediaProcess(ctx context.Context, r *run, proc *mirror.MediaProcess) {
	if err := o.media.Save(ctx, proc); err != nil {
		r.log.Warn("save media process failed", zap.String("status", string(proc.Status)), zap.Error(err))
	}
}
