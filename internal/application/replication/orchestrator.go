// Package replication drives the per-target convergence of a source product:
// it resolves the mirror, applies the minimal remote mutations and persists
// what was replicated.
package replication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/domain/platform"
	"go.uber.org/zap"
)

// Step names recorded in reports
const (
	stepProduct       = "product"
	stepOptions       = "options"
	stepFetchVariants = "fetch_variants"
	stepEconomics     = "economics"
	stepIdentity      = "identity"
	stepImages        = "images"
)

var (
	errCreatedVariantMissing = errors.New("replication: created variant not returned")
	errDefaultVariantMissing = errors.New("replication: default variant not found on target")
	errNoLocations           = errors.New("replication: no inventory locations")
)

// Orchestrator replicates one source product event to one target shop.
type Orchestrator struct {
	shops    mirror.ShopReader
	products mirror.ProductMirrorRepository
	variants mirror.VariantMirrorRepository
	media    mirror.MediaProcessRepository
	apis     platform.CatalogAPIProvider
	cfg      Config
	logger   *zap.Logger
	recorder Recorder
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(
	shops mirror.ShopReader,
	products mirror.ProductMirrorRepository,
	variants mirror.VariantMirrorRepository,
	media mirror.MediaProcessRepository,
	apis platform.CatalogAPIProvider,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		shops:    shops,
		products: products,
		variants: variants,
		media:    media,
		apis:     apis,
		cfg:      cfg,
		logger:   logger,
		recorder: nopRecorder{},
	}
}

// WithRecorder sets the metrics recorder
func (o *Orchestrator) WithRecorder(r Recorder) *Orchestrator {
	if r != nil {
		o.recorder = r
	}
	return o
}

// run carries the state of one replication attempt.
type run struct {
	task    Task
	source  *mirror.Shop
	target  *mirror.Shop
	api     platform.CatalogAPI
	product *catalog.Product
	report  *Report
	log     *zap.Logger

	// targetVariants is the target's variant list as read at the start of
	// variant reconciliation
	targetVariants []platform.TargetVariant
	targetByKey    map[string]platform.TargetVariant
	// dirty holds variant mirrors changed during the attempt
	dirty map[*mirror.VariantMirror]struct{}
	// assumeTracked turns tracking on for variants that carry a quantity but
	// no tracking state; used when creating products
	assumeTracked bool
}

func (r *run) touch(vm *mirror.VariantMirror) {
	r.dirty[vm] = struct{}{}
}

// prepare loads shops and normalizes the payload. A nil run with a nil error
// means the task cannot be processed and was logged.
func (o *Orchestrator) prepare(ctx context.Context, path string, task Task) (*run, error) {
	log := o.logger.With(
		zap.String("path", path),
		zap.String("source_shop_id", task.SourceShopID.String()),
		zap.String("target_shop_id", task.TargetShopID.String()),
		zap.Int64("source_product_id", task.ProductID),
	)

	source, err := o.shops.FindByID(ctx, task.SourceShopID)
	if errors.Is(err, mirror.ErrShopNotFound) {
		log.Warn("source shop not found, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("replication: load source shop: %w", err)
	}
	target, err := o.shops.FindByID(ctx, task.TargetShopID)
	if errors.Is(err, mirror.ErrShopNotFound) {
		log.Warn("target shop not found, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("replication: load target shop: %w", err)
	}
	log = log.With(zap.String("source_shop", source.Domain), zap.String("target_shop", target.Domain))

	payload, err := catalog.ParsePayload(task.Payload)
	if err != nil {
		log.Error("invalid product payload, skipping", zap.Error(err))
		return nil, nil
	}
	product := catalog.Normalize(payload)
	if product.SourceID == 0 {
		product.SourceID = task.ProductID
		product.SourceGID = catalog.ProductGID(task.ProductID)
	}

	api, err := o.apis.For(target)
	if err != nil {
		return nil, fmt.Errorf("replication: catalog client for %s: %w", target.Domain, err)
	}

	report := newReport(path, task)
	report.TargetDomain = target.Domain
	return &run{
		task:    task,
		source:  source,
		target:  target,
		api:     api,
		product: product,
		report:  report,
		log:     log,
		dirty:   make(map[*mirror.VariantMirror]struct{}),
	}, nil
}

func (o *Orchestrator) finish(ctx context.Context, r *run, err error) {
	if err != nil {
		r.report.fail()
		r.report.step("abort", err)
	}
	r.report.Log(r.log)
	o.recorder.RecordReplication(ctx, r.report.Path, r.report.Outcome(), time.Since(r.report.StartedAt))
	for _, v := range r.report.Variants {
		outcome := "ok"
		if v.Err != nil {
			outcome = "failed"
		}
		o.recorder.RecordVariant(ctx, v.Action, outcome)
	}
}

// Update converges an existing mirror to the payload. Targets without a
// mirror are skipped unless bootstrap by handle is enabled.
func (o *Orchestrator) Update(ctx context.Context, task Task) error {
	r, err := o.prepare(ctx, PathUpdate, task)
	if r == nil {
		return err
	}
	err = o.update(ctx, r)
	o.finish(ctx, r, err)
	return err
}

// Create creates the product on the target. When a mirror already exists the
// attempt converges through the update pipeline instead, which makes retries
// of a partially applied create safe.
func (o *Orchestrator) Create(ctx context.Context, task Task) error {
	r, err := o.prepare(ctx, PathCreate, task)
	if r == nil {
		return err
	}
	err = o.create(ctx, r)
	o.finish(ctx, r, err)
	return err
}

func (o *Orchestrator) update(ctx context.Context, r *run) error {
	pm, err := o.products.FindOne(ctx, r.source.ID, r.product.SourceID, r.target.ID)
	if errors.Is(err, mirror.ErrProductMirrorNotFound) {
		pm, err = o.bootstrapMirror(ctx, r)
	}
	if err != nil {
		return fmt.Errorf("replication: resolve mirror: %w", err)
	}
	if pm == nil || !pm.HasTarget() {
		r.report.skip("no product mirror")
		r.log.Warn("no product mirror for target, nothing to update")
		return nil
	}
	return o.converge(ctx, r, pm)
}

// bootstrapMirror looks the product up on the target by handle and records a
// mirror with an empty snapshot, so the first cycle rewrites every field.
func (o *Orchestrator) bootstrapMirror(ctx context.Context, r *run) (*mirror.ProductMirror, error) {
	if !o.cfg.BootstrapEnabled || r.product.Handle == "" {
		return nil, nil
	}
	gid, err := r.api.FindProductByHandle(ctx, r.product.Handle)
	if errors.Is(err, platform.ErrNotFound) || (err == nil && gid == "") {
		r.log.Info("bootstrap: no target product with handle", zap.String("handle", r.product.Handle))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product by handle: %w", err)
	}
	if o.cfg.BootstrapDryRun {
		r.log.Info("bootstrap dry run: would map product",
			zap.String("handle", r.product.Handle),
			zap.String("target_product_gid", gid))
		return nil, nil
	}

	pm, err := mirror.NewProductMirror(r.source.ID, r.product.SourceID, r.target.ID, gid)
	if err != nil {
		return nil, err
	}
	if err := o.products.Save(ctx, pm); err != nil {
		return nil, fmt.Errorf("save bootstrapped mirror: %w", err)
	}
	r.log.Info("bootstrap: mapped product by handle",
		zap.String("handle", r.product.Handle),
		zap.String("target_product_gid", gid))
	return pm, nil
}

// converge runs the update pipeline against a resolved mirror. Sub-step
// failures are collected in the report; only the converged parts are
// persisted and a transport failure is returned so the job is retried.
func (o *Orchestrator) converge(ctx context.Context, r *run, pm *mirror.ProductMirror) error {
	last := pm.Snapshot()
	r.log = r.log.With(zap.String("target_product_gid", pm.TargetProductGID))
	r.report.advance(StageMirrorResolved)

	if err := o.patchProduct(ctx, r, pm, last); err != nil {
		return err
	}
	r.report.advance(StageProductPatched)

	o.syncOptions(ctx, r, pm, last)
	r.report.advance(StageOptionsSynced)

	mirrors, err := o.reconcileVariants(ctx, r, pm)
	if err != nil {
		return err
	}
	r.report.advance(StageVariantsReconciled)

	o.syncImages(ctx, r, pm, last)
	r.report.advance(StageImagesSynced)

	o.syncInventory(ctx, r, mirrors)
	r.report.advance(StageInventorySynced)

	if err := o.persist(ctx, r, pm, last); err != nil {
		return err
	}
	r.report.advance(StageSnapshotPersisted)

	if err := r.report.Retryable(); err != nil {
		return fmt.Errorf("replication: %s converged partially: %w", r.target.Domain, err)
	}
	return nil
}

// persist saves touched variant mirrors and the product snapshot. Fields of
// failed steps keep their previous snapshot values so the next cycle retries
// them.
func (o *Orchestrator) persist(ctx context.Context, r *run, pm *mirror.ProductMirror, last *catalog.Snapshot) error {
	for vm := range r.dirty {
		if err := o.variants.Save(ctx, vm); err != nil {
			return fmt.Errorf("replication: save variant mirror %s: %w", vm.SourceOptionsKey, err)
		}
	}

	snap := r.product.Snapshot(last)
	if r.report.StepFailed(stepProduct) {
		snap.Title = last.Title
		snap.BodyHTML = last.BodyHTML
		snap.Vendor = last.Vendor
		snap.ProductType = last.ProductType
		snap.Tags = last.Tags
		snap.Status = last.Status
	}
	if r.report.StepFailed(stepOptions) {
		snap.Options = last.Options
		snap.OptionsFingerprint = last.OptionsFingerprint
	}
	if r.report.StepFailed(stepImages) {
		snap.Images = last.Images
		snap.ImagesFingerprint = last.ImagesFingerprint
	}

	pm.RecordSnapshot(snap)
	if err := o.products.UpdateSnapshot(ctx, pm.ID, snap); err != nil {
		return fmt.Errorf("replication: save snapshot: %w", err)
	}
	return nil
}
