package replication

import (
	"context"
	"errors"
	"fmt"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/job"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/domain/platform"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FanOut turns an accepted source event into one replication job per active
// target plus the coordination gate job.
type FanOut struct {
	shops       mirror.ShopReader
	products    mirror.ProductMirrorRepository
	media       mirror.MediaProcessRepository
	apis        platform.CatalogAPIProvider
	queue       job.Enqueuer
	maxAttempts int
	gate        GateConfig
	logger      *zap.Logger
}

// NewFanOut creates a new FanOut
func NewFanOut(
	shops mirror.ShopReader,
	products mirror.ProductMirrorRepository,
	media mirror.MediaProcessRepository,
	apis platform.CatalogAPIProvider,
	queue job.Enqueuer,
	maxAttempts int,
	gate GateConfig,
	logger *zap.Logger,
) *FanOut {
	return &FanOut{
		shops:       shops,
		products:    products,
		media:       media,
		apis:        apis,
		queue:       queue,
		maxAttempts: maxAttempts,
		gate:        gate,
		logger:      logger,
	}
}

// Dispatch fans t out. Events from unknown, inactive or non-source shops and
// unhandled topics are logged and dropped.
func (f *FanOut) Dispatch(ctx context.Context, t WebhookTask) error {
	log := f.logger.With(
		zap.String("topic", t.Topic),
		zap.String("shop", t.ShopDomain),
		zap.String("webhook_id", t.WebhookID),
	)

	var kind job.Kind
	switch t.Topic {
	case mirror.TopicProductsCreate:
		kind = job.KindReplicateCreate
	case mirror.TopicProductsUpdate:
		kind = job.KindReplicateUpdate
	default:
		log.Info("topic not replicated, ignoring")
		return nil
	}

	source, err := f.shops.FindByDomain(ctx, t.ShopDomain)
	if errors.Is(err, mirror.ErrShopNotFound) {
		log.Warn("event from unknown shop, ignoring")
		return nil
	}
	if err != nil {
		return fmt.Errorf("fanout: load shop: %w", err)
	}
	if !source.IsSource || !source.IsActive {
		log.Info("shop is not an active source, ignoring")
		return nil
	}

	payload, err := catalog.ParsePayload(t.Payload)
	if err != nil {
		log.Error("invalid product payload, ignoring", zap.Error(err))
		return nil
	}
	if payload.ID == 0 {
		log.Warn("payload without product id, ignoring")
		return nil
	}
	log = log.With(zap.Int64("product_id", payload.ID))

	targets, err := f.shops.FindActiveTargets(ctx, source.ID)
	if err != nil {
		return fmt.Errorf("fanout: load targets: %w", err)
	}
	if len(targets) == 0 {
		log.Info("no active targets")
		return nil
	}

	if kind == job.KindReplicateUpdate {
		f.disableTrigger(ctx, log, source, catalog.ProductGID(payload.ID))
		if err := f.resetMediaProcesses(ctx, source, payload.ID, targets); err != nil {
			log.Warn("reset media processes failed", zap.Error(err))
		}
	}

	jobs := make([]*job.Job, 0, len(targets)+1)
	domains := make([]string, 0, len(targets))
	for _, target := range targets {
		j, err := job.New(kind, Task{
			SourceShopID: source.ID,
			TargetShopID: target.ID,
			ProductID:    payload.ID,
			Payload:      t.Payload,
		}, f.maxAttempts)
		if err != nil {
			return err
		}
		jobs = append(jobs, j)
		domains = append(domains, target.Domain)
	}

	gateJob, err := job.New(job.KindGateWatermark, GateTask{
		SourceShopID: source.ID,
		ProductID:    payload.ID,
		Payload:      t.Payload,
	}, f.gate.MaxAttempts)
	if err != nil {
		return err
	}
	jobs = append(jobs, gateJob.Delay(f.gate.ReleaseDelay))

	if err := f.queue.Enqueue(ctx, jobs...); err != nil {
		return fmt.Errorf("fanout: enqueue: %w", err)
	}
	log.Info("replication queued", zap.String("kind", string(kind)), zap.Strings("targets", domains))
	return nil
}

// disableTrigger writes custom.trigger=false on the source product so the
// automation that flips it does not loop. Failures only warn.
func (f *FanOut) disableTrigger(ctx context.Context, log *zap.Logger, source *mirror.Shop, productGID string) {
	api, err := f.apis.For(source)
	if err == nil {
		err = api.SetMetafields(ctx, []platform.MetafieldInput{{
			OwnerID:   productGID,
			Namespace: "custom",
			Key:       "trigger",
			Type:      platform.MetafieldTypeBoolean,
			Value:     "false",
		}})
	}
	if err != nil {
		log.Warn("set trigger=false on source failed", zap.Error(err))
		return
	}
	log.Debug("set trigger=false on source")
}

// resetMediaProcesses puts the media process of every mirrored target back to
// pending so the gate waits for this update's image sync.
func (f *FanOut) resetMediaProcesses(ctx context.Context, source *mirror.Shop, productID int64, targets []mirror.Shop) error {
	mirrors, err := f.products.FindBySourceProduct(ctx, source.ID, productID)
	if err != nil {
		return err
	}
	active := make(map[string]*mirror.Shop, len(targets))
	for i := range targets {
		active[targets[i].ID.String()] = &targets[i]
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range mirrors {
		pm := mirrors[i]
		target, ok := active[pm.TargetShopID.String()]
		if !ok || !pm.HasTarget() {
			continue
		}
		g.Go(func() error {
			proc := mirror.NewMediaProcess(target.ID, target.Domain, pm.TargetProductID, pm.TargetProductGID)
			return f.media.Save(gctx, proc)
		})
	}
	return g.Wait()
}
