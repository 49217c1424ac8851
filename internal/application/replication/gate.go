package replication

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/catalogmirror/backend/internal/domain/job"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"go.uber.org/zap"
)

// Reasons a target is still pending at the gate
const (
	PendingMirrorMissing  = "mirror_missing"
	PendingProcessMissing = "process_missing"
)

// PendingTarget is a target the gate is still waiting on.
type PendingTarget struct {
	Domain string
	Reason string
}

// Gate holds the source-side follow-up of a product event until every
// target finished its image sync. It never blocks a worker: while targets
// are pending it releases the job with a delay, and past the attempt cap it
// proceeds with a warning.
type Gate struct {
	shops    mirror.ShopReader
	products mirror.ProductMirrorRepository
	media    mirror.MediaProcessRepository
	queue    job.Enqueuer
	cfg      GateConfig
	ignored  map[string]struct{}
	logger   *zap.Logger
}

// NewGate creates a new Gate
func NewGate(
	shops mirror.ShopReader,
	products mirror.ProductMirrorRepository,
	media mirror.MediaProcessRepository,
	queue job.Enqueuer,
	cfg GateConfig,
	logger *zap.Logger,
) *Gate {
	defaults := DefaultGateConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.ReleaseDelay <= 0 {
		cfg.ReleaseDelay = defaults.ReleaseDelay
	}
	ignored := make(map[string]struct{}, len(cfg.IgnoredDomains))
	for _, d := range cfg.IgnoredDomains {
		ignored[mirror.NormalizeDomain(d)] = struct{}{}
	}
	return &Gate{
		shops:    shops,
		products: products,
		media:    media,
		queue:    queue,
		cfg:      cfg,
		ignored:  ignored,
		logger:   logger,
	}
}

// Handle evaluates the gate for the claimed job. attempts is the number of
// times the job has been claimed, including this one.
func (g *Gate) Handle(ctx context.Context, t GateTask, attempts int) error {
	log := g.logger.With(
		zap.String("source_shop_id", t.SourceShopID.String()),
		zap.Int64("product_id", t.ProductID),
		zap.Int("attempt", attempts),
	)

	source, err := g.shops.FindByID(ctx, t.SourceShopID)
	if errors.Is(err, mirror.ErrShopNotFound) {
		log.Warn("gate: source shop missing, dropping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("gate: load source shop: %w", err)
	}

	pending, err := g.Pending(ctx, source, t.ProductID)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		if attempts >= g.cfg.MaxAttempts {
			log.Warn("gate: timed out waiting for targets, proceeding", zap.Any("pending", pending))
			return g.proceed(ctx, t)
		}
		log.Info("gate: waiting for targets", zap.Any("pending", pending))
		return job.Release(g.cfg.ReleaseDelay, fmt.Sprintf("%d targets pending", len(pending)))
	}

	log.Info("gate: all targets ready")
	return g.proceed(ctx, t)
}

// Pending lists the targets of the product that are not done yet.
func (g *Gate) Pending(ctx context.Context, source *mirror.Shop, productID int64) ([]PendingTarget, error) {
	targets, err := g.shops.FindActiveTargets(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("gate: load targets: %w", err)
	}

	var pending []PendingTarget
	for _, target := range targets {
		if _, skip := g.ignored[mirror.NormalizeDomain(target.Domain)]; skip {
			continue
		}
		pm, err := g.products.FindOne(ctx, source.ID, productID, target.ID)
		if errors.Is(err, mirror.ErrProductMirrorNotFound) || (err == nil && !pm.HasTarget()) {
			pending = append(pending, PendingTarget{Domain: target.Domain, Reason: PendingMirrorMissing})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("gate: load mirror: %w", err)
		}

		proc, err := g.media.FindByShopProduct(ctx, target.Domain, pm.TargetProductID)
		if errors.Is(err, mirror.ErrMediaProcessNotFound) {
			pending = append(pending, PendingTarget{Domain: target.Domain, Reason: PendingProcessMissing})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("gate: load media process: %w", err)
		}

		switch proc.Status {
		case mirror.MediaStatusCompleted:
		case mirror.MediaStatusFailed, mirror.MediaStatusSkipped:
			g.logger.Warn("gate: target image sync did not complete, not waiting",
				zap.String("target_shop", target.Domain),
				zap.String("status", string(proc.Status)),
				zap.String("last_error", proc.LastError))
		default:
			pending = append(pending, PendingTarget{Domain: target.Domain, Reason: "status_" + strings.ToLower(string(proc.Status))})
		}
	}
	return pending, nil
}

func (g *Gate) proceed(ctx context.Context, t GateTask) error {
	j, err := job.New(job.KindImagesBackup, BackupTask(t), 0)
	if err != nil {
		return err
	}
	if err := g.queue.Enqueue(ctx, j); err != nil {
		return fmt.Errorf("gate: enqueue backup: %w", err)
	}
	return nil
}
