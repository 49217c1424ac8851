package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/catalogmirror/backend/internal/application/ingest"
	"github.com/catalogmirror/backend/internal/application/replication"
	"github.com/catalogmirror/backend/internal/infrastructure/cache"
	"github.com/catalogmirror/backend/internal/infrastructure/config"
	"github.com/catalogmirror/backend/internal/infrastructure/jobs"
	"github.com/catalogmirror/backend/internal/infrastructure/kafka"
	"github.com/catalogmirror/backend/internal/infrastructure/logger"
	"github.com/catalogmirror/backend/internal/infrastructure/migration"
	"github.com/catalogmirror/backend/internal/infrastructure/notify"
	"github.com/catalogmirror/backend/internal/infrastructure/persistence"
	"github.com/catalogmirror/backend/internal/infrastructure/shopify"
	"github.com/catalogmirror/backend/internal/infrastructure/storage"
	"github.com/catalogmirror/backend/internal/infrastructure/telemetry"
	"github.com/catalogmirror/backend/internal/interfaces/http/handler"
	"github.com/catalogmirror/backend/internal/interfaces/http/router"
	"github.com/catalogmirror/backend/migrations"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	telCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}

	tp, err := telemetry.NewTracerProvider(ctx, telCfg, log)
	if err != nil {
		return err
	}
	defer shutdown(log, "tracer provider", tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, telCfg, cfg.Telemetry.MetricsInterval, log)
	if err != nil {
		return err
	}
	defer shutdown(log, "meter provider", mp.Shutdown)

	lp, err := telemetry.NewLoggerProvider(ctx, telCfg, log)
	if err != nil {
		return err
	}
	defer shutdown(log, "logger provider", lp.Shutdown)
	log = lp.Bridge(log, zapcore.InfoLevel)

	log.Info("Starting catalog mirror",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.Open(ctx, &cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	status, err := migration.ReadStatus(ctx, db.SQL(), migrations.FS)
	if err != nil {
		return err
	}
	if status.Dirty || status.Pending() {
		return errors.New("database schema is not current, run migrate up")
	}

	meter := mp.Meter(telemetry.TracerName)
	dbInstr, err := telemetry.InstrumentDB(db.DB, meter, telemetry.DBConfig{
		TraceEnabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		return err
	}
	dbInstr.StartPoolStatsCollection(ctx)
	defer dbInstr.Stop()

	shopRepo := persistence.NewGormShopRepository(db.DB)
	productRepo := persistence.NewGormProductMirrorRepository(db.DB)
	variantRepo := persistence.NewGormVariantMirrorRepository(db.DB)
	mediaRepo := persistence.NewGormMediaProcessRepository(db.DB)
	eventRepo := persistence.NewGormWebhookEventRepository(db.DB)
	jobRepo := persistence.NewGormJobRepository(db.DB)

	metrics, err := telemetry.NewReplicationMetrics(telemetry.ReplicationMetricsConfig{
		Meter:         meter,
		Logger:        log,
		QueueProvider: jobRepo,
	})
	if err != nil {
		return err
	}
	metrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
	defer metrics.Stop()

	dedup, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = dedup.Close() }()

	apis, err := shopify.NewProvider(shopify.Config{
		APIVersion:     cfg.Shopify.APIVersion,
		AppKey:         cfg.Shopify.AppKey,
		AppSecret:      cfg.Shopify.AppSecret,
		Retries:        cfg.Shopify.Retries,
		RequestTimeout: cfg.Shopify.RequestTimeout,
	}, log, shopify.WithCallRecorder(metrics))
	if err != nil {
		return err
	}

	gateCfg := replication.GateConfig{
		MaxAttempts:    cfg.Gate.MaxAttempts,
		ReleaseDelay:   cfg.Gate.ReleaseDelay,
		IgnoredDomains: cfg.Gate.IgnoredDomains,
	}
	orchestrator := replication.NewOrchestrator(shopRepo, productRepo, variantRepo, mediaRepo, apis,
		replication.Config{
			NewProductTag:      cfg.Replication.NewProductTag,
			CollectionByDomain: cfg.Replication.Collections,
			PublishOnCreate:    cfg.Replication.PublishOnCreate,
			SEODescription:     cfg.Replication.SEODescription,
			BootstrapEnabled:   cfg.MirrorBootstrap.Enabled,
			BootstrapDryRun:    cfg.MirrorBootstrap.DryRun,
		}, log).WithRecorder(metrics)
	fanOut := replication.NewFanOut(shopRepo, productRepo, mediaRepo, apis, jobRepo, cfg.Jobs.MaxAttempts, gateCfg, log)
	gate := replication.NewGate(shopRepo, productRepo, mediaRepo, jobRepo, gateCfg, log)
	backup := replication.NewImageBackup(shopRepo, apis, log)
	if cfg.Archive.Enabled {
		archive, err := storage.NewS3Archive(ctx, cfg.Archive, storage.WithLogger(log))
		if err != nil {
			return err
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			return err
		}
		backup.WithArchive(archive)
		log.Info("Image backups are archived", zap.String("bucket", archive.Bucket()))
	}

	processor := jobs.NewProcessor(jobRepo, replication.Handlers(orchestrator, fanOut, gate, backup),
		jobs.ProcessorConfig{
			PollInterval:     cfg.Jobs.PollInterval,
			BatchSize:        cfg.Jobs.BatchSize,
			Workers:          cfg.Jobs.Workers,
			JobTimeout:       cfg.Jobs.JobTimeout,
			StaleAfter:       cfg.Jobs.StaleAfter,
			Backoff:          cfg.Jobs.Backoff,
			CleanupEnabled:   cfg.Jobs.CleanupEnabled,
			CleanupRetention: cfg.Jobs.CleanupRetention,
			CleanupInterval:  cfg.Jobs.CleanupInterval,
		}, log,
		jobs.WithNotifier(notify.New(cfg.Notify, log)),
		jobs.WithRecorder(metrics),
	)
	if err := processor.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := processor.Stop(stopCtx); err != nil {
			log.Error("Job processor did not stop cleanly", zap.Error(err))
		}
	}()

	ingestSvc := ingest.NewService(shopRepo, eventRepo, dedup, jobRepo, ingest.Config{
		DedupTTL:    cfg.Ingest.DedupTTL,
		MaxAttempts: cfg.Jobs.MaxAttempts,
	}, log)

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(kafka.NewReader(cfg.Kafka), ingestSvc, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Kafka consumer stopped", zap.Error(err))
			}
		}()
	}

	var verifier handler.SignatureVerifier
	if cfg.Ingest.VerifySignatures {
		v, err := shopify.NewWebhookVerifier(cfg.Shopify.AppSecret)
		if err != nil {
			return err
		}
		verifier = v
	} else {
		log.Warn("Webhook signature verification is disabled")
	}

	mode := "release"
	if cfg.App.Env != "production" {
		mode = "debug"
	}
	r, err := router.NewRouter(router.Config{
		Mode:           mode,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, log)
	if err != nil {
		return err
	}
	engine := r.
		Register(handler.NewHealthHandler(db)).
		Register(handler.NewWebhookHandler(ingestSvc, verifier, metrics, log)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func shutdown(log *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn("Shutdown failed", zap.String("component", name), zap.Error(err))
	}
}
