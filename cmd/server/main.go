package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appsync "github.com/AudicoSA/audico-management-team-sub005/internal/application/sync"
	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/catalog"
	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/config"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/connector"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/locking"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/logger"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/persistence"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/scheduler"
	"github.com/AudicoSA/audico-management-team-sub005/internal/interfaces/http/handler"
	"github.com/AudicoSA/audico-management-team-sub005/internal/interfaces/http/middleware"
	"github.com/AudicoSA/audico-management-team-sub005/internal/interfaces/http/router"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync(log) }()

	log.Info("starting catalog sync server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
	)

	// Database.
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", zap.Error(err))
		}
	}()

	// SQL migrations are authoritative in production; development keeps the
	// schema current automatically.
	if cfg.App.Env != "production" {
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	// Repositories.
	productStore := persistence.NewProductStore(db.DB)
	supplierRepo := persistence.NewSupplierRepository(db.DB)
	sessionRepo := persistence.NewSessionRepository(db.DB)
	crashRepo := persistence.NewCrashLogRepository(db.DB)

	// Run lock: Redis when configured, in-process otherwise.
	var runLock appsync.RunLock
	if cfg.Redis.Enabled() {
		redisLock, err := locking.NewRedisRunLock(locking.RedisConfig{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Sync.RunLockTTL)
		if err != nil {
			return fmt.Errorf("failed to connect run-lock backend: %w", err)
		}
		runLock = redisLock
		log.Info("using Redis run locks", zap.String("addr", cfg.Redis.Addr()))
	} else {
		runLock = locking.NewMemoryRunLock()
		log.Info("using in-process run locks")
	}

	// Register configured suppliers and build their runtimes.
	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	runtimes, err := buildRuntimes(bootCtx, supplierRepo, cfg, log)
	cancelBoot()
	if err != nil {
		return err
	}

	syncService := appsync.NewService(appsync.ServiceConfig{
		Suppliers:   supplierRepo,
		Store:       productStore,
		DryRunStore: persistence.NewDryRunStore(productStore),
		Directory:   supplierRepo,
		Runtimes:    runtimes,
		Tracker:     appsync.NewSessionTracker(sessionRepo, log),
		CrashLogger: appsync.NewCrashLogger(crashRepo, log),
		RunLock:     runLock,
		Workers:     cfg.Sync.Workers,
		Logger:      log,
	})

	// Scheduler.
	var jobs handler.JobHistory
	if cfg.Sync.SchedulerEnabled {
		syncScheduler, err := scheduler.NewSyncScheduler(scheduler.SyncSchedulerConfig{
			Enabled:           true,
			MaxConcurrentJobs: cfg.Sync.MaxConcurrentJobs,
			JobTimeout:        cfg.Sync.JobTimeout,
			RetryAttempts:     cfg.Sync.RetryAttempts,
			RetryDelay:        cfg.Sync.RetryDelay,
			SyncInterval:      cfg.Sync.SchedulerInterval,
		}, scheduler.NewServiceExecutor(syncService), log)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		if err := syncScheduler.Start(context.Background()); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer stopWithTimeout(syncScheduler.Stop, log, "scheduler")

		trigger := scheduler.NewIntervalTrigger(scheduler.IntervalTriggerConfig{
			SyncInterval: cfg.Sync.SchedulerInterval,
		}, syncScheduler, supplierRepo, log)
		if err := trigger.Start(context.Background()); err != nil {
			return fmt.Errorf("failed to start sync trigger: %w", err)
		}
		defer stopWithTimeout(trigger.Stop, log, "sync trigger")

		jobs = syncScheduler
		log.Info("scheduler started",
			zap.Duration("interval", cfg.Sync.SchedulerInterval),
			zap.Int("max_concurrent_jobs", cfg.Sync.MaxConcurrentJobs),
		)
	}

	// HTTP surface.
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORS(),
	)

	handler.NewHealthHandler(db, version).RegisterRoutes(engine)
	router.NewRouter(engine).
		Register(handler.NewSupplierHandler(syncService, jobs)).
		Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// stopWithTimeout runs a context-aware Stop with a bounded grace period.
func stopWithTimeout(stop func(context.Context) error, log *zap.Logger, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		log.Warn("component did not stop cleanly", zap.String("component", name), zap.Error(err))
	}
}

// buildRuntimes registers every configured supplier and constructs the
// connector and transformer pair for the active non-manual ones.
func buildRuntimes(
	ctx context.Context,
	repo supplier.Repository,
	cfg *config.Config,
	log *zap.Logger,
) (map[string]appsync.Runtime, error) {
	runtimes := make(map[string]appsync.Runtime, len(cfg.Suppliers))

	for _, sc := range cfg.Suppliers {
		sup, err := appsync.EnsureSupplier(ctx, repo, sc.Name, supplier.ConnectorType(sc.Type), sc.Active)
		if err != nil {
			return nil, fmt.Errorf("failed to register supplier %q: %w", sc.Name, err)
		}

		if !sc.Active || sup.Type == supplier.ConnectorTypeManual {
			continue
		}

		conn, err := connector.Build(sc, cfg.Browser, log)
		if err != nil {
			return nil, fmt.Errorf("failed to build connector for %q: %w", sc.Name, err)
		}

		runtimes[sc.Name] = appsync.Runtime{
			Connector:   conn,
			Transformer: newTransformer(sup, sc),
		}
		log.Info("supplier registered",
			zap.String("supplier", sc.Name),
			zap.String("type", sc.Type),
		)
	}

	return runtimes, nil
}

// newTransformer maps one supplier's transform settings onto the
// normalization pipeline.
func newTransformer(sup *supplier.Supplier, sc config.SupplierConfig) *appsync.Transformer {
	pairs := make([][2]string, 0, len(sc.Categories))
	for _, rule := range sc.Categories {
		pairs = append(pairs, [2]string{rule.Keyword, rule.Category})
	}

	return appsync.NewTransformer(appsync.TransformerConfig{
		SupplierID: sup.ID,
		Pricing: catalog.PricingRule{
			VATPercentage:             decimal.NewFromFloat(sc.Pricing.VATPercentage),
			MarginPercentage:          decimal.NewFromFloat(sc.Pricing.MarginPercentage),
			ApplyVATToCost:            sc.Pricing.ApplyVATToCost,
			ApplyMarginToVATInclusive: sc.Pricing.ApplyMarginToVATInclusive,
		},
		Categories:       catalog.NewCategoryMapping(pairs, sc.DefaultCategory),
		FieldMap:         sc.FieldMap,
		KeyFields:        sc.KeyFields,
		PlaceholderStock: sc.PlaceholderStock,
	})
}
