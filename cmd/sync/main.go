package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

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
)

type options struct {
	supplierName string
	all          bool
	limit        int
	dryRun       bool
	fullSync     bool
	sessionName  string
	testOnly     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.supplierName, "supplier", "", "sync a single supplier by name")
	flag.BoolVar(&opts.all, "all", false, "sync every active non-manual supplier")
	flag.IntVar(&opts.limit, "limit", 0, "cap the number of records fetched (0 = no cap)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "classify records without writing anything")
	flag.BoolVar(&opts.fullSync, "full", false, "ignore incremental cursors and fetch the whole catalog")
	flag.StringVar(&opts.sessionName, "session-name", "cli", "actor recorded on the session audit trail")
	flag.BoolVar(&opts.testOnly, "test", false, "test the supplier connection instead of syncing")
	flag.Parse()

	if opts.supplierName == "" && !opts.all {
		fmt.Fprintln(os.Stderr, "usage: sync -supplier <name> [-limit N] [-dry-run] [-full] [-test]")
		fmt.Fprintln(os.Stderr, "       sync -all [-limit N] [-dry-run] [-full]")
		os.Exit(2)
	}
	if opts.testOnly && opts.supplierName == "" {
		fmt.Fprintln(os.Stderr, "sync: -test requires -supplier")
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "sync: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
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

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if cfg.App.Env != "production" {
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	productStore := persistence.NewProductStore(db.DB)
	supplierRepo := persistence.NewSupplierRepository(db.DB)
	sessionRepo := persistence.NewSessionRepository(db.DB)
	crashRepo := persistence.NewCrashLogRepository(db.DB)

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
	} else {
		runLock = locking.NewMemoryRunLock()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runtimes, err := buildRuntimes(ctx, supplierRepo, cfg, log)
	if err != nil {
		return err
	}

	service := appsync.NewService(appsync.ServiceConfig{
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

	if opts.testOnly {
		return testConnection(ctx, service, opts.supplierName)
	}

	syncOpts := appsync.Options{
		Limit:       opts.limit,
		DryRun:      opts.dryRun,
		FullSync:    opts.fullSync,
		SessionName: opts.sessionName,
	}

	if opts.all {
		return syncAll(ctx, service, syncOpts)
	}
	return syncOne(ctx, service, opts.supplierName, syncOpts)
}

func testConnection(ctx context.Context, service *appsync.Service, name string) error {
	reachable, err := service.TestConnection(ctx, name)
	if err != nil {
		return fmt.Errorf("connection test for %q: %w", name, err)
	}
	if !reachable {
		fmt.Printf("%s: unreachable\n", name)
		os.Exit(1)
	}
	fmt.Printf("%s: reachable\n", name)
	return nil
}

func syncOne(ctx context.Context, service *appsync.Service, name string, opts appsync.Options) error {
	result, err := service.SyncByName(ctx, name, opts)
	if err != nil {
		return fmt.Errorf("sync %q: %w", name, err)
	}

	printResult(name, result, opts.DryRun)
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

func syncAll(ctx context.Context, service *appsync.Service, opts appsync.Options) error {
	results, err := service.SyncAll(ctx, opts)
	if err != nil {
		return fmt.Errorf("sync all: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("no active suppliers to sync")
		return nil
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		printResult(name, results[name], opts.DryRun)
		if !results[name].Success {
			failed++
		}
	}

	fmt.Printf("\n%d supplier(s) synced, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
	return nil
}

func printResult(name string, result *supplier.SyncResult, dryRun bool) {
	mode := ""
	if dryRun {
		mode = " (dry run)"
	}
	fmt.Printf("%s%s: %s in %s\n", name, mode, result.Status, result.Duration.Round(time.Millisecond))
	fmt.Printf("  added=%d updated=%d unchanged=%d skipped=%d deactivated=%d\n",
		result.Counters.Added,
		result.Counters.Updated,
		result.Counters.Unchanged,
		result.Counters.Skipped,
		result.Counters.Deactivated,
	)
	for _, warning := range result.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
	for _, errMsg := range result.Errors {
		fmt.Printf("  error: %s\n", errMsg)
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

		pairs := make([][2]string, 0, len(sc.Categories))
		for _, rule := range sc.Categories {
			pairs = append(pairs, [2]string{rule.Keyword, rule.Category})
		}

		runtimes[sc.Name] = appsync.Runtime{
			Connector: conn,
			Transformer: appsync.NewTransformer(appsync.TransformerConfig{
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
			}),
		}
	}

	return runtimes, nil
}
