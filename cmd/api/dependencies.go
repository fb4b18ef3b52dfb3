package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/echo-ingest/internal/domain/categorization"
	importhandler "github.com/FACorreiaa/echo-ingest/internal/domain/import/handler"
	importrepo "github.com/FACorreiaa/echo-ingest/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/echo-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/echo-ingest/pkg/config"
	"github.com/FACorreiaa/echo-ingest/pkg/cron"
	"github.com/FACorreiaa/echo-ingest/pkg/db"
	"github.com/FACorreiaa/echo-ingest/pkg/storage"
)

// transactionStore is what the API needs from batch persistence.
type transactionStore interface {
	importservice.TransactionStore
	importhandler.BatchReader
}

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	Pool     *pgxpool.Pool // nil when running on the memory store
	Logger   *slog.Logger
	Registry *prometheus.Registry

	// Repositories
	CategoryRepo    categorization.Store
	TransactionRepo transactionStore

	// Services
	CategorizationService *categorization.Service
	ImportService         *importservice.ImportService
	FileStorage           storage.Storage

	// Handlers
	ImportHandler *importhandler.ImportHandler

	// Background jobs, nil when staged batches never expire
	Scheduler *cron.Scheduler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase connects to Postgres and runs migrations. With the database
// disabled everything lives in memory.
func (d *Dependencies) initDatabase(ctx context.Context) error {
	if !d.Config.Database.Enabled {
		d.Logger.Warn("database disabled, finalized imports are kept in memory only")
		return nil
	}

	pool, err := db.Connect(ctx, d.Config.Database.DSN(), d.Logger)
	if err != nil {
		return err
	}
	d.Pool = pool

	if err := db.Migrate(ctx, pool, d.Logger); err != nil {
		return err
	}
	return nil
}

func (d *Dependencies) initRepositories() {
	if d.Pool == nil {
		mem := importrepo.NewMemoryStore(d.Config.Import.Currency)
		d.CategoryRepo = mem
		d.TransactionRepo = mem
		return
	}
	d.CategoryRepo = categorization.NewRepository(d.Pool)
	d.TransactionRepo = importrepo.NewTransactionRepository(d.Pool, d.Config.Import.Currency)
	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initServices(ctx context.Context) error {
	d.CategorizationService = categorization.NewService(d.CategoryRepo, d.Logger)

	if seed := d.Config.Import.CategorySeed; seed != "" {
		if err := d.seedCategories(ctx, seed); err != nil {
			return err
		}
	}

	d.ImportService = importservice.NewImportService(d.CategorizationService, d.TransactionRepo, d.Logger).
		WithDateOrder(d.Config.Import.DateOrder)
	if d.Config.Observability.MetricsEnabled {
		d.ImportService.WithMetrics(importservice.NewMetrics(d.Registry))
	}

	if d.Config.Storage.ArchiveSources {
		fileStorage, err := storage.New(&storage.Config{LocalPath: d.Config.Storage.LocalPath})
		if err != nil {
			return fmt.Errorf("failed to init file storage: %w", err)
		}
		d.FileStorage = fileStorage
		d.ImportService.WithArchive(fileStorage)
	}

	if ttl := d.Config.Import.StagedTTL; ttl > 0 {
		d.Scheduler = cron.NewScheduler(d.ImportService, ttl, d.Logger)
		if err := d.Scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	d.Logger.Info("services initialized")
	return nil
}

// seedCategories loads the seed file when the store has no categories yet.
func (d *Dependencies) seedCategories(ctx context.Context, path string) error {
	existing, err := d.CategorizationService.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open category seed: %w", err)
	}
	defer f.Close()

	if _, err := d.CategorizationService.Seed(ctx, f); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	return nil
}

func (d *Dependencies) initHandlers() {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.CategorizationService, d.TransactionRepo, d.Logger)
	if d.FileStorage != nil {
		d.ImportHandler.WithSources(d.FileStorage)
	}
	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.CategorizationService != nil {
		if err := d.CategorizationService.Close(); err != nil {
			d.Logger.Warn("failed to close category index", slog.Any("error", err))
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	d.Logger.Info("cleanup completed")
}
