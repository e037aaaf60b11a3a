package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"grocerystock/internal/config"
	"grocerystock/internal/db"
	"grocerystock/internal/domain"
	"grocerystock/internal/events"
	"grocerystock/internal/excel"
	"grocerystock/internal/logger"
	"grocerystock/internal/mail"
	"grocerystock/internal/notify"
	"grocerystock/internal/repository"
	"grocerystock/internal/service"

	"go.uber.org/zap"
)

type options struct {
	filePath string
	tenantID int64
	dryRun   bool
}

func main() {
	opts := parseFlags()
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "import_catalog: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(
		&opts.filePath,
		"file",
		"catalog.xlsx",
		"path to the catalog workbook",
	)
	flag.Int64Var(
		&opts.tenantID,
		"tenant",
		0,
		"tenant id that owns the imported products",
	)
	flag.BoolVar(
		&opts.dryRun,
		"dry-run",
		false,
		"parse and report rows without writing",
	)
	flag.Parse()
	return opts
}

func run(opts options) error {
	if opts.tenantID <= 0 && !opts.dryRun {
		return fmt.Errorf("-tenant is required")
	}

	rows, err := readCatalog(opts.filePath)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName + "-import",
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if opts.dryRun {
		log.Info("dry run", zap.String("file", opts.filePath), zap.Int("rows", len(rows)))
		return nil
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptionsFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	repo := repository.New(pool)
	notifier := notify.New(repo, mail.NewDiscard(log), events.NewLogPublisher(log), nil, log)
	svc := service.New(repo, notifier, nil, log, service.Options{
		ExpectedDeliveryDays: cfg.Reorder.ExpectedDeliveryDays,
	})

	created, updated, err := svc.ImportCatalog(ctx, opts.tenantID, rows)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	log.Info("catalog import complete",
		zap.String("file", opts.filePath),
		zap.Int64("tenant_id", opts.tenantID),
		zap.Int("rows", len(rows)),
		zap.Int("created", created),
		zap.Int("updated", updated),
	)
	return nil
}

func readCatalog(path string) ([]domain.Product, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	rows, err := excel.ParseCatalogRows(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}
