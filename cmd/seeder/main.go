// The seeder is a one-shot tool for bootstrapping a fresh environment: it
// registers the default worker credentials and fills the barcode pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/raboid/rpa-dispatch/internal/barcode"
	"github.com/raboid/rpa-dispatch/internal/config"
	"github.com/raboid/rpa-dispatch/internal/domain"
	"github.com/raboid/rpa-dispatch/internal/storage"
	"github.com/raboid/rpa-dispatch/shared/logger"
	"github.com/raboid/rpa-dispatch/shared/postgresql"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("SEEDER_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	barcodeCount := flag.Int("barcodes", 0, "Number of barcodes to seed (overrides config)")
	workerID := flag.String("worker-id", "", "Worker id to register")
	workerSecret := flag.String("worker-secret", "", "Secret for the registered worker")
	workerName := flag.String("worker-name", "", "Display name for the registered worker")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	dbClient, err := postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	ctx := context.Background()
	db := dbClient.GetDB()

	// Register a worker when credentials were given.
	if *workerID != "" {
		if *workerSecret == "" {
			return fmt.Errorf("worker-secret is required when worker-id is set")
		}

		name := *workerName
		if name == "" {
			name = *workerID
		}

		now := time.Now().UTC()
		workerStore := storage.NewWorkerStore(db, appLogger.Logger)
		err := workerStore.Create(ctx, &domain.Worker{
			WorkerID:  *workerID,
			Secret:    *workerSecret,
			Name:      name,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("failed to register worker: %w", err)
		}

		appLogger.Info("Worker registered",
			slog.String("worker_id", *workerID),
		)
	}

	// Fill the barcode pool.
	count := *barcodeCount
	if count <= 0 {
		count = cfg.Seed.BarcodeCount
	}
	if count > 0 {
		barcodeStore := storage.NewBarcodeStore(db, appLogger.Logger)
		pool := barcode.NewPool(barcodeStore, appLogger.Logger)

		if err := pool.Seed(ctx, count); err != nil {
			return fmt.Errorf("failed to seed barcodes: %w", err)
		}

		available, err := pool.CountAvailable(ctx)
		if err != nil {
			return fmt.Errorf("failed to count barcodes: %w", err)
		}

		appLogger.Info("Barcode pool seeded",
			slog.Int("seeded", count),
			slog.Int("available", available),
		)
	}

	appLogger.Info("Seeding complete")
	return nil
}
