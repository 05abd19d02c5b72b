package main

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/hairizuan-noorazman/ui-harness/config"
	"github.com/hairizuan-noorazman/ui-harness/database"
	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/metrics"
	"github.com/hairizuan-noorazman/ui-harness/storage"
	"github.com/hairizuan-noorazman/ui-harness/testrun"
)

// history is an open run history database with its stores.
type history struct {
	db     *gorm.DB
	runs   *testrun.SQLStore
	steps  *testrun.SQLStepResultStore
	assets *testrun.SQLAssetStore
}

// connectDatabase opens the configured database and applies pending
// migrations.
func connectDatabase(s config.Settings) (*gorm.DB, error) {
	db, err := database.Connect(database.ConfigFromSettings(s.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := database.RunMigrations(sqlDB, s.Database.Driver); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func openHistory(s config.Settings, log logger.Logger) (*history, error) {
	db, err := connectDatabase(s)
	if err != nil {
		return nil, err
	}
	return &history{
		db:     db,
		runs:   testrun.NewSQLStore(db, log),
		steps:  testrun.NewSQLStepResultStore(db, log),
		assets: testrun.NewSQLAssetStore(db, log),
	}, nil
}

// openBlobs opens the configured artifact storage.
func openBlobs(ctx context.Context, s config.Settings) (storage.BlobStorage, error) {
	blobs, err := storage.New(ctx, storage.Config{
		Type:          s.Storage.Type,
		BaseDir:       s.Screenshots.Path,
		S3Bucket:      s.Storage.S3Bucket,
		S3Region:      s.Storage.S3Region,
		S3Prefix:      s.Storage.S3Prefix,
		PresignExpiry: s.Storage.S3PresignExpiry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact storage: %w", err)
	}
	return blobs, nil
}

// lastRuns feeds the latest run of every scenario to the metrics endpoint.
func (h *history) lastRuns(ctx context.Context) ([]metrics.LastRun, error) {
	latest, err := h.runs.LatestByScenario(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]metrics.LastRun, 0, len(latest))
	for _, tr := range latest {
		out = append(out, metrics.LastRun{
			Scenario:    tr.ScenarioName,
			Passed:      tr.Status == testrun.StatusPassed,
			CompletedAt: *tr.CompletedAt,
			Duration:    tr.Duration(),
		})
	}
	return out, nil
}

func (h *history) Close() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
