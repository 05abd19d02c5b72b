package testrun

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/testutil"
)

// setupTestStores creates a migrated test database and the three stores.
func setupTestStores(t *testing.T) (*gorm.DB, Store, StepResultStore, AssetStore) {
	db := testutil.SetupMigratedDB(t)

	log := logger.NewTestLogger()
	return db, NewSQLStore(db, log), NewSQLStepResultStore(db, log), NewSQLAssetStore(db, log)
}

func newID() uuid.UUID {
	return uuid.New()
}

// createTestRun creates a test run with default values.
func createTestRun(scenarioName string, status Status, notes string) *TestRun {
	return &TestRun{
		ScenarioName: scenarioName,
		Status:       status,
		Notes:        notes,
	}
}

// createTestAsset creates a test run asset with default values.
func createTestAsset(testRunID uuid.UUID, assetType AssetType, path, fileName string, size int64) *TestRunAsset {
	return &TestRunAsset{
		TestRunID: testRunID,
		AssetType: assetType,
		AssetPath: path,
		FileName:  fileName,
		FileSize:  size,
		MimeType:  "image/png",
	}
}

func intPtr(n int) *int {
	return &n
}
