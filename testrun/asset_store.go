package testrun

import (
	"context"

	"github.com/google/uuid"
)

// AssetStore records the artifacts of test runs. Artifacts are written once
// and removed together with their run.
type AssetStore interface {
	// Create records a stored artifact.
	Create(ctx context.Context, asset *TestRunAsset) error

	// GetByID retrieves an artifact by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*TestRunAsset, error)

	// ListByTestRun retrieves the artifacts of a run matching filter, in step
	// order with run-level artifacts last.
	ListByTestRun(ctx context.Context, testRunID uuid.UUID, filter AssetFilter) ([]*TestRunAsset, error)

	// DeleteByTestRun removes every artifact row of a run and returns the
	// removed rows so their blobs can be released.
	DeleteByTestRun(ctx context.Context, testRunID uuid.UUID) ([]*TestRunAsset, error)
}
