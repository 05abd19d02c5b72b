package testrun

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit is used when ListOptions.Limit is not positive.
const DefaultListLimit = 50

// ListOptions filters and paginates List. Count applies the filters and
// ignores Limit and Offset.
type ListOptions struct {
	ScenarioName string
	SessionID    string
	Status       Status
	// CompletedBefore keeps runs that completed strictly before the time.
	CompletedBefore *time.Time
	Limit           int
	Offset          int
}

// Store defines the interface for test run persistence operations.
type Store interface {
	// Create creates a new test run in the store.
	Create(ctx context.Context, testRun *TestRun) error

	// GetByID retrieves a test run by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*TestRun, error)

	// Update updates a test run with the given setters.
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error

	// List retrieves test runs, newest first.
	List(ctx context.Context, opts ListOptions) ([]*TestRun, error)

	// Count returns how many test runs match the filters of opts.
	Count(ctx context.Context, opts ListOptions) (int64, error)

	// LatestByScenario returns the most recently completed run of every
	// scenario, ordered by scenario name.
	LatestByScenario(ctx context.Context) ([]*TestRun, error)

	// Delete removes a test run. Its steps and artifacts are not touched.
	Delete(ctx context.Context, id uuid.UUID) error

	// Start marks a test run as started (sets started_at, changes status to running).
	Start(ctx context.Context, id uuid.UUID, at time.Time) error

	// Complete marks a test run as completed (sets completed_at, final status, optional notes).
	Complete(ctx context.Context, id uuid.UUID, status Status, notes string, at time.Time) error
}

// UpdateSetter is a function that updates a test run field.
type UpdateSetter func(*TestRun) error
