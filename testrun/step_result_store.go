package testrun

import (
	"context"

	"github.com/google/uuid"
)

// StepResultStore defines the interface for step result persistence operations.
type StepResultStore interface {
	// Upsert creates or updates the result for a given (test_run_id, step_index).
	Upsert(ctx context.Context, result *StepResult) error

	// ListByTestRun retrieves all step results for a test run, ordered by step_index.
	ListByTestRun(ctx context.Context, testRunID uuid.UUID) ([]*StepResult, error)

	// GetByRunAndStep retrieves the result for a specific run and step index.
	GetByRunAndStep(ctx context.Context, testRunID uuid.UUID, stepIndex int) (*StepResult, error)

	// DeleteByTestRun removes every step result of a run and returns how many
	// were removed.
	DeleteByTestRun(ctx context.Context, testRunID uuid.UUID) (int64, error)
}
