package testrun

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hairizuan-noorazman/ui-harness/logger"
)

// SQLStepResultStore implements StepResultStore using GORM.
type SQLStepResultStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewSQLStepResultStore creates a new GORM-backed step result store.
func NewSQLStepResultStore(db *gorm.DB, log logger.Logger) *SQLStepResultStore {
	return &SQLStepResultStore{
		db:     db,
		logger: log,
	}
}

// Upsert creates or updates the result for a given (test_run_id, step_index).
func (s *SQLStepResultStore) Upsert(ctx context.Context, result *StepResult) error {
	if err := result.Validate(); err != nil {
		return err
	}

	existing, err := s.GetByRunAndStep(ctx, result.TestRunID, result.StepIndex)
	if err != nil && !errors.Is(err, ErrStepResultNotFound) {
		return err
	}

	if existing != nil {
		result.ID = existing.ID
		result.CreatedAt = existing.CreatedAt
		if err := s.db.WithContext(ctx).Save(result).Error; err != nil {
			s.logger.Error(ctx, "failed to update step result", map[string]interface{}{
				"error":       err.Error(),
				"test_run_id": result.TestRunID.String(),
				"step_index":  result.StepIndex,
			})
			return err
		}
		return nil
	}

	if err := s.db.WithContext(ctx).Create(result).Error; err != nil {
		s.logger.Error(ctx, "failed to create step result", map[string]interface{}{
			"error":       err.Error(),
			"test_run_id": result.TestRunID.String(),
			"step_index":  result.StepIndex,
		})
		return err
	}

	return nil
}

// ListByTestRun retrieves all step results for a test run, ordered by step_index.
func (s *SQLStepResultStore) ListByTestRun(ctx context.Context, testRunID uuid.UUID) ([]*StepResult, error) {
	var results []*StepResult
	err := s.db.WithContext(ctx).
		Where("test_run_id = ?", testRunID).
		Order("step_index ASC").
		Find(&results).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list step results by test run", map[string]interface{}{
			"error":       err.Error(),
			"test_run_id": testRunID.String(),
		})
		return nil, err
	}

	return results, nil
}

// GetByRunAndStep retrieves the result for a specific run and step index.
func (s *SQLStepResultStore) GetByRunAndStep(ctx context.Context, testRunID uuid.UUID, stepIndex int) (*StepResult, error) {
	var result StepResult
	err := s.db.WithContext(ctx).
		Where("test_run_id = ? AND step_index = ?", testRunID, stepIndex).
		First(&result).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStepResultNotFound
		}
		s.logger.Error(ctx, "failed to get step result", map[string]interface{}{
			"error":       err.Error(),
			"test_run_id": testRunID.String(),
			"step_index":  stepIndex,
		})
		return nil, err
	}

	return &result, nil
}

// DeleteByTestRun removes every step result of a run.
func (s *SQLStepResultStore) DeleteByTestRun(ctx context.Context, testRunID uuid.UUID) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("test_run_id = ?", testRunID).
		Delete(&StepResult{})

	if result.Error != nil {
		s.logger.Error(ctx, "failed to delete step results", map[string]interface{}{
			"error":       result.Error.Error(),
			"test_run_id": testRunID.String(),
		})
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
