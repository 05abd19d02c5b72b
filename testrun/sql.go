package testrun

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hairizuan-noorazman/ui-harness/logger"
)

// SQLStore implements the Store interface using GORM. It works against both
// the sqlite and mysql drivers.
type SQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewSQLStore creates a new GORM-backed test run store.
func NewSQLStore(db *gorm.DB, log logger.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: log,
	}
}

// Create creates a new test run in the database.
func (s *SQLStore) Create(ctx context.Context, testRun *TestRun) error {
	// Ensure default status is set before validation
	if testRun.Status == "" {
		testRun.Status = StatusPending
	}

	if err := testRun.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(testRun).Error; err != nil {
		s.logger.Error(ctx, "failed to create test run", map[string]interface{}{
			"error":    err.Error(),
			"scenario": testRun.ScenarioName,
		})
		return err
	}

	s.logger.Debug(ctx, "test run created", map[string]interface{}{
		"test_run_id": testRun.ID.String(),
		"scenario":    testRun.ScenarioName,
	})

	return nil
}

// GetByID retrieves a test run by its ID.
func (s *SQLStore) GetByID(ctx context.Context, id uuid.UUID) (*TestRun, error) {
	var testRun TestRun
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&testRun).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestRunNotFound
		}
		s.logger.Error(ctx, "failed to get test run by ID", map[string]interface{}{
			"error":       err.Error(),
			"test_run_id": id.String(),
		})
		return nil, err
	}

	return &testRun, nil
}

// Update updates a test run with the given setters.
func (s *SQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	testRun, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, setter := range setters {
		if err := setter(testRun); err != nil {
			return err
		}
	}

	return s.save(ctx, testRun, "failed to update test run")
}

// List retrieves test runs matching opts, newest first.
func (s *SQLStore) List(ctx context.Context, opts ListOptions) ([]*TestRun, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}

	var testRuns []*TestRun
	err := s.filter(ctx, opts).
		Order("created_at DESC").
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&testRuns).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list test runs", map[string]interface{}{
			"error":    err.Error(),
			"scenario": opts.ScenarioName,
			"limit":    opts.Limit,
			"offset":   opts.Offset,
		})
		return nil, err
	}

	return testRuns, nil
}

// Count returns how many test runs match the filters of opts.
func (s *SQLStore) Count(ctx context.Context, opts ListOptions) (int64, error) {
	var n int64
	if err := s.filter(ctx, opts).Count(&n).Error; err != nil {
		s.logger.Error(ctx, "failed to count test runs", map[string]interface{}{
			"error":    err.Error(),
			"scenario": opts.ScenarioName,
		})
		return 0, err
	}
	return n, nil
}

func (s *SQLStore) filter(ctx context.Context, opts ListOptions) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&TestRun{})
	if opts.ScenarioName != "" {
		q = q.Where("scenario_name = ?", opts.ScenarioName)
	}
	if opts.SessionID != "" {
		q = q.Where("session_id = ?", opts.SessionID)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}
	if opts.CompletedBefore != nil {
		q = q.Where("completed_at IS NOT NULL AND completed_at < ?", opts.CompletedBefore.UTC())
	}
	return q
}

// LatestByScenario returns the most recently completed run of every scenario.
func (s *SQLStore) LatestByScenario(ctx context.Context) ([]*TestRun, error) {
	var completed []*TestRun
	err := s.db.WithContext(ctx).
		Where("completed_at IS NOT NULL").
		Order("scenario_name ASC").
		Order("completed_at DESC").
		Find(&completed).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list latest test runs", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	var latest []*TestRun
	for _, tr := range completed {
		if n := len(latest); n > 0 && latest[n-1].ScenarioName == tr.ScenarioName {
			continue
		}
		latest = append(latest, tr)
	}
	return latest, nil
}

// Delete removes a test run.
func (s *SQLStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&TestRun{})

	if result.Error != nil {
		s.logger.Error(ctx, "failed to delete test run", map[string]interface{}{
			"error":       result.Error.Error(),
			"test_run_id": id.String(),
		})
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrTestRunNotFound
	}

	s.logger.Debug(ctx, "test run deleted", map[string]interface{}{
		"test_run_id": id.String(),
	})
	return nil
}

// Start marks a test run as started (sets started_at, changes status to running).
func (s *SQLStore) Start(ctx context.Context, id uuid.UUID, at time.Time) error {
	testRun, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := testRun.Start(at); err != nil {
		return err
	}

	return s.save(ctx, testRun, "failed to start test run")
}

// Complete marks a test run as completed (sets completed_at, final status, optional notes).
func (s *SQLStore) Complete(ctx context.Context, id uuid.UUID, status Status, notes string, at time.Time) error {
	testRun, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := testRun.Complete(status, notes, at); err != nil {
		return err
	}

	if err := s.save(ctx, testRun, "failed to complete test run"); err != nil {
		return err
	}

	s.logger.Debug(ctx, "test run completed", map[string]interface{}{
		"test_run_id": id.String(),
		"status":      string(status),
	})
	return nil
}

func (s *SQLStore) save(ctx context.Context, testRun *TestRun, failure string) error {
	if err := s.db.WithContext(ctx).Save(testRun).Error; err != nil {
		s.logger.Error(ctx, failure, map[string]interface{}{
			"error":       err.Error(),
			"test_run_id": testRun.ID.String(),
		})
		return err
	}
	return nil
}
