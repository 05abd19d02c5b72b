package testrun

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hairizuan-noorazman/ui-harness/logger"
)

// SQLAssetStore implements AssetStore using GORM.
type SQLAssetStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewSQLAssetStore creates a new GORM-backed artifact store.
func NewSQLAssetStore(db *gorm.DB, log logger.Logger) *SQLAssetStore {
	return &SQLAssetStore{
		db:     db,
		logger: log,
	}
}

func (s *SQLAssetStore) fields(a *TestRunAsset) map[string]interface{} {
	f := map[string]interface{}{
		"test_run_id": a.TestRunID.String(),
		"asset_type":  string(a.AssetType),
		"file_name":   a.FileName,
	}
	if a.StepIndex != nil {
		f["step_index"] = *a.StepIndex
	}
	return f
}

// Create records a stored artifact.
func (s *SQLAssetStore) Create(ctx context.Context, asset *TestRunAsset) error {
	if err := asset.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(asset).Error; err != nil {
		fields := s.fields(asset)
		fields["error"] = err.Error()
		s.logger.Error(ctx, "failed to record artifact", fields)
		return err
	}

	fields := s.fields(asset)
	fields["asset_id"] = asset.ID.String()
	s.logger.Debug(ctx, "artifact recorded", fields)
	return nil
}

// GetByID retrieves an artifact by its ID.
func (s *SQLAssetStore) GetByID(ctx context.Context, id uuid.UUID) (*TestRunAsset, error) {
	var asset TestRunAsset
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&asset).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		s.logger.Error(ctx, "failed to get artifact", map[string]interface{}{
			"error":    err.Error(),
			"asset_id": id.String(),
		})
		return nil, err
	}

	return &asset, nil
}

// ListByTestRun retrieves the artifacts of a run matching filter. Step
// artifacts come first in step order, then run-level ones; ties keep upload
// order.
func (s *SQLAssetStore) ListByTestRun(ctx context.Context, testRunID uuid.UUID, filter AssetFilter) ([]*TestRunAsset, error) {
	for _, t := range filter.Types {
		if !t.IsValid() {
			return nil, ErrInvalidAssetType
		}
	}

	q := s.db.WithContext(ctx).Where("test_run_id = ?", testRunID)
	if len(filter.Types) > 0 {
		q = q.Where("asset_type IN ?", filter.Types)
	}
	switch {
	case filter.Step != nil:
		q = q.Where("step_index = ?", *filter.Step)
	case filter.RunLevel:
		q = q.Where("step_index IS NULL")
	}

	var assets []*TestRunAsset
	if err := q.Order("uploaded_at ASC").Find(&assets).Error; err != nil {
		s.logger.Error(ctx, "failed to list artifacts", map[string]interface{}{
			"error":       err.Error(),
			"test_run_id": testRunID.String(),
		})
		return nil, err
	}

	sort.SliceStable(assets, func(i, j int) bool {
		a, b := assets[i].StepIndex, assets[j].StepIndex
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return assets, nil
}

// DeleteByTestRun removes the artifact rows of a run in one transaction and
// returns what was removed.
func (s *SQLAssetStore) DeleteByTestRun(ctx context.Context, testRunID uuid.UUID) ([]*TestRunAsset, error) {
	var removed []*TestRunAsset
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_run_id = ?", testRunID).Find(&removed).Error; err != nil {
			return err
		}
		if len(removed) == 0 {
			return nil
		}
		return tx.Where("test_run_id = ?", testRunID).Delete(&TestRunAsset{}).Error
	})
	if err != nil {
		s.logger.Error(ctx, "failed to delete artifacts", map[string]interface{}{
			"error":       err.Error(),
			"test_run_id": testRunID.String(),
		})
		return nil, err
	}

	s.logger.Debug(ctx, "artifacts deleted", map[string]interface{}{
		"test_run_id": testRunID.String(),
		"count":       len(removed),
	})
	return removed, nil
}
