package testrun

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hairizuan-noorazman/ui-harness/storage"
)

var (
	// ErrAssetNotFound is returned when an asset is not found.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrInvalidAssetType is returned when asset type is invalid.
	ErrInvalidAssetType = errors.New("invalid asset type")

	// ErrInvalidTestRunID is returned when test_run_id is not set.
	ErrInvalidTestRunID = errors.New("test_run_id is required")

	// ErrInvalidAssetPath is returned when asset_path is empty.
	ErrInvalidAssetPath = errors.New("asset_path is required")

	// ErrInvalidFileName is returned when file_name is empty.
	ErrInvalidFileName = errors.New("file_name is required")

	// ErrInvalidAction is returned when a step result has no action.
	ErrInvalidAction = errors.New("action is required")

	// ErrInvalidStepIndex is returned when an asset points before the first step.
	ErrInvalidStepIndex = errors.New("step_index must not be negative")
)

// AssetType is the kind of artifact a run produced.
type AssetType string

const (
	AssetTypeScreenshot AssetType = storage.KindScreenshot
	AssetTypeDump       AssetType = storage.KindDump
	AssetTypeLog        AssetType = storage.KindLog
	AssetTypeVideo      AssetType = storage.KindVideo
)

// IsValid checks if the asset type is valid.
func (at AssetType) IsValid() bool {
	switch at {
	case AssetTypeScreenshot, AssetTypeDump, AssetTypeLog, AssetTypeVideo:
		return true
	default:
		return false
	}
}

// TestRunAsset is an artifact of a test run: a screenshot or page dump taken
// in a step, or the session log of the whole run.
type TestRunAsset struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	TestRunID uuid.UUID `json:"test_run_id" gorm:"type:char(36);not null"`
	// StepIndex is the 0-based step the artifact was taken in, matching
	// StepResult.StepIndex. Nil for run-level artifacts.
	StepIndex   *int      `json:"step_index,omitempty"`
	AssetType   AssetType `json:"asset_type" gorm:"type:varchar(20);not null"`
	AssetPath   string    `json:"asset_path" gorm:"type:varchar(512);not null"`
	FileName    string    `json:"file_name" gorm:"type:varchar(255);not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	MimeType    string    `json:"mime_type,omitempty" gorm:"type:varchar(128)"`
	Location    string    `json:"location,omitempty" gorm:"type:varchar(2048)"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// IsFailureCapture reports whether the artifact was taken when a step failed.
func (a *TestRunAsset) IsFailureCapture() bool {
	return a.StepIndex != nil && strings.HasPrefix(a.FileName, "failure_")
}

// BeforeCreate hook to generate UUID and upload time before creating a new test run asset
func (a *TestRunAsset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now().UTC()
	}
	return nil
}

// Validate checks if the asset has valid required fields.
func (a *TestRunAsset) Validate() error {
	if a.TestRunID == uuid.Nil {
		return ErrInvalidTestRunID
	}
	if !a.AssetType.IsValid() {
		return ErrInvalidAssetType
	}
	if a.AssetPath == "" {
		return ErrInvalidAssetPath
	}
	if a.FileName == "" {
		return ErrInvalidFileName
	}
	if a.StepIndex != nil && *a.StepIndex < 0 {
		return ErrInvalidStepIndex
	}
	return nil
}

// NewAsset converts a stored artifact into its recorded form. The artifact's
// 1-based step becomes the 0-based StepIndex.
func NewAsset(runID uuid.UUID, art storage.Artifact) *TestRunAsset {
	a := &TestRunAsset{
		TestRunID: runID,
		AssetType: AssetType(art.Kind),
		AssetPath: art.Path,
		FileName:  art.Name,
		FileSize:  art.Size,
		MimeType:  art.ContentType,
		Location:  art.Location,
	}
	if art.Step > 0 {
		idx := art.Step - 1
		a.StepIndex = &idx
	}
	return a
}

// AssetFilter narrows ListByTestRun. Zero values match everything.
type AssetFilter struct {
	Types []AssetType
	// Step limits the result to artifacts of one 0-based step.
	Step *int
	// RunLevel limits the result to artifacts not tied to a step.
	RunLevel bool
}
