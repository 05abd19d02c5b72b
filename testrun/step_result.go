package testrun

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hairizuan-noorazman/ui-harness/step"
)

var (
	// ErrStepResultNotFound is returned when a step result is not found.
	ErrStepResultNotFound = errors.New("step result not found")
)

// StepResult is the recorded outcome of one step within a test run.
type StepResult struct {
	ID         uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	TestRunID  uuid.UUID `json:"test_run_id" gorm:"type:char(36);not null"`
	StepIndex  int       `json:"step_index" gorm:"not null"`
	Name       string    `json:"name" gorm:"type:varchar(255)"`
	Action     string    `json:"action" gorm:"type:varchar(32);not null"`
	Status     Status    `json:"status" gorm:"type:varchar(20);not null"`
	Optional   bool      `json:"optional"`
	ErrorKind  string    `json:"error_kind,omitempty" gorm:"type:varchar(64)"`
	Message    string    `json:"message,omitempty" gorm:"type:text"`
	Detail     string    `json:"detail,omitempty" gorm:"type:text"`
	Screenshot string    `json:"screenshot,omitempty" gorm:"type:varchar(1024)"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating a new step result.
func (sr *StepResult) BeforeCreate(tx *gorm.DB) error {
	if sr.ID == uuid.Nil {
		sr.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for GORM.
func (sr *StepResult) TableName() string {
	return "test_run_steps"
}

// Validate checks if the step result has valid required fields.
func (sr *StepResult) Validate() error {
	if sr.TestRunID == uuid.Nil {
		return ErrInvalidTestRunID
	}
	if sr.Action == "" {
		return ErrInvalidAction
	}
	if !sr.Status.IsFinal() {
		return ErrInvalidStatus
	}
	return nil
}

// NewStepResult converts an executed step into its stored form.
func NewStepResult(runID uuid.UUID, res step.Result) *StepResult {
	return &StepResult{
		TestRunID:  runID,
		StepIndex:  res.Index,
		Name:       res.Name,
		Action:     res.Action,
		Status:     FromStep(res.Status),
		Optional:   res.Optional,
		ErrorKind:  res.KindName(),
		Message:    res.Message(),
		Detail:     res.Detail,
		Screenshot: res.Screenshot,
		DurationMS: res.Duration.Milliseconds(),
	}
}
