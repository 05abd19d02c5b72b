package testrun

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hairizuan-noorazman/ui-harness/step"
)

var (
	// ErrTestRunNotFound is returned when a test run is not found.
	ErrTestRunNotFound = errors.New("test run not found")

	// ErrInvalidScenarioName is returned when scenario_name is not set.
	ErrInvalidScenarioName = errors.New("scenario_name is required")

	// ErrInvalidStatus is returned when status is invalid.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrTestRunNotRunning is returned when trying to complete a test run that's not running.
	ErrTestRunNotRunning = errors.New("test run is not running")

	// ErrTestRunAlreadyStarted is returned when trying to start an already started test run.
	ErrTestRunAlreadyStarted = errors.New("test run already started")
)

// Status represents the status of a test run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusPassed, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsFinal checks if the status is a final status (can't be changed).
func (s Status) IsFinal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// FromStep maps a step or report status onto a run status.
func FromStep(s step.Status) Status {
	switch s {
	case step.StatusPassed:
		return StatusPassed
	case step.StatusSkipped:
		return StatusSkipped
	default:
		return StatusFailed
	}
}

// TestRun is one recorded scenario run.
type TestRun struct {
	ID           uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	ScenarioName string     `json:"scenario_name" gorm:"type:varchar(255);not null"`
	SessionID    string     `json:"session_id,omitempty" gorm:"type:varchar(64);not null;default:''"`
	Status       Status     `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	Notes        string     `json:"notes" gorm:"type:text"`
	StepCount    int        `json:"step_count" gorm:"not null;default:0"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating a new test run
func (tr *TestRun) BeforeCreate(tx *gorm.DB) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	return nil
}

// Validate checks if the test run has valid required fields.
func (tr *TestRun) Validate() error {
	if tr.ScenarioName == "" {
		return ErrInvalidScenarioName
	}
	if !tr.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// Duration is the time between start and completion, or zero while the run
// is still open.
func (tr *TestRun) Duration() time.Duration {
	if tr.StartedAt == nil || tr.CompletedAt == nil {
		return 0
	}
	return tr.CompletedAt.Sub(*tr.StartedAt)
}

// Start sets the started_at timestamp and changes status to running.
// Returns an error if the test run has already been started.
func (tr *TestRun) Start(at time.Time) error {
	if tr.StartedAt != nil {
		return ErrTestRunAlreadyStarted
	}
	at = at.UTC()
	tr.StartedAt = &at
	tr.Status = StatusRunning
	return nil
}

// Complete sets the completed_at timestamp and final status.
// Returns an error if the test run is not currently running.
func (tr *TestRun) Complete(status Status, notes string, at time.Time) error {
	if tr.Status != StatusRunning {
		return ErrTestRunNotRunning
	}
	if !status.IsFinal() {
		return ErrInvalidStatus
	}
	at = at.UTC()
	tr.CompletedAt = &at
	tr.Status = status
	if notes != "" {
		tr.Notes = notes
	}
	return nil
}
