package testrun

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hairizuan-noorazman/ui-harness/step"
)

func TestStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   bool
	}{
		{"pending is valid", StatusPending, true},
		{"running is valid", StatusRunning, true},
		{"passed is valid", StatusPassed, true},
		{"failed is valid", StatusFailed, true},
		{"skipped is valid", StatusSkipped, true},
		{"invalid status", Status("invalid"), false},
		{"empty status", Status(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsValid())
		})
	}
}

func TestStatus_IsFinal(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   bool
	}{
		{"passed is final", StatusPassed, true},
		{"failed is final", StatusFailed, true},
		{"skipped is final", StatusSkipped, true},
		{"pending is not final", StatusPending, false},
		{"running is not final", StatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsFinal())
		})
	}
}

func TestFromStep(t *testing.T) {
	assert.Equal(t, StatusPassed, FromStep(step.StatusPassed))
	assert.Equal(t, StatusFailed, FromStep(step.StatusFailed))
	assert.Equal(t, StatusSkipped, FromStep(step.StatusSkipped))
	assert.Equal(t, StatusFailed, FromStep(step.Status("")))
}

func TestTestRun_Validate(t *testing.T) {
	tests := []struct {
		name    string
		testRun TestRun
		wantErr error
	}{
		{
			name:    "valid test run",
			testRun: TestRun{ScenarioName: "login", Status: StatusPending},
		},
		{
			name:    "missing scenario name",
			testRun: TestRun{Status: StatusPending},
			wantErr: ErrInvalidScenarioName,
		},
		{
			name:    "invalid status",
			testRun: TestRun{ScenarioName: "login", Status: Status("invalid")},
			wantErr: ErrInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.testRun.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTestRun_Start(t *testing.T) {
	t.Run("successfully start test run", func(t *testing.T) {
		tr := &TestRun{ScenarioName: "login", Status: StatusPending}

		now := time.Now()
		err := tr.Start(now)
		assert.NoError(t, err)
		assert.NotNil(t, tr.StartedAt)
		assert.Equal(t, StatusRunning, tr.Status)
		assert.WithinDuration(t, now, *tr.StartedAt, time.Millisecond)
	})

	t.Run("cannot start already started test run", func(t *testing.T) {
		now := time.Now()
		tr := &TestRun{ScenarioName: "login", Status: StatusRunning, StartedAt: &now}

		err := tr.Start(now.Add(time.Minute))
		assert.ErrorIs(t, err, ErrTestRunAlreadyStarted)
		assert.Equal(t, now, *tr.StartedAt)
	})
}

func TestTestRun_Complete(t *testing.T) {
	running := func() *TestRun {
		now := time.Now()
		return &TestRun{ScenarioName: "login", Status: StatusRunning, StartedAt: &now}
	}

	t.Run("successfully complete test run with passed", func(t *testing.T) {
		tr := running()
		err := tr.Complete(StatusPassed, "all steps passed", tr.StartedAt.Add(2*time.Second))
		assert.NoError(t, err)
		assert.NotNil(t, tr.CompletedAt)
		assert.Equal(t, StatusPassed, tr.Status)
		assert.Equal(t, "all steps passed", tr.Notes)
		assert.Equal(t, 2*time.Second, tr.Duration())
	})

	t.Run("cannot complete non-running test run", func(t *testing.T) {
		tr := &TestRun{ScenarioName: "login", Status: StatusPending}
		err := tr.Complete(StatusPassed, "", time.Now())
		assert.ErrorIs(t, err, ErrTestRunNotRunning)
		assert.Zero(t, tr.Duration())
	})

	t.Run("cannot complete with non-final status", func(t *testing.T) {
		tr := running()
		assert.ErrorIs(t, tr.Complete(StatusPending, "", time.Now()), ErrInvalidStatus)
		assert.ErrorIs(t, tr.Complete(StatusRunning, "", time.Now()), ErrInvalidStatus)
	})

	t.Run("complete without notes", func(t *testing.T) {
		tr := running()
		assert.NoError(t, tr.Complete(StatusSkipped, "", time.Now()))
		assert.Equal(t, StatusSkipped, tr.Status)
		assert.Empty(t, tr.Notes)
	})
}

func TestNewStepResult(t *testing.T) {
	runID := newID()
	res := step.Result{
		Index:    2,
		Name:     "submit login",
		Action:   "wait_response",
		Status:   step.StatusFailed,
		Kind:     step.ErrResponseTimeout,
		Err:      errors.New("no response"),
		Duration: 1500 * time.Millisecond,
	}

	sr := NewStepResult(runID, res)
	assert.Equal(t, runID, sr.TestRunID)
	assert.Equal(t, 2, sr.StepIndex)
	assert.Equal(t, StatusFailed, sr.Status)
	assert.Equal(t, "response_timeout", sr.ErrorKind)
	assert.Equal(t, "no response", sr.Message)
	assert.Equal(t, int64(1500), sr.DurationMS)
	assert.NoError(t, sr.Validate())

	sr.Action = ""
	assert.ErrorIs(t, sr.Validate(), ErrInvalidAction)
}
