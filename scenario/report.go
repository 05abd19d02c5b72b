package scenario

import (
	"context"
	"time"

	"github.com/hairizuan-noorazman/ui-harness/browser"
	"github.com/hairizuan-noorazman/ui-harness/step"
	"github.com/hairizuan-noorazman/ui-harness/storage"
)

// RunInfo identifies a run when it starts.
type RunInfo struct {
	ID        string
	Scenario  string
	SessionID string
	StartedAt time.Time
	Steps     int
}

// Observer is notified as a run progresses. Calls are made synchronously
// from the run's goroutine, in order.
type Observer interface {
	RunStarted(ctx context.Context, run RunInfo)
	StepFinished(ctx context.Context, runID string, result step.Result)
	ArtifactSaved(ctx context.Context, runID string, artifact storage.Artifact)
	RunFinished(ctx context.Context, report *Report)
}

// Report is the outcome of one scenario run.
type Report struct {
	RunID     string
	Scenario  string
	SessionID string
	Status    step.Status
	Steps     []step.Result
	StartedAt time.Time
	Duration  time.Duration
	// Err is the error of the step that failed the run.
	Err error
	// Screenshot is the diagnostic screenshot taken on failure.
	Screenshot string
	// Dump is the location of the page dump taken on failure.
	Dump string
	// Page is the page the last step drove: the popup after a login through
	// the header link. It is only usable while the handle it came from is
	// open, which for a shared session outlives the run.
	Page browser.Page
}

// Passed reports whether every required step passed.
func (r *Report) Passed() bool {
	return r.Status == step.StatusPassed
}

// ExitCode is 0 for a passed run and 1 otherwise.
func (r *Report) ExitCode() int {
	if r == nil || !r.Passed() {
		return 1
	}
	return 0
}

// FailedStep returns the step that failed the run.
func (r *Report) FailedStep() (step.Result, bool) {
	for _, res := range r.Steps {
		if res.Failed() {
			return res, true
		}
	}
	return step.Result{}, false
}

// Counts returns how many steps passed, failed and were skipped.
func (r *Report) Counts() (passed, failed, skipped int) {
	for _, res := range r.Steps {
		switch res.Status {
		case step.StatusPassed:
			passed++
		case step.StatusFailed:
			failed++
		case step.StatusSkipped:
			skipped++
		}
	}
	return passed, failed, skipped
}
