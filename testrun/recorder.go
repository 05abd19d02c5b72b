package testrun

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/scenario"
	"github.com/hairizuan-noorazman/ui-harness/step"
	"github.com/hairizuan-noorazman/ui-harness/storage"
)

// Recorder persists scenario runs as they progress. Store failures are logged
// and collected; they never fail the run being recorded.
type Recorder struct {
	runs   Store
	steps  StepResultStore
	assets AssetStore
	logger logger.Logger

	mu   sync.Mutex
	ids  map[string]uuid.UUID
	errs *multierror.Error
}

// NewRecorder creates a recorder writing to the given stores.
func NewRecorder(runs Store, steps StepResultStore, assets AssetStore, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	return &Recorder{
		runs:   runs,
		steps:  steps,
		assets: assets,
		logger: log,
		ids:    map[string]uuid.UUID{},
	}
}

var _ scenario.Observer = (*Recorder)(nil)

// RunStarted creates and starts the run record.
func (r *Recorder) RunStarted(ctx context.Context, run scenario.RunInfo) {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		id = uuid.New()
	}

	tr := &TestRun{
		ID:           id,
		ScenarioName: run.Scenario,
		SessionID:    run.SessionID,
		Status:       StatusPending,
		StepCount:    run.Steps,
	}
	if err := r.runs.Create(ctx, tr); err != nil {
		r.fail(ctx, "create run", run.ID, err)
		return
	}

	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	if err := r.runs.Start(ctx, id, startedAt); err != nil {
		r.fail(ctx, "start run", run.ID, err)
		return
	}

	r.mu.Lock()
	r.ids[run.ID] = id
	r.mu.Unlock()
}

// StepFinished stores the step result.
func (r *Recorder) StepFinished(ctx context.Context, runID string, res step.Result) {
	id, ok := r.lookup(runID)
	if !ok {
		return
	}
	if err := r.steps.Upsert(ctx, NewStepResult(id, res)); err != nil {
		r.fail(ctx, fmt.Sprintf("record step %d", res.Index), runID, err)
	}
}

// ArtifactSaved stores the asset row.
func (r *Recorder) ArtifactSaved(ctx context.Context, runID string, art storage.Artifact) {
	id, ok := r.lookup(runID)
	if !ok {
		return
	}
	if err := r.assets.Create(ctx, NewAsset(id, art)); err != nil {
		r.fail(ctx, "record asset", runID, err)
	}
}

// RunFinished completes the run record with the final status.
func (r *Recorder) RunFinished(ctx context.Context, rep *scenario.Report) {
	id, ok := r.lookup(rep.RunID)
	if !ok {
		return
	}

	notes := ""
	if rep.Err != nil {
		notes = rep.Err.Error()
	}
	if err := r.runs.Update(ctx, id, SetStepCount(len(rep.Steps))); err != nil {
		r.fail(ctx, "update run", rep.RunID, err)
	}
	if err := r.runs.Complete(ctx, id, FromStep(rep.Status), notes, rep.StartedAt.Add(rep.Duration)); err != nil {
		r.fail(ctx, "complete run", rep.RunID, err)
	}

	r.mu.Lock()
	delete(r.ids, rep.RunID)
	r.mu.Unlock()
}

// Err returns every store failure seen so far, or nil.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs.ErrorOrNil()
}

func (r *Recorder) lookup(runID string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ids[runID]
	return id, ok
}

func (r *Recorder) fail(ctx context.Context, what, runID string, err error) {
	r.logger.Warn(ctx, "failed to record run history", map[string]interface{}{
		"operation": what,
		"run_id":    runID,
		"error":     err.Error(),
	})
	r.mu.Lock()
	r.errs = multierror.Append(r.errs, fmt.Errorf("%s: %w", what, err))
	r.mu.Unlock()
}
