package testrun

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/scenario"
	"github.com/hairizuan-noorazman/ui-harness/step"
	"github.com/hairizuan-noorazman/ui-harness/storage"
)

func TestRecorder_RecordsRun(t *testing.T) {
	_, runs, steps, assets := setupTestStores(t)
	ctx := context.Background()
	rec := NewRecorder(runs, steps, assets, logger.NewTestLogger())

	runID := uuid.NewString()
	started := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	rec.RunStarted(ctx, scenario.RunInfo{ID: runID, Scenario: "login", SessionID: "s-1", StartedAt: started, Steps: 2})
	rec.StepFinished(ctx, runID, step.Result{Index: 0, Name: "fill email", Action: "type", Status: step.StatusPassed})
	rec.ArtifactSaved(ctx, runID, storage.Artifact{
		Kind: storage.KindScreenshot, Name: "failure_02_fill_password.png",
		Path: "runs/" + runID + "/screenshots/failure_02_fill_password.png", Size: 10, ContentType: "image/png",
		Step: 2,
	})
	rec.StepFinished(ctx, runID, step.Result{
		Index: 1, Name: "fill password", Action: "type", Status: step.StatusFailed,
		Kind: step.ErrElementNotFound, Err: errors.New("type fill password: element not found"),
	})
	rec.RunFinished(ctx, &scenario.Report{
		RunID:     runID,
		Scenario:  "login",
		Status:    step.StatusFailed,
		Steps:     make([]step.Result, 2),
		StartedAt: started,
		Duration:  4 * time.Second,
		Err:       errors.New("type fill password: element not found"),
	})
	require.NoError(t, rec.Err())

	id := uuid.MustParse(runID)
	tr, err := runs.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, tr.Status)
	assert.Equal(t, "s-1", tr.SessionID)
	assert.Equal(t, 2, tr.StepCount)
	assert.Equal(t, "type fill password: element not found", tr.Notes)
	assert.Equal(t, 4*time.Second, tr.Duration())

	results, err := steps.ListByTestRun(ctx, id)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "element_not_found", results[1].ErrorKind)

	list, err := assets.ListByTestRun(ctx, id, AssetFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, AssetTypeScreenshot, list[0].AssetType)
	require.NotNil(t, list[0].StepIndex)
	assert.Equal(t, results[1].StepIndex, *list[0].StepIndex)
	assert.True(t, list[0].IsFailureCapture())
}

func TestRecorder_IgnoresUnknownRuns(t *testing.T) {
	_, runs, steps, assets := setupTestStores(t)
	ctx := context.Background()
	rec := NewRecorder(runs, steps, assets, nil)

	rec.StepFinished(ctx, "never-started", step.Result{Action: "click", Status: step.StatusPassed})
	rec.RunFinished(ctx, &scenario.Report{RunID: "never-started", Status: step.StatusPassed})
	assert.NoError(t, rec.Err())

	all, err := runs.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRecorder_CollectsStoreFailures(t *testing.T) {
	_, runs, steps, assets := setupTestStores(t)
	ctx := context.Background()
	log := logger.NewTestLogger()
	rec := NewRecorder(runs, steps, assets, log)

	runID := uuid.NewString()
	rec.RunStarted(ctx, scenario.RunInfo{ID: runID, Scenario: "upload"})
	rec.ArtifactSaved(ctx, runID, storage.Artifact{Kind: "bogus", Name: "x", Path: "x"})

	err := rec.Err()
	assert.ErrorIs(t, err, ErrInvalidAssetType)
	assert.Contains(t, log.Messages("warn"), "failed to record run history")
}
