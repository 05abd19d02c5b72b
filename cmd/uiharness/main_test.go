package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/ui-harness/config"
	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/scenario"
	"github.com/hairizuan-noorazman/ui-harness/secret"
	"github.com/hairizuan-noorazman/ui-harness/step"
	"github.com/hairizuan-noorazman/ui-harness/storage"
	"github.com/hairizuan-noorazman/ui-harness/suite"
	"github.com/hairizuan-noorazman/ui-harness/testrun"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	flagConfig, flagJSON = "", false

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "uiharness dev")
}

func TestSecretEncryptCommand(t *testing.T) {
	t.Setenv(config.SecretKeyEnv, "correct horse")

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{name: "argument", args: []string{"secret", "encrypt", "hunter2"}},
		{name: "stdin", stdin: "hunter2\n", args: []string{"secret", "encrypt"}},
	}

	key, err := secret.DeriveKey("correct horse")
	require.NoError(t, err)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := execute(t, tc.stdin, tc.args...)
			require.NoError(t, err)

			sealed := strings.TrimSpace(out)
			require.True(t, secret.IsEncrypted(sealed), sealed)
			plain, err := secret.Decrypt(key, sealed)
			require.NoError(t, err)
			assert.Equal(t, "hunter2", plain)
		})
	}
}

func TestSecretEncryptCommand_NoPassphrase(t *testing.T) {
	t.Setenv(config.SecretKeyEnv, "")
	_, err := execute(t, "", "secret", "encrypt", "hunter2")
	assert.ErrorIs(t, err, secret.ErrEmptyPassphrase)
}

func TestValidateCommand_MissingConfiguration(t *testing.T) {
	_, err := execute(t, "", "validate", "--config", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, config.ErrConfigurationNotFound)
}

func TestNarrator(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	n := newNarrator(&out)
	ctx := context.Background()

	n.RunStarted(ctx, scenario.RunInfo{ID: "r1", Scenario: "login", Steps: 3})
	n.StepFinished(ctx, "r1", step.Result{Name: "open login page", Status: step.StatusPassed, Duration: 120 * time.Millisecond})
	n.StepFinished(ctx, "r1", step.Result{
		Name: "fill email", Status: step.StatusFailed,
		Kind: step.ErrElementNotFound, Err: errors.New("type fill email: element not found"),
	})
	n.ArtifactSaved(ctx, "r1", storage.Artifact{Kind: storage.KindScreenshot, Path: "runs/r1/screenshots/failure.png"})
	n.ArtifactSaved(ctx, "r1", storage.Artifact{Kind: storage.KindDump, Path: "runs/r1/dumps/failure.json"})
	n.ArtifactSaved(ctx, "r1", storage.Artifact{Kind: storage.KindLog, Path: "runs/r1/logs/run.log"})
	n.StepFinished(ctx, "r1", step.Result{Name: "submit login", Status: step.StatusSkipped})
	n.RunFinished(ctx, &scenario.Report{
		Status: step.StatusFailed,
		Steps: []step.Result{
			{Status: step.StatusPassed}, {Status: step.StatusFailed}, {Status: step.StatusSkipped},
		},
	})

	text := out.String()
	assert.Contains(t, text, "▶ login")
	assert.Contains(t, text, "✓ open login page 120ms")
	assert.Contains(t, text, "✗ fill email")
	assert.Contains(t, text, "element_not_found type fill email: element not found")
	assert.Contains(t, text, "screenshot: runs/r1/screenshots/failure.png")
	assert.Contains(t, text, "dump: runs/r1/dumps/failure.json")
	assert.NotContains(t, text, "run.log")
	assert.Contains(t, text, "- submit login skipped")
	assert.Contains(t, text, "FAILED 1 passed, 1 failed, 1 skipped")

	out.Reset()
	n.suiteSummary(&suite.Report{Name: "smoke", Status: step.StatusFailed, Skipped: []string{"volumes"}})
	assert.Contains(t, out.String(), "- volumes not run")
	assert.Contains(t, out.String(), "SUITE FAILED smoke: 0 run, 1 skipped")
}

func TestReportView(t *testing.T) {
	rep := &scenario.Report{
		RunID:  "r1",
		Status: step.StatusFailed,
		Err:    errors.New("boom"),
		Steps: []step.Result{{
			Index: 0, Action: "click", Status: step.StatusFailed,
			Kind: step.ErrElementNotFound, Err: errors.New("boom"), Duration: 2 * time.Second,
		}},
	}
	v := reportView(rep)
	assert.Equal(t, "boom", v.Error)
	require.Len(t, v.Steps, 1)
	assert.Equal(t, "element_not_found", v.Steps[0].ErrorKind)
	assert.Equal(t, int64(2000), v.Steps[0].DurationMS)
}

func TestRouter(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.FromMap(map[string]interface{}{
		"database": map[string]interface{}{"path": filepath.Join(dir, "uiharness.db")},
	})
	require.NoError(t, err)

	h, err := openHistory(cfg.Settings(), logger.Nop())
	require.NoError(t, err)
	defer h.Close()

	blobs, err := storage.NewLocalStorage(filepath.Join(dir, "screenshots"))
	require.NoError(t, err)
	router, err := newRouter(h, blobs, logger.NewTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	started := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	tr := &testrun.TestRun{ScenarioName: "login"}
	require.NoError(t, h.runs.Create(ctx, tr))
	require.NoError(t, h.runs.Start(ctx, tr.ID, started))
	require.NoError(t, h.runs.Complete(ctx, tr.ID, testrun.StatusPassed, "", started.Add(3*time.Second)))

	for _, path := range []string{"/health", "/api/v1/runs", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `uiharness_last_run_success{scenario="login"} 1`)
	assert.Contains(t, rec.Body.String(), `uiharness_last_run_duration_seconds{scenario="login"} 3`)

	_, err = os.Stat(filepath.Join(dir, "uiharness.db"))
	assert.NoError(t, err)
}

func TestRunsListCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, config.FileName)
	doc := `{"baseUrl": "http://console.test", "database": {"path": "` + filepath.ToSlash(filepath.Join(dir, "uiharness.db")) + `"}}`
	require.NoError(t, os.WriteFile(configPath, []byte(doc), 0644))

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	h, err := openHistory(cfg.Settings(), logger.Nop())
	require.NoError(t, err)
	require.NoError(t, h.runs.Create(context.Background(), &testrun.TestRun{ScenarioName: "create machine", Status: testrun.StatusPassed}))
	require.NoError(t, h.Close())

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "table", args: []string{"runs", "list", "--config", configPath}, want: []string{"SCENARIO", "create machine", "passed"}},
		{name: "json", args: []string{"runs", "list", "--json", "--config", configPath}, want: []string{`"scenario_name": "create machine"`}},
		{name: "filtered out", args: []string{"runs", "list", "--status", "failed", "--config", configPath}, want: []string{"SCENARIO"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := execute(t, "", tc.args...)
			require.NoError(t, err)
			for _, w := range tc.want {
				assert.Contains(t, out, w)
			}
		})
	}

	_, err = execute(t, "", "runs", "list", "--status", "bogus", "--config", configPath)
	assert.ErrorIs(t, err, testrun.ErrInvalidStatus)
}

func TestRunsPruneCommand(t *testing.T) {
	dir := t.TempDir()
	shots := filepath.Join(dir, "screenshots")
	configPath := filepath.Join(dir, config.FileName)
	doc := `{"baseUrl": "http://console.test", "logging": {"level": "error"}, "screenshots": {"path": "` + filepath.ToSlash(shots) + `"}, "database": {"path": "` + filepath.ToSlash(filepath.Join(dir, "uiharness.db")) + `"}}`
	require.NoError(t, os.WriteFile(configPath, []byte(doc), 0644))

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	h, err := openHistory(cfg.Settings(), logger.Nop())
	require.NoError(t, err)
	blobs, err := storage.NewLocalStorage(shots)
	require.NoError(t, err)

	ctx := context.Background()
	record := func(name string, completed time.Time) *testrun.TestRun {
		tr := &testrun.TestRun{ScenarioName: name}
		require.NoError(t, h.runs.Create(ctx, tr))
		require.NoError(t, h.runs.Start(ctx, tr.ID, completed.Add(-time.Second)))
		require.NoError(t, h.runs.Complete(ctx, tr.ID, testrun.StatusFailed, "", completed))

		arts := storage.NewArtifacts(blobs, tr.ID.String())
		arts.OnSaved = func(ctx context.Context, a storage.Artifact) {
			require.NoError(t, h.assets.Create(ctx, testrun.NewAsset(tr.ID, a)))
		}
		arts.SetStep(1)
		_, err := arts.SaveScreenshot(ctx, "failure_01_open", []byte("png"))
		require.NoError(t, err)
		return tr
	}
	old := record("login", time.Now().Add(-90*24*time.Hour))
	recent := record("login", time.Now().Add(-time.Hour))
	require.NoError(t, h.Close())

	out, err := execute(t, "", "runs", "prune", "--older-than", "720h", "--dry-run", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Would delete 1 runs")
	_, err = os.Stat(filepath.Join(shots, "runs", old.ID.String(), "screenshots", "failure_01_open.png"))
	assert.NoError(t, err)

	out, err = execute(t, "", "runs", "prune", "--older-than", "720h", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 runs, 0 step results, 1 artifacts (1 files)")

	_, err = os.Stat(filepath.Join(shots, "runs", old.ID.String(), "screenshots", "failure_01_open.png"))
	assert.True(t, os.IsNotExist(err), "%v", err)
	_, err = os.Stat(filepath.Join(shots, "runs", recent.ID.String(), "screenshots", "failure_01_open.png"))
	assert.NoError(t, err)

	h, err = openHistory(cfg.Settings(), logger.Nop())
	require.NoError(t, err)
	defer h.Close()
	_, err = h.runs.GetByID(ctx, old.ID)
	assert.ErrorIs(t, err, testrun.ErrTestRunNotFound)
	_, err = h.runs.GetByID(ctx, recent.ID)
	assert.NoError(t, err)

	_, err = execute(t, "", "runs", "prune", "--status", "running", "--config", configPath)
	assert.ErrorIs(t, err, testrun.ErrInvalidStatus)
}
