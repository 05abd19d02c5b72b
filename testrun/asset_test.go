package testrun

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hairizuan-noorazman/ui-harness/storage"
)

func TestAssetType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		assetType AssetType
		want      bool
	}{
		{"screenshot is valid", AssetTypeScreenshot, true},
		{"dump is valid", AssetTypeDump, true},
		{"log is valid", AssetTypeLog, true},
		{"video is valid", AssetTypeVideo, true},
		{"invalid type", AssetType("invalid"), false},
		{"empty type", AssetType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.assetType.IsValid())
		})
	}
}

func TestTestRunAsset_Validate(t *testing.T) {
	runID := newID()
	tests := []struct {
		name    string
		asset   TestRunAsset
		wantErr error
	}{
		{
			name:  "valid asset",
			asset: *createTestAsset(runID, AssetTypeScreenshot, "runs/r/screenshots/a.png", "a.png", 1024),
		},
		{
			name:    "missing test_run_id",
			asset:   TestRunAsset{AssetType: AssetTypeScreenshot, AssetPath: "a.png", FileName: "a.png"},
			wantErr: ErrInvalidTestRunID,
		},
		{
			name:    "invalid asset type",
			asset:   TestRunAsset{TestRunID: runID, AssetType: AssetType("invalid"), AssetPath: "a.png", FileName: "a.png"},
			wantErr: ErrInvalidAssetType,
		},
		{
			name:    "missing asset path",
			asset:   TestRunAsset{TestRunID: runID, AssetType: AssetTypeScreenshot, FileName: "a.png"},
			wantErr: ErrInvalidAssetPath,
		},
		{
			name:    "missing file name",
			asset:   TestRunAsset{TestRunID: runID, AssetType: AssetTypeScreenshot, AssetPath: "a.png"},
			wantErr: ErrInvalidFileName,
		},
		{
			name:    "negative step index",
			asset:   TestRunAsset{TestRunID: runID, StepIndex: intPtr(-1), AssetType: AssetTypeDump, AssetPath: "a.json", FileName: "a.json"},
			wantErr: ErrInvalidStepIndex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.asset.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewAsset(t *testing.T) {
	runID := newID()
	a := NewAsset(runID, storage.Artifact{
		Kind:        storage.KindLog,
		Name:        "run.log",
		Path:        "runs/r/logs/run.log",
		Location:    "/tmp/runs/r/logs/run.log",
		Size:        42,
		ContentType: "application/x-ndjson",
	})

	assert.Equal(t, AssetTypeLog, a.AssetType)
	assert.Equal(t, "run.log", a.FileName)
	assert.Equal(t, int64(42), a.FileSize)
	assert.Equal(t, "/tmp/runs/r/logs/run.log", a.Location)
	assert.Nil(t, a.StepIndex)
	assert.False(t, a.IsFailureCapture())
	assert.NoError(t, a.Validate())
}

func TestNewAsset_LinksStep(t *testing.T) {
	tests := []struct {
		name        string
		art         storage.Artifact
		wantStep    *int
		wantFailure bool
	}{
		{
			name:        "failure dump of the third step",
			art:         storage.Artifact{Kind: storage.KindDump, Name: "failure_03_submit.json", Path: "runs/r/dumps/failure_03_submit.json", Step: 3},
			wantStep:    intPtr(2),
			wantFailure: true,
		},
		{
			name:     "screenshot step",
			art:      storage.Artifact{Kind: storage.KindScreenshot, Name: "login_success.png", Path: "runs/r/screenshots/login_success.png", Step: 1},
			wantStep: intPtr(0),
		},
		{
			name: "run level log",
			art:  storage.Artifact{Kind: storage.KindLog, Name: "run.log", Path: "runs/r/logs/run.log"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAsset(newID(), tt.art)
			assert.Equal(t, tt.wantStep, a.StepIndex)
			assert.Equal(t, tt.wantFailure, a.IsFailureCapture())
			assert.NoError(t, a.Validate())
		})
	}
}
