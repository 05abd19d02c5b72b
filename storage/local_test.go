package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newLocal(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	baseDir := t.TempDir()
	storage, err := NewLocalStorage(baseDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage, baseDir
}

func TestNewLocalStorage(t *testing.T) {
	tests := []struct {
		name      string
		baseDir   string
		wantError bool
	}{
		{name: "existing directory", baseDir: t.TempDir()},
		{name: "creates missing screenshot directory", baseDir: filepath.Join(t.TempDir(), "artifacts", "screenshots")},
		{name: "empty", baseDir: "", wantError: true},
		{name: "dot", baseDir: ".", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, err := NewLocalStorage(tt.baseDir)
			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if info, err := os.Stat(storage.BaseDir()); err != nil || !info.IsDir() {
				t.Errorf("base directory was not created: %v", err)
			}
		})
	}
}

func TestLocalStorage_Upload(t *testing.T) {
	ctx := context.Background()
	storage, baseDir := newLocal(t)

	tests := []struct {
		name      string
		path      string
		content   string
		wantError bool
	}{
		{name: "screenshot", path: "runs/r1/screenshots/login.png", content: "png"},
		{name: "log", path: "runs/r1/logs/run.log", content: `{"msg":"step started"}`},
		{name: "overwrite", path: "runs/r1/logs/run.log", content: "second"},
		{name: "empty path", path: "", wantError: true},
		{name: "traversal", path: "../outside.png", wantError: true},
		{name: "nested traversal", path: "runs/../../outside.png", wantError: true},
		{name: "base directory itself", path: ".", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storage.Upload(ctx, tt.path, strings.NewReader(tt.content))
			if tt.wantError {
				if !errors.Is(err, ErrInvalidPath) {
					t.Errorf("expected ErrInvalidPath but got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			content, err := os.ReadFile(filepath.Join(baseDir, tt.path))
			if err != nil {
				t.Fatalf("failed to read uploaded file: %v", err)
			}
			if string(content) != tt.content {
				t.Errorf("content mismatch: got %q, want %q", string(content), tt.content)
			}
		})
	}

	entries, err := os.ReadDir(filepath.Join(baseDir, "runs", "r1", "logs"))
	if err != nil {
		t.Fatalf("failed to list directory: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %d entries", len(entries))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestLocalStorage_UploadFailureLeavesNothing(t *testing.T) {
	ctx := context.Background()
	storage, baseDir := newLocal(t)

	if err := storage.Upload(ctx, "runs/r1/screenshots/broken.png", failingReader{}); err == nil {
		t.Fatal("expected error but got none")
	}

	entries, err := os.ReadDir(filepath.Join(baseDir, "runs", "r1", "screenshots"))
	if err != nil {
		t.Fatalf("failed to list directory: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files, found %d", len(entries))
	}
}

func TestLocalStorage_DownloadDeleteExists(t *testing.T) {
	ctx := context.Background()
	storage, _ := newLocal(t)
	path := "runs/r2/screenshots/dashboard.png"

	if err := storage.Upload(ctx, path, strings.NewReader("dashboard")); err != nil {
		t.Fatalf("failed to upload: %v", err)
	}

	reader, err := storage.Download(ctx, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content, err := io.ReadAll(reader)
	reader.Close()
	if err != nil || string(content) != "dashboard" {
		t.Errorf("download mismatch: %q, %v", content, err)
	}

	url, err := storage.GetURL(ctx, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(url, filepath.FromSlash(path)) {
		t.Errorf("unexpected url %q", url)
	}

	if exists, err := storage.Exists(ctx, path); err != nil || !exists {
		t.Errorf("expected file to exist: %v", err)
	}

	if err := storage.Delete(ctx, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exists, _ := storage.Exists(ctx, path); exists {
		t.Error("file should not exist after deletion")
	}
	if _, err := storage.Download(ctx, path); err != ErrFileNotFound {
		t.Errorf("expected ErrFileNotFound but got: %v", err)
	}
	if err := storage.Delete(ctx, path); err != ErrFileNotFound {
		t.Errorf("expected ErrFileNotFound but got: %v", err)
	}
	if _, err := storage.GetURL(ctx, path); err != ErrFileNotFound {
		t.Errorf("expected ErrFileNotFound but got: %v", err)
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		cfg       Config
		wantError bool
	}{
		{name: "local", cfg: Config{Type: "local", BaseDir: t.TempDir()}},
		{name: "default type is local", cfg: Config{BaseDir: t.TempDir()}},
		{name: "local without dir", cfg: Config{Type: "local"}, wantError: true},
		{name: "s3 without bucket", cfg: Config{Type: "s3", S3Region: "us-east-1"}, wantError: true},
		{name: "unknown", cfg: Config{Type: "gcs"}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(ctx, tt.cfg)
			if tt.wantError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
