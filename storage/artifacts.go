package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Artifact kinds.
const (
	KindScreenshot = "screenshot"
	KindLog        = "log"
	KindVideo      = "video"
	KindDump       = "dump"
)

// Artifact describes one stored file.
type Artifact struct {
	Kind        string
	Name        string
	Path        string // key inside the BlobStorage
	Location    string // result of GetURL at save time
	Size        int64
	ContentType string
	// Step is the 1-based step the artifact was taken in, 0 for the run.
	Step int
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName turns a step name into a safe file name.
func SanitizeName(name string) string {
	name = strings.TrimSpace(filepath.Base(filepath.ToSlash(name)))
	name = unsafeName.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "artifact"
	}
	return name
}

// Artifacts stores the artifacts of one run under runs/<run-id>/.
type Artifacts struct {
	blobs BlobStorage
	runID string

	// OnSaved is called after each successful save.
	OnSaved func(ctx context.Context, a Artifact)

	mu    sync.Mutex
	step  int
	saved []Artifact
}

// NewArtifacts creates the artifact set for a run.
func NewArtifacts(blobs BlobStorage, runID string) *Artifacts {
	return &Artifacts{blobs: blobs, runID: runID}
}

// Prefix returns the storage prefix for this run.
func (a *Artifacts) Prefix() string {
	return path.Join("runs", a.runID)
}

// SetStep links artifacts saved from now on to the 1-based step n. Zero
// links them to the run.
func (a *Artifacts) SetStep(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.step = n
}

// SaveScreenshot stores PNG bytes as runs/<run-id>/screenshots/<name>.png.
func (a *Artifacts) SaveScreenshot(ctx context.Context, name string, data []byte) (string, error) {
	name = SanitizeName(name)
	if !strings.HasSuffix(strings.ToLower(name), ".png") {
		name += ".png"
	}
	art, err := a.save(ctx, KindScreenshot, name, path.Join(a.Prefix(), "screenshots", name), data, "image/png")
	if err != nil {
		return "", err
	}
	return art.Location, nil
}

// SaveDump stores a JSON page dump as runs/<run-id>/dumps/<name>.json.
func (a *Artifacts) SaveDump(ctx context.Context, name string, data []byte) (Artifact, error) {
	name = SanitizeName(name)
	if !strings.HasSuffix(strings.ToLower(name), ".json") {
		name += ".json"
	}
	return a.save(ctx, KindDump, name, path.Join(a.Prefix(), "dumps", name), data, "application/json")
}

// SaveFile copies a local file, such as the session log, into the run.
func (a *Artifacts) SaveFile(ctx context.Context, kind, localPath string) (Artifact, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	name := SanitizeName(filepath.Base(localPath))
	contentType := "application/octet-stream"
	switch kind {
	case KindLog:
		contentType = "application/x-ndjson"
	case KindVideo:
		contentType = "video/webm"
	}
	return a.save(ctx, kind, name, path.Join(a.Prefix(), kind+"s", name), data, contentType)
}

func (a *Artifacts) save(ctx context.Context, kind, name, key string, data []byte, contentType string) (Artifact, error) {
	if err := a.blobs.Upload(ctx, key, bytes.NewReader(data)); err != nil {
		return Artifact{}, err
	}

	location, err := a.blobs.GetURL(ctx, key)
	if err != nil {
		location = key
	}

	art := Artifact{
		Kind:        kind,
		Name:        name,
		Path:        key,
		Location:    location,
		Size:        int64(len(data)),
		ContentType: contentType,
	}

	a.mu.Lock()
	art.Step = a.step
	a.saved = append(a.saved, art)
	hook := a.OnSaved
	a.mu.Unlock()

	if hook != nil {
		hook(ctx, art)
	}
	return art, nil
}

// Saved returns everything stored so far.
func (a *Artifacts) Saved() []Artifact {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Artifact(nil), a.saved...)
}
