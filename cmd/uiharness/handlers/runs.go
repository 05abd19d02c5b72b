package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/storage"
	"github.com/hairizuan-noorazman/ui-harness/testrun"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// RunHandler serves the recorded run history read-only.
type RunHandler struct {
	runStore   testrun.Store
	stepStore  testrun.StepResultStore
	assetStore testrun.AssetStore
	storage    storage.BlobStorage
	logger     logger.Logger
}

// NewRunHandler creates a new run handler.
func NewRunHandler(runs testrun.Store, steps testrun.StepResultStore, assets testrun.AssetStore, blobs storage.BlobStorage, log logger.Logger) *RunHandler {
	return &RunHandler{
		runStore:   runs,
		stepStore:  steps,
		assetStore: assets,
		storage:    blobs,
		logger:     log,
	}
}

// Routes registers the run endpoints under /api/v1.
func (h *RunHandler) Routes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/runs", h.List).Methods(http.MethodGet)
	api.HandleFunc("/runs/{run_id}", h.GetByID).Methods(http.MethodGet)
	api.HandleFunc("/runs/{run_id}/steps", h.ListSteps).Methods(http.MethodGet)
	api.HandleFunc("/runs/{run_id}/assets", h.ListAssets).Methods(http.MethodGet)
	api.HandleFunc("/assets/{asset_id}/download", h.DownloadAsset).Methods(http.MethodGet)
}

// List handles listing runs. Filters: scenario, session, status.
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, defaultListLimit, maxListLimit)
	q := r.URL.Query()

	opts := testrun.ListOptions{
		ScenarioName: q.Get("scenario"),
		SessionID:    q.Get("session"),
		Limit:        limit,
		Offset:       offset,
	}
	if s := q.Get("status"); s != "" {
		opts.Status = testrun.Status(s)
		if !opts.Status.IsValid() {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", s))
			return
		}
	}

	runs, err := h.runStore.List(r.Context(), opts)
	if err != nil {
		h.logger.Error(r.Context(), "failed to list test runs", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to list test runs")
		return
	}

	total, err := h.runStore.Count(r.Context(), opts)
	if err != nil {
		h.logger.Error(r.Context(), "failed to count test runs", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to list test runs")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(runs, int(total), limit, offset))
}

// GetByID handles getting a single run by ID.
func (h *RunHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "run_id", "test run")
	if !ok {
		return
	}

	tr, err := h.runStore.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, testrun.ErrTestRunNotFound) {
			respondError(w, http.StatusNotFound, "test run not found")
			return
		}
		h.logger.Error(r.Context(), "failed to get test run", map[string]interface{}{
			"error":       err.Error(),
			"test_run_id": id,
		})
		respondError(w, http.StatusInternalServerError, "failed to get test run")
		return
	}

	respondJSON(w, http.StatusOK, tr)
}

// ListSteps handles listing the step results of a run in step order.
func (h *RunHandler) ListSteps(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "run_id", "test run")
	if !ok {
		return
	}
	if !h.runExists(w, r, id) {
		return
	}

	steps, err := h.stepStore.ListByTestRun(r.Context(), id)
	if err != nil {
		h.logger.Error(r.Context(), "failed to list step results", map[string]interface{}{
			"error":       err.Error(),
			"test_run_id": id,
		})
		respondError(w, http.StatusInternalServerError, "failed to list step results")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(steps, len(steps), len(steps), 0))
}

// ListAssets handles listing the artifacts of a run. Filters: type (repeatable)
// and step, the 0-based step index.
func (h *RunHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "run_id", "test run")
	if !ok {
		return
	}

	var filter testrun.AssetFilter
	q := r.URL.Query()
	for _, t := range q["type"] {
		at := testrun.AssetType(t)
		if !at.IsValid() {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid asset type %q", t))
			return
		}
		filter.Types = append(filter.Types, at)
	}
	if s := q.Get("step"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid step %q", s))
			return
		}
		filter.Step = &n
	}

	if !h.runExists(w, r, id) {
		return
	}

	assets, err := h.assetStore.ListByTestRun(r.Context(), id, filter)
	if err != nil {
		h.logger.Error(r.Context(), "failed to list assets", map[string]interface{}{
			"error":       err.Error(),
			"test_run_id": id,
		})
		respondError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(assets, len(assets), len(assets), 0))
}

// DownloadAsset streams a stored artifact.
func (h *RunHandler) DownloadAsset(w http.ResponseWriter, r *http.Request) {
	assetID, ok := parseUUIDOrRespond(w, r, "asset_id", "asset")
	if !ok {
		return
	}

	asset, err := h.assetStore.GetByID(r.Context(), assetID)
	if err != nil {
		if errors.Is(err, testrun.ErrAssetNotFound) {
			respondError(w, http.StatusNotFound, "asset not found")
			return
		}
		h.logger.Error(r.Context(), "failed to get asset", map[string]interface{}{
			"error":    err.Error(),
			"asset_id": assetID,
		})
		respondError(w, http.StatusInternalServerError, "failed to get asset")
		return
	}

	reader, err := h.storage.Download(r.Context(), asset.AssetPath)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			respondError(w, http.StatusNotFound, "file not found in storage")
			return
		}
		h.logger.Error(r.Context(), "failed to download from storage", map[string]interface{}{
			"error": err.Error(),
			"path":  asset.AssetPath,
		})
		respondError(w, http.StatusInternalServerError, "failed to download file")
		return
	}
	defer reader.Close()

	contentType := asset.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", asset.FileName))
	if asset.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(asset.FileSize, 10))
	}

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error(r.Context(), "failed to stream file", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *RunHandler) runExists(w http.ResponseWriter, r *http.Request, id uuid.UUID) bool {
	if _, err := h.runStore.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, testrun.ErrTestRunNotFound) {
			respondError(w, http.StatusNotFound, "test run not found")
			return false
		}
		h.logger.Error(r.Context(), "failed to get test run", map[string]interface{}{
			"error":       err.Error(),
			"test_run_id": id,
		})
		respondError(w, http.StatusInternalServerError, "failed to get test run")
		return false
	}
	return true
}
