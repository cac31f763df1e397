package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bobarin/topicreel/internal/db"
	"github.com/bobarin/topicreel/internal/models"
	"github.com/bobarin/topicreel/internal/queue"
	"github.com/bobarin/topicreel/internal/storage"
	"github.com/bobarin/topicreel/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxTopicLength bounds the topic accepted from clients.
const maxTopicLength = 200

// signedURLTTL is how long download links stay valid.
const signedURLTTL = time.Hour

// Store is the slice of the database the API reads and writes.
type Store interface {
	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, status string, limit, offset int) ([]models.Run, error)
	CountRuns(ctx context.Context, status string) (int, error)
	CreateJob(ctx context.Context, job *models.Job) error
	GetRunJobs(ctx context.Context, runID uuid.UUID) ([]models.Job, error)
	GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	GetRunAssets(ctx context.Context, runID uuid.UUID) ([]models.Asset, error)
}

// Enqueuer hands runs to the worker.
type Enqueuer interface {
	EnqueueGenerateVideo(ctx context.Context, runID, jobID uuid.UUID, topic string) error
	GetQueueLength(ctx context.Context, queueName string) (int64, error)
}

type Handler struct {
	db        Store
	queue     Enqueuer
	publisher storage.Publisher // nil when renders stay on local disk
	settings  models.JSONB
}

// NewHandler creates the API handler. settings is the render configuration
// snapshot stored with every new run.
func NewHandler(database Store, q Enqueuer, publisher storage.Publisher, settings models.JSONB) *Handler {
	return &Handler{
		db:        database,
		queue:     q,
		publisher: publisher,
		settings:  settings,
	}
}

// CreateRun handles POST /v1/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validate
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		respondError(w, http.StatusBadRequest, "Topic is required")
		return
	}
	if len(topic) > maxTopicLength {
		respondError(w, http.StatusBadRequest, "Topic is too long")
		return
	}

	run := &models.Run{
		ID:       uuid.New(),
		Topic:    topic,
		Status:   models.RunStatusQueued,
		Settings: h.settings,
	}

	if err := h.db.CreateRun(r.Context(), run); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create run")
		return
	}

	// Create and enqueue job
	jobID := uuid.New()
	job := &models.Job{
		ID:     jobID,
		RunID:  run.ID,
		Type:   queue.JobTypeGenerateVideo,
		Status: models.JobStatusQueued,
	}

	if err := h.db.CreateJob(r.Context(), job); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	if err := h.queue.EnqueueGenerateVideo(r.Context(), run.ID, jobID, run.Topic); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateRunResponse{
		RunID:  run.ID,
		Status: run.Status,
	})
}

// ListRuns handles GET /v1/runs
// Query params:
//   - status: filter by run status
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" && !validStatus(models.RunStatus(statusFilter)) {
		respondError(w, http.StatusBadRequest, "Invalid status filter. Allowed: queued, scripting, voicing, fetching_visuals, rendering, completed, failed")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	total, err := h.db.CountRuns(r.Context(), statusFilter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to count runs")
		return
	}

	runs, err := h.db.ListRuns(r.Context(), statusFilter, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	summaries := make([]models.RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, models.RunSummary{
			ID:            run.ID,
			Topic:         run.Topic,
			Status:        run.Status,
			Progress:      run.Progress,
			DurationMs:    run.DurationMs,
			ThumbnailURL:  h.assetURL(r.Context(), run.ThumbnailAssetID),
			FinalVideoURL: h.assetURL(r.Context(), run.FinalVideoAssetID),
			ErrorCode:     run.ErrorCode,
			ErrorMessage:  run.ErrorMessage,
			CreatedAt:     run.CreatedAt,
			UpdatedAt:     run.UpdatedAt,
		})
	}

	respondJSON(w, http.StatusOK, models.ListRunsResponse{
		Runs:   summaries,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetRun handles GET /v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, models.RunResponse{
		Run:           *run,
		FinalVideoURL: h.assetURL(r.Context(), run.FinalVideoAssetID),
		ThumbnailURL:  h.assetURL(r.Context(), run.ThumbnailAssetID),
	})
}

// GetRunDownload handles GET /v1/runs/{id}/download
// ?asset=thumbnail selects the thumbnail instead of the video.
func (h *Handler) GetRunDownload(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	assetID := run.FinalVideoAssetID
	if r.URL.Query().Get("asset") == "thumbnail" {
		assetID = run.ThumbnailAssetID
	}
	if assetID == nil {
		respondError(w, http.StatusNotFound, "Asset not ready")
		return
	}

	asset, err := h.db.GetAsset(r.Context(), *assetID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Asset not found")
		return
	}

	if asset.StorageBucket == worker.LocalBucket {
		http.ServeFile(w, r, asset.StoragePath)
		return
	}
	if h.publisher == nil {
		respondError(w, http.StatusServiceUnavailable, "Storage is not configured")
		return
	}

	signedURL, err := h.publisher.SignedURL(r.Context(), asset.StoragePath, signedURLTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate download URL")
		return
	}

	http.Redirect(w, r, signedURL, http.StatusTemporaryRedirect)
}

// GetRunJobs handles GET /v1/runs/{id}/jobs
func (h *Handler) GetRunJobs(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid run ID")
		return
	}

	jobs, err := h.db.GetRunJobs(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get jobs")
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}

	respondJSON(w, http.StatusOK, jobs)
}

// GetRunAssets handles GET /v1/runs/{id}/assets
func (h *Handler) GetRunAssets(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	assets, err := h.db.GetRunAssets(r.Context(), run.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get assets")
		return
	}

	resp := make([]models.AssetResponse, 0, len(assets))
	for _, a := range assets {
		resp = append(resp, models.AssetResponse{
			Asset: a,
			URL:   h.assetURL(r.Context(), &a.ID),
		})
	}

	respondJSON(w, http.StatusOK, resp)
}

// Helper methods
func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*models.Run, bool) {
	runID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid run ID")
		return nil, false
	}

	run, err := h.db.GetRun(r.Context(), runID)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get run")
		return nil, false
	}
	return run, true
}

// assetURL returns a signed link for a published asset, or the download
// route for one kept on local disk.
func (h *Handler) assetURL(ctx context.Context, assetID *uuid.UUID) *string {
	if assetID == nil {
		return nil
	}
	asset, err := h.db.GetAsset(ctx, *assetID)
	if err != nil {
		return nil
	}

	if asset.StorageBucket == worker.LocalBucket {
		url := "/v1/runs/" + asset.RunID.String() + "/download"
		if asset.Type == models.AssetTypeThumbnail {
			url += "?asset=thumbnail"
		}
		return &url
	}
	if h.publisher == nil {
		return nil
	}

	url, err := h.publisher.SignedURL(ctx, asset.StoragePath, signedURLTTL)
	if err != nil {
		return nil
	}
	return &url
}

func validStatus(s models.RunStatus) bool {
	switch s {
	case models.RunStatusQueued, models.RunStatusScripting, models.RunStatusVoicing,
		models.RunStatusFetchingVisuals, models.RunStatusRendering,
		models.RunStatusCompleted, models.RunStatusFailed:
		return true
	}
	return false
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check, with the number of runs waiting for a worker
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if n, err := h.queue.GetQueueLength(r.Context(), queue.QueueGenerateVideo); err == nil {
		resp["queued"] = n
	} else {
		resp["queue"] = "unavailable"
	}
	respondJSON(w, http.StatusOK, resp)
}
