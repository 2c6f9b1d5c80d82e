package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/samephoto/internal/config"
	"github.com/kozaktomas/samephoto/internal/database"
	"github.com/kozaktomas/samephoto/internal/library"
	"github.com/kozaktomas/samephoto/internal/logging"
	"github.com/kozaktomas/samephoto/internal/pipeline"
)

// ScanHandler handles scan-related endpoints
type ScanHandler struct {
	config     *config.Config
	jobManager *JobManager
	store      database.RunWriter
	logger     *slog.Logger
}

// NewScanHandler creates a new scan handler. store may be nil, in which case
// finished scans are not saved.
func NewScanHandler(cfg *config.Config, jm *JobManager, store database.RunWriter, logger *slog.Logger) *ScanHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ScanHandler{
		config:     cfg,
		jobManager: jm,
		store:      store,
		logger:     logger,
	}
}

// ScanRequest represents a scan start request. Zero values fall back to the
// configured defaults; threshold is a pointer because zero is a valid value.
type ScanRequest struct {
	Root      string   `json:"root"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Threshold *float64 `json:"threshold"`
	Window    int      `json:"window"`
	BatchSize int      `json:"batch_size"`
	Limit     int      `json:"limit"`
}

// Start starts a new scan job
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	root, err := resolveScanRoot(h.config.Web.ScanRoot, req.Root)
	if errors.Is(err, errOutsideScanRoot) {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !isDir(root) {
		respondError(w, http.StatusBadRequest, "root is not a directory")
		return
	}

	params := h.config.ClusterParams()
	if req.Width != 0 {
		params.Width = req.Width
	}
	if req.Height != 0 {
		params.Height = req.Height
	}
	if req.Threshold != nil {
		params.Threshold = *req.Threshold
	}
	if req.Window != 0 {
		params.Window = req.Window
	}
	if err := params.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	batchSize := h.config.Cluster.BatchSize
	if req.BatchSize != 0 {
		batchSize = req.BatchSize
	}
	if batchSize <= 0 {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("%v: %d", pipeline.ErrInvalidBatchSize, batchSize))
		return
	}

	// The job outlives the request, so it gets its own context.
	ctx, cancel := context.WithCancel(context.Background())
	jobID := uuid.New().String()
	job := h.jobManager.CreateJob(jobID, root, params, batchSize, req.Limit, cancel)

	go h.runScanJob(ctx, job)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"root":   root,
		"status": string(JobStatusPending),
	})
}

// List returns the scan jobs still kept in memory
func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobManager.ListJobs()
	statuses := make([]ScanJobStatus, 0, len(jobs))
	for i := len(jobs) - 1; i >= 0; i-- {
		status := jobs[i].Snapshot()
		// Listing omits the groups, they are available per job.
		if status.Result != nil {
			summary := *status.Result
			summary.Groups = nil
			status.Result = &summary
		}
		statuses = append(statuses, status)
	}
	respondJSON(w, http.StatusOK, statuses)
}

// Status returns the status of a scan job
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams the progress of a scan job as server-sent events
func (h *ScanHandler) Events(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	streamScanEvents(w, r, job)
}

// Cancel cancels a scan job
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// runScanJob runs the scan job in the background
func (h *ScanHandler) runScanJob(ctx context.Context, job *ScanJob) {
	defer job.cancel()
	logger := logging.WithJob(h.logger, job.ID)

	job.mu.Lock()
	if job.Status == JobStatusCancelled {
		now := time.Now()
		job.CompletedAt = &now
		job.mu.Unlock()
		return
	}
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Scan started"})

	lib, err := library.Open(job.Root,
		library.WithLimit(job.Limit),
		library.WithThumbnailSize(h.config.Library.ThumbnailSize),
	)
	if err != nil {
		h.failJob(job, fmt.Sprintf("failed to open library: %v", err))
		return
	}
	job.SendEvent(JobEvent{Type: "photos_counted", Data: map[string]int{"total": lib.Len()}})

	opts, err := pipelineOptions(h.config, job.Params, job.BatchSize, logger)
	if err != nil {
		h.failJob(job, err.Error())
		return
	}
	opts.OnProgress = func(p pipeline.Progress) {
		job.mu.Lock()
		job.Progress = p
		job.mu.Unlock()
		job.SendEvent(JobEvent{Type: "progress", Data: p})
	}

	p, err := pipeline.New(lib, opts)
	if err != nil {
		h.failJob(job, err.Error())
		return
	}

	startedAt := time.Now()
	result, err := p.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			now := time.Now()
			job.mu.Lock()
			job.Status = JobStatusCancelled
			job.CompletedAt = &now
			if result != nil {
				job.Result = newScanJobResult(result)
			}
			job.mu.Unlock()
			job.SendEvent(JobEvent{Type: "cancelled", Message: "Job was cancelled"})
			return
		}
		h.failJob(job, fmt.Sprintf("scan failed: %v", err))
		return
	}

	h.completeJob(logger, job, result, startedAt)
}

// completeJob records a finished scan. A job cancelled after its last batch
// stays cancelled and is not saved.
func (h *ScanHandler) completeJob(logger *slog.Logger, job *ScanJob, result *pipeline.Result, startedAt time.Time) {
	jobResult := newScanJobResult(result)

	job.mu.Lock()
	if job.Status == JobStatusCancelled {
		now := time.Now()
		job.CompletedAt = &now
		job.Result = jobResult
		job.mu.Unlock()
		logger.Info("scan finished after cancellation, result not saved")
		return
	}
	job.mu.Unlock()

	var runID string
	if h.store != nil {
		run, groups := database.NewRun(job.Root, job.Params, job.BatchSize, result, startedAt)
		if err := h.store.SaveRun(context.Background(), run, groups); err != nil {
			logger.Error("failed to save scan run", "error", err)
		} else {
			runID = run.ID
		}
	}

	now := time.Now()
	job.mu.Lock()
	if job.Status == JobStatusCancelled {
		// Cancelled during the save.
		job.CompletedAt = &now
		job.Result = jobResult
		job.RunID = runID
		job.mu.Unlock()
		return
	}
	job.Status = JobStatusCompleted
	job.CompletedAt = &now
	job.Result = jobResult
	job.RunID = runID
	job.mu.Unlock()

	job.SendEvent(JobEvent{Type: "completed", Data: job.Snapshot()})
}

func (h *ScanHandler) failJob(job *ScanJob, message string) {
	now := time.Now()
	job.mu.Lock()
	job.Status = JobStatusFailed
	job.Error = message
	job.CompletedAt = &now
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "job_error", Message: message})
}
