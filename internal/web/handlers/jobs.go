package handlers

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kozaktomas/samephoto/internal/cluster"
	"github.com/kozaktomas/samephoto/internal/constants"
	"github.com/kozaktomas/samephoto/internal/pipeline"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ScanJob represents an async directory scan.
type ScanJob struct {
	EventBroadcaster

	ID          string
	Root        string
	Params      cluster.Params
	BatchSize   int
	Limit       int
	Status      JobStatus
	Progress    pipeline.Progress
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
	Result      *ScanJobResult
	RunID       string
}

// ScanJobResult is the outcome of a finished or cancelled scan.
type ScanJobResult struct {
	Groups        []cluster.Group `json:"groups"`
	Scanned       int             `json:"scanned"`
	Skipped       int             `json:"skipped"`
	Batches       int             `json:"batches"`
	GroupedPhotos int             `json:"grouped_photos"`
	DurationMs    int64           `json:"duration_ms"`
}

func newScanJobResult(r *pipeline.Result) *ScanJobResult {
	groups := r.Groups
	if groups == nil {
		groups = []cluster.Group{}
	}
	return &ScanJobResult{
		Groups:        groups,
		Scanned:       r.Scanned,
		Skipped:       r.Skipped,
		Batches:       r.Batches,
		GroupedPhotos: r.TotalImages(),
		DurationMs:    r.Duration.Milliseconds(),
	}
}

// ScanJobStatus is a point-in-time copy of a ScanJob for responses.
type ScanJobStatus struct {
	ID          string            `json:"id"`
	Root        string            `json:"root"`
	Params      cluster.Params    `json:"params"`
	BatchSize   int               `json:"batch_size"`
	Limit       int               `json:"limit,omitempty"`
	Status      JobStatus         `json:"status"`
	Progress    pipeline.Progress `json:"progress"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Result      *ScanJobResult    `json:"result,omitempty"`
	RunID       string            `json:"run_id,omitempty"`
}

// Snapshot returns a copy of the job state that is safe to encode.
func (j *ScanJob) Snapshot() ScanJobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return ScanJobStatus{
		ID:          j.ID,
		Root:        j.Root,
		Params:      j.Params,
		BatchSize:   j.BatchSize,
		Limit:       j.Limit,
		Status:      j.Status,
		Progress:    j.Progress,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Result:      j.Result,
		RunID:       j.RunID,
	}
}

// GetStatus returns the current job status.
func (j *ScanJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Cancel cancels the scan job. The scan stops at the next batch boundary.
func (j *ScanJob) Cancel() {
	j.mu.Lock()
	if isJobTerminal(j.Status) {
		j.mu.Unlock()
		return
	}
	j.Status = JobStatusCancelled
	j.mu.Unlock()
	j.EventBroadcaster.Cancel()
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	if b.cancel != nil {
		b.cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// JobManager keeps the most recently created scan jobs. Lookups do not refresh
// a job, so the history stays in creation order. When it is full the oldest job
// is dropped and cancelled if it is still running.
type JobManager struct {
	jobs *lru.Cache[string, *ScanJob]
}

// NewJobManager creates a job manager keeping up to size jobs.
func NewJobManager(size int) *JobManager {
	if size <= 0 {
		size = constants.DefaultJobHistory
	}
	jobs, err := lru.NewWithEvict(size, func(_ string, job *ScanJob) {
		job.Cancel()
	})
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &JobManager{jobs: jobs}
}

// CreateJob registers a new pending scan job. cancel stops the scan.
func (m *JobManager) CreateJob(id, root string, params cluster.Params, batchSize, limit int, cancel context.CancelFunc) *ScanJob {
	job := &ScanJob{
		EventBroadcaster: EventBroadcaster{cancel: cancel},
		ID:               id,
		Root:             root,
		Params:           params,
		BatchSize:        batchSize,
		Limit:            limit,
		Status:           JobStatusPending,
		StartedAt:        time.Now(),
	}
	m.jobs.Add(id, job)
	return job
}

// GetJob retrieves a job by ID without changing its place in the history.
func (m *JobManager) GetJob(id string) *ScanJob {
	job, ok := m.jobs.Peek(id)
	if !ok {
		return nil
	}
	return job
}

// DeleteJob removes a job, cancelling it if it is still running.
func (m *JobManager) DeleteJob(id string) {
	m.jobs.Remove(id)
}

// ListJobs returns all jobs, oldest first.
func (m *JobManager) ListJobs() []*ScanJob {
	return m.jobs.Values()
}

// CancelAll cancels every job that is still running.
func (m *JobManager) CancelAll() {
	for _, job := range m.jobs.Values() {
		job.Cancel()
	}
}
