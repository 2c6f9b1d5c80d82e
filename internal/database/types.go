package database

import (
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/samephoto/internal/cluster"
	"github.com/kozaktomas/samephoto/internal/pipeline"
)

// StoredRun is a finished scan. Feature vectors are never stored, only the
// parameters and the resulting groups.
type StoredRun struct {
	ID         string    `json:"id"`
	Root       string    `json:"root"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Threshold  float64   `json:"threshold"`
	Window     int       `json:"window"`
	BatchSize  int       `json:"batch_size"`
	Scanned    int       `json:"scanned"`
	Skipped    int       `json:"skipped"`
	GroupCount int       `json:"group_count"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Params returns the clustering parameters the run was made with.
func (r *StoredRun) Params() cluster.Params {
	return cluster.Params{Width: r.Width, Height: r.Height, Threshold: r.Threshold, Window: r.Window}
}

// StoredGroup is one group of a stored run. Index is the position of the group
// within the run; members keep their clustering order.
type StoredGroup struct {
	RunID   string           `json:"run_id"`
	Index   int              `json:"index"`
	Members []cluster.Member `json:"members"`
}

// NewRun converts a pipeline result into a run record and its groups.
func NewRun(root string, params cluster.Params, batchSize int, result *pipeline.Result, startedAt time.Time) (*StoredRun, []StoredGroup) {
	run := &StoredRun{
		ID:         uuid.New().String(),
		Root:       root,
		Width:      params.Width,
		Height:     params.Height,
		Threshold:  params.Threshold,
		Window:     params.Window,
		BatchSize:  batchSize,
		Scanned:    result.Scanned,
		Skipped:    result.Skipped,
		GroupCount: len(result.Groups),
		StartedAt:  startedAt.UTC(),
		FinishedAt: startedAt.Add(result.Duration).UTC(),
	}

	groups := make([]StoredGroup, len(result.Groups))
	for i, g := range result.Groups {
		members := make([]cluster.Member, len(g.Members))
		copy(members, g.Members)
		groups[i] = StoredGroup{RunID: run.ID, Index: i, Members: members}
	}
	return run, groups
}
