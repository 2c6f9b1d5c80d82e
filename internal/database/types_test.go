package database

import (
	"testing"
	"time"

	"github.com/kozaktomas/samephoto/internal/cluster"
	"github.com/kozaktomas/samephoto/internal/pipeline"
)

func TestNewRun(t *testing.T) {
	started := time.Date(2026, 5, 1, 10, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	result := &pipeline.Result{
		Groups: []cluster.Group{
			{Members: []cluster.Member{{ID: "a", Score: 1}, {ID: "b", Score: 0.8}}},
		},
		Scanned:  4,
		Skipped:  2,
		Duration: 90 * time.Second,
	}
	params := cluster.Params{Width: 32, Height: 24, Threshold: 0.7, Window: 10}

	run, groups := NewRun("/photos", params, 50, result, started)

	if run.ID == "" {
		t.Fatal("expected a generated run ID")
	}
	if run.Params() != params {
		t.Errorf("Params() = %+v, want %+v", run.Params(), params)
	}
	if run.BatchSize != 50 || run.Scanned != 4 || run.Skipped != 2 || run.GroupCount != 1 {
		t.Errorf("unexpected counters: %+v", run)
	}
	if run.StartedAt.Location() != time.UTC {
		t.Errorf("StartedAt should be UTC, got %v", run.StartedAt.Location())
	}
	if got := run.FinishedAt.Sub(run.StartedAt); got != 90*time.Second {
		t.Errorf("FinishedAt - StartedAt = %v, want 90s", got)
	}
	if len(groups) != 1 || groups[0].RunID != run.ID || groups[0].Index != 0 {
		t.Fatalf("unexpected groups: %+v", groups)
	}

	// Stored members must not alias the pipeline result.
	result.Groups[0].Members[1].ID = "changed"
	if groups[0].Members[1].ID != "b" {
		t.Errorf("group members alias the result slice")
	}
}

func TestNewRun_NoGroups(t *testing.T) {
	run, groups := NewRun("/empty", cluster.Params{Width: 8, Height: 8, Threshold: 0.5, Window: 2}, 10,
		&pipeline.Result{}, time.Now())
	if run.GroupCount != 0 {
		t.Errorf("GroupCount = %d, want 0", run.GroupCount)
	}
	if len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}
