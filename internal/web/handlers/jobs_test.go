package handlers

import (
	"context"
	"testing"

	"github.com/kozaktomas/samephoto/internal/cluster"
)

var testParams = cluster.Params{Width: 8, Height: 8, Threshold: 0.6, Window: 10}

func TestJobManager_CreateAndGet(t *testing.T) {
	jm := NewJobManager(10)

	job := jm.CreateJob("job-1", "/photos", testParams, 50, 0, func() {})
	if job.Status != JobStatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}

	if got := jm.GetJob("job-1"); got != job {
		t.Error("expected to get the created job back")
	}
	if got := jm.GetJob("missing"); got != nil {
		t.Error("expected nil for unknown job")
	}
}

func TestJobManager_EvictsAndCancelsOldest(t *testing.T) {
	jm := NewJobManager(2)

	cancelled := map[string]bool{}
	for _, id := range []string{"a", "b", "c"} {
		jm.CreateJob(id, "/photos", testParams, 50, 0, func() { cancelled[id] = true })
	}

	if jm.GetJob("a") != nil {
		t.Error("expected oldest job to be evicted")
	}
	if !cancelled["a"] {
		t.Error("expected evicted job to be cancelled")
	}
	if cancelled["b"] || cancelled["c"] {
		t.Error("expected remaining jobs to keep running")
	}

	jobs := jm.ListJobs()
	if len(jobs) != 2 || jobs[0].ID != "b" || jobs[1].ID != "c" {
		t.Errorf("unexpected jobs after eviction: %v", jobs)
	}
}

func TestJobManager_DeleteCancels(t *testing.T) {
	jm := NewJobManager(0)

	ctx, cancel := context.WithCancel(context.Background())
	jm.CreateJob("job-1", "/photos", testParams, 50, 0, cancel)
	jm.DeleteJob("job-1")

	if jm.GetJob("job-1") != nil {
		t.Error("expected job to be removed")
	}
	if ctx.Err() == nil {
		t.Error("expected removed job to be cancelled")
	}
}

func TestScanJob_Cancel(t *testing.T) {
	jm := NewJobManager(10)
	ctx, cancel := context.WithCancel(context.Background())
	job := jm.CreateJob("job-1", "/photos", testParams, 50, 0, cancel)

	events := job.AddListener()
	defer job.RemoveListener(events)

	job.Cancel()

	if job.GetStatus() != JobStatusCancelled {
		t.Errorf("expected cancelled, got %s", job.GetStatus())
	}
	if ctx.Err() == nil {
		t.Error("expected job context to be cancelled")
	}

	select {
	case event := <-events:
		if event.Type != "cancelled" {
			t.Errorf("expected cancelled event, got %s", event.Type)
		}
	default:
		t.Error("expected a cancelled event")
	}
}

func TestScanJob_CancelFinishedJobIsNoop(t *testing.T) {
	jm := NewJobManager(10)
	called := false
	job := jm.CreateJob("job-1", "/photos", testParams, 50, 0, func() { called = true })
	job.Status = JobStatusCompleted

	job.Cancel()

	if job.GetStatus() != JobStatusCompleted {
		t.Errorf("expected completed, got %s", job.GetStatus())
	}
	if called {
		t.Error("expected cancel func not to be called for a finished job")
	}
}

func TestEventBroadcaster(t *testing.T) {
	var b EventBroadcaster

	first := b.AddListener()
	second := b.AddListener()

	b.SendEvent(JobEvent{Type: "progress"})

	for i, ch := range []chan JobEvent{first, second} {
		select {
		case event := <-ch:
			if event.Type != "progress" {
				t.Errorf("listener %d: expected progress, got %s", i, event.Type)
			}
		default:
			t.Errorf("listener %d: expected an event", i)
		}
	}

	b.RemoveListener(first)
	if _, ok := <-first; ok {
		t.Error("expected removed listener channel to be closed")
	}

	b.SendEvent(JobEvent{Type: "completed"})
	if event := <-second; event.Type != "completed" {
		t.Errorf("expected completed, got %s", event.Type)
	}
}

func TestJobManager_LookupKeepsCreationOrder(t *testing.T) {
	jm := NewJobManager(10)
	jm.CreateJob("old", "/photos", testParams, 50, 0, func() {})
	jm.CreateJob("new", "/photos", testParams, 50, 0, func() {})

	if jm.GetJob("old") == nil {
		t.Fatal("expected old job")
	}

	jobs := jm.ListJobs()
	if len(jobs) != 2 || jobs[0].ID != "old" || jobs[1].ID != "new" {
		t.Errorf("expected creation order old, new; got %v", jobIDs(jobs))
	}
}

func TestJobManager_PolledJobStillEvictedFirst(t *testing.T) {
	jm := NewJobManager(2)

	cancelled := map[string]bool{}
	for _, id := range []string{"a", "b"} {
		jm.CreateJob(id, "/photos", testParams, 50, 0, func() { cancelled[id] = true })
	}
	if jm.GetJob("a") == nil {
		t.Fatal("expected job a")
	}
	jm.CreateJob("c", "/photos", testParams, 50, 0, func() { cancelled["c"] = true })

	if !cancelled["a"] {
		t.Error("expected the oldest job to be evicted and cancelled")
	}
	if cancelled["b"] || cancelled["c"] {
		t.Errorf("expected newer jobs to keep running, cancelled: %v", cancelled)
	}
	if jm.GetJob("b") == nil || jm.GetJob("c") == nil {
		t.Error("expected jobs b and c to be kept")
	}
}

func jobIDs(jobs []*ScanJob) []string {
	ids := make([]string, len(jobs))
	for i, job := range jobs {
		ids[i] = job.ID
	}
	return ids
}
