// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kozaktomas/samephoto/internal/cluster"
	"github.com/kozaktomas/samephoto/internal/constants"
	"github.com/kozaktomas/samephoto/internal/database"
)

// MockStore is an in-memory implementation of database.Store
type MockStore struct {
	mu     sync.RWMutex
	runs   map[string]database.StoredRun
	groups map[string][]database.StoredGroup
	closed bool

	// Error injection
	GetError    error
	ListError   error
	GroupsError error
	SaveError   error
	DeleteError error
}

var _ database.Store = (*MockStore)(nil)

// NewMockStore creates a new empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		runs:   make(map[string]database.StoredRun),
		groups: make(map[string][]database.StoredGroup),
	}
}

// AddRun adds a run and its groups to the mock store
func (m *MockStore) AddRun(run database.StoredRun, groups []database.StoredGroup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	m.groups[run.ID] = cloneGroups(run.ID, groups)
}

// GetRun retrieves a run by ID
func (m *MockStore) GetRun(ctx context.Context, id string) (*database.StoredRun, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

// ListRuns returns runs ordered by start time, newest first
func (m *MockStore) ListRuns(ctx context.Context, limit int) ([]database.StoredRun, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	if limit <= 0 {
		limit = constants.DefaultRunListLimit
	}

	m.mu.RLock()
	runs := make([]database.StoredRun, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetGroups returns the groups of a run
func (m *MockStore) GetGroups(ctx context.Context, runID string) ([]database.StoredGroup, error) {
	if m.GroupsError != nil {
		return nil, m.GroupsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneGroups(runID, m.groups[runID]), nil
}

// SaveRun stores a run and its groups
func (m *MockStore) SaveRun(ctx context.Context, run *database.StoredRun, groups []database.StoredGroup) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("save run: duplicate id %s", run.ID)
	}
	m.runs[run.ID] = *run
	m.groups[run.ID] = cloneGroups(run.ID, groups)
	return nil
}

// DeleteRun removes a run and its groups
func (m *MockStore) DeleteRun(ctx context.Context, id string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return fmt.Errorf("%w: %s", database.ErrRunNotFound, id)
	}
	delete(m.runs, id)
	delete(m.groups, id)
	return nil
}

// Close marks the store as closed
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called
func (m *MockStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// RunCount returns the number of stored runs
func (m *MockStore) RunCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

func cloneGroups(runID string, groups []database.StoredGroup) []database.StoredGroup {
	if len(groups) == 0 {
		return nil
	}
	out := make([]database.StoredGroup, len(groups))
	for i, g := range groups {
		members := make([]cluster.Member, len(g.Members))
		copy(members, g.Members)
		out[i] = database.StoredGroup{RunID: runID, Index: g.Index, Members: members}
	}
	return out
}
