package database

import (
	"context"
	"errors"
)

// ErrRunNotFound is returned when deleting a run that does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunReader provides read-only access to the scan history
type RunReader interface {
	// GetRun retrieves a run by ID, returns nil if not found
	GetRun(ctx context.Context, id string) (*StoredRun, error)
	// ListRuns returns the most recent runs first
	ListRuns(ctx context.Context, limit int) ([]StoredRun, error)
	// GetGroups returns the groups of a run ordered by index
	GetGroups(ctx context.Context, runID string) ([]StoredGroup, error)
}

// RunWriter provides write access to the scan history
type RunWriter interface {
	RunReader

	// SaveRun stores a run together with its groups in one transaction
	SaveRun(ctx context.Context, run *StoredRun, groups []StoredGroup) error

	// DeleteRun removes a run and its groups, returns ErrRunNotFound if missing
	DeleteRun(ctx context.Context, id string) error
}

// Store is a RunWriter bound to an open connection.
type Store interface {
	RunWriter
	Close() error
}
