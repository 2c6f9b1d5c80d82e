package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kozaktomas/samephoto/internal/cluster"
	"github.com/kozaktomas/samephoto/internal/constants"
)

// Dialect describes the SQL differences between backends.
type Dialect struct {
	Name string
	// Numbered selects $1, $2, ... placeholders instead of ?.
	Numbered bool
}

var (
	PostgresDialect = Dialect{Name: BackendPostgres, Numbered: true}
	MariaDBDialect  = Dialect{Name: BackendMariaDB}
	SQLiteDialect   = Dialect{Name: BackendSQLite}
)

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLRunStore implements Store on top of database/sql. All backends share it
// and differ only in the driver, the dialect and their migrations.
type SQLRunStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLRunStore wraps an open connection. The schema must already exist.
func NewSQLRunStore(db *sql.DB, dialect Dialect) *SQLRunStore {
	return &SQLRunStore{db: db, dialect: dialect}
}

// DB returns the underlying sql.DB for direct access.
func (s *SQLRunStore) DB() *sql.DB {
	return s.db
}

// Close closes the connection pool.
func (s *SQLRunStore) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

const runColumns = `id, root, width, height, threshold, window_size, batch_size,
	scanned, skipped, group_count, started_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (*StoredRun, error) {
	var r StoredRun
	err := row.Scan(
		&r.ID,
		&r.Root,
		&r.Width,
		&r.Height,
		&r.Threshold,
		&r.Window,
		&r.BatchSize,
		&r.Scanned,
		&r.Skipped,
		&r.GroupCount,
		&r.StartedAt,
		&r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	return &r, nil
}

// SaveRun stores a run and its groups. An empty run ID is filled in.
func (s *SQLRunStore) SaveRun(ctx context.Context, run *StoredRun, groups []StoredGroup) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.dialect.Rebind(`INSERT INTO scan_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = tx.ExecContext(ctx, query,
		run.ID, run.Root, run.Width, run.Height, run.Threshold, run.Window, run.BatchSize,
		run.Scanned, run.Skipped, run.GroupCount, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.Rebind(`INSERT INTO scan_groups
		(run_id, group_index, position, photo_id, score) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare group insert: %w", err)
	}
	defer stmt.Close()

	for _, g := range groups {
		for pos, m := range g.Members {
			if _, err := stmt.ExecContext(ctx, run.ID, g.Index, pos, m.ID, m.Score); err != nil {
				return fmt.Errorf("save group %d: %w", g.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID, returns nil if not found
func (s *SQLRunStore) GetRun(ctx context.Context, id string) (*StoredRun, error) {
	query := s.dialect.Rebind(`SELECT ` + runColumns + ` FROM scan_runs WHERE id = ?`)

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, most recently started first
func (s *SQLRunStore) ListRuns(ctx context.Context, limit int) ([]StoredRun, error) {
	if limit <= 0 {
		limit = constants.DefaultRunListLimit
	}
	query := s.dialect.Rebind(`SELECT ` + runColumns + ` FROM scan_runs
		ORDER BY started_at DESC, id LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []StoredRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetGroups returns the groups of a run ordered by index
func (s *SQLRunStore) GetGroups(ctx context.Context, runID string) ([]StoredGroup, error) {
	query := s.dialect.Rebind(`SELECT group_index, photo_id, score FROM scan_groups
		WHERE run_id = ? ORDER BY group_index, position`)

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get groups: %w", err)
	}
	defer rows.Close()

	var groups []StoredGroup
	for rows.Next() {
		var (
			index int
			m     cluster.Member
		)
		if err := rows.Scan(&index, &m.ID, &m.Score); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		if len(groups) == 0 || groups[len(groups)-1].Index != index {
			groups = append(groups, StoredGroup{RunID: runID, Index: index})
		}
		last := &groups[len(groups)-1]
		last.Members = append(last.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	return groups, nil
}

// DeleteRun removes a run and its groups
func (s *SQLRunStore) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.dialect.Rebind("DELETE FROM scan_groups WHERE run_id = ?"), id); err != nil {
		return fmt.Errorf("delete groups: %w", err)
	}

	result, err := tx.ExecContext(ctx, s.dialect.Rebind("DELETE FROM scan_runs WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}
