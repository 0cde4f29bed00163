package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/nightwatch/internal/daycycle"
)

// Page size limits for List.
const (
	defaultLimit = 20
	maxLimit     = 200
)

// Repository defines the journal operations.
type Repository interface {
	RecordTransition(ctx context.Context, t daycycle.Transition) error
	RecordOutcome(ctx context.Context, o daycycle.Outcome) error
	List(ctx context.Context, limit, offset int) (*ListResult, error)
	Get(ctx context.Context, id string) (*Cycle, error)
}

// SQLiteRepository stores the journal in the tables created by the
// journal migration.
type SQLiteRepository struct {
	db     *sql.DB
	siteID string
}

// NewSQLiteRepository creates a repository writing cycles for siteID.
func NewSQLiteRepository(db *sql.DB, siteID string) *SQLiteRepository {
	return &SQLiteRepository{db: db, siteID: siteID}
}

// RecordTransition appends a transition, creating the cycle row on the
// first one.
func (r *SQLiteRepository) RecordTransition(ctx context.Context, t daycycle.Transition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := r.ensureCycle(ctx, tx, t.CycleID, t.At, t.To.String()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE cycles SET state = ?, reason = ? WHERE id = ?`,
		t.To.String(), t.Reason, t.CycleID,
	); err != nil {
		return fmt.Errorf("updating cycle state: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cycle_transitions (cycle_id, from_state, to_state, reason, at) VALUES (?, ?, ?, ?, ?)`,
		t.CycleID, t.From.String(), t.To.String(), t.Reason, formatTime(t.At),
	); err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transition: %w", err)
	}
	return nil
}

// RecordOutcome stores the final state and the per-entry results. Calling
// it again for the same cycle replaces the earlier entry rows.
func (r *SQLiteRepository) RecordOutcome(ctx context.Context, o daycycle.Outcome) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := r.ensureCycle(ctx, tx, o.CycleID, o.StartedAt, o.State.String()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE cycles
		 SET finished_at = ?, state = ?, reason = ?, frames = ?, shutter_closed = ?, shutdown_failures = ?
		 WHERE id = ?`,
		formatTime(o.FinishedAt), o.State.String(), o.Reason, o.Report.Frames(),
		boolInt(o.Shutdown.ShutterClosed), len(o.Shutdown.Failures),
		o.CycleID,
	); err != nil {
		return fmt.Errorf("updating cycle outcome: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_runs WHERE cycle_id = ?`, o.CycleID); err != nil {
		return fmt.Errorf("clearing entry runs: %w", err)
	}
	if o.Report != nil {
		for _, e := range o.Report.Entries {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO entry_runs (cycle_id, name, begin_local, end_local, frames, frame_failures, directory, skipped, error)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				o.CycleID, e.Name, e.Begin.Format(time.RFC3339), e.End.Format(time.RFC3339),
				e.Frames, e.FrameFailures, e.Directory, boolInt(e.Skipped), e.ErrorText(),
			); err != nil {
				return fmt.Errorf("inserting entry run %q: %w", e.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing outcome: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ensureCycle(ctx context.Context, tx *sql.Tx, id string, startedAt time.Time, state string) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO cycles (id, site_id, started_at, state) VALUES (?, ?, ?, ?)`,
		id, r.siteID, formatTime(startedAt), state,
	); err != nil {
		return fmt.Errorf("inserting cycle: %w", err)
	}
	return nil
}

// List returns cycles ordered by most recent start first.
func (r *SQLiteRepository) List(ctx context.Context, limit, offset int) (*ListResult, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cycles`).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting cycles: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, site_id, started_at, finished_at, state, reason, frames, shutter_closed, shutdown_failures
		 FROM cycles ORDER BY started_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying cycles: %w", err)
	}
	defer rows.Close()

	cycles := []Cycle{}
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cycles: %w", err)
	}

	return &ListResult{Cycles: cycles, Total: total, Limit: limit, Offset: offset}, nil
}

// Get returns one cycle with its transitions and entry runs.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Cycle, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, site_id, started_at, finished_at, state, reason, frames, shutter_closed, shutdown_failures
		 FROM cycles WHERE id = ?`, id)
	c, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCycleNotFound
	}
	if err != nil {
		return nil, err
	}

	if c.Transitions, err = r.transitions(ctx, id); err != nil {
		return nil, err
	}
	if c.Entries, err = r.entries(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *SQLiteRepository) transitions(ctx context.Context, id string) ([]TransitionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT from_state, to_state, reason, at FROM cycle_transitions WHERE cycle_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	var out []TransitionRecord
	for rows.Next() {
		var t TransitionRecord
		var at string
		if err := rows.Scan(&t.From, &t.To, &t.Reason, &at); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		if t.At, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) entries(ctx context.Context, id string) ([]EntryRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, begin_local, end_local, frames, frame_failures, directory, skipped, error
		 FROM entry_runs WHERE cycle_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying entry runs: %w", err)
	}
	defer rows.Close()

	var out []EntryRun
	for rows.Next() {
		var e EntryRun
		var begin, end string
		var skipped int
		if err := rows.Scan(&e.Name, &begin, &end, &e.Frames, &e.FrameFailures, &e.Directory, &skipped, &e.Error); err != nil {
			return nil, fmt.Errorf("scanning entry run: %w", err)
		}
		if e.Begin, err = parseTime(begin); err != nil {
			return nil, err
		}
		if e.End, err = parseTime(end); err != nil {
			return nil, err
		}
		e.Skipped = skipped != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entry runs: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCycle(s scanner) (*Cycle, error) {
	var c Cycle
	var started string
	var finished sql.NullString
	var shutterClosed int
	if err := s.Scan(&c.ID, &c.SiteID, &started, &finished, &c.State, &c.Reason,
		&c.Frames, &shutterClosed, &c.ShutdownFailures); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning cycle: %w", err)
	}

	var err error
	if c.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if finished.Valid && finished.String != "" {
		t, err := parseTime(finished.String)
		if err != nil {
			return nil, err
		}
		c.FinishedAt = &t
	}
	c.ShutterClosed = shutterClosed != 0
	return &c, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing journal timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
