package repo

import (
	"context"
	"database/sql"

	"trakka/internal/domain"
)

const timerColumns = `id, owner_id, project_id, description, started_at, stopped_at, running, entry_id`

func scanTimer(s scanner) (domain.TimerSession, error) {
	var t domain.TimerSession
	var desc, stopped, entryID sql.NullString
	var running int
	err := s.Scan(&t.ID, &t.OwnerID, &t.ProjectID, &desc, &t.StartedAt, &stopped, &running, &entryID)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Description = desc.String
	t.StoppedAt = stringPtr(stopped)
	t.Running = running == 1
	t.EntryID = stringPtr(entryID)
	return t, nil
}

// StartTimer inserts a running session. It reports false, without error, when the
// owner already has one running.
func (r Repo) StartTimer(ctx context.Context, tx *sql.Tx, t domain.TimerSession) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, `INSERT INTO timer_sessions(id, owner_id, project_id, description, started_at, running) VALUES (?,?,?,?,?,1)
		ON CONFLICT DO NOTHING`, t.ID, t.OwnerID, t.ProjectID, nullable(t.Description), t.StartedAt)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r Repo) GetTimer(ctx context.Context, tx *sql.Tx, id string) (domain.TimerSession, error) {
	return scanTimer(r.on(tx).QueryRowContext(ctx, `SELECT `+timerColumns+` FROM timer_sessions WHERE id=?`, id))
}

// RunningTimer returns the owner's running session or ErrNotFound.
func (r Repo) RunningTimer(ctx context.Context, tx *sql.Tx, ownerID string) (domain.TimerSession, error) {
	return scanTimer(r.on(tx).QueryRowContext(ctx, `SELECT `+timerColumns+` FROM timer_sessions WHERE owner_id=? AND running=1`, ownerID))
}

// StopTimer clears the running flag if the session is still running for owner.
func (r Repo) StopTimer(ctx context.Context, tx *sql.Tx, id, ownerID, at string) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE timer_sessions SET running=0, stopped_at=? WHERE id=? AND owner_id=? AND running=1`, at, id, ownerID)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r Repo) LinkTimerEntry(ctx context.Context, tx *sql.Tx, id, entryID string) error {
	_, err := r.on(tx).ExecContext(ctx, `UPDATE timer_sessions SET entry_id=? WHERE id=?`, entryID, id)
	return err
}

// ListTimers returns an owner's sessions, newest first.
func (r Repo) ListTimers(ctx context.Context, ownerID string, limit int) ([]domain.TimerSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+timerColumns+` FROM timer_sessions WHERE owner_id=? ORDER BY started_at DESC, id DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimerSession
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// CountRunningTimers counts running sessions for owner.
func (r Repo) CountRunningTimers(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM timer_sessions WHERE owner_id=? AND running=1`, ownerID).Scan(&n)
	return n, err
}
