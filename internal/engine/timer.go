package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"trakka/internal/apperr"
	"trakka/internal/domain"
	"trakka/internal/engine/auth"
	"trakka/internal/events"
	"trakka/internal/repo"
)

type TimerStartInput struct {
	ProjectID   string `json:"project_id" validate:"required"`
	Description string `json:"description" validate:"max=500"`
}

// TimerStatus is the caller's running timer, if any, with elapsed time as of now.
type TimerStatus struct {
	Running        bool                 `json:"running"`
	Session        *domain.TimerSession `json:"session,omitempty"`
	ElapsedMinutes int                  `json:"elapsed_minutes"`
	Elapsed        string               `json:"elapsed"`
}

// TimerStopResult reports the stopped session and the entry booked from it.
// Entry is nil when the week was closed.
type TimerStopResult struct {
	Session domain.TimerSession `json:"session"`
	Entry   *domain.TimeEntry   `json:"entry,omitempty"`
	Minutes int                 `json:"minutes"`
}

// StartTimer opens a running session. An owner can have at most one; the
// partial unique index on running sessions arbitrates concurrent starts.
func (e Engine) StartTimer(ctx context.Context, actor auth.Actor, in TimerStartInput) (domain.TimerSession, error) {
	in.Description = strings.TrimSpace(in.Description)
	if err := validateInput(in); err != nil {
		return domain.TimerSession{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TimerSession{}, err
	}
	defer tx.Rollback()

	if _, err := e.selectableProject(ctx, tx, actor, in.ProjectID); err != nil {
		return domain.TimerSession{}, err
	}
	session := domain.TimerSession{
		ID:          newID(),
		OwnerID:     actor.ID,
		ProjectID:   in.ProjectID,
		Description: in.Description,
		StartedAt:   e.stamp(),
		Running:     true,
	}
	ok, err := e.Repo.StartTimer(ctx, tx, session)
	if err != nil {
		return domain.TimerSession{}, fmt.Errorf("start timer: %w", err)
	}
	if !ok {
		running, err := e.Repo.RunningTimer(ctx, tx, actor.ID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return domain.TimerSession{}, err
		}
		return domain.TimerSession{}, apperr.ErrTimerAlreadyRunning.With("timer_id", running.ID)
	}
	if err := e.record(ctx, tx, events.Record{
		Type:       events.TimerStarted,
		ProjectID:  in.ProjectID,
		EntityKind: "timer",
		EntityID:   session.ID,
		ActorID:    actor.ID,
	}); err != nil {
		return domain.TimerSession{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TimerSession{}, err
	}
	return session, nil
}

// StopTimer stops the caller's timer (timerID "" means whichever is running) and
// books a PENDING TIMER entry in the week it started. When that week is closed
// the timer still stops and the result comes back with ErrTimesheetNotMutable.
func (e Engine) StopTimer(ctx context.Context, actor auth.Actor, timerID string) (TimerStopResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return TimerStopResult{}, err
	}
	defer tx.Rollback()

	var session domain.TimerSession
	if timerID == "" {
		session, err = e.Repo.RunningTimer(ctx, tx, actor.ID)
	} else {
		session, err = e.Repo.GetTimer(ctx, tx, timerID)
		if err == nil && session.OwnerID != actor.ID {
			err = repo.ErrNotFound
		}
	}
	if errors.Is(err, repo.ErrNotFound) {
		return TimerStopResult{}, apperr.ErrTimerNotRunning.With("timer_id", timerID)
	}
	if err != nil {
		return TimerStopResult{}, err
	}

	now := e.now()
	stoppedAt := now.UTC().Format(time.RFC3339)
	ok, err := e.Repo.StopTimer(ctx, tx, session.ID, actor.ID, stoppedAt)
	if err != nil {
		return TimerStopResult{}, fmt.Errorf("stop timer: %w", err)
	}
	if !ok {
		return TimerStopResult{}, apperr.ErrTimerNotRunning.With("timer_id", session.ID)
	}
	started, err := time.Parse(time.RFC3339, session.StartedAt)
	if err != nil {
		return TimerStopResult{}, fmt.Errorf("parse timer start: %w", err)
	}
	minutes := domain.ElapsedMinutes(started, now)
	session.Running = false
	session.StoppedAt = &stoppedAt
	res := TimerStopResult{Session: session, Minutes: minutes}

	ts, err := e.resolveTimesheetTx(ctx, tx, actor.ID, domain.DateOf(started, e.loc()), actor.ID)
	if err != nil {
		return TimerStopResult{}, err
	}
	if closed := admit(ts); closed != nil {
		if err := e.recordTimerStop(ctx, tx, actor, session, minutes, ""); err != nil {
			return TimerStopResult{}, err
		}
		if err := tx.Commit(); err != nil {
			return TimerStopResult{}, err
		}
		return res, closed
	}

	description := session.Description
	if description == "" {
		description = e.Config.TimerDescription(started)
	}
	startAt := started.UTC().Format(time.RFC3339)
	entry := domain.TimeEntry{
		ID:              newID(),
		OwnerID:         actor.ID,
		ProjectID:       session.ProjectID,
		TimesheetID:     ts.ID,
		Date:            domain.DateOf(started, e.loc()).Format(domain.DateLayout),
		DurationMinutes: minutes,
		Description:     description,
		Kind:            domain.EntryTimer,
		StartAt:         &startAt,
		EndAt:           &stoppedAt,
		Status:          domain.EntryPending,
		CreatedAt:       stoppedAt,
		UpdatedAt:       stoppedAt,
	}
	if err := e.Repo.InsertEntry(ctx, tx, entry); err != nil {
		return TimerStopResult{}, fmt.Errorf("insert timer entry: %w", err)
	}
	if err := e.Repo.LinkTimerEntry(ctx, tx, session.ID, entry.ID); err != nil {
		return TimerStopResult{}, err
	}
	res.Session.EntryID = &entry.ID
	res.Entry = &entry
	if err := e.record(ctx, tx, events.Record{
		Type:       events.EntryCreated,
		ProjectID:  entry.ProjectID,
		EntityKind: "entry",
		EntityID:   entry.ID,
		ActorID:    actor.ID,
		Payload:    events.Payload{"date": entry.Date, "minutes": minutes, "kind": string(entry.Kind), "timesheet_id": ts.ID},
	}); err != nil {
		return TimerStopResult{}, err
	}
	if err := e.recordTimerStop(ctx, tx, actor, session, minutes, entry.ID); err != nil {
		return TimerStopResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return TimerStopResult{}, err
	}
	return res, nil
}

func (e Engine) recordTimerStop(ctx context.Context, tx *sql.Tx, actor auth.Actor, session domain.TimerSession, minutes int, entryID string) error {
	payload := events.Payload{"minutes": minutes}
	if entryID != "" {
		payload["entry_id"] = entryID
	}
	return e.record(ctx, tx, events.Record{
		Type:       events.TimerStopped,
		ProjectID:  session.ProjectID,
		EntityKind: "timer",
		EntityID:   session.ID,
		ActorID:    actor.ID,
		Payload:    payload,
	})
}

func (e Engine) TimerStatus(ctx context.Context, actor auth.Actor) (TimerStatus, error) {
	session, err := e.Repo.RunningTimer(ctx, nil, actor.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return TimerStatus{Elapsed: domain.FormatElapsed(0)}, nil
	}
	if err != nil {
		return TimerStatus{}, err
	}
	started, err := time.Parse(time.RFC3339, session.StartedAt)
	if err != nil {
		return TimerStatus{}, fmt.Errorf("parse timer start: %w", err)
	}
	elapsed := e.now().Sub(started)
	return TimerStatus{
		Running:        true,
		Session:        &session,
		ElapsedMinutes: int(elapsed / time.Minute),
		Elapsed:        domain.FormatElapsed(elapsed),
	}, nil
}

func (e Engine) TimerHistory(ctx context.Context, actor auth.Actor, limit int) ([]domain.TimerSession, error) {
	return e.Repo.ListTimers(ctx, actor.ID, limit)
}
