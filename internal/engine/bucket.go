package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trakka/internal/apperr"
	"trakka/internal/domain"
	"trakka/internal/engine/auth"
	"trakka/internal/events"
)

// ResolveTimesheet returns the actor's timesheet for the week containing date,
// creating a DRAFT one when none exists.
func (e Engine) ResolveTimesheet(ctx context.Context, actor auth.Actor, date string) (domain.Timesheet, error) {
	d, err := domain.ParseDate(date)
	if err != nil {
		return domain.Timesheet{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Timesheet{}, err
	}
	defer tx.Rollback()

	ts, err := e.resolveTimesheetTx(ctx, tx, actor.ID, d, actor.ID)
	if err != nil {
		return domain.Timesheet{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Timesheet{}, err
	}
	return ts, nil
}

func (e Engine) resolveTimesheetTx(ctx context.Context, tx *sql.Tx, ownerID string, date time.Time, actorID string) (domain.Timesheet, error) {
	start, end := domain.WeekOf(date)
	now := e.stamp()
	ts, created, err := e.Repo.EnsureTimesheet(ctx, tx, domain.Timesheet{
		ID:        newID(),
		OwnerID:   ownerID,
		WeekStart: start.Format(domain.DateLayout),
		WeekEnd:   end.Format(domain.DateLayout),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.Timesheet{}, fmt.Errorf("resolve timesheet: %w", err)
	}
	if created {
		if err := e.record(ctx, tx, events.Record{
			Type:       events.TimesheetCreated,
			EntityKind: "timesheet",
			EntityID:   ts.ID,
			ActorID:    actorID,
			Payload:    events.Payload{"owner_id": ownerID, "week_start": ts.WeekStart},
		}); err != nil {
			return domain.Timesheet{}, err
		}
	}
	return ts, nil
}

// admit rejects changes under a timesheet that is submitted or approved.
func admit(ts domain.Timesheet) error {
	if ts.Status.Mutable() {
		return nil
	}
	return apperr.ErrTimesheetNotMutable.With("timesheet_id", ts.ID).With("status", string(ts.Status))
}
