package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trakka/internal/apperr"
	"trakka/internal/domain"
	"trakka/internal/engine/auth"
	"trakka/internal/events"
	"trakka/internal/repo"
)

// TimesheetView is a timesheet with its entries and derived totals.
type TimesheetView struct {
	Timesheet    domain.Timesheet   `json:"timesheet"`
	Entries      []domain.TimeEntry `json:"entries"`
	TotalMinutes int                `json:"total_minutes"`
	TotalHours   float64            `json:"total_hours"`
	EntryCount   int                `json:"entry_count"`
	CanSubmit    bool               `json:"can_submit"`
}

func (e Engine) timesheetView(ctx context.Context, ts domain.Timesheet) (TimesheetView, error) {
	view := TimesheetView{Timesheet: ts, Entries: []domain.TimeEntry{}}
	if ts.ID == "" {
		return view, nil
	}
	entries, err := e.Repo.ListEntries(ctx, nil, repo.EntryFilter{TimesheetID: ts.ID, Ascending: true})
	if err != nil {
		return view, err
	}
	if entries != nil {
		view.Entries = entries
	}
	// Totals are derived from the listed entries.
	for _, entry := range view.Entries {
		view.TotalMinutes += entry.DurationMinutes
	}
	view.EntryCount = len(view.Entries)
	view.TotalHours = domain.Hours(view.TotalMinutes)
	weekEnd, err := domain.ParseDate(ts.WeekEnd)
	if err != nil {
		return view, err
	}
	view.CanSubmit = ts.Status.Mutable() && view.EntryCount > 0 && domain.WeekElapsed(weekEnd, e.today())
	return view, nil
}

func (e Engine) visibleTimesheet(ctx context.Context, actor auth.Actor, id string) (domain.Timesheet, error) {
	ts, err := e.Repo.GetTimesheet(ctx, nil, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ts, apperr.ErrNotAuthorized.With("timesheet_id", id)
	}
	if err != nil {
		return ts, err
	}
	if ts.OwnerID != actor.ID && !actor.Role.Reviewer() {
		return domain.Timesheet{}, apperr.ErrNotAuthorized.With("timesheet_id", id)
	}
	return ts, nil
}

func (e Engine) GetTimesheet(ctx context.Context, actor auth.Actor, id string) (TimesheetView, error) {
	ts, err := e.visibleTimesheet(ctx, actor, id)
	if err != nil {
		return TimesheetView{}, err
	}
	return e.timesheetView(ctx, ts)
}

// CurrentTimesheet returns the actor's timesheet for this week, creating it if needed.
func (e Engine) CurrentTimesheet(ctx context.Context, actor auth.Actor) (TimesheetView, error) {
	ts, err := e.ResolveTimesheet(ctx, actor, e.today().Format(domain.DateLayout))
	if err != nil {
		return TimesheetView{}, err
	}
	return e.timesheetView(ctx, ts)
}

// WeekTimesheet looks up the actor's timesheet for the week containing date
// without creating one. A week with no timesheet yields an unsaved DRAFT view.
func (e Engine) WeekTimesheet(ctx context.Context, actor auth.Actor, date string) (TimesheetView, error) {
	d, err := domain.ParseDate(date)
	if err != nil {
		return TimesheetView{}, err
	}
	start, end := domain.WeekOf(d)
	ts, err := e.Repo.GetTimesheetByWeek(ctx, nil, actor.ID, start.Format(domain.DateLayout))
	if errors.Is(err, repo.ErrNotFound) {
		ts = domain.Timesheet{
			OwnerID:   actor.ID,
			WeekStart: start.Format(domain.DateLayout),
			WeekEnd:   end.Format(domain.DateLayout),
			Status:    domain.TimesheetDraft,
		}
	} else if err != nil {
		return TimesheetView{}, err
	}
	return e.timesheetView(ctx, ts)
}

// ListTimesheets scopes workers to their own timesheets.
func (e Engine) ListTimesheets(ctx context.Context, actor auth.Actor, f repo.TimesheetFilter) ([]domain.Timesheet, error) {
	if !actor.Role.Reviewer() {
		f.OwnerID = actor.ID
	}
	return e.Repo.ListTimesheets(ctx, f)
}

// PendingTimesheets is the reviewer queue of submitted weeks.
func (e Engine) PendingTimesheets(ctx context.Context, actor auth.Actor, limit int) ([]domain.Timesheet, error) {
	if err := auth.Require(actor, auth.PermTimesheetReview); err != nil {
		return nil, err
	}
	return e.Repo.ListTimesheets(ctx, repo.TimesheetFilter{Status: domain.TimesheetSubmitted, Limit: limit})
}

// SubmitTimesheet hands a finished week to reviewers. Every entry goes back to
// PENDING so a resubmitted week is reviewed from scratch.
func (e Engine) SubmitTimesheet(ctx context.Context, actor auth.Actor, id, notes string) (domain.Timesheet, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Timesheet{}, err
	}
	defer tx.Rollback()

	ts, err := e.Repo.GetTimesheet(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && ts.OwnerID != actor.ID) {
		return domain.Timesheet{}, apperr.ErrNotAuthorized.With("timesheet_id", id)
	}
	if err != nil {
		return domain.Timesheet{}, err
	}
	if !ts.Status.Mutable() {
		return ts, apperr.ErrAlreadyProcessed.With("timesheet_id", id).With("status", string(ts.Status))
	}
	count, _, err := e.Repo.CountEntries(ctx, tx, repo.EntryFilter{TimesheetID: ts.ID})
	if err != nil {
		return domain.Timesheet{}, err
	}
	if count == 0 {
		return domain.Timesheet{}, apperr.ErrEmptyTimesheet.With("timesheet_id", id)
	}
	weekEnd, err := domain.ParseDate(ts.WeekEnd)
	if err != nil {
		return domain.Timesheet{}, err
	}
	if !domain.WeekElapsed(weekEnd, e.today()) {
		return domain.Timesheet{}, apperr.ErrWeekNotElapsed.With("timesheet_id", id).With("week_end", ts.WeekEnd)
	}
	now := e.stamp()
	ok, err := e.Repo.MarkTimesheetSubmitted(ctx, tx, ts.ID, strings.TrimSpace(notes), now)
	if err != nil {
		return domain.Timesheet{}, fmt.Errorf("submit timesheet: %w", err)
	}
	if !ok {
		current, err := e.Repo.GetTimesheet(ctx, tx, id)
		if err != nil {
			return domain.Timesheet{}, err
		}
		return current, apperr.ErrAlreadyProcessed.With("timesheet_id", id).With("status", string(current.Status))
	}
	n, err := e.Repo.CascadeTimesheetEntries(ctx, tx, ts.ID, repo.Decision{Status: domain.EntryPending, UpdatedAt: now})
	if err != nil {
		return domain.Timesheet{}, fmt.Errorf("reset entries: %w", err)
	}
	if err := e.record(ctx, tx, events.Record{
		Type:       events.TimesheetSubmitted,
		EntityKind: "timesheet",
		EntityID:   ts.ID,
		ActorID:    actor.ID,
		Payload:    events.Payload{"week_start": ts.WeekStart, "entries": n, "resubmission": ts.Status == domain.TimesheetRejected},
	}); err != nil {
		return domain.Timesheet{}, err
	}
	updated, err := e.Repo.GetTimesheet(ctx, tx, id)
	if err != nil {
		return domain.Timesheet{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Timesheet{}, err
	}
	return updated, nil
}

// SubmitWeek submits the actor's timesheet for the week containing date.
func (e Engine) SubmitWeek(ctx context.Context, actor auth.Actor, date, notes string) (domain.Timesheet, error) {
	d, err := domain.ParseDate(date)
	if err != nil {
		return domain.Timesheet{}, err
	}
	start, _ := domain.WeekOf(d)
	ts, err := e.Repo.GetTimesheetByWeek(ctx, nil, actor.ID, start.Format(domain.DateLayout))
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Timesheet{}, apperr.ErrEmptyTimesheet.With("week_start", start.Format(domain.DateLayout))
	}
	if err != nil {
		return domain.Timesheet{}, err
	}
	return e.SubmitTimesheet(ctx, actor, ts.ID, notes)
}

func (e Engine) ApproveTimesheet(ctx context.Context, actor auth.Actor, id string) (domain.Timesheet, error) {
	return e.decideTimesheet(ctx, actor, id, domain.TimesheetApproved, "")
}

func (e Engine) RejectTimesheet(ctx context.Context, actor auth.Actor, id, reason string) (domain.Timesheet, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		if err := auth.Require(actor, auth.PermTimesheetReview); err != nil {
			return domain.Timesheet{}, err
		}
		return domain.Timesheet{}, apperr.ErrMissingReason.With("timesheet_id", id)
	}
	return e.decideTimesheet(ctx, actor, id, domain.TimesheetRejected, reason)
}

// decideTimesheet flips a SUBMITTED timesheet and stamps the same decision on
// all of its entries in one transaction.
func (e Engine) decideTimesheet(ctx context.Context, actor auth.Actor, id string, status domain.TimesheetStatus, reason string) (domain.Timesheet, error) {
	if err := auth.Require(actor, auth.PermTimesheetReview); err != nil {
		return domain.Timesheet{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Timesheet{}, err
	}
	defer tx.Rollback()

	now := e.stamp()
	decision := repo.Decision{
		Status:     domain.EntryApproved,
		ApproverID: &actor.ID,
		DecidedAt:  &now,
		Reason:     optionalString(reason),
		UpdatedAt:  now,
	}
	if status == domain.TimesheetRejected {
		decision.Status = domain.EntryRejected
	}
	ok, err := e.Repo.DecideTimesheet(ctx, tx, id, status, decision)
	if err != nil {
		return domain.Timesheet{}, fmt.Errorf("decide timesheet: %w", err)
	}
	ts, err := e.Repo.GetTimesheet(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Timesheet{}, apperr.New(apperr.NotFound, "timesheet %s not found", id).With("timesheet_id", id)
	}
	if err != nil {
		return domain.Timesheet{}, err
	}
	if !ok {
		return ts, apperr.ErrAlreadyProcessed.With("timesheet_id", id).With("status", string(ts.Status))
	}
	n, err := e.Repo.CascadeTimesheetEntries(ctx, tx, id, decision)
	if err != nil {
		return domain.Timesheet{}, fmt.Errorf("cascade decision: %w", err)
	}
	typ := events.TimesheetApproved
	payload := events.Payload{"owner_id": ts.OwnerID, "week_start": ts.WeekStart, "entries": n}
	if status == domain.TimesheetRejected {
		typ = events.TimesheetRejected
		payload["reason"] = reason
	}
	if err := e.record(ctx, tx, events.Record{
		Type:       typ,
		EntityKind: "timesheet",
		EntityID:   id,
		ActorID:    actor.ID,
		Payload:    payload,
	}); err != nil {
		return domain.Timesheet{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Timesheet{}, err
	}
	return ts, nil
}
