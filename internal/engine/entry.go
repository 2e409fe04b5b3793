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

// EntryInput is the canonical way to log time: a whole number of minutes on a date.
type EntryInput struct {
	ProjectID   string `json:"project_id" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Minutes     int    `json:"minutes"`
	Description string `json:"description" validate:"required"`
}

// IntervalEntryInput logs time as a start and end clock time on one date.
type IntervalEntryInput struct {
	ProjectID   string `json:"project_id" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// EntryUpdate carries the fields to change; nil means unchanged.
type EntryUpdate struct {
	ProjectID   *string
	Date        *string
	Minutes     *int
	Description *string
	// Override lets an admin bypass the status checks. It is audited.
	Override bool
}

func (e Engine) CreateEntry(ctx context.Context, actor auth.Actor, in EntryInput) (domain.TimeEntry, error) {
	in.Description = strings.TrimSpace(in.Description)
	if err := validateInput(in); err != nil {
		return domain.TimeEntry{}, err
	}
	minutes, err := domain.MinutesFrom(in.Minutes)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	date, err := domain.ParseDate(in.Date)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	return e.createEntry(ctx, actor, in.ProjectID, date, minutes, in.Description, nil, nil)
}

// CreateEntryFromInterval computes the duration from clock times in the
// organization timezone and then books it like CreateEntry.
func (e Engine) CreateEntryFromInterval(ctx context.Context, actor auth.Actor, in IntervalEntryInput) (domain.TimeEntry, error) {
	in.Description = strings.TrimSpace(in.Description)
	if err := validateInput(in); err != nil {
		return domain.TimeEntry{}, err
	}
	date, err := domain.ParseDate(in.Date)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	start, err := domain.ParseClock(date, in.StartTime, e.loc())
	if err != nil {
		return domain.TimeEntry{}, err
	}
	end, err := domain.ParseClock(date, in.EndTime, e.loc())
	if err != nil {
		return domain.TimeEntry{}, err
	}
	minutes, err := domain.MinutesBetween(start, end)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	startAt := start.UTC().Format(time.RFC3339)
	endAt := end.UTC().Format(time.RFC3339)
	return e.createEntry(ctx, actor, in.ProjectID, date, minutes, in.Description, &startAt, &endAt)
}

func (e Engine) createEntry(ctx context.Context, actor auth.Actor, projectID string, date time.Time, minutes int, description string, startAt, endAt *string) (domain.TimeEntry, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	defer tx.Rollback()

	if _, err := e.selectableProject(ctx, tx, actor, projectID); err != nil {
		return domain.TimeEntry{}, err
	}
	ts, err := e.resolveTimesheetTx(ctx, tx, actor.ID, date, actor.ID)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	if err := admit(ts); err != nil {
		return domain.TimeEntry{}, err
	}
	now := e.stamp()
	entry := domain.TimeEntry{
		ID:              newID(),
		OwnerID:         actor.ID,
		ProjectID:       projectID,
		TimesheetID:     ts.ID,
		Date:            date.Format(domain.DateLayout),
		DurationMinutes: minutes,
		Description:     description,
		Kind:            domain.EntryManual,
		StartAt:         startAt,
		EndAt:           endAt,
		Status:          domain.EntryPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.Repo.InsertEntry(ctx, tx, entry); err != nil {
		return domain.TimeEntry{}, fmt.Errorf("insert entry: %w", err)
	}
	if err := e.record(ctx, tx, events.Record{
		Type:       events.EntryCreated,
		ProjectID:  projectID,
		EntityKind: "entry",
		EntityID:   entry.ID,
		ActorID:    actor.ID,
		Payload:    events.Payload{"date": entry.Date, "minutes": minutes, "kind": string(entry.Kind), "timesheet_id": ts.ID},
	}); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TimeEntry{}, err
	}
	return entry, nil
}

// visibleEntry loads an entry the actor may see. Missing and foreign entries
// produce the same error.
func (e Engine) visibleEntry(ctx context.Context, tx *sql.Tx, actor auth.Actor, id string) (domain.TimeEntry, error) {
	entry, err := e.Repo.GetEntry(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.TimeEntry{}, apperr.ErrNotAuthorized.With("entry_id", id)
	}
	if err != nil {
		return domain.TimeEntry{}, err
	}
	if entry.OwnerID != actor.ID && !actor.Role.Reviewer() {
		return domain.TimeEntry{}, apperr.ErrNotAuthorized.With("entry_id", id)
	}
	return entry, nil
}

func (e Engine) entryTimesheet(ctx context.Context, tx *sql.Tx, entry domain.TimeEntry) (*domain.Timesheet, error) {
	if entry.TimesheetID == "" {
		return nil, nil
	}
	ts, err := e.Repo.GetTimesheet(ctx, tx, entry.TimesheetID)
	if err != nil {
		return nil, fmt.Errorf("load timesheet %s: %w", entry.TimesheetID, err)
	}
	return &ts, nil
}

// entryEditable holds while the timesheet is open and the entry is either still
// PENDING or was sent back by a timesheet rejection.
func entryEditable(entry domain.TimeEntry, ts *domain.Timesheet) error {
	if ts != nil {
		if err := admit(*ts); err != nil {
			return err
		}
	}
	if entry.Status == domain.EntryPending || (ts != nil && ts.Status == domain.TimesheetRejected) {
		return nil
	}
	return apperr.ErrEntryNotMutable.With("entry_id", entry.ID).With("status", string(entry.Status))
}

func (e Engine) recordOverride(ctx context.Context, tx *sql.Tx, actor auth.Actor, entry domain.TimeEntry, ts *domain.Timesheet, action string) error {
	payload := events.Payload{
		"action":       action,
		"accessed_by":  actor.ID,
		"owner_id":     entry.OwnerID,
		"entry_status": string(entry.Status),
	}
	if ts != nil {
		payload["timesheet_id"] = ts.ID
		payload["timesheet_status"] = string(ts.Status)
	}
	e.logger().Warn("admin override", "action", action, "entry_id", entry.ID, "actor_id", actor.ID)
	return e.record(ctx, tx, events.Record{
		Type:       events.EntryOverride,
		ProjectID:  entry.ProjectID,
		EntityKind: "entry",
		EntityID:   entry.ID,
		ActorID:    actor.ID,
		Payload:    payload,
	})
}

func (e Engine) UpdateEntry(ctx context.Context, actor auth.Actor, id string, upd EntryUpdate) (domain.TimeEntry, error) {
	if upd.Override {
		if err := auth.Require(actor, auth.PermEntryOverride); err != nil {
			return domain.TimeEntry{}, err
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	defer tx.Rollback()

	entry, err := e.visibleEntry(ctx, tx, actor, id)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	current, err := e.entryTimesheet(ctx, tx, entry)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	if !upd.Override {
		if err := entryEditable(entry, current); err != nil {
			return domain.TimeEntry{}, err
		}
	}
	changes := events.Payload{}
	if upd.Minutes != nil {
		minutes, err := domain.MinutesFrom(*upd.Minutes)
		if err != nil {
			return domain.TimeEntry{}, err
		}
		if minutes != entry.DurationMinutes {
			entry.DurationMinutes = minutes
			entry.StartAt, entry.EndAt = nil, nil
			changes["minutes"] = minutes
		}
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		if desc == "" {
			return domain.TimeEntry{}, apperr.New(apperr.InvalidInput, "description is required").With("field", "description")
		}
		entry.Description = desc
		changes["description"] = desc
	}
	if p := trimmed(upd.ProjectID); p != "" && p != entry.ProjectID {
		if _, err := e.selectableProject(ctx, tx, actor, p); err != nil {
			return domain.TimeEntry{}, err
		}
		changes["project_id"] = p
		entry.ProjectID = p
	}
	if d := trimmed(upd.Date); d != "" && d != entry.Date {
		date, err := domain.ParseDate(d)
		if err != nil {
			return domain.TimeEntry{}, err
		}
		ts, err := e.resolveTimesheetTx(ctx, tx, entry.OwnerID, date, actor.ID)
		if err != nil {
			return domain.TimeEntry{}, err
		}
		if !upd.Override {
			if err := admit(ts); err != nil {
				return domain.TimeEntry{}, err
			}
		}
		entry.Date = date.Format(domain.DateLayout)
		entry.TimesheetID = ts.ID
		entry.StartAt, entry.EndAt = nil, nil
		changes["date"] = entry.Date
		changes["timesheet_id"] = ts.ID
	}
	entry.UpdatedAt = e.stamp()
	anyStatus := upd.Override || (current != nil && current.Status == domain.TimesheetRejected)
	ok, err := e.Repo.UpdateEntry(ctx, tx, entry, anyStatus)
	if err != nil {
		return domain.TimeEntry{}, fmt.Errorf("update entry: %w", err)
	}
	if !ok {
		return domain.TimeEntry{}, apperr.ErrEntryNotMutable.With("entry_id", entry.ID)
	}
	if err := e.record(ctx, tx, events.Record{
		Type:       events.EntryUpdated,
		ProjectID:  entry.ProjectID,
		EntityKind: "entry",
		EntityID:   entry.ID,
		ActorID:    actor.ID,
		Payload:    changes,
	}); err != nil {
		return domain.TimeEntry{}, err
	}
	if upd.Override {
		if err := e.recordOverride(ctx, tx, actor, entry, current, "update"); err != nil {
			return domain.TimeEntry{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.TimeEntry{}, err
	}
	return entry, nil
}

func (e Engine) DeleteEntry(ctx context.Context, actor auth.Actor, id string, override bool) error {
	if override {
		if err := auth.Require(actor, auth.PermEntryOverride); err != nil {
			return err
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	entry, err := e.visibleEntry(ctx, tx, actor, id)
	if err != nil {
		return err
	}
	current, err := e.entryTimesheet(ctx, tx, entry)
	if err != nil {
		return err
	}
	if !override {
		if err := entryEditable(entry, current); err != nil {
			return err
		}
	}
	anyStatus := override || (current != nil && current.Status == domain.TimesheetRejected)
	ok, err := e.Repo.DeleteEntry(ctx, tx, id, anyStatus)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if !ok {
		return apperr.ErrEntryNotMutable.With("entry_id", id)
	}
	if err := e.record(ctx, tx, events.Record{
		Type:       events.EntryDeleted,
		ProjectID:  entry.ProjectID,
		EntityKind: "entry",
		EntityID:   entry.ID,
		ActorID:    actor.ID,
		Payload:    events.Payload{"owner_id": entry.OwnerID, "date": entry.Date, "minutes": entry.DurationMinutes},
	}); err != nil {
		return err
	}
	if override {
		if err := e.recordOverride(ctx, tx, actor, entry, current, "delete"); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (e Engine) ApproveEntry(ctx context.Context, actor auth.Actor, id string) (domain.TimeEntry, error) {
	return e.decideEntry(ctx, actor, id, domain.EntryApproved, "")
}

// RejectEntry rejects a single entry. The reason may be empty here, unlike
// timesheet rejection.
func (e Engine) RejectEntry(ctx context.Context, actor auth.Actor, id, reason string) (domain.TimeEntry, error) {
	return e.decideEntry(ctx, actor, id, domain.EntryRejected, strings.TrimSpace(reason))
}

func (e Engine) decideEntry(ctx context.Context, actor auth.Actor, id string, status domain.EntryStatus, reason string) (domain.TimeEntry, error) {
	if err := auth.Require(actor, auth.PermEntryReview); err != nil {
		return domain.TimeEntry{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	defer tx.Rollback()

	now := e.stamp()
	ok, err := e.Repo.DecideEntry(ctx, tx, id, repo.Decision{
		Status:     status,
		ApproverID: &actor.ID,
		DecidedAt:  &now,
		Reason:     optionalString(reason),
		UpdatedAt:  now,
	})
	if err != nil {
		return domain.TimeEntry{}, fmt.Errorf("decide entry: %w", err)
	}
	entry, err := e.Repo.GetEntry(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.TimeEntry{}, apperr.New(apperr.NotFound, "entry %s not found", id).With("entry_id", id)
	}
	if err != nil {
		return domain.TimeEntry{}, err
	}
	if !ok {
		return entry, apperr.ErrAlreadyProcessed.With("entry_id", id).With("status", string(entry.Status))
	}
	typ := events.EntryApproved
	if status == domain.EntryRejected {
		typ = events.EntryRejected
	}
	payload := events.Payload{"owner_id": entry.OwnerID}
	if reason != "" {
		payload["reason"] = reason
	}
	if err := e.record(ctx, tx, events.Record{
		Type:       typ,
		ProjectID:  entry.ProjectID,
		EntityKind: "entry",
		EntityID:   entry.ID,
		ActorID:    actor.ID,
		Payload:    payload,
	}); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TimeEntry{}, err
	}
	return entry, nil
}

func (e Engine) GetEntry(ctx context.Context, actor auth.Actor, id string) (domain.TimeEntry, error) {
	return e.visibleEntry(ctx, nil, actor, id)
}

// ListEntries scopes workers to their own entries whatever owner they ask for.
func (e Engine) ListEntries(ctx context.Context, actor auth.Actor, f repo.EntryFilter) ([]domain.TimeEntry, error) {
	if !actor.Role.Reviewer() {
		f.OwnerID = actor.ID
	}
	return e.Repo.ListEntries(ctx, nil, f)
}

// PendingEntries is the reviewer queue of entries awaiting a decision.
func (e Engine) PendingEntries(ctx context.Context, actor auth.Actor, limit int) ([]domain.TimeEntry, error) {
	if err := auth.Require(actor, auth.PermEntryReview); err != nil {
		return nil, err
	}
	return e.Repo.ListEntries(ctx, nil, repo.EntryFilter{Status: domain.EntryPending, Limit: limit})
}
