package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"trakka/internal/domain"
)

const entryColumns = `id, owner_id, project_id, timesheet_id, entry_date, duration_minutes, description, kind, start_at, end_at, status, approver_id, approved_at, rejection_reason, created_at, updated_at`

type EntryFilter struct {
	OwnerID     string
	ProjectID   string
	TimesheetID string
	Status      domain.EntryStatus
	From        string
	To          string
	Ascending   bool
	Limit       int
}

func (f EntryFilter) where() (string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.TimesheetID != "" {
		clauses = append(clauses, "timesheet_id=?")
		args = append(args, f.TimesheetID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, string(f.Status))
	}
	if f.From != "" {
		clauses = append(clauses, "entry_date>=?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "entry_date<=?")
		args = append(args, f.To)
	}
	return strings.Join(clauses, " AND "), args
}

func scanEntry(s scanner) (domain.TimeEntry, error) {
	var e domain.TimeEntry
	var timesheetID, startAt, endAt, approver, approvedAt, reason sql.NullString
	var kind, status string
	err := s.Scan(&e.ID, &e.OwnerID, &e.ProjectID, &timesheetID, &e.Date, &e.DurationMinutes, &e.Description, &kind,
		&startAt, &endAt, &status, &approver, &approvedAt, &reason, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	e.TimesheetID = timesheetID.String
	e.Kind = domain.EntryKind(kind)
	e.Status = domain.EntryStatus(status)
	e.StartAt = stringPtr(startAt)
	e.EndAt = stringPtr(endAt)
	e.ApproverID = stringPtr(approver)
	e.ApprovedAt = stringPtr(approvedAt)
	e.RejectionReason = stringPtr(reason)
	return e, nil
}

func (r Repo) InsertEntry(ctx context.Context, tx *sql.Tx, e domain.TimeEntry) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO time_entries(`+entryColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.OwnerID, e.ProjectID, nullable(e.TimesheetID), e.Date, e.DurationMinutes, e.Description, string(e.Kind),
		nullableStringPtr(e.StartAt), nullableStringPtr(e.EndAt), string(e.Status),
		nullableStringPtr(e.ApproverID), nullableStringPtr(e.ApprovedAt), nullableStringPtr(e.RejectionReason),
		e.CreatedAt, e.UpdatedAt)
	return err
}

func (r Repo) GetEntry(ctx context.Context, tx *sql.Tx, id string) (domain.TimeEntry, error) {
	return scanEntry(r.on(tx).QueryRowContext(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id=?`, id))
}

// UpdateEntry writes the editable fields of an entry. Unless anyStatus is set only
// PENDING rows match; false means nothing was written.
func (r Repo) UpdateEntry(ctx context.Context, tx *sql.Tx, e domain.TimeEntry, anyStatus bool) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE time_entries SET project_id=?, timesheet_id=?, entry_date=?, duration_minutes=?, description=?, start_at=?, end_at=?, updated_at=?
		WHERE id=? AND (status='PENDING' OR ?)`,
		e.ProjectID, nullable(e.TimesheetID), e.Date, e.DurationMinutes, e.Description,
		nullableStringPtr(e.StartAt), nullableStringPtr(e.EndAt), e.UpdatedAt, e.ID, boolInt(anyStatus))
	if err != nil {
		return false, err
	}
	return affected(res)
}

// DeleteEntry removes an entry, PENDING only unless anyStatus; false means nothing matched.
func (r Repo) DeleteEntry(ctx context.Context, tx *sql.Tx, id string, anyStatus bool) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM time_entries WHERE id=? AND (status='PENDING' OR ?)`, id, boolInt(anyStatus))
	if err != nil {
		return false, err
	}
	return affected(res)
}

// Decision is the reviewer outcome applied to one or many entries.
type Decision struct {
	Status     domain.EntryStatus
	ApproverID *string
	DecidedAt  *string
	Reason     *string
	UpdatedAt  string
}

// DecideEntry moves a PENDING entry to the decided status. It reports false when
// the entry was not PENDING at write time.
func (r Repo) DecideEntry(ctx context.Context, tx *sql.Tx, id string, d Decision) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE time_entries SET status=?, approver_id=?, approved_at=?, rejection_reason=?, updated_at=?
		WHERE id=? AND status='PENDING'`,
		string(d.Status), nullableStringPtr(d.ApproverID), nullableStringPtr(d.DecidedAt), nullableStringPtr(d.Reason), d.UpdatedAt, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// CascadeTimesheetEntries applies d to every entry of the timesheet in one statement.
func (r Repo) CascadeTimesheetEntries(ctx context.Context, tx *sql.Tx, timesheetID string, d Decision) (int64, error) {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE time_entries SET status=?, approver_id=?, approved_at=?, rejection_reason=?, updated_at=? WHERE timesheet_id=?`,
		string(d.Status), nullableStringPtr(d.ApproverID), nullableStringPtr(d.DecidedAt), nullableStringPtr(d.Reason), d.UpdatedAt, timesheetID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) ListEntries(ctx context.Context, tx *sql.Tx, f EntryFilter) ([]domain.TimeEntry, error) {
	where, args := f.where()
	order := "entry_date DESC, created_at DESC, id DESC"
	if f.Ascending {
		order = "entry_date ASC, created_at ASC, id ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM time_entries WHERE %s ORDER BY %s`, entryColumns, where, order)
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.on(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// CountEntries returns the number of rows and total minutes matching f.
func (r Repo) CountEntries(ctx context.Context, tx *sql.Tx, f EntryFilter) (count int, minutes int, err error) {
	where, args := f.where()
	err = r.on(tx).QueryRowContext(ctx, `SELECT COUNT(1), COALESCE(SUM(duration_minutes),0) FROM time_entries WHERE `+where, args...).Scan(&count, &minutes)
	return count, minutes, err
}
