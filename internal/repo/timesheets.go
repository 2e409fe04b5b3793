package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"trakka/internal/domain"
)

const timesheetColumns = `id, owner_id, week_start, week_end, status, notes, submitted_at, approver_id, approved_at, rejection_reason, created_at, updated_at`

type TimesheetFilter struct {
	OwnerID string
	Status  domain.TimesheetStatus
	From    string
	To      string
	Limit   int
}

func scanTimesheet(s scanner) (domain.Timesheet, error) {
	var t domain.Timesheet
	var status string
	var notes, submitted, approver, approvedAt, reason sql.NullString
	err := s.Scan(&t.ID, &t.OwnerID, &t.WeekStart, &t.WeekEnd, &status, &notes, &submitted, &approver, &approvedAt, &reason, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Status = domain.TimesheetStatus(status)
	t.Notes = notes.String
	t.SubmittedAt = stringPtr(submitted)
	t.ApproverID = stringPtr(approver)
	t.ApprovedAt = stringPtr(approvedAt)
	t.RejectionReason = stringPtr(reason)
	return t, nil
}

// EnsureTimesheet returns the timesheet for (owner, week_start), inserting ts when none
// exists. created reports whether this call inserted the row. The unique key on
// (owner_id, week_start) makes concurrent callers converge on one row.
func (r Repo) EnsureTimesheet(ctx context.Context, tx *sql.Tx, ts domain.Timesheet) (domain.Timesheet, bool, error) {
	q := r.on(tx)
	res, err := q.ExecContext(ctx, `INSERT INTO timesheets(id, owner_id, week_start, week_end, status, created_at, updated_at) VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(owner_id, week_start) DO NOTHING`,
		ts.ID, ts.OwnerID, ts.WeekStart, ts.WeekEnd, string(domain.TimesheetDraft), ts.CreatedAt, ts.UpdatedAt)
	if err != nil {
		return domain.Timesheet{}, false, err
	}
	created, err := affected(res)
	if err != nil {
		return domain.Timesheet{}, false, err
	}
	got, err := r.GetTimesheetByWeek(ctx, tx, ts.OwnerID, ts.WeekStart)
	return got, created, err
}

func (r Repo) GetTimesheet(ctx context.Context, tx *sql.Tx, id string) (domain.Timesheet, error) {
	return scanTimesheet(r.on(tx).QueryRowContext(ctx, `SELECT `+timesheetColumns+` FROM timesheets WHERE id=?`, id))
}

func (r Repo) GetTimesheetByWeek(ctx context.Context, tx *sql.Tx, ownerID, weekStart string) (domain.Timesheet, error) {
	return scanTimesheet(r.on(tx).QueryRowContext(ctx, `SELECT `+timesheetColumns+` FROM timesheets WHERE owner_id=? AND week_start=?`, ownerID, weekStart))
}

// MarkTimesheetSubmitted flips a DRAFT or REJECTED timesheet to SUBMITTED and clears
// the previous decision. It reports false when the row was in any other state.
func (r Repo) MarkTimesheetSubmitted(ctx context.Context, tx *sql.Tx, id, notes, at string) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE timesheets SET status='SUBMITTED', notes=?, submitted_at=?, approver_id=NULL, approved_at=NULL, rejection_reason=NULL, updated_at=?
		WHERE id=? AND status IN ('DRAFT','REJECTED')`, nullable(notes), at, at, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// DecideTimesheet records a reviewer decision on a SUBMITTED timesheet.
func (r Repo) DecideTimesheet(ctx context.Context, tx *sql.Tx, id string, status domain.TimesheetStatus, d Decision) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE timesheets SET status=?, approver_id=?, approved_at=?, rejection_reason=?, updated_at=?
		WHERE id=? AND status='SUBMITTED'`,
		string(status), nullableStringPtr(d.ApproverID), nullableStringPtr(d.DecidedAt), nullableStringPtr(d.Reason), d.UpdatedAt, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r Repo) ListTimesheets(ctx context.Context, f TimesheetFilter) ([]domain.Timesheet, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, string(f.Status))
	}
	if f.From != "" {
		clauses = append(clauses, "week_start>=?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "week_start<=?")
		args = append(args, f.To)
	}
	query := fmt.Sprintf(`SELECT %s FROM timesheets WHERE %s ORDER BY week_start DESC, owner_id`, timesheetColumns, strings.Join(clauses, " AND "))
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Timesheet
	for rows.Next() {
		t, err := scanTimesheet(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
