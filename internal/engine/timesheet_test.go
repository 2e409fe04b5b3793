package engine_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trakka/internal/apperr"
	"trakka/internal/domain"
	"trakka/internal/engine"
	"trakka/internal/repo"
)

func TestConcurrentResolveConvergesOnOneTimesheet(t *testing.T) {
	env := newTestEnv(t)
	const workers = 8
	var wg sync.WaitGroup
	ids := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ts, err := env.Engine.ResolveTimesheet(env.Ctx, env.Worker, "2024-01-04")
			ids[i], errs[i] = ts.ID, err
		}(i)
	}
	wg.Wait()
	for i := range ids {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
	sheets, err := env.Engine.ListTimesheets(env.Ctx, env.Worker, repo.TimesheetFilter{})
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	require.Equal(t, "2024-01-01", sheets[0].WeekStart)
}

func TestSubmitPreconditions(t *testing.T) {
	env := newTestEnv(t)

	empty, err := env.Engine.ResolveTimesheet(env.Ctx, env.Worker, "2023-12-27")
	require.NoError(t, err)
	_, err = env.Engine.SubmitTimesheet(env.Ctx, env.Worker, empty.ID, "")
	require.ErrorIs(t, err, apperr.ErrEmptyTimesheet)

	current := env.logMinutes(t, env.Worker, "2024-01-09", 60)
	_, err = env.Engine.SubmitTimesheet(env.Ctx, env.Worker, current.TimesheetID, "")
	require.ErrorIs(t, err, apperr.ErrWeekNotElapsed)

	past := env.logMinutes(t, env.Worker, "2024-01-02", 60)
	_, err = env.Engine.SubmitTimesheet(env.Ctx, env.Other, past.TimesheetID, "")
	require.ErrorIs(t, err, apperr.ErrNotAuthorized)
	_, err = env.Engine.SubmitTimesheet(env.Ctx, env.Worker, "missing", "")
	require.ErrorIs(t, err, apperr.ErrNotAuthorized)

	ts, err := env.Engine.SubmitTimesheet(env.Ctx, env.Worker, past.TimesheetID, "all done")
	require.NoError(t, err)
	require.Equal(t, domain.TimesheetSubmitted, ts.Status)
	require.Equal(t, "all done", ts.Notes)
	require.NotNil(t, ts.SubmittedAt)

	again, err := env.Engine.SubmitTimesheet(env.Ctx, env.Worker, past.TimesheetID, "")
	require.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
	require.Equal(t, domain.TimesheetSubmitted, again.Status)

	_, err = env.Engine.CreateEntry(env.Ctx, env.Worker, engine.EntryInput{
		ProjectID: env.Project, Date: "2024-01-03", Minutes: 15, Description: "late",
	})
	require.ErrorIs(t, err, apperr.ErrTimesheetNotMutable)
}

func TestSubmitAtWeekBoundary(t *testing.T) {
	env := newTestEnv(t)
	entry := env.logMinutes(t, env.Worker, "2024-01-09", 60)

	env.Clock.Set(time.Date(2024, 1, 14, 23, 59, 0, 0, time.UTC))
	_, err := env.Engine.SubmitTimesheet(env.Ctx, env.Worker, entry.TimesheetID, "")
	require.ErrorIs(t, err, apperr.ErrWeekNotElapsed)
	view, err := env.Engine.GetTimesheet(env.Ctx, env.Worker, entry.TimesheetID)
	require.NoError(t, err)
	require.Equal(t, domain.TimesheetDraft, view.Timesheet.Status)
	require.Nil(t, view.Timesheet.SubmittedAt)
	require.False(t, view.CanSubmit)

	env.Clock.Set(time.Date(2024, 1, 15, 0, 0, 1, 0, time.UTC))
	ts, err := env.Engine.SubmitTimesheet(env.Ctx, env.Worker, entry.TimesheetID, "")
	require.NoError(t, err)
	require.Equal(t, domain.TimesheetSubmitted, ts.Status)
}

func TestSubmitEmptiedRejectedTimesheet(t *testing.T) {
	env := newTestEnv(t)
	a := env.logMinutes(t, env.Worker, "2024-01-02", 60)
	b := env.logMinutes(t, env.Worker, "2024-01-03", 30)
	_, err := env.Engine.SubmitTimesheet(env.Ctx, env.Worker, a.TimesheetID, "")
	require.NoError(t, err)
	_, err = env.Engine.RejectTimesheet(env.Ctx, env.Manager, a.TimesheetID, "wrong project")
	require.NoError(t, err)

	require.NoError(t, env.Engine.DeleteEntry(env.Ctx, env.Worker, a.ID, false))
	require.NoError(t, env.Engine.DeleteEntry(env.Ctx, env.Worker, b.ID, false))

	_, err = env.Engine.SubmitTimesheet(env.Ctx, env.Worker, a.TimesheetID, "")
	require.ErrorIs(t, err, apperr.ErrEmptyTimesheet)
	view, err := env.Engine.GetTimesheet(env.Ctx, env.Worker, a.TimesheetID)
	require.NoError(t, err)
	require.Equal(t, domain.TimesheetRejected, view.Timesheet.Status)
	require.Zero(t, view.EntryCount)
	require.Zero(t, view.TotalMinutes)
}

func TestTimesheetViewTotalsMatchEntries(t *testing.T) {
	env := newTestEnv(t)
	a := env.logMinutes(t, env.Worker, "2024-01-08", 45)
	env.logMinutes(t, env.Worker, "2024-01-09", 50)
	env.logMinutes(t, env.Worker, "2024-01-14", 25)

	view, err := env.Engine.GetTimesheet(env.Ctx, env.Worker, a.TimesheetID)
	require.NoError(t, err)
	require.Len(t, view.Entries, 3)
	sum := 0
	for _, entry := range view.Entries {
		sum += entry.DurationMinutes
	}
	require.Equal(t, len(view.Entries), view.EntryCount)
	require.Equal(t, sum, view.TotalMinutes)
	require.Equal(t, 120, view.TotalMinutes)
	require.InDelta(t, 2.0, view.TotalHours, 0.0001)
}

func TestSubmitWeekWithoutTimesheet(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.SubmitWeek(env.Ctx, env.Worker, "2023-12-20", "")
	require.ErrorIs(t, err, apperr.ErrEmptyTimesheet)

	env.logMinutes(t, env.Worker, "2023-12-20", 45)
	ts, err := env.Engine.SubmitWeek(env.Ctx, env.Worker, "2023-12-22", "")
	require.NoError(t, err)
	require.Equal(t, "2023-12-18", ts.WeekStart)
}

func TestApproveTimesheetCascadesToEntries(t *testing.T) {
	env := newTestEnv(t)
	a := env.logMinutes(t, env.Worker, "2024-01-02", 60)
	env.logMinutes(t, env.Worker, "2024-01-03", 30)
	_, err := env.Engine.SubmitTimesheet(env.Ctx, env.Worker, a.TimesheetID, "")
	require.NoError(t, err)

	_, err = env.Engine.ApproveTimesheet(env.Ctx, env.Worker, a.TimesheetID)
	require.ErrorIs(t, err, apperr.ErrNotAuthorized)

	pending, err := env.Engine.PendingTimesheets(env.Ctx, env.Manager, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	ts, err := env.Engine.ApproveTimesheet(env.Ctx, env.Manager, a.TimesheetID)
	require.NoError(t, err)
	require.Equal(t, domain.TimesheetApproved, ts.Status)
	require.Equal(t, env.Manager.ID, *ts.ApproverID)

	view, err := env.Engine.GetTimesheet(env.Ctx, env.Worker, a.TimesheetID)
	require.NoError(t, err)
	require.Len(t, view.Entries, 2)
	for _, entry := range view.Entries {
		require.Equal(t, domain.EntryApproved, entry.Status)
		require.Equal(t, env.Manager.ID, *entry.ApproverID)
		require.Equal(t, *ts.ApprovedAt, *entry.ApprovedAt)
	}
	require.False(t, view.CanSubmit)

	again, err := env.Engine.ApproveTimesheet(env.Ctx, env.Admin, a.TimesheetID)
	require.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
	require.Equal(t, env.Manager.ID, *again.ApproverID)

	_, err = env.Engine.RejectTimesheet(env.Ctx, env.Manager, a.TimesheetID, "too late")
	require.ErrorIs(t, err, apperr.ErrAlreadyProcessed)

	_, err = env.Engine.ApproveTimesheet(env.Ctx, env.Manager, "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestApproveDraftTimesheetIsAlreadyProcessed(t *testing.T) {
	env := newTestEnv(t)
	entry := env.logMinutes(t, env.Worker, "2024-01-02", 60)
	ts, err := env.Engine.ApproveTimesheet(env.Ctx, env.Manager, entry.TimesheetID)
	require.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
	require.Equal(t, domain.TimesheetDraft, ts.Status)
}

func TestRejectAndResubmit(t *testing.T) {
	env := newTestEnv(t)
	a := env.logMinutes(t, env.Worker, "2024-01-02", 60)
	b := env.logMinutes(t, env.Worker, "2024-01-04", 30)
	_, err := env.Engine.SubmitTimesheet(env.Ctx, env.Worker, a.TimesheetID, "")
	require.NoError(t, err)

	_, err = env.Engine.RejectTimesheet(env.Ctx, env.Manager, a.TimesheetID, "  ")
	require.ErrorIs(t, err, apperr.ErrMissingReason)
	_, err = env.Engine.RejectTimesheet(env.Ctx, env.Worker, a.TimesheetID, "")
	require.ErrorIs(t, err, apperr.ErrNotAuthorized)

	ts, err := env.Engine.RejectTimesheet(env.Ctx, env.Manager, a.TimesheetID, "split the 2nd")
	require.NoError(t, err)
	require.Equal(t, domain.TimesheetRejected, ts.Status)
	require.Equal(t, "split the 2nd", *ts.RejectionReason)

	rejected, err := env.Engine.GetEntry(env.Ctx, env.Worker, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.EntryRejected, rejected.Status)
	require.Equal(t, "split the 2nd", *rejected.RejectionReason)

	// A rejected week is open again, including its rejected entries.
	minutes := 40
	updated, err := env.Engine.UpdateEntry(env.Ctx, env.Worker, a.ID, engine.EntryUpdate{Minutes: &minutes})
	require.NoError(t, err)
	require.Equal(t, 40, updated.DurationMinutes)
	require.NoError(t, env.Engine.DeleteEntry(env.Ctx, env.Worker, b.ID, false))
	env.logMinutes(t, env.Worker, "2024-01-02", 20)

	ts, err = env.Engine.SubmitTimesheet(env.Ctx, env.Worker, a.TimesheetID, "fixed")
	require.NoError(t, err)
	require.Equal(t, domain.TimesheetSubmitted, ts.Status)
	require.Nil(t, ts.RejectionReason)
	require.Nil(t, ts.ApproverID)

	view, err := env.Engine.GetTimesheet(env.Ctx, env.Manager, a.TimesheetID)
	require.NoError(t, err)
	require.Equal(t, 2, view.EntryCount)
	require.Equal(t, 60, view.TotalMinutes)
	for _, entry := range view.Entries {
		require.Equal(t, domain.EntryPending, entry.Status)
		require.Nil(t, entry.ApproverID)
		require.Nil(t, entry.RejectionReason)
	}
}

func TestWorkerCannotSeeForeignTimesheet(t *testing.T) {
	env := newTestEnv(t)
	entry := env.logMinutes(t, env.Worker, "2024-01-02", 60)

	_, err := env.Engine.GetTimesheet(env.Ctx, env.Other, entry.TimesheetID)
	require.ErrorIs(t, err, apperr.ErrNotAuthorized)
	_, err = env.Engine.GetTimesheet(env.Ctx, env.Other, "missing")
	require.ErrorIs(t, err, apperr.ErrNotAuthorized)

	view, err := env.Engine.GetTimesheet(env.Ctx, env.Manager, entry.TimesheetID)
	require.NoError(t, err)
	require.Equal(t, env.Worker.ID, view.Timesheet.OwnerID)

	sheets, err := env.Engine.ListTimesheets(env.Ctx, env.Other, repo.TimesheetFilter{OwnerID: env.Worker.ID})
	require.NoError(t, err)
	require.Empty(t, sheets)
}

func TestWeekTimesheetDoesNotCreate(t *testing.T) {
	env := newTestEnv(t)
	view, err := env.Engine.WeekTimesheet(env.Ctx, env.Worker, "2024-01-10")
	require.NoError(t, err)
	require.Empty(t, view.Timesheet.ID)
	require.Equal(t, "2024-01-08", view.Timesheet.WeekStart)
	require.Equal(t, domain.TimesheetDraft, view.Timesheet.Status)
	require.False(t, view.CanSubmit)

	sheets, err := env.Engine.ListTimesheets(env.Ctx, env.Worker, repo.TimesheetFilter{})
	require.NoError(t, err)
	require.Empty(t, sheets)

	current, err := env.Engine.CurrentTimesheet(env.Ctx, env.Worker)
	require.NoError(t, err)
	require.NotEmpty(t, current.Timesheet.ID)
	require.Equal(t, "2024-01-14", current.Timesheet.WeekEnd)
}
