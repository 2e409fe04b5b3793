package engine_test

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"

	"trakka/internal/domain"
	"trakka/internal/engine"
)

func TestSummaryScopesWorkersToThemselves(t *testing.T) {
	env := newTestEnv(t)
	env.logMinutes(t, env.Worker, "2024-01-08", 90)
	env.logMinutes(t, env.Worker, "2024-01-09", 30)
	env.logMinutes(t, env.Other, "2024-01-09", 60)

	mine, err := env.Engine.Summary(env.Ctx, env.Worker, engine.ReportFilter{OwnerID: env.Other.ID})
	require.NoError(t, err)
	require.Equal(t, env.Worker.ID, mine.Filter.OwnerID)
	require.Equal(t, 120, mine.TotalMinutes)
	require.Equal(t, 2.0, mine.TotalHours)
	require.Equal(t, 2, mine.EntryCount)
	require.Nil(t, mine.ByOwner)
	require.Len(t, mine.ByProject, 1)
	require.Equal(t, "Website", mine.ByProject[0].Label)

	all, err := env.Engine.Summary(env.Ctx, env.Manager, engine.ReportFilter{From: "2024-01-08", To: "2024-01-14"})
	require.NoError(t, err)
	require.Equal(t, 180, all.TotalMinutes)
	require.Len(t, all.ByOwner, 2)
	require.Equal(t, env.Worker.ID, all.ByOwner[0].Key)
	require.Equal(t, 2.0, all.ByOwner[0].Hours)
	require.Len(t, all.ByStatus, 1)
	require.Equal(t, string(domain.EntryPending), all.ByStatus[0].Key)

	_, err = env.Engine.Summary(env.Ctx, env.Manager, engine.ReportFilter{From: "last week"})
	require.Error(t, err)
}

func TestProjectSummaryBudget(t *testing.T) {
	env := newTestEnv(t)
	budget := 10.0
	p, err := env.Engine.CreateProject(env.Ctx, env.Manager, engine.ProjectInput{ID: "proj-2", Name: "Mobile", BudgetHours: &budget})
	require.NoError(t, err)

	entry, err := env.Engine.CreateEntry(env.Ctx, env.Worker, engine.EntryInput{ProjectID: p.ID, Date: "2024-01-09", Minutes: 150, Description: "build"})
	require.NoError(t, err)
	_, err = env.Engine.ApproveEntry(env.Ctx, env.Manager, entry.ID)
	require.NoError(t, err)
	_, err = env.Engine.CreateEntry(env.Ctx, env.Worker, engine.EntryInput{ProjectID: p.ID, Date: "2024-01-09", Minutes: 30, Description: "fix"})
	require.NoError(t, err)

	rep, err := env.Engine.ProjectSummary(env.Ctx, env.Manager, p.ID)
	require.NoError(t, err)
	require.Equal(t, 180, rep.TotalMinutes)
	require.Equal(t, 3.0, rep.TotalHours)
	require.Equal(t, 150, rep.ApprovedMinutes)
	require.Equal(t, 2, rep.EntryCount)
	require.NotNil(t, rep.BudgetUsedPercent)
	require.Equal(t, 30.0, *rep.BudgetUsedPercent)
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t)
	env.logMinutes(t, env.Worker, "2024-01-08", 90)
	env.logMinutes(t, env.Worker, "2024-01-09", 45)
	env.logMinutes(t, env.Other, "2024-01-09", 60)

	var buf bytes.Buffer
	require.NoError(t, env.Engine.ExportCSV(env.Ctx, env.Worker, engine.ReportFilter{}, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"Date", "Owner", "Project", "Description", "Duration (hours)", "Minutes", "Status", "Entry Type"}, rows[0])
	require.Equal(t, []string{"2024-01-09", "alice", "Website", "work", "0.75", "45", "PENDING", "MANUAL"}, rows[1])
	require.Equal(t, "2024-01-08", rows[2][0])
	require.Equal(t, "1.50", rows[2][4])
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	env.logMinutes(t, env.Worker, "2024-01-08", 90)
	env.logMinutes(t, env.Other, "2024-01-09", 60)
	_, err := env.Engine.StartTimer(env.Ctx, env.Worker, engine.TimerStartInput{ProjectID: env.Project})
	require.NoError(t, err)

	d, err := env.Engine.Dashboard(env.Ctx, env.Worker)
	require.NoError(t, err)
	require.Equal(t, "2024-01-10", d.Today)
	require.NotEmpty(t, d.Week.Timesheet.ID)
	require.Equal(t, 90, d.WeekMinutes)
	require.Equal(t, 1.5, d.WeekHours)
	require.True(t, d.Timer.Running)
	require.Len(t, d.Recent, 1)
	require.Equal(t, 1, d.ActiveProjects)
	require.Zero(t, d.PendingEntries)

	m, err := env.Engine.Dashboard(env.Ctx, env.Manager)
	require.NoError(t, err)
	require.Empty(t, m.Week.Timesheet.ID)
	require.Equal(t, 150, m.WeekMinutes)
	require.Equal(t, 2, m.PendingEntries)
	require.Zero(t, m.SubmittedTimesheets)
}
