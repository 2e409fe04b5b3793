package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trakka/internal/apperr"
	"trakka/internal/config"
	"trakka/internal/db"
	"trakka/internal/domain"
	"trakka/internal/engine"
	"trakka/internal/engine/auth"
	"trakka/internal/migrate"
	"trakka/internal/repo"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type testEnv struct {
	Engine  engine.Engine
	Ctx     context.Context
	Clock   *clock
	Worker  auth.Actor
	Other   auth.Actor
	Manager auth.Actor
	Admin   auth.Actor
	Project string
}

// Wednesday; the week runs 2024-01-08 .. 2024-01-14.
var wednesday = time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clk := &clock{t: wednesday}
	eng := engine.New(conn, config.Default("acme"))
	eng.Now = clk.Now
	ctx := context.Background()

	env := testEnv{
		Engine:  eng,
		Ctx:     ctx,
		Clock:   clk,
		Worker:  auth.Actor{ID: "alice", Role: domain.RoleWorker},
		Other:   auth.Actor{ID: "bob", Role: domain.RoleWorker},
		Manager: auth.Actor{ID: "mia", Role: domain.RoleManager},
		Admin:   auth.Actor{ID: "ada", Role: domain.RoleAdmin},
	}
	for _, a := range []auth.Actor{env.Worker, env.Other, env.Manager, env.Admin} {
		if err := eng.Repo.InsertActor(ctx, nil, domain.Actor{ID: a.ID, Role: a.Role, CreatedAt: wednesday.Format(time.RFC3339)}); err != nil {
			t.Fatalf("seed actor %s: %v", a.ID, err)
		}
	}
	p, err := eng.CreateProject(ctx, env.Admin, engine.ProjectInput{ID: "proj-1", Name: "Website"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	env.Project = p.ID
	return env
}

func (env testEnv) logMinutes(t *testing.T, actor auth.Actor, date string, minutes int) domain.TimeEntry {
	t.Helper()
	entry, err := env.Engine.CreateEntry(env.Ctx, actor, engine.EntryInput{
		ProjectID:   env.Project,
		Date:        date,
		Minutes:     minutes,
		Description: "work",
	})
	require.NoError(t, err)
	return entry
}

func TestCreateEntryAttachesToEnclosingWeek(t *testing.T) {
	env := newTestEnv(t)
	first := env.logMinutes(t, env.Worker, "2024-01-03", 90)
	second := env.logMinutes(t, env.Worker, "2024-01-07", 30)
	other := env.logMinutes(t, env.Other, "2024-01-03", 60)

	require.Equal(t, domain.EntryPending, first.Status)
	require.Equal(t, domain.EntryManual, first.Kind)
	require.Equal(t, first.TimesheetID, second.TimesheetID)
	require.NotEqual(t, first.TimesheetID, other.TimesheetID)

	view, err := env.Engine.GetTimesheet(env.Ctx, env.Worker, first.TimesheetID)
	require.NoError(t, err)
	require.Equal(t, "2024-01-01", view.Timesheet.WeekStart)
	require.Equal(t, "2024-01-07", view.Timesheet.WeekEnd)
	require.Equal(t, domain.TimesheetDraft, view.Timesheet.Status)
	require.Equal(t, 2, view.EntryCount)
	require.Equal(t, 120, view.TotalMinutes)
	require.Equal(t, 2.0, view.TotalHours)
	require.True(t, view.CanSubmit)
}

func TestCreateEntryValidatesDuration(t *testing.T) {
	env := newTestEnv(t)
	for _, minutes := range []int{0, -15} {
		_, err := env.Engine.CreateEntry(env.Ctx, env.Worker, engine.EntryInput{
			ProjectID: env.Project, Date: "2024-01-10", Minutes: minutes, Description: "x",
		})
		require.ErrorIs(t, err, apperr.ErrInvalidDuration, "minutes=%d", minutes)
	}
	_, err := env.Engine.CreateEntry(env.Ctx, env.Worker, engine.EntryInput{
		ProjectID: env.Project, Date: "2024-01-10", Minutes: 30,
	})
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = env.Engine.CreateEntry(env.Ctx, env.Worker, engine.EntryInput{
		ProjectID: "missing", Date: "2024-01-10", Minutes: 30, Description: "x",
	})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestIntervalEntryUsesDurationModel(t *testing.T) {
	env := newTestEnv(t)
	entry, err := env.Engine.CreateEntryFromInterval(env.Ctx, env.Worker, engine.IntervalEntryInput{
		ProjectID: env.Project, Date: "2024-01-09", StartTime: "09:00", EndTime: "11:00", Description: "pairing",
	})
	require.NoError(t, err)
	require.Equal(t, 120, entry.DurationMinutes)
	require.NotNil(t, entry.StartAt)
	require.Equal(t, "2024-01-09T09:00:00Z", *entry.StartAt)
	require.Equal(t, "2024-01-09T11:00:00Z", *entry.EndAt)

	_, err = env.Engine.CreateEntryFromInterval(env.Ctx, env.Worker, engine.IntervalEntryInput{
		ProjectID: env.Project, Date: "2024-01-09", StartTime: "11:00", EndTime: "09:00", Description: "x",
	})
	require.ErrorIs(t, err, apperr.ErrInvalidInterval)
	_, err = env.Engine.CreateEntryFromInterval(env.Ctx, env.Worker, engine.IntervalEntryInput{
		ProjectID: env.Project, Date: "2024-01-09", StartTime: "09:00", EndTime: "09:00", Description: "x",
	})
	require.ErrorIs(t, err, apperr.ErrInvalidInterval)
}

func TestInactiveProjectIsNotSelectable(t *testing.T) {
	env := newTestEnv(t)
	inactive := false
	_, err := env.Engine.UpdateProject(env.Ctx, env.Manager, env.Project, engine.ProjectUpdate{Active: &inactive})
	require.NoError(t, err)

	_, err = env.Engine.CreateEntry(env.Ctx, env.Worker, engine.EntryInput{
		ProjectID: env.Project, Date: "2024-01-10", Minutes: 30, Description: "x",
	})
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = env.Engine.StartTimer(env.Ctx, env.Worker, engine.TimerStartInput{ProjectID: env.Project})
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	projects, err := env.Engine.ListProjects(env.Ctx, env.Worker, true)
	require.NoError(t, err)
	require.Empty(t, projects)
	projects, err = env.Engine.ListProjects(env.Ctx, env.Manager, true)
	require.NoError(t, err)
	require.Len(t, projects, 1)
}

func TestProjectMembershipWhenRequired(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Projects.RequireMembership = true
	input := engine.EntryInput{ProjectID: env.Project, Date: "2024-01-10", Minutes: 30, Description: "x"}

	_, err := env.Engine.CreateEntry(env.Ctx, env.Worker, input)
	require.ErrorIs(t, err, apperr.ErrNotAuthorized)

	p, err := env.Engine.AddProjectMember(env.Ctx, env.Manager, env.Project, env.Worker.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, p.Members)

	_, err = env.Engine.CreateEntry(env.Ctx, env.Worker, input)
	require.NoError(t, err)
}

func TestProjectWritesNeedReviewerRole(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateProject(env.Ctx, env.Worker, engine.ProjectInput{Name: "Nope"})
	require.ErrorIs(t, err, apperr.ErrNotAuthorized)

	var forbidden auth.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	require.Equal(t, auth.PermProjectWrite, forbidden.Permission)

	err = env.Engine.DeleteProject(env.Ctx, env.Manager, env.Project)
	require.ErrorIs(t, err, apperr.ErrNotAuthorized)

	env.logMinutes(t, env.Worker, "2024-01-10", 30)
	require.NoError(t, env.Engine.DeleteProject(env.Ctx, env.Admin, env.Project))
	entries, err := env.Engine.ListEntries(env.Ctx, env.Worker, repo.EntryFilter{})
	require.NoError(t, err)
	require.Empty(t, entries)
}
