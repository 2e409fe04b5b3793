package trakkasdk_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trakka/internal/config"
	"trakka/internal/db"
	"trakka/internal/domain"
	"trakka/internal/engine"
	"trakka/internal/migrate"
	"trakka/internal/server"
	trakkasdk "trakka/sdk/go"
)

const secret = "sdk-secret"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func newClients(t *testing.T) (worker, manager *trakkasdk.Client, clk *clock) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	clk = &clock{t: time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)}
	e := engine.New(conn, config.Default("acme"))
	e.Now = clk.Now
	ctx := context.Background()
	require.NoError(t, e.Repo.InsertActor(ctx, nil, domain.Actor{ID: "alice", Role: domain.RoleWorker}))
	require.NoError(t, e.Repo.InsertActor(ctx, nil, domain.Actor{ID: "mia", Role: domain.RoleAdmin}))

	handler, err := server.New(server.Config{
		Engine: e,
		Auth:   server.AuthConfig{JWTSecret: secret},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := func(id string) *trakkasdk.Client {
		token, err := server.SignToken(secret, id, time.Hour)
		require.NoError(t, err)
		c := trakkasdk.New(srv.URL)
		c.BearerToken = token
		return c
	}
	return client("alice"), client("mia"), clk
}

func TestClientWeekLifecycle(t *testing.T) {
	worker, manager, clk := newClients(t)
	ctx := context.Background()

	_, err := manager.CreateProject(ctx, "web", "Website")
	require.NoError(t, err)

	entry, err := worker.LogTime(ctx, trakkasdk.EntryInput{ProjectID: "web", Date: "2024-01-09", Minutes: 90, Description: "build"})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", entry.Status)

	_, err = worker.SubmitTimesheet(ctx, entry.TimesheetID, "")
	var apiErr *trakkasdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "week_not_elapsed", apiErr.Code)

	clk.Set(time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC))
	submitted, err := worker.SubmitTimesheet(ctx, entry.TimesheetID, "all done")
	require.NoError(t, err)
	assert.Equal(t, trakkasdk.OutcomeApplied, submitted.Outcome)

	rejected, err := manager.RejectTimesheet(ctx, entry.TimesheetID, "split the build time")
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", rejected.Timesheet.Status)

	view, err := worker.Timesheet(ctx, entry.TimesheetID)
	require.NoError(t, err)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, "REJECTED", view.Entries[0].Status)
	require.NotNil(t, view.Entries[0].RejectionReason)
	assert.Equal(t, "split the build time", *view.Entries[0].RejectionReason)

	again, err := worker.SubmitTimesheet(ctx, entry.TimesheetID, "")
	require.NoError(t, err)
	assert.Equal(t, trakkasdk.OutcomeApplied, again.Outcome)

	approved, err := manager.ApproveTimesheet(ctx, entry.TimesheetID)
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", approved.Timesheet.Status)

	repeat, err := manager.ApproveTimesheet(ctx, entry.TimesheetID)
	require.NoError(t, err)
	assert.Equal(t, trakkasdk.OutcomeAlreadyProcessed, repeat.Outcome)

	events, err := manager.Events(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "timesheet.approved", events[0].Type)
}

func TestClientTimer(t *testing.T) {
	worker, manager, clk := newClients(t)
	ctx := context.Background()
	_, err := manager.CreateProject(ctx, "web", "Website")
	require.NoError(t, err)

	_, err = worker.StartTimer(ctx, "web", "pairing")
	require.NoError(t, err)
	_, err = worker.StartTimer(ctx, "web", "")
	var apiErr *trakkasdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "timer_already_running", apiErr.Code)

	clk.Advance(90 * time.Minute)
	stop, err := worker.StopTimer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 90, stop.Minutes)
	require.NotNil(t, stop.Entry)
	assert.Equal(t, "pairing", stop.Entry.Description)
	assert.Equal(t, "TIMER", stop.Entry.Kind)

	decision, err := manager.ApproveEntry(ctx, stop.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, trakkasdk.OutcomeApplied, decision.Outcome)
	assert.Equal(t, "APPROVED", decision.Entry.Status)
}
