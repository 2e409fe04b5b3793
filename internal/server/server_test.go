package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trakka/internal/config"
	"trakka/internal/db"
	"trakka/internal/domain"
	"trakka/internal/engine"
	"trakka/internal/engine/auth"
	"trakka/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	client *http.Client
	clock  *testClock
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func as(id string) map[string]string { return map[string]string{"X-Actor-Id": id} }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clk := &testClock{t: time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)}
	e := engine.New(conn, config.Default("acme"))
	e.Now = clk.Now
	ctx := context.Background()
	for _, a := range []domain.Actor{
		{ID: "alice", Role: domain.RoleWorker},
		{ID: "bob", Role: domain.RoleWorker},
		{ID: "mia", Role: domain.RoleManager},
		{ID: "ada", Role: domain.RoleAdmin},
	} {
		a.CreatedAt = clk.Now().Format(time.RFC3339)
		if err := e.Repo.InsertActor(ctx, nil, a); err != nil {
			t.Fatalf("seed actor: %v", err)
		}
	}
	if _, err := e.CreateProject(ctx, auth.Actor{ID: "ada", Role: domain.RoleAdmin}, engine.ProjectInput{ID: "web", Name: "Website"}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: testSecret, AllowActorHeader: true, DevLogin: true},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		clock:  clk,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error: %v: %s", err, string(data))
	}
	return env
}

func createEntry(t *testing.T, srv *testServer, actor string, body map[string]any) domain.TimeEntry {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/entries", body, as(actor))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create entry status %d: %s", res.StatusCode, string(data))
	}
	var entry domain.TimeEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	return entry
}

func TestEntryApprovalIsIdempotent(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	entry := createEntry(t, srv, "alice", map[string]any{
		"project_id": "web", "date": "2024-01-09", "minutes": 45, "description": "work",
	})
	require.Equal(t, domain.EntryPending, entry.Status)
	require.Equal(t, 45, entry.DurationMinutes)
	require.NotEmpty(t, entry.TimesheetID)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/entries/"+entry.ID+"/approve", nil, as("alice"))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
	env := decodeError(t, data)
	require.Equal(t, "not_authorized", env.Error.Code)
	require.Equal(t, auth.PermEntryReview, env.Error.Details["permission"])

	for _, want := range []string{OutcomeApplied, OutcomeAlreadyProcessed} {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/entries/"+entry.ID+"/approve", nil, as("mia"))
		require.Equal(t, http.StatusOK, res.StatusCode, string(data))
		var decision EntryDecisionResponse
		require.NoError(t, json.Unmarshal(data, &decision))
		require.Equal(t, want, decision.Outcome)
		require.Equal(t, domain.EntryApproved, decision.Entry.Status)
		require.Equal(t, "mia", *decision.Entry.ApproverID)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/entries/"+entry.ID, map[string]any{"minutes": 30}, as("alice"))
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	require.Equal(t, "entry_not_mutable", decodeError(t, data).Error.Code)
}

func TestWorkerCannotReadForeignEntry(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	entry := createEntry(t, srv, "alice", map[string]any{
		"project_id": "web", "date": "2024-01-09", "minutes": 30, "description": "work",
	})
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/entries/"+entry.ID, nil, as("bob"))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/entries/missing", nil, as("bob"))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/entries?owner_id=alice", nil, as("bob"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var list EntryListResponse
	require.NoError(t, json.Unmarshal(data, &list))
	require.Empty(t, list.Items)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/entries?owner_id=alice", nil, as("mia"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Items, 1)
	require.Equal(t, 30, list.TotalMinutes)
	require.InDelta(t, 0.5, list.TotalHours, 0.0001)
}

func TestIntervalAndValidation(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	entry := createEntry(t, srv, "alice", map[string]any{
		"project_id": "web", "date": "2024-01-09", "start_time": "09:00", "end_time": "11:00", "description": "standup",
	})
	require.Equal(t, 120, entry.DurationMinutes)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/entries", map[string]any{
		"project_id": "web", "date": "2024-01-09", "start_time": "11:00", "end_time": "09:00", "description": "x",
	}, as("alice"))
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	require.Equal(t, "invalid_interval", decodeError(t, data).Error.Code)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/entries", map[string]any{
		"project_id": "web", "date": "2024-01-09", "minutes": 0, "description": "x",
	}, as("alice"))
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	require.Equal(t, "invalid_duration", decodeError(t, data).Error.Code)
}

func TestTimerConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/timer/start", map[string]any{"project_id": "web"}, as("alice"))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var session domain.TimerSession
	require.NoError(t, json.Unmarshal(data, &session))
	require.True(t, session.Running)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/timer/start", map[string]any{"project_id": "web"}, as("alice"))
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	env := decodeError(t, data)
	require.Equal(t, "timer_already_running", env.Error.Code)
	require.Equal(t, session.ID, env.Error.Details["timer_id"])

	srv.clock.Set(srv.clock.Now().Add(25 * time.Minute))
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/timer/stop", map[string]any{}, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var stopped engine.TimerStopResult
	require.NoError(t, json.Unmarshal(data, &stopped))
	require.Equal(t, 25, stopped.Minutes)
	require.NotNil(t, stopped.Entry)
	require.Equal(t, domain.EntryTimer, stopped.Entry.Kind)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/timer/stop", map[string]any{}, as("alice"))
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	require.Equal(t, "timer_not_running", decodeError(t, data).Error.Code)
}

func TestTimesheetSubmitAndReview(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	entry := createEntry(t, srv, "alice", map[string]any{
		"project_id": "web", "date": "2024-01-09", "minutes": 90, "description": "work",
	})
	submitURL := srv.URL + "/v1/timesheets/" + entry.TimesheetID + "/submit"

	res, data := doJSON(t, client, http.MethodPost, submitURL, map[string]any{}, as("alice"))
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, string(data))
	require.Equal(t, "week_not_elapsed", decodeError(t, data).Error.Code)

	srv.clock.Set(time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC))
	res, data = doJSON(t, client, http.MethodPost, submitURL, map[string]any{"notes": "done"}, as("bob"))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	for _, want := range []string{OutcomeApplied, OutcomeAlreadyProcessed} {
		res, data = doJSON(t, client, http.MethodPost, submitURL, map[string]any{"notes": "done"}, as("alice"))
		require.Equal(t, http.StatusOK, res.StatusCode, string(data))
		var decision TimesheetDecisionResponse
		require.NoError(t, json.Unmarshal(data, &decision))
		require.Equal(t, want, decision.Outcome)
		require.Equal(t, domain.TimesheetSubmitted, decision.Timesheet.Status)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/approvals/timesheets", nil, as("mia"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var queue TimesheetListResponse
	require.NoError(t, json.Unmarshal(data, &queue))
	require.Len(t, queue.Items, 1)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/timesheets/"+entry.TimesheetID+"/reject", map[string]any{}, as("mia"))
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, string(data))
	require.Equal(t, "missing_reason", decodeError(t, data).Error.Code)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/timesheets/"+entry.TimesheetID+"/approve", nil, as("mia"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var approved TimesheetDecisionResponse
	require.NoError(t, json.Unmarshal(data, &approved))
	require.Equal(t, OutcomeApplied, approved.Outcome)
	require.Equal(t, domain.TimesheetApproved, approved.Timesheet.Status)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/timesheets/"+entry.TimesheetID, nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var view engine.TimesheetView
	require.NoError(t, json.Unmarshal(data, &view))
	require.Equal(t, 90, view.TotalMinutes)
	require.Len(t, view.Entries, 1)
	require.Equal(t, domain.EntryApproved, view.Entries[0].Status)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/entries", map[string]any{
		"project_id": "web", "date": "2024-01-10", "minutes": 15, "description": "late",
	}, as("alice"))
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	require.Equal(t, "timesheet_not_mutable", decodeError(t, data).Error.Code)
}

func TestAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"X-Actor-Id": "nobody"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode, string(data))
	require.Equal(t, "invalid_credentials", decodeError(t, data).Error.Code)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/health", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{"actor_id": "mia"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var login DevLoginResponse
	require.NoError(t, json.Unmarshal(data, &login))
	require.NotEmpty(t, login.Token)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var me WhoAmIResponse
	require.NoError(t, json.Unmarshal(data, &me))
	require.Equal(t, "mia", me.ActorID)
	require.Equal(t, domain.RoleManager, me.Role)
	require.Equal(t, "jwt", me.Source)
	require.Contains(t, me.Permissions, auth.PermTimesheetReview)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/actors/alice/api-keys", map[string]any{"name": "laptop"}, as("alice"))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var key APIKeyResponse
	require.NoError(t, json.Unmarshal(data, &key))
	require.NotEmpty(t, key.Key)
	require.Equal(t, "alice", key.Details.ActorID)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"X-Api-Key": key.Key})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &me))
	require.Equal(t, "alice", me.ActorID)
	require.Equal(t, "api_key", me.Source)
	require.Empty(t, me.Permissions)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/actors/bob/api-keys", map[string]any{}, as("alice"))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
}

func TestActorHeaderNeedsOptIn(t *testing.T) {
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(conn))
	e := engine.New(conn, config.Default("acme"))
	require.NoError(t, e.Repo.InsertActor(context.Background(), nil, domain.Actor{ID: "alice", Role: domain.RoleWorker}))

	handler, err := New(Config{Engine: e, Auth: AuthConfig{JWTSecret: testSecret}})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	defer srv.Shutdown(context.Background())

	base := "http://" + ln.Addr().String()
	res, data := doJSON(t, http.DefaultClient, http.MethodGet, base+"/v1/me", nil, as("alice"))
	require.Equal(t, http.StatusUnauthorized, res.StatusCode, string(data))

	res, data = doJSON(t, http.DefaultClient, http.MethodPost, base+"/v1/auth/dev/login", map[string]any{"actor_id": "alice"}, nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))

	token, err := SignToken(testSecret, "alice", time.Hour)
	require.NoError(t, err)
	res, data = doJSON(t, http.DefaultClient, http.MethodGet, base+"/v1/me", nil, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
}

func TestExportCSV(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	createEntry(t, srv, "alice", map[string]any{"project_id": "web", "date": "2024-01-09", "minutes": 45, "description": "work"})
	createEntry(t, srv, "bob", map[string]any{"project_id": "web", "date": "2024-01-09", "minutes": 60, "description": "other"})

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/reports/export.csv", nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.True(t, strings.HasPrefix(res.Header.Get("Content-Type"), "text/csv"))
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Date", rows[0][0])
	require.Equal(t, []string{"2024-01-09", "alice", "Website", "work", "0.75", "45", "PENDING", "MANUAL"}, rows[1])

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/reports/export.csv?status=BOGUS", nil, as("mia"))
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/reports/export.csv", nil, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode, string(data))
}

func TestSummaryAndEvents(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createEntry(t, srv, "alice", map[string]any{"project_id": "web", "date": "2024-01-09", "minutes": 45, "description": "a"})
	createEntry(t, srv, "bob", map[string]any{"project_id": "web", "date": "2024-01-09", "minutes": 75, "description": "b"})

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/reports/summary", nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var sum engine.Summary
	require.NoError(t, json.Unmarshal(data, &sum))
	require.Equal(t, 45, sum.TotalMinutes)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/reports/summary", nil, as("mia"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &sum))
	require.Equal(t, 120, sum.TotalMinutes)
	require.InDelta(t, 2.0, sum.TotalHours, 0.0001)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/events?limit=1", nil, as("mia"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var page EventListResponse
	require.NoError(t, json.Unmarshal(data, &page))
	require.Len(t, page.Items, 1)
	require.NotEmpty(t, page.NextCursor)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/events?limit=1&cursor="+page.NextCursor, nil, as("mia"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var next EventListResponse
	require.NoError(t, json.Unmarshal(data, &next))
	require.Len(t, next.Items, 1)
	require.Less(t, next.Items[0].ID, page.Items[0].ID)
}

func TestOpenAPIDocument(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, paths, "/v1/timesheets/{timesheet_id}/submit")
	require.Contains(t, paths, "/v1/timer/stop")
}

func TestInternalErrorsAreLoggedNotExposed(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	ctx := context.WithValue(context.Background(), loggerKey{}, logger)

	se := handleError(ctx, errors.New("sql: database is closed"))
	require.Equal(t, http.StatusInternalServerError, se.GetStatus())
	data, err := json.Marshal(se)
	require.NoError(t, err)
	env := decodeError(t, data)
	require.Equal(t, "internal_error", env.Error.Code)
	require.Empty(t, env.Error.Details)
	require.NotContains(t, string(data), "database is closed")
	require.Contains(t, logs.String(), "database is closed")
}

func TestAPIKeyForUnknownActor(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/actors/ghost/api-keys", map[string]any{"name": "ci"}, as("ada"))
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
	env := decodeError(t, data)
	require.Equal(t, "not_found", env.Error.Code)
	require.Equal(t, "ghost", env.Error.Details["actor_id"])
}
