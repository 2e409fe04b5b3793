package trakkasdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Trakka HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// Outcome values reported by decision endpoints.
const (
	OutcomeApplied          = "applied"
	OutcomeAlreadyProcessed = "already_processed"
)

type Project struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Active      bool     `json:"active"`
	BudgetHours *float64 `json:"budget_hours,omitempty"`
	Members     []string `json:"members,omitempty"`
}

// Entry is a time entry (partial).
type Entry struct {
	ID              string  `json:"id"`
	OwnerID         string  `json:"owner_id"`
	ProjectID       string  `json:"project_id"`
	TimesheetID     string  `json:"timesheet_id"`
	Date            string  `json:"date"`
	DurationMinutes int     `json:"duration_minutes"`
	Description     string  `json:"description"`
	Kind            string  `json:"kind"`
	Status          string  `json:"status"`
	ApproverID      *string `json:"approver_id,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
}

// Timesheet is one owner's week (partial).
type Timesheet struct {
	ID              string  `json:"id"`
	OwnerID         string  `json:"owner_id"`
	WeekStart       string  `json:"week_start"`
	WeekEnd         string  `json:"week_end"`
	Status          string  `json:"status"`
	Notes           string  `json:"notes,omitempty"`
	ApproverID      *string `json:"approver_id,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
}

// TimesheetView is a timesheet with its entries and totals.
type TimesheetView struct {
	Timesheet    Timesheet `json:"timesheet"`
	Entries      []Entry   `json:"entries"`
	TotalMinutes int       `json:"total_minutes"`
	TotalHours   float64   `json:"total_hours"`
	CanSubmit    bool      `json:"can_submit"`
}

type TimerSession struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	StartedAt string  `json:"started_at"`
	StoppedAt *string `json:"stopped_at,omitempty"`
	Running   bool    `json:"running"`
	EntryID   *string `json:"entry_id,omitempty"`
}

type TimerStop struct {
	Session TimerSession `json:"session"`
	Entry   *Entry       `json:"entry,omitempty"`
	Minutes int          `json:"minutes"`
}

type EntryDecision struct {
	Outcome string `json:"outcome"`
	Entry   Entry  `json:"entry"`
}

type TimesheetDecision struct {
	Outcome   string    `json:"outcome"`
	Timesheet Timesheet `json:"timesheet"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// EntryInput logs minutes, or StartTime/EndTime when Minutes is zero.
type EntryInput struct {
	ProjectID   string `json:"project_id"`
	Date        string `json:"date"`
	Minutes     int    `json:"minutes,omitempty"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	Description string `json:"description"`
}

func (c *Client) CreateProject(ctx context.Context, id, name string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", map[string]any{"id": id, "name": name}, &resp)
	return resp, err
}

// LogTime creates an entry in the caller's timesheet for the entry's week.
func (c *Client) LogTime(ctx context.Context, in EntryInput) (Entry, error) {
	var resp Entry
	err := c.do(ctx, http.MethodPost, "entries", in, &resp)
	return resp, err
}

func (c *Client) ApproveEntry(ctx context.Context, id string) (EntryDecision, error) {
	var resp EntryDecision
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("entries/%s/approve", url.PathEscape(id)), nil, &resp)
	return resp, err
}

func (c *Client) RejectEntry(ctx context.Context, id, reason string) (EntryDecision, error) {
	var resp EntryDecision
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("entries/%s/reject", url.PathEscape(id)), map[string]any{"reason": reason}, &resp)
	return resp, err
}

func (c *Client) StartTimer(ctx context.Context, projectID, description string) (TimerSession, error) {
	var resp TimerSession
	err := c.do(ctx, http.MethodPost, "timer/start", map[string]any{"project_id": projectID, "description": description}, &resp)
	return resp, err
}

func (c *Client) StopTimer(ctx context.Context) (TimerStop, error) {
	var resp TimerStop
	err := c.do(ctx, http.MethodPost, "timer/stop", map[string]any{}, &resp)
	return resp, err
}

func (c *Client) Timesheet(ctx context.Context, id string) (TimesheetView, error) {
	var resp TimesheetView
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("timesheets/%s", url.PathEscape(id)), nil, &resp)
	return resp, err
}

func (c *Client) SubmitTimesheet(ctx context.Context, id, notes string) (TimesheetDecision, error) {
	var resp TimesheetDecision
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("timesheets/%s/submit", url.PathEscape(id)), map[string]any{"notes": notes}, &resp)
	return resp, err
}

func (c *Client) ApproveTimesheet(ctx context.Context, id string) (TimesheetDecision, error) {
	var resp TimesheetDecision
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("timesheets/%s/approve", url.PathEscape(id)), nil, &resp)
	return resp, err
}

func (c *Client) RejectTimesheet(ctx context.Context, id, reason string) (TimesheetDecision, error) {
	var resp TimesheetDecision
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("timesheets/%s/reject", url.PathEscape(id)), map[string]any{"reason": reason}, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string         `json:"code"`
				Message string         `json:"message"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	basePath := strings.Trim(c.BasePath, "/")
	if basePath == "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return strings.TrimRight(c.BaseURL, "/") + "/" + basePath
}
