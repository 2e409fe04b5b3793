package server

import (
	"trakka/internal/domain"
)

// Request payloads

type CreateProjectRequest struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	BudgetHours *float64 `json:"budget_hours,omitempty" minimum:"0"`
	Inactive    bool     `json:"inactive,omitempty"`
}

type UpdateProjectRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	BudgetHours *float64 `json:"budget_hours,omitempty" minimum:"0"`
	ClearBudget bool     `json:"clear_budget,omitempty"`
	Active      *bool    `json:"active,omitempty"`
}

type MemberRequest struct {
	ActorID string `json:"actor_id"`
}

// CreateEntryRequest takes either minutes or a start and end time of day.
type CreateEntryRequest struct {
	ProjectID   string `json:"project_id"`
	Date        string `json:"date" format:"date"`
	Minutes     *int   `json:"minutes,omitempty"`
	StartTime   string `json:"start_time,omitempty" example:"09:00"`
	EndTime     string `json:"end_time,omitempty" example:"11:00"`
	Description string `json:"description"`
}

type UpdateEntryRequest struct {
	ProjectID   *string `json:"project_id,omitempty"`
	Date        *string `json:"date,omitempty" format:"date"`
	Minutes     *int    `json:"minutes,omitempty"`
	Description *string `json:"description,omitempty"`
}

type ReasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

type SubmitRequest struct {
	Notes string `json:"notes,omitempty"`
}

type ResolveRequest struct {
	Date string `json:"date" format:"date"`
}

type TimerStartRequest struct {
	ProjectID   string `json:"project_id"`
	Description string `json:"description,omitempty"`
}

type TimerStopRequest struct {
	TimerID string `json:"timer_id,omitempty"`
}

type CreateActorRequest struct {
	ID          string `json:"id"`
	Role        string `json:"role" enum:"WORKER,MANAGER,ADMIN"`
	DisplayName string `json:"display_name,omitempty"`
	Department  string `json:"department,omitempty"`
}

type UpdateActorRequest struct {
	Role string `json:"role" enum:"WORKER,MANAGER,ADMIN"`
}

type APIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Responses

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	ActorID     string      `json:"actor_id"`
	Role        domain.Role `json:"role"`
	Permissions []string    `json:"permissions"`
	Source      string      `json:"source"`
}

type APIKeyResponse struct {
	Key     string        `json:"key"`
	Details domain.APIKey `json:"details"`
}

// Outcome values returned by decision endpoints.
const (
	OutcomeApplied          = "applied"
	OutcomeAlreadyProcessed = "already_processed"
)

type EntryDecisionResponse struct {
	Outcome string           `json:"outcome" enum:"applied,already_processed"`
	Entry   domain.TimeEntry `json:"entry"`
}

type TimesheetDecisionResponse struct {
	Outcome   string           `json:"outcome" enum:"applied,already_processed"`
	Timesheet domain.Timesheet `json:"timesheet"`
}

type EntryListResponse struct {
	Items        []domain.TimeEntry `json:"items"`
	TotalMinutes int                `json:"total_minutes"`
	TotalHours   float64            `json:"total_hours"`
}

type TimesheetListResponse struct {
	Items []domain.Timesheet `json:"items"`
}

type EventListResponse struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func entryList(items []domain.TimeEntry) EntryListResponse {
	resp := EntryListResponse{Items: nonNilSlice(items)}
	for _, e := range items {
		resp.TotalMinutes += e.DurationMinutes
	}
	resp.TotalHours = domain.Hours(resp.TotalMinutes)
	return resp
}

func nonNilSlice[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
