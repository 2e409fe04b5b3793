package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleWorker  Role = "WORKER"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleWorker, RoleManager, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Reviewer reports whether the role may decide on other people's time.
func (r Role) Reviewer() bool {
	return r == RoleManager || r == RoleAdmin
}

type EntryStatus string

const (
	EntryPending  EntryStatus = "PENDING"
	EntryApproved EntryStatus = "APPROVED"
	EntryRejected EntryStatus = "REJECTED"
)

type EntryKind string

const (
	EntryManual EntryKind = "MANUAL"
	EntryTimer  EntryKind = "TIMER"
)

type TimesheetStatus string

const (
	TimesheetDraft     TimesheetStatus = "DRAFT"
	TimesheetSubmitted TimesheetStatus = "SUBMITTED"
	TimesheetApproved  TimesheetStatus = "APPROVED"
	TimesheetRejected  TimesheetStatus = "REJECTED"
)

// Mutable reports whether entries may be attached to or changed under the timesheet.
func (s TimesheetStatus) Mutable() bool {
	return s == TimesheetDraft || s == TimesheetRejected
}

type Actor struct {
	ID          string `json:"id"`
	Role        Role   `json:"role" enum:"WORKER,MANAGER,ADMIN"`
	DisplayName string `json:"display_name,omitempty"`
	Department  string `json:"department,omitempty"`
	CreatedAt   string `json:"created_at,omitempty" format:"date-time"`
}

type Project struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Active      bool     `json:"active"`
	BudgetHours *float64 `json:"budget_hours,omitempty"`
	CreatedBy   string   `json:"created_by"`
	Members     []string `json:"members,omitempty"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

type TimeEntry struct {
	ID              string      `json:"id"`
	OwnerID         string      `json:"owner_id"`
	ProjectID       string      `json:"project_id"`
	TimesheetID     string      `json:"timesheet_id,omitempty"`
	Date            string      `json:"date" format:"date"`
	DurationMinutes int         `json:"duration_minutes" minimum:"1"`
	Description     string      `json:"description"`
	Kind            EntryKind   `json:"kind" enum:"MANUAL,TIMER"`
	StartAt         *string     `json:"start_at,omitempty" format:"date-time"`
	EndAt           *string     `json:"end_at,omitempty" format:"date-time"`
	Status          EntryStatus `json:"status" enum:"PENDING,APPROVED,REJECTED"`
	ApproverID      *string     `json:"approver_id,omitempty"`
	ApprovedAt      *string     `json:"approved_at,omitempty" format:"date-time"`
	RejectionReason *string     `json:"rejection_reason,omitempty"`
	CreatedAt       string      `json:"created_at" format:"date-time"`
	UpdatedAt       string      `json:"updated_at" format:"date-time"`
}

// Hours is the entry duration for display.
func (t TimeEntry) Hours() float64 { return Hours(t.DurationMinutes) }

type Timesheet struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"owner_id"`
	WeekStart       string          `json:"week_start" format:"date"`
	WeekEnd         string          `json:"week_end" format:"date"`
	Status          TimesheetStatus `json:"status" enum:"DRAFT,SUBMITTED,APPROVED,REJECTED"`
	Notes           string          `json:"notes,omitempty"`
	SubmittedAt     *string         `json:"submitted_at,omitempty" format:"date-time"`
	ApproverID      *string         `json:"approver_id,omitempty"`
	ApprovedAt      *string         `json:"approved_at,omitempty" format:"date-time"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	CreatedAt       string          `json:"created_at" format:"date-time"`
	UpdatedAt       string          `json:"updated_at" format:"date-time"`
}

type TimerSession struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"owner_id"`
	ProjectID   string  `json:"project_id"`
	Description string  `json:"description,omitempty"`
	StartedAt   string  `json:"started_at" format:"date-time"`
	StoppedAt   *string `json:"stopped_at,omitempty" format:"date-time"`
	Running     bool    `json:"running"`
	EntryID     *string `json:"entry_id,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
