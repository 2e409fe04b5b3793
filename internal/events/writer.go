package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written by the engine.
const (
	ProjectCreated      = "project.created"
	ProjectUpdated      = "project.updated"
	ProjectDeleted      = "project.deleted"
	ProjectMemberAdded  = "project.member.added"
	ProjectMemberRemove = "project.member.removed"
	EntryCreated        = "entry.created"
	EntryUpdated        = "entry.updated"
	EntryDeleted        = "entry.deleted"
	EntryApproved       = "entry.approved"
	EntryRejected       = "entry.rejected"
	EntryOverride       = "entry.override"
	TimesheetCreated    = "timesheet.created"
	TimesheetSubmitted  = "timesheet.submitted"
	TimesheetApproved   = "timesheet.approved"
	TimesheetRejected   = "timesheet.rejected"
	TimerStarted        = "timer.started"
	TimerStopped        = "timer.stopped"
	ActorRegistered     = "actor.registered"
	ActorRoleChanged    = "actor.role.changed"
	APIKeyIssued        = "actor.api_key.issued"
)

type Payload map[string]any

// Record is one audit row.
type Record struct {
	Type       string
	ProjectID  string
	EntityKind string
	EntityID   string
	ActorID    string
	Payload    Payload
}

type Writer struct {
	Now func() time.Time
}

// Append writes rec inside tx so the audit row commits or rolls back with the change.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, rec Record) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if rec.Payload == nil {
		rec.Payload = Payload{}
	}
	data, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), rec.Type, nullable(rec.ProjectID), rec.EntityKind, nullable(rec.EntityID), rec.ActorID, string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", rec.Type, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
