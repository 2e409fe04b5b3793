package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"trakka/internal/apperr"
	"trakka/internal/domain"
	"trakka/internal/engine"
	"trakka/internal/repo"
)

type entryOutput struct {
	Body domain.TimeEntry `json:"body"`
}

type entryListOutput struct {
	Body EntryListResponse `json:"body"`
}

type entryDecisionOutput struct {
	Body EntryDecisionResponse `json:"body"`
}

type entryPath struct {
	EntryID string `path:"entry_id"`
}

// entryDecision turns a repeated decision into a successful no-op response.
func entryDecision(ctx context.Context, entry domain.TimeEntry, err error) (*entryDecisionOutput, error) {
	if apperr.IsNoop(err) {
		return &entryDecisionOutput{Body: EntryDecisionResponse{Outcome: OutcomeAlreadyProcessed, Entry: entry}}, nil
	}
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return &entryDecisionOutput{Body: EntryDecisionResponse{Outcome: OutcomeApplied, Entry: entry}}, nil
}

func registerEntries(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-entry",
		Method:        http.MethodPost,
		Path:          "/entries",
		Summary:       "Log time",
		Description:   "Send minutes, or start_time and end_time on the given date.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateEntryRequest `json:"body"`
	}) (*entryOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		var (
			entry domain.TimeEntry
			err   error
		)
		switch {
		case b.Minutes != nil:
			entry, err = e.CreateEntry(ctx, actor, engine.EntryInput{
				ProjectID: b.ProjectID, Date: b.Date, Minutes: *b.Minutes, Description: b.Description,
			})
		case b.StartTime != "" || b.EndTime != "":
			entry, err = e.CreateEntryFromInterval(ctx, actor, engine.IntervalEntryInput{
				ProjectID: b.ProjectID, Date: b.Date, StartTime: b.StartTime, EndTime: b.EndTime, Description: b.Description,
			})
		default:
			return nil, newAPIError(http.StatusBadRequest, string(apperr.InvalidInput), "minutes or start_time and end_time are required", nil)
		}
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &entryOutput{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-entries",
		Method:      http.MethodGet,
		Path:        "/entries",
		Summary:     "List time entries",
	}, func(ctx context.Context, input *struct {
		OwnerID     string `query:"owner_id"`
		ProjectID   string `query:"project_id"`
		TimesheetID string `query:"timesheet_id"`
		Status      string `query:"status"`
		From        string `query:"from" format:"date"`
		To          string `query:"to" format:"date"`
		Limit       int    `query:"limit"`
	}) (*entryListOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListEntries(ctx, actor, repo.EntryFilter{
			OwnerID:     input.OwnerID,
			ProjectID:   input.ProjectID,
			TimesheetID: input.TimesheetID,
			Status:      domain.EntryStatus(input.Status),
			From:        input.From,
			To:          input.To,
			Limit:       input.Limit,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &entryListOutput{Body: entryList(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-entry",
		Method:      http.MethodGet,
		Path:        "/entries/{entry_id}",
		Summary:     "Get time entry",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *entryPath) (*entryOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := e.GetEntry(ctx, actor, input.EntryID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &entryOutput{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-entry",
		Method:      http.MethodPatch,
		Path:        "/entries/{entry_id}",
		Summary:     "Edit time entry",
		Description: "Admins may pass override=true to edit decided entries or closed weeks; overrides are audited.",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		EntryID  string             `path:"entry_id"`
		Override bool               `query:"override"`
		Body     UpdateEntryRequest `json:"body"`
	}) (*entryOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := e.UpdateEntry(ctx, actor, input.EntryID, engine.EntryUpdate{
			ProjectID:   input.Body.ProjectID,
			Date:        input.Body.Date,
			Minutes:     input.Body.Minutes,
			Description: input.Body.Description,
			Override:    input.Override,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &entryOutput{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-entry",
		Method:        http.MethodDelete,
		Path:          "/entries/{entry_id}",
		Summary:       "Delete time entry",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		EntryID  string `path:"entry_id"`
		Override bool   `query:"override"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteEntry(ctx, actor, input.EntryID, input.Override); err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-entry",
		Method:      http.MethodPost,
		Path:        "/entries/{entry_id}/approve",
		Summary:     "Approve time entry",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *entryPath) (*entryDecisionOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := e.ApproveEntry(ctx, actor, input.EntryID)
		return entryDecision(ctx, entry, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-entry",
		Method:      http.MethodPost,
		Path:        "/entries/{entry_id}/reject",
		Summary:     "Reject time entry",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EntryID string        `path:"entry_id"`
		Body    ReasonRequest `json:"body" required:"false"`
	}) (*entryDecisionOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := e.RejectEntry(ctx, actor, input.EntryID, input.Body.Reason)
		return entryDecision(ctx, entry, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "pending-entries",
		Method:      http.MethodGet,
		Path:        "/approvals/entries",
		Summary:     "Entries awaiting a decision",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*entryListOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.PendingEntries(ctx, actor, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &entryListOutput{Body: entryList(items)}, nil
	})
}
