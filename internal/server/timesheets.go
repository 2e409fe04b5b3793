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

type timesheetViewOutput struct {
	Body engine.TimesheetView `json:"body"`
}

type timesheetListOutput struct {
	Body TimesheetListResponse `json:"body"`
}

type timesheetDecisionOutput struct {
	Body TimesheetDecisionResponse `json:"body"`
}

type timesheetPath struct {
	TimesheetID string `path:"timesheet_id"`
}

func timesheetDecision(ctx context.Context, ts domain.Timesheet, err error) (*timesheetDecisionOutput, error) {
	if apperr.IsNoop(err) {
		return &timesheetDecisionOutput{Body: TimesheetDecisionResponse{Outcome: OutcomeAlreadyProcessed, Timesheet: ts}}, nil
	}
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return &timesheetDecisionOutput{Body: TimesheetDecisionResponse{Outcome: OutcomeApplied, Timesheet: ts}}, nil
}

func registerTimesheets(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-timesheets",
		Method:      http.MethodGet,
		Path:        "/timesheets",
		Summary:     "List timesheets",
	}, func(ctx context.Context, input *struct {
		OwnerID string `query:"owner_id"`
		Status  string `query:"status"`
		From    string `query:"from" format:"date"`
		To      string `query:"to" format:"date"`
		Limit   int    `query:"limit"`
	}) (*timesheetListOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListTimesheets(ctx, actor, repo.TimesheetFilter{
			OwnerID: input.OwnerID,
			Status:  domain.TimesheetStatus(input.Status),
			From:    input.From,
			To:      input.To,
			Limit:   input.Limit,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &timesheetListOutput{Body: TimesheetListResponse{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "current-timesheet",
		Method:      http.MethodGet,
		Path:        "/timesheets/current",
		Summary:     "This week's timesheet, created on first view",
	}, func(ctx context.Context, _ *struct{}) (*timesheetViewOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		view, err := e.CurrentTimesheet(ctx, actor)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &timesheetViewOutput{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "week-timesheet",
		Method:      http.MethodGet,
		Path:        "/timesheets/week",
		Summary:     "Timesheet for the week containing date",
		Description: "Read only; an empty view with no id is returned when the week has no timesheet yet.",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Date string `query:"date" format:"date" required:"true"`
	}) (*timesheetViewOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		view, err := e.WeekTimesheet(ctx, actor, input.Date)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &timesheetViewOutput{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-timesheet",
		Method:      http.MethodPost,
		Path:        "/timesheets/resolve",
		Summary:     "Get or create the timesheet for a date's week",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ResolveRequest `json:"body"`
	}) (*struct {
		Body domain.Timesheet `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ts, err := e.ResolveTimesheet(ctx, actor, input.Body.Date)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Timesheet `json:"body"`
		}{Body: ts}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-timesheet",
		Method:      http.MethodGet,
		Path:        "/timesheets/{timesheet_id}",
		Summary:     "Get timesheet with entries and totals",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *timesheetPath) (*timesheetViewOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		view, err := e.GetTimesheet(ctx, actor, input.TimesheetID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &timesheetViewOutput{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-timesheet",
		Method:      http.MethodPost,
		Path:        "/timesheets/{timesheet_id}/submit",
		Summary:     "Submit timesheet for review",
		Errors:      []int{http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TimesheetID string        `path:"timesheet_id"`
		Body        SubmitRequest `json:"body" required:"false"`
	}) (*timesheetDecisionOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ts, err := e.SubmitTimesheet(ctx, actor, input.TimesheetID, input.Body.Notes)
		return timesheetDecision(ctx, ts, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-week",
		Method:      http.MethodPost,
		Path:        "/timesheets/week/submit",
		Summary:     "Submit the caller's timesheet for the week containing date",
		Errors:      []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Date string        `query:"date" format:"date" required:"true"`
		Body SubmitRequest `json:"body" required:"false"`
	}) (*timesheetDecisionOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ts, err := e.SubmitWeek(ctx, actor, input.Date, input.Body.Notes)
		return timesheetDecision(ctx, ts, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-timesheet",
		Method:      http.MethodPost,
		Path:        "/timesheets/{timesheet_id}/approve",
		Summary:     "Approve timesheet and its entries",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *timesheetPath) (*timesheetDecisionOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ts, err := e.ApproveTimesheet(ctx, actor, input.TimesheetID)
		return timesheetDecision(ctx, ts, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-timesheet",
		Method:      http.MethodPost,
		Path:        "/timesheets/{timesheet_id}/reject",
		Summary:     "Reject timesheet and its entries",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TimesheetID string        `path:"timesheet_id"`
		Body        ReasonRequest `json:"body"`
	}) (*timesheetDecisionOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ts, err := e.RejectTimesheet(ctx, actor, input.TimesheetID, input.Body.Reason)
		return timesheetDecision(ctx, ts, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "pending-timesheets",
		Method:      http.MethodGet,
		Path:        "/approvals/timesheets",
		Summary:     "Timesheets awaiting a decision",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*timesheetListOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.PendingTimesheets(ctx, actor, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &timesheetListOutput{Body: TimesheetListResponse{Items: nonNilSlice(items)}}, nil
	})
}
