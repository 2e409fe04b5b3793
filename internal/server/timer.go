package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"trakka/internal/apperr"
	"trakka/internal/domain"
	"trakka/internal/engine"
)

func registerTimer(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "timer-status",
		Method:      http.MethodGet,
		Path:        "/timer",
		Summary:     "Running timer",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.TimerStatus `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		status, err := e.TimerStatus(ctx, actor)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body engine.TimerStatus `json:"body"`
		}{Body: status}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "start-timer",
		Method:        http.MethodPost,
		Path:          "/timer/start",
		Summary:       "Start timer",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body TimerStartRequest `json:"body"`
	}) (*struct {
		Body domain.TimerSession `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		session, err := e.StartTimer(ctx, actor, engine.TimerStartInput{
			ProjectID:   input.Body.ProjectID,
			Description: input.Body.Description,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.TimerSession `json:"body"`
		}{Body: session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stop-timer",
		Method:      http.MethodPost,
		Path:        "/timer/stop",
		Summary:     "Stop timer and book the elapsed time",
		Description: "When the week the timer started in is closed the timer still stops; the response is 409 and the minutes are reported in the error details.",
		Errors:      []int{http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body TimerStopRequest `json:"body" required:"false"`
	}) (*struct {
		Body engine.TimerStopResult `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.StopTimer(ctx, actor, input.Body.TimerID)
		if errors.Is(err, apperr.ErrTimesheetNotMutable) && res.Session.ID != "" {
			var ae *apperr.Error
			if errors.As(err, &ae) {
				err = ae.With("timer_id", res.Session.ID).With("minutes", res.Minutes)
			}
		}
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body engine.TimerStopResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "timer-history",
		Method:      http.MethodGet,
		Path:        "/timer/history",
		Summary:     "Past timer sessions",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*struct {
		Body []domain.TimerSession `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.TimerHistory(ctx, actor, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body []domain.TimerSession `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})
}
