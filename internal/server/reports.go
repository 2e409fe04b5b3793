package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"golang.org/x/sync/singleflight"

	"trakka/internal/domain"
	"trakka/internal/engine"
	"trakka/internal/engine/auth"
	"trakka/internal/repo"
)

type reportQuery struct {
	From      string `query:"from" format:"date"`
	To        string `query:"to" format:"date"`
	ProjectID string `query:"project_id"`
	OwnerID   string `query:"owner_id"`
	Status    string `query:"status"`
}

func (q reportQuery) filter() engine.ReportFilter {
	return engine.ReportFilter{
		From:      q.From,
		To:        q.To,
		ProjectID: q.ProjectID,
		OwnerID:   q.OwnerID,
		Status:    domain.EntryStatus(q.Status),
	}
}

// summaryKey identifies requests that must produce the same summary.
func summaryKey(actor auth.Actor, f engine.ReportFilter) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s", actor.ID, actor.Role, f.From, f.To, f.ProjectID, f.OwnerID, f.Status)
}

func registerReports(api huma.API, e engine.Engine) {
	var group singleflight.Group

	huma.Register(api, huma.Operation{
		OperationID: "report-summary",
		Method:      http.MethodGet,
		Path:        "/reports/summary",
		Summary:     "Totals by project, owner and status",
		Description: "Workers only ever see their own entries.",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *reportQuery) (*struct {
		Body engine.Summary `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f := input.filter()
		ch := group.DoChan(summaryKey(actor, f), func() (any, error) {
			return e.Summary(context.WithoutCancel(ctx), actor, f)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, handleError(ctx, res.Err)
			}
			return &struct {
				Body engine.Summary `json:"body"`
			}{Body: res.Val.(engine.Summary)}, nil
		}
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "The caller's week at a glance",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Dashboard `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.Dashboard(ctx, actor)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body engine.Dashboard `json:"body"`
		}{Body: d}, nil
	})
}

// registerExport mounts the CSV export as a plain chi route with its own,
// tighter limiter.
func registerExport(r chi.Router, basePath string, e engine.Engine) {
	r.Group(func(g chi.Router) {
		g.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		g.Get(path.Join(basePath, "reports/export.csv"), func(w http.ResponseWriter, req *http.Request) {
			actor, authErr := actorFromContext(req.Context())
			if authErr != nil {
				respondStatusError(w, authErr)
				return
			}
			q := req.URL.Query()
			f := engine.ReportFilter{
				From:      q.Get("from"),
				To:        q.Get("to"),
				ProjectID: q.Get("project_id"),
				OwnerID:   q.Get("owner_id"),
				Status:    domain.EntryStatus(q.Get("status")),
			}
			var buf bytes.Buffer
			if err := e.ExportCSV(req.Context(), actor, f, &buf); err != nil {
				respondStatusError(w, handleError(req.Context(), err))
				return
			}
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="trakka-export.csv"`)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(buf.Bytes())
		})
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit log, newest first",
		Description: "Pass next_cursor back as cursor to page further. Workers only see events they caused.",
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		ActorID    string `query:"actor_id"`
		Cursor     int64  `query:"cursor"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body EventListResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		items, err := e.AuditLog(ctx, actor, repo.EventFilter{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			ActorID:    input.ActorID,
			Cursor:     input.Cursor,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		resp := EventListResponse{}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = fmt.Sprintf("%d", items[len(items)-1].ID)
		}
		resp.Items = nonNilSlice(items)
		return &struct {
			Body EventListResponse `json:"body"`
		}{Body: resp}, nil
	})
}
