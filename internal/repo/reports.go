package repo

import (
	"context"
	"fmt"
)

// Total is one grouped sum over time entries.
type Total struct {
	Key     string
	Label   string
	Minutes int
	Entries int
}

// TotalsByProject groups matching entries by project, largest first.
func (r Repo) TotalsByProject(ctx context.Context, f EntryFilter) ([]Total, error) {
	where, args := f.where()
	query := fmt.Sprintf(`SELECT e.project_id, COALESCE(p.name, e.project_id), SUM(e.duration_minutes), COUNT(1)
		FROM (SELECT * FROM time_entries WHERE %s) e LEFT JOIN projects p ON p.id = e.project_id
		GROUP BY e.project_id ORDER BY SUM(e.duration_minutes) DESC, e.project_id`, where)
	return r.totals(ctx, query, args)
}

// TotalsByOwner groups matching entries by owner, largest first.
func (r Repo) TotalsByOwner(ctx context.Context, f EntryFilter) ([]Total, error) {
	where, args := f.where()
	query := fmt.Sprintf(`SELECT e.owner_id, COALESCE(a.display_name, e.owner_id), SUM(e.duration_minutes), COUNT(1)
		FROM (SELECT * FROM time_entries WHERE %s) e LEFT JOIN actors a ON a.id = e.owner_id
		GROUP BY e.owner_id ORDER BY SUM(e.duration_minutes) DESC, e.owner_id`, where)
	return r.totals(ctx, query, args)
}

// TotalsByStatus groups matching entries by status.
func (r Repo) TotalsByStatus(ctx context.Context, f EntryFilter) ([]Total, error) {
	where, args := f.where()
	query := fmt.Sprintf(`SELECT status, status, SUM(duration_minutes), COUNT(1) FROM time_entries WHERE %s GROUP BY status ORDER BY status`, where)
	return r.totals(ctx, query, args)
}

func (r Repo) totals(ctx context.Context, query string, args []any) ([]Total, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Total
	for rows.Next() {
		var t Total
		if err := rows.Scan(&t.Key, &t.Label, &t.Minutes, &t.Entries); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
