package repo

import (
	"context"
	"database/sql"

	"trakka/internal/domain"
)

const projectColumns = `id, name, description, active, budget_hours, created_by, created_at, updated_at`

func scanProject(s scanner) (domain.Project, error) {
	var p domain.Project
	var desc sql.NullString
	var budget sql.NullFloat64
	var active int
	err := s.Scan(&p.ID, &p.Name, &desc, &active, &budget, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Description = desc.String
	p.Active = active == 1
	if budget.Valid {
		b := budget.Float64
		p.BudgetHours = &b
	}
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO projects(`+projectColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, nullable(p.Description), boolInt(p.Active), nullableFloatPtr(p.BudgetHours), p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetProject loads a project with its member list.
func (r Repo) GetProject(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	p, err := scanProject(r.on(tx).QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
	if err != nil {
		return p, err
	}
	p.Members, err = r.ProjectMembers(ctx, tx, id)
	return p, err
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE projects SET name=?, description=?, active=?, budget_hours=?, updated_at=? WHERE id=?`,
		p.Name, nullable(p.Description), boolInt(p.Active), nullableFloatPtr(p.BudgetHours), p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}
	return nil
}

// DeleteProject removes the project; entries and timers go with it via foreign keys.
func (r Repo) DeleteProject(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListProjects(ctx context.Context, activeOnly bool) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	if activeOnly {
		query += ` WHERE active=1`
	}
	query += ` ORDER BY name, id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) AddProjectMember(ctx context.Context, tx *sql.Tx, projectID, actorID, at string) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, `INSERT OR IGNORE INTO project_members(project_id, actor_id, added_at) VALUES (?,?,?)`, projectID, actorID, at)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r Repo) RemoveProjectMember(ctx context.Context, tx *sql.Tx, projectID, actorID string) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM project_members WHERE project_id=? AND actor_id=?`, projectID, actorID)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r Repo) IsProjectMember(ctx context.Context, tx *sql.Tx, projectID, actorID string) (bool, error) {
	var n int
	err := r.on(tx).QueryRowContext(ctx, `SELECT COUNT(1) FROM project_members WHERE project_id=? AND actor_id=?`, projectID, actorID).Scan(&n)
	return n > 0, err
}

func (r Repo) ProjectMembers(ctx context.Context, tx *sql.Tx, projectID string) ([]string, error) {
	rows, err := r.on(tx).QueryContext(ctx, `SELECT actor_id FROM project_members WHERE project_id=? ORDER BY actor_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}
