package repo

import (
	"context"
	"database/sql"

	"trakka/internal/domain"
)

func scanActor(s scanner) (domain.Actor, error) {
	var a domain.Actor
	var role string
	var name, dept sql.NullString
	err := s.Scan(&a.ID, &role, &name, &dept, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.Role = domain.Role(role)
	a.DisplayName = name.String
	a.Department = dept.String
	return a, nil
}

// InsertActor creates an actor; it fails if the id is taken.
func (r Repo) InsertActor(ctx context.Context, tx *sql.Tx, a domain.Actor) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO actors(id, role, display_name, department, created_at) VALUES (?,?,?,?,?)`,
		a.ID, string(a.Role), nullable(a.DisplayName), nullable(a.Department), a.CreatedAt)
	return err
}

// EnsureActor inserts the actor unless it already exists, leaving an existing role untouched.
func (r Repo) EnsureActor(ctx context.Context, tx *sql.Tx, a domain.Actor) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT OR IGNORE INTO actors(id, role, display_name, department, created_at) VALUES (?,?,?,?,?)`,
		a.ID, string(a.Role), nullable(a.DisplayName), nullable(a.Department), a.CreatedAt)
	return err
}

func (r Repo) GetActor(ctx context.Context, tx *sql.Tx, id string) (domain.Actor, error) {
	return scanActor(r.on(tx).QueryRowContext(ctx, `SELECT id, role, display_name, department, created_at FROM actors WHERE id=?`, id))
}

func (r Repo) UpdateActor(ctx context.Context, tx *sql.Tx, a domain.Actor) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE actors SET role=?, display_name=?, department=? WHERE id=?`,
		string(a.Role), nullable(a.DisplayName), nullable(a.Department), a.ID)
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

func (r Repo) ListActors(ctx context.Context, role domain.Role) ([]domain.Actor, error) {
	query := `SELECT id, role, display_name, department, created_at FROM actors`
	var args []any
	if role != "" {
		query += ` WHERE role=?`
		args = append(args, string(role))
	}
	query += ` ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
