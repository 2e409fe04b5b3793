package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trakka/internal/apperr"
	"trakka/internal/domain"
	"trakka/internal/engine/auth"
	"trakka/internal/events"
	"trakka/internal/repo"
)

type ProjectInput struct {
	ID          string   `json:"id,omitempty" validate:"omitempty,max=64"`
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description,omitempty" validate:"max=2000"`
	BudgetHours *float64 `json:"budget_hours,omitempty" validate:"omitempty,gte=0"`
	Inactive    bool     `json:"inactive,omitempty"`
}

type ProjectUpdate struct {
	Name        *string
	Description *string
	BudgetHours *float64
	ClearBudget bool
	Active      *bool
}

func (e Engine) CreateProject(ctx context.Context, actor auth.Actor, in ProjectInput) (domain.Project, error) {
	if err := auth.Require(actor, auth.PermProjectWrite); err != nil {
		return domain.Project{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return domain.Project{}, err
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = newID()
	}
	now := e.stamp()
	p := domain.Project{
		ID:          id,
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Active:      !in.Inactive,
		BudgetHours: in.BudgetHours,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetProject(ctx, tx, id); err == nil {
		return domain.Project{}, apperr.New(apperr.InvalidInput, "project %s already exists", id).With("project_id", id)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Project{}, err
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.record(ctx, tx, events.Record{
		Type:       events.ProjectCreated,
		ProjectID:  p.ID,
		EntityKind: "project",
		EntityID:   p.ID,
		ActorID:    actor.ID,
		Payload:    events.Payload{"name": p.Name, "active": p.Active},
	}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) UpdateProject(ctx context.Context, actor auth.Actor, id string, upd ProjectUpdate) (domain.Project, error) {
	if err := auth.Require(actor, auth.PermProjectWrite); err != nil {
		return domain.Project{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProject(ctx, tx, id)
	if err != nil {
		return domain.Project{}, err
	}
	changes := events.Payload{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return domain.Project{}, apperr.New(apperr.InvalidInput, "name is required").With("field", "name")
		}
		p.Name = name
		changes["name"] = name
	}
	if upd.Description != nil {
		p.Description = strings.TrimSpace(*upd.Description)
		changes["description"] = p.Description
	}
	switch {
	case upd.ClearBudget:
		p.BudgetHours = nil
		changes["budget_hours"] = nil
	case upd.BudgetHours != nil:
		if *upd.BudgetHours < 0 {
			return domain.Project{}, apperr.New(apperr.InvalidInput, "budget_hours must not be negative").With("field", "budget_hours")
		}
		p.BudgetHours = upd.BudgetHours
		changes["budget_hours"] = *upd.BudgetHours
	}
	if upd.Active != nil {
		p.Active = *upd.Active
		changes["active"] = p.Active
	}
	p.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	if err := e.record(ctx, tx, events.Record{
		Type:       events.ProjectUpdated,
		ProjectID:  p.ID,
		EntityKind: "project",
		EntityID:   p.ID,
		ActorID:    actor.ID,
		Payload:    changes,
	}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// DeleteProject removes a project with all of its entries and timer history.
func (e Engine) DeleteProject(ctx context.Context, actor auth.Actor, id string) error {
	if err := auth.Require(actor, auth.PermProjectDelete); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProject(ctx, tx, id)
	if err != nil {
		return err
	}
	count, minutes, err := e.Repo.CountEntries(ctx, tx, repo.EntryFilter{ProjectID: id})
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteProject(ctx, tx, id); err != nil {
		return err
	}
	if err := e.record(ctx, tx, events.Record{
		Type:       events.ProjectDeleted,
		ProjectID:  id,
		EntityKind: "project",
		EntityID:   id,
		ActorID:    actor.ID,
		Payload:    events.Payload{"name": p.Name, "entries": count, "minutes": minutes},
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// GetProject hides inactive projects from workers.
func (e Engine) GetProject(ctx context.Context, actor auth.Actor, id string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, nil, id)
	if err != nil {
		return domain.Project{}, err
	}
	if !p.Active && !actor.Role.Reviewer() {
		return domain.Project{}, apperr.New(apperr.NotFound, "project %s not found", id)
	}
	return p, nil
}

func (e Engine) ListProjects(ctx context.Context, actor auth.Actor, includeInactive bool) ([]domain.Project, error) {
	activeOnly := !includeInactive || !actor.Role.Reviewer()
	return e.Repo.ListProjects(ctx, activeOnly)
}

func (e Engine) AddProjectMember(ctx context.Context, actor auth.Actor, projectID, memberID string) (domain.Project, error) {
	return e.changeMembership(ctx, actor, projectID, memberID, true)
}

func (e Engine) RemoveProjectMember(ctx context.Context, actor auth.Actor, projectID, memberID string) (domain.Project, error) {
	return e.changeMembership(ctx, actor, projectID, memberID, false)
}

func (e Engine) changeMembership(ctx context.Context, actor auth.Actor, projectID, memberID string, add bool) (domain.Project, error) {
	if err := auth.Require(actor, auth.PermProjectWrite); err != nil {
		return domain.Project{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetProject(ctx, tx, projectID); err != nil {
		return domain.Project{}, err
	}
	var changed bool
	typ := events.ProjectMemberAdded
	if add {
		if _, err := e.Repo.GetActor(ctx, tx, memberID); err != nil {
			return domain.Project{}, err
		}
		changed, err = e.Repo.AddProjectMember(ctx, tx, projectID, memberID, e.stamp())
	} else {
		typ = events.ProjectMemberRemove
		changed, err = e.Repo.RemoveProjectMember(ctx, tx, projectID, memberID)
	}
	if err != nil {
		return domain.Project{}, err
	}
	if changed {
		if err := e.record(ctx, tx, events.Record{
			Type:       typ,
			ProjectID:  projectID,
			EntityKind: "project",
			EntityID:   projectID,
			ActorID:    actor.ID,
			Payload:    events.Payload{"member_id": memberID},
		}); err != nil {
			return domain.Project{}, err
		}
	}
	p, err := e.Repo.GetProject(ctx, tx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}
