package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"trakka/internal/apperr"
	"trakka/internal/domain"
	"trakka/internal/repo"
)

// Permissions checked by the engine.
const (
	PermProjectWrite    = "project.write"
	PermProjectDelete   = "project.delete"
	PermEntryReview     = "entry.review"
	PermTimesheetReview = "timesheet.review"
	PermEntryOverride   = "entry.override"
	PermReportAll       = "report.all"
	PermActorManage     = "actor.manage"
)

var rolePermissions = map[domain.Role][]string{
	domain.RoleWorker: {},
	domain.RoleManager: {
		PermProjectWrite, PermEntryReview, PermTimesheetReview, PermReportAll,
	},
	domain.RoleAdmin: {
		PermProjectWrite, PermProjectDelete, PermEntryReview, PermTimesheetReview,
		PermEntryOverride, PermReportAll, PermActorManage,
	},
}

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

func (e ForbiddenError) Unwrap() error { return apperr.ErrNotAuthorized }

// Actor is the identity an operation runs as.
type Actor struct {
	ID   string
	Role domain.Role
}

func (a Actor) Can(perm string) bool {
	for _, p := range rolePermissions[a.Role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Require returns ForbiddenError when a lacks perm.
func Require(a Actor, perm string) error {
	if !a.Can(perm) {
		return ForbiddenError{Permission: perm}
	}
	return nil
}

// Permissions lists what role may do, sorted as declared.
func Permissions(role domain.Role) []string {
	return append([]string(nil), rolePermissions[role]...)
}

// Service resolves actors from storage.
type Service struct {
	DB *sql.DB
}

// ResolveActor loads the stored role for actorID. Unknown actors are not authorized.
func (s Service) ResolveActor(ctx context.Context, actorID string) (Actor, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Actor{}, apperr.New(apperr.NotAuthorized, "actor required")
	}
	a, err := repo.Repo{DB: s.DB}.GetActor(ctx, nil, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		return Actor{}, apperr.New(apperr.NotAuthorized, "unknown actor %s", actorID)
	}
	if err != nil {
		return Actor{}, err
	}
	return Actor{ID: a.ID, Role: a.Role}, nil
}
