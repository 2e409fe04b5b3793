package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"trakka/internal/apperr"
	"trakka/internal/config"
	"trakka/internal/domain"
	"trakka/internal/engine/auth"
	"trakka/internal/events"
	"trakka/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Logger *slog.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Config: cfg,
		Logger: slog.Default(),
		Now:    time.Now,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) loc() *time.Location {
	return e.Config.Location()
}

// today is the current calendar date in the organization timezone.
func (e Engine) today() time.Time {
	return domain.DateOf(e.now(), e.loc())
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) record(ctx context.Context, tx *sql.Tx, rec events.Record) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, rec)
}

func newID() string {
	return uuid.NewString()
}

// validateInput runs struct tag validation and reports the first failing field.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		return apperr.New(apperr.InvalidInput, "%s failed %s validation", field, fe.Tag()).With("field", field)
	}
	return apperr.Wrap(apperr.InvalidInput, err, "invalid input")
}

// selectableProject loads a project that new time may be booked against.
func (e Engine) selectableProject(ctx context.Context, tx *sql.Tx, actor auth.Actor, projectID string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, tx, projectID)
	if errors.Is(err, repo.ErrNotFound) {
		return p, apperr.New(apperr.NotFound, "project %s not found", projectID).With("project_id", projectID)
	}
	if err != nil {
		return p, fmt.Errorf("load project: %w", err)
	}
	if !p.Active {
		return p, apperr.New(apperr.InvalidInput, "project %s is inactive", projectID).With("project_id", projectID)
	}
	if e.Config != nil && e.Config.Projects.RequireMembership && !actor.Role.Reviewer() {
		member, err := e.Repo.IsProjectMember(ctx, tx, projectID, actor.ID)
		if err != nil {
			return p, err
		}
		if !member {
			return p, apperr.New(apperr.NotAuthorized, "not a member of project %s", projectID).With("project_id", projectID)
		}
	}
	return p, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
