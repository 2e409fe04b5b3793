package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"trakka/internal/apperr"
	"trakka/internal/domain"
	"trakka/internal/engine/auth"
	"trakka/internal/events"
	"trakka/internal/repo"
)

// SystemActor is recorded as the author of bootstrap changes.
const SystemActor = "system"

type ActorInput struct {
	ID          string `json:"id" validate:"required,max=64"`
	Role        string `json:"role" validate:"required"`
	DisplayName string `json:"display_name,omitempty" validate:"max=200"`
	Department  string `json:"department,omitempty" validate:"max=200"`
}

// RegisterActor creates an identity with a role. Only admins manage actors.
func (e Engine) RegisterActor(ctx context.Context, by auth.Actor, in ActorInput) (domain.Actor, error) {
	if err := auth.Require(by, auth.PermActorManage); err != nil {
		return domain.Actor{}, err
	}
	in.ID = strings.TrimSpace(in.ID)
	if err := validateInput(in); err != nil {
		return domain.Actor{}, err
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return domain.Actor{}, apperr.Wrap(apperr.InvalidInput, err, "invalid role")
	}
	a := domain.Actor{
		ID:          in.ID,
		Role:        role,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Department:  strings.TrimSpace(in.Department),
		CreatedAt:   e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Actor{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetActor(ctx, tx, a.ID); err == nil {
		return domain.Actor{}, apperr.New(apperr.InvalidInput, "actor %s already exists", a.ID).With("actor_id", a.ID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Actor{}, err
	}
	if err := e.Repo.InsertActor(ctx, tx, a); err != nil {
		return domain.Actor{}, fmt.Errorf("insert actor: %w", err)
	}
	if err := e.record(ctx, tx, events.Record{
		Type:       events.ActorRegistered,
		EntityKind: "actor",
		EntityID:   a.ID,
		ActorID:    by.ID,
		Payload:    events.Payload{"role": string(a.Role)},
	}); err != nil {
		return domain.Actor{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Actor{}, err
	}
	return a, nil
}

func (e Engine) SetActorRole(ctx context.Context, by auth.Actor, id, role string) (domain.Actor, error) {
	if err := auth.Require(by, auth.PermActorManage); err != nil {
		return domain.Actor{}, err
	}
	r, err := domain.ParseRole(role)
	if err != nil {
		return domain.Actor{}, apperr.Wrap(apperr.InvalidInput, err, "invalid role")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Actor{}, err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetActor(ctx, tx, id)
	if err != nil {
		return domain.Actor{}, err
	}
	if a.Role == r {
		return a, nil
	}
	from := a.Role
	a.Role = r
	if err := e.Repo.UpdateActor(ctx, tx, a); err != nil {
		return domain.Actor{}, err
	}
	if err := e.record(ctx, tx, events.Record{
		Type:       events.ActorRoleChanged,
		EntityKind: "actor",
		EntityID:   a.ID,
		ActorID:    by.ID,
		Payload:    events.Payload{"from": string(from), "to": string(r)},
	}); err != nil {
		return domain.Actor{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Actor{}, err
	}
	return a, nil
}

// GetActor lets anyone read themselves and reviewers read everyone.
func (e Engine) GetActor(ctx context.Context, by auth.Actor, id string) (domain.Actor, error) {
	if id != by.ID && !by.Can(auth.PermReportAll) {
		return domain.Actor{}, apperr.ErrNotAuthorized.With("actor_id", id)
	}
	return e.Repo.GetActor(ctx, nil, id)
}

func (e Engine) ListActors(ctx context.Context, by auth.Actor, role string) ([]domain.Actor, error) {
	if err := auth.Require(by, auth.PermReportAll); err != nil {
		return nil, err
	}
	var r domain.Role
	if strings.TrimSpace(role) != "" {
		parsed, err := domain.ParseRole(role)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidInput, err, "invalid role")
		}
		r = parsed
	}
	return e.Repo.ListActors(ctx, r)
}

// IssueAPIKey mints a key for actorID and stores only its hash. The plain key is
// returned once. Actors may issue keys for themselves; admins for anyone.
func (e Engine) IssueAPIKey(ctx context.Context, by auth.Actor, actorID, name string) (string, domain.APIKey, error) {
	if actorID == "" {
		actorID = by.ID
	}
	if actorID != by.ID {
		if err := auth.Require(by, auth.PermActorManage); err != nil {
			return "", domain.APIKey{}, err
		}
	}
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", domain.APIKey{}, fmt.Errorf("generate key: %w", err)
	}
	plain := "trk_" + hex.EncodeToString(raw)
	key := domain.APIKey{
		ID:        newID(),
		ActorID:   actorID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", domain.APIKey{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetActor(ctx, tx, actorID); errors.Is(err, repo.ErrNotFound) {
		return "", domain.APIKey{}, apperr.New(apperr.NotFound, "actor %s not found", actorID).With("actor_id", actorID)
	} else if err != nil {
		return "", domain.APIKey{}, err
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return "", domain.APIKey{}, fmt.Errorf("insert api key: %w", err)
	}
	if err := e.record(ctx, tx, events.Record{
		Type:       events.APIKeyIssued,
		EntityKind: "actor",
		EntityID:   actorID,
		ActorID:    by.ID,
		Payload:    events.Payload{"key_id": key.ID, "name": key.Name},
	}); err != nil {
		return "", domain.APIKey{}, err
	}
	if err := tx.Commit(); err != nil {
		return "", domain.APIKey{}, err
	}
	return plain, key, nil
}

// BootstrapAdmins makes sure every configured admin exists. Existing actors keep
// their role.
func (e Engine) BootstrapAdmins(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		_, err := e.Repo.GetActor(ctx, tx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if err := e.Repo.EnsureActor(ctx, tx, domain.Actor{ID: id, Role: domain.RoleAdmin, CreatedAt: e.stamp()}); err != nil {
			return fmt.Errorf("bootstrap admin %s: %w", id, err)
		}
		if err := e.record(ctx, tx, events.Record{
			Type:       events.ActorRegistered,
			EntityKind: "actor",
			EntityID:   id,
			ActorID:    SystemActor,
			Payload:    events.Payload{"role": string(domain.RoleAdmin), "bootstrap": true},
		}); err != nil {
			return err
		}
	}
	return tx.Commit()
}
