package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"trakka/internal/domain"
	"trakka/internal/engine"
	"trakka/internal/engine/auth"
	"trakka/internal/repo"
)

type actorOutput struct {
	Body domain.Actor `json:"body"`
}

type actorPath struct {
	ActorID string `path:"actor_id"`
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "whoami",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Authenticated actor and permissions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		p, ok := principalFromContext(ctx)
		if !ok || p.Actor.ID == "" {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			ActorID:     p.Actor.ID,
			Role:        p.Actor.Role,
			Permissions: auth.Permissions(p.Actor.Role),
			Source:      p.Source,
		}}, nil
	})
}

// registerDevAuth exposes token minting for local setups. It is not mounted
// unless DevLogin is set.
func registerDevAuth(api huma.API, e engine.Engine, cfg AuthConfig) {
	if !cfg.DevLogin {
		return
	}
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "Issue a token for an existing actor (development only)",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		_, err := e.Repo.GetActor(ctx, nil, input.Body.ActorID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, newAPIError(http.StatusUnauthorized, "invalid_credentials", "unknown actor", nil)
		}
		if err != nil {
			return nil, handleError(ctx, err)
		}
		token, err := SignToken(cfg.JWTSecret, input.Body.ActorID, cfg.TokenTTL)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func registerActors(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-actors",
		Method:      http.MethodGet,
		Path:        "/actors",
		Summary:     "List actors",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Role string `query:"role"`
	}) (*struct {
		Body []domain.Actor `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListActors(ctx, actor, input.Role)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body []domain.Actor `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-actor",
		Method:        http.MethodPost,
		Path:          "/actors",
		Summary:       "Register actor",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateActorRequest `json:"body"`
	}) (*actorOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.RegisterActor(ctx, actor, engine.ActorInput{
			ID:          input.Body.ID,
			Role:        input.Body.Role,
			DisplayName: input.Body.DisplayName,
			Department:  input.Body.Department,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &actorOutput{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-actor",
		Method:      http.MethodGet,
		Path:        "/actors/{actor_id}",
		Summary:     "Get actor",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *actorPath) (*actorOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.GetActor(ctx, actor, input.ActorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &actorOutput{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-actor",
		Method:      http.MethodPatch,
		Path:        "/actors/{actor_id}",
		Summary:     "Change actor role",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorID string             `path:"actor_id"`
		Body    UpdateActorRequest `json:"body"`
	}) (*actorOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.SetActorRole(ctx, actor, input.ActorID, input.Body.Role)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &actorOutput{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/actors/{actor_id}/api-keys",
		Summary:       "Issue API key",
		Description:   "The plain key is only returned in this response.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorID string        `path:"actor_id"`
		Body    APIKeyRequest `json:"body" required:"false"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		plain, key, err := e.IssueAPIKey(ctx, actor, input.ActorID, input.Body.Name)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: APIKeyResponse{Key: plain, Details: key}}, nil
	})
}
