package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chordseqapp/chordseq-server/internal/domain"
	"github.com/chordseqapp/chordseq-server/internal/service"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me",
		Summary:     "Get current user",
		Description: "Returns the authenticated account",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCurrentUser",
		Method:      http.MethodPatch,
		Path:        "/api/v1/users/me",
		Summary:     "Update current user",
		Description: "Updates the caller's display name and settings",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteCurrentUser",
		Method:      http.MethodDelete,
		Path:        "/api/v1/users/me",
		Summary:     "Delete account",
		Description: "Deletes the caller's account and all their content",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "listUsers",
		Method:      http.MethodGet,
		Path:        "/api/v1/users",
		Summary:     "List users",
		Description: "Returns users matching an optional search term",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListUsers)
}

// === DTOs ===

type UserResponse struct {
	ID          string         `json:"id" doc:"User ID"`
	Email       string         `json:"email" doc:"Email address"`
	DisplayName string         `json:"display_name,omitempty" doc:"Display name"`
	Settings    map[string]any `json:"settings,omitempty" doc:"Client settings blob"`
	CreatedAt   time.Time      `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time      `json:"updated_at" doc:"Last update time"`
}

type UserOutput struct {
	Body UserResponse
}

type UpdateUserRequest struct {
	DisplayName *string        `json:"display_name,omitempty" doc:"Display name"`
	Settings    map[string]any `json:"settings,omitempty" doc:"Client settings blob"`
}

type UpdateUserInput struct {
	Body UpdateUserRequest
}

type ListUsersInput struct {
	Search string `query:"search" doc:"Name or email search term"`
	Limit  int    `query:"limit" doc:"Maximum results (default 50)"`
}

type ListUsersResponse struct {
	Users []UserResponse `json:"users" doc:"Matching users"`
}

type ListUsersOutput struct {
	Body ListUsersResponse
}

// === Handlers ===

func (s *Server) handleGetCurrentUser(ctx context.Context, _ *struct{}) (*UserOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.services.User.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &UserOutput{Body: mapUserResponse(user)}, nil
}

func (s *Server) handleUpdateCurrentUser(ctx context.Context, input *UpdateUserInput) (*UserOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.services.User.UpdateSettings(ctx, userID, service.UpdateSettingsRequest{
		DisplayName: input.Body.DisplayName,
		Settings:    input.Body.Settings,
	})
	if err != nil {
		return nil, err
	}

	return &UserOutput{Body: mapUserResponse(user)}, nil
}

func (s *Server) handleDeleteCurrentUser(ctx context.Context, _ *struct{}) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.User.DeleteAccount(ctx, userID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Account deleted"}}, nil
}

func (s *Server) handleListUsers(ctx context.Context, input *ListUsersInput) (*ListUsersOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	users, err := s.services.User.ListUsers(ctx, input.Search, input.Limit)
	if err != nil {
		return nil, err
	}

	resp := make([]UserResponse, len(users))
	for i, u := range users {
		resp[i] = mapUserResponse(u)
	}

	return &ListUsersOutput{Body: ListUsersResponse{Users: resp}}, nil
}

// === Mappers ===

func mapUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Settings:    u.Settings,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
