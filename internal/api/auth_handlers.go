package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chordseqapp/chordseq-server/internal/service"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/register",
		Summary:     "Register",
		Description: "Creates an account and signs the user in",
		Tags:        []string{"Auth"},
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "Login",
		Description: "Verifies credentials and issues an access token",
		Tags:        []string{"Auth"},
	}, s.handleLogin)
}

// === DTOs ===

type RegisterRequest struct {
	Email       string `json:"email" doc:"Email address"`
	Password    string `json:"password" doc:"Password (8-128 characters)"`
	DisplayName string `json:"display_name,omitempty" doc:"Display name"`
}

type RegisterInput struct {
	Body RegisterRequest
}

type LoginRequest struct {
	Email    string `json:"email" doc:"Email address"`
	Password string `json:"password" doc:"Password"`
}

type LoginInput struct {
	Body LoginRequest
}

type AuthResponse struct {
	AccessToken string       `json:"access_token" doc:"PASETO access token"`
	ExpiresIn   int64        `json:"expires_in" doc:"Token lifetime in seconds"`
	User        UserResponse `json:"user" doc:"The signed-in account"`
}

type AuthOutput struct {
	Body AuthResponse
}

// === Handlers ===

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*AuthOutput, error) {
	result, err := s.services.User.Register(ctx, service.RegisterRequest{
		Email:       input.Body.Email,
		Password:    input.Body.Password,
		DisplayName: input.Body.DisplayName,
	})
	if err != nil {
		return nil, err
	}

	return &AuthOutput{Body: s.mapAuthResponse(result)}, nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	result, err := s.services.User.Login(ctx, service.LoginRequest{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}

	return &AuthOutput{Body: s.mapAuthResponse(result)}, nil
}

// === Mappers ===

func (s *Server) mapAuthResponse(result *service.AuthResult) AuthResponse {
	return AuthResponse{
		AccessToken: result.AccessToken,
		ExpiresIn:   int64(s.services.Tokens.AccessTokenDuration().Seconds()),
		User:        mapUserResponse(result.User),
	}
}
