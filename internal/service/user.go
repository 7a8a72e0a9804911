package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chordseqapp/chordseq-server/internal/auth"
	"github.com/chordseqapp/chordseq-server/internal/domain"
	"github.com/chordseqapp/chordseq-server/internal/errors"
	"github.com/chordseqapp/chordseq-server/internal/id"
	"github.com/chordseqapp/chordseq-server/internal/store/sqlite"
	"github.com/chordseqapp/chordseq-server/internal/validation"
)

// UserService handles accounts: registration, login, and identity
// resolution for authenticated requests.
type UserService struct {
	store     *sqlite.Store
	tokens    *auth.TokenService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(store *sqlite.Store, tokens *auth.TokenService, logger *slog.Logger) *UserService {
	return &UserService{
		store:     store,
		tokens:    tokens,
		validator: validation.New(),
		logger:    logger,
	}
}

// RegisterRequest is the input for creating an account.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

// AuthResult carries a fresh access token and the account it belongs to.
type AuthResult struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

// Register creates a new account and signs the user in.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}

	user := &domain.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
	}
	user.ID = id.MustGenerate("user")
	user.InitTimestamps()

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return &AuthResult{User: user, AccessToken: token}, nil
}

// LoginRequest is the input for signing in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login verifies credentials and issues an access token. Wrong email and
// wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Unauthenticated("invalid email or password")
		}
		return nil, err
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, errors.Unauthenticated("invalid email or password")
	}

	token, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return &AuthResult{User: user, AccessToken: token}, nil
}

// EnsureUser resolves verified token claims to a local account, creating one
// on a user's first authenticated request so externally-issued identities
// always have a row.
func (s *UserService) EnsureUser(ctx context.Context, claims *auth.AccessClaims) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, claims.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	user = &domain.User{Email: claims.Email}
	user.ID = claims.UserID
	user.InitTimestamps()
	if err := s.store.CreateUser(ctx, user); err != nil {
		// A concurrent first request may have created the row already.
		if errors.Is(err, errors.ErrConflict) {
			return s.store.GetUser(ctx, claims.UserID)
		}
		return nil, err
	}

	s.logger.Info("user provisioned on first request", "user_id", user.ID)
	return user, nil
}

// GetUser returns a user by ID.
func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.store.GetUser(ctx, userID)
}

// ListUsers returns users matching an optional name/email search.
func (s *UserService) ListUsers(ctx context.Context, search string, limit int) ([]*domain.User, error) {
	return s.store.ListUsers(ctx, search, limit)
}

// UpdateSettingsRequest is the input for updating a user's profile.
type UpdateSettingsRequest struct {
	DisplayName *string        `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Settings    map[string]any `json:"settings,omitempty"`
}

// UpdateSettings updates the caller's own display name and settings blob.
func (s *UserService) UpdateSettings(ctx context.Context, callerID string, req UpdateSettingsRequest) (*domain.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Settings != nil {
		user.Settings = req.Settings
	}
	user.Touch()

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteAccount removes the caller's account and all their charts.
func (s *UserService) DeleteAccount(ctx context.Context, callerID string) error {
	if err := s.store.DeleteUser(ctx, callerID); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", callerID)
	return nil
}
