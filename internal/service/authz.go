// Package service provides the business logic layer for charts, tags,
// sharing, and reactions.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chordseqapp/chordseq-server/internal/domain"
	"github.com/chordseqapp/chordseq-server/internal/errors"
	"github.com/chordseqapp/chordseq-server/internal/store/sqlite"
)

// AuthzService decides whether a caller may act on a resource.
//
// Every access decision in the server goes through Authorize or RequireOwner;
// no other code path may grant or deny access on its own.
type AuthzService struct {
	store  *sqlite.Store
	logger *slog.Logger
}

// NewAuthzService creates a new authorization service.
func NewAuthzService(store *sqlite.Store, logger *slog.Logger) *AuthzService {
	return &AuthzService{store: store, logger: logger}
}

// Authorize permits the operation when the caller owns the resource, or when
// an active policy for (resourceType, resourceID, caller) grants at least the
// required action. Anything else is denied with an error naming the resource.
func (s *AuthzService) Authorize(ctx context.Context, callerID string, resourceType domain.ResourceType, resourceID string, required domain.Action) error {
	if callerID == "" {
		return errors.Unauthenticated("authentication required")
	}

	owner, scope, err := s.resolveResource(ctx, resourceType, resourceID)
	if err != nil {
		return err
	}
	if owner == callerID {
		return nil
	}
	// Public scope grants read to everyone, never write.
	if required == domain.ActionRead && domain.IsPublicScope(scope) {
		return nil
	}

	policy, err := s.store.GetActivePolicy(ctx, resourceType, resourceID, callerID)
	if err != nil {
		return fmt.Errorf("look up policy: %w", err)
	}
	if policy != nil && policy.IsActive(time.Now()) && policy.Action.Satisfies(required) {
		return nil
	}

	s.logger.Debug("access denied",
		"caller", callerID,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"required", required,
	)
	return errors.ForbiddenResource(string(resourceType), resourceID)
}

// RequireOwner permits the operation only for the resource owner. Policies
// are not consulted: owner-only mutations (creating or deleting grants) can
// never be delegated.
func (s *AuthzService) RequireOwner(ctx context.Context, callerID string, resourceType domain.ResourceType, resourceID string) error {
	if callerID == "" {
		return errors.Unauthenticated("authentication required")
	}

	owner, _, err := s.resolveResource(ctx, resourceType, resourceID)
	if err != nil {
		return err
	}
	if owner != callerID {
		return errors.ForbiddenResource(string(resourceType), resourceID)
	}
	return nil
}

// ResourceOwner resolves the owning user of a shareable resource.
func (s *AuthzService) ResourceOwner(ctx context.Context, resourceType domain.ResourceType, resourceID string) (string, error) {
	owner, _, err := s.resolveResource(ctx, resourceType, resourceID)
	return owner, err
}

func (s *AuthzService) resolveResource(ctx context.Context, resourceType domain.ResourceType, resourceID string) (owner, scope string, err error) {
	switch resourceType {
	case domain.ResourceTag:
		tag, err := s.store.GetTag(ctx, resourceID)
		if err != nil {
			return "", "", err
		}
		return tag.OwnerID, tag.Scope, nil
	default:
		return "", "", errors.Validationf("unknown resource type %q", resourceType)
	}
}
