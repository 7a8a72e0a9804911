package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/chordseqapp/chordseq-server/internal/domain"
	"github.com/chordseqapp/chordseq-server/internal/errors"
	"github.com/chordseqapp/chordseq-server/internal/id"
	"github.com/chordseqapp/chordseq-server/internal/store/sqlite"
	"github.com/chordseqapp/chordseq-server/internal/validation"
)

// PolicyService manages direct access grants.
type PolicyService struct {
	store     *sqlite.Store
	authz     *AuthzService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewPolicyService creates a new policy service.
func NewPolicyService(store *sqlite.Store, authz *AuthzService, logger *slog.Logger) *PolicyService {
	return &PolicyService{
		store:     store,
		authz:     authz,
		validator: validation.New(),
		logger:    logger,
	}
}

// CreatePolicyRequest is the input for granting access directly, without an
// invitation.
type CreatePolicyRequest struct {
	ResourceType string     `json:"resource_type" validate:"required,oneof=tag"`
	ResourceID   string     `json:"resource_id" validate:"required"`
	GranteeID    string     `json:"grantee_id" validate:"required"`
	Action       string     `json:"action" validate:"required,oneof=read write *"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// CreatePolicy grants a user access to a resource the caller owns.
func (s *PolicyService) CreatePolicy(ctx context.Context, callerID string, req CreatePolicyRequest) (*domain.Policy, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return nil, errors.Validation("expires_at must be in the future")
	}
	if req.GranteeID == callerID {
		return nil, errors.Validation("cannot grant access to yourself")
	}

	resourceType := domain.ResourceType(req.ResourceType)
	if err := s.authz.RequireOwner(ctx, callerID, resourceType, req.ResourceID); err != nil {
		return nil, err
	}

	// The grantee must exist; dangling grants help nobody.
	if _, err := s.store.GetUser(ctx, req.GranteeID); err != nil {
		return nil, err
	}

	policy := &domain.Policy{
		ResourceType: resourceType,
		ResourceID:   req.ResourceID,
		GranteeID:    req.GranteeID,
		Action:       domain.Action(req.Action),
		ExpiresAt:    req.ExpiresAt,
		CreatorID:    callerID,
	}
	policy.ID = id.MustGenerate("policy")
	policy.InitTimestamps()

	err := s.store.RunInTx(ctx, func(txs *sqlite.Store) error {
		// One active policy per (resource, grantee): replace, don't stack.
		existing, err := txs.GetActivePolicy(ctx, resourceType, req.ResourceID, req.GranteeID)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := txs.DeletePolicy(ctx, existing.ID); err != nil {
				return err
			}
		}
		return txs.CreatePolicy(ctx, policy)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("policy created",
		"policy_id", policy.ID,
		"resource_id", policy.ResourceID,
		"grantee", policy.GranteeID,
		"action", policy.Action,
	)
	return policy, nil
}

// ListPolicies returns the policies for a resource the caller owns.
func (s *PolicyService) ListPolicies(ctx context.Context, callerID string, resourceType domain.ResourceType, resourceID string) ([]*domain.Policy, error) {
	if err := s.authz.RequireOwner(ctx, callerID, resourceType, resourceID); err != nil {
		return nil, err
	}
	return s.store.ListPoliciesForResource(ctx, resourceType, resourceID)
}

// ListGrants returns the active policies where the caller is the grantee.
func (s *PolicyService) ListGrants(ctx context.Context, callerID string) ([]*domain.Policy, error) {
	if callerID == "" {
		return nil, errors.Unauthenticated("authentication required")
	}
	return s.store.ListPoliciesForGrantee(ctx, callerID)
}

// DeletePolicy soft-deletes a policy. Permitted for the resource owner, and
// for the grantee revoking their own access.
func (s *PolicyService) DeletePolicy(ctx context.Context, callerID, policyID string) error {
	policy, err := s.store.GetPolicy(ctx, policyID)
	if err != nil {
		return err
	}

	if policy.GranteeID != callerID {
		if err := s.authz.RequireOwner(ctx, callerID, policy.ResourceType, policy.ResourceID); err != nil {
			return err
		}
	}

	if err := s.store.DeletePolicy(ctx, policyID); err != nil {
		return err
	}

	s.logger.Info("policy deleted", "policy_id", policyID, "caller", callerID)
	return nil
}
