package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/chordseqapp/chordseq-server/internal/auth"
	"github.com/chordseqapp/chordseq-server/internal/domain"
	"github.com/chordseqapp/chordseq-server/internal/errors"
	"github.com/chordseqapp/chordseq-server/internal/id"
	"github.com/chordseqapp/chordseq-server/internal/store/sqlite"
	"github.com/chordseqapp/chordseq-server/internal/validation"
)

// InvitationService manages invitations and the token exchange that turns
// them into policies.
type InvitationService struct {
	store     *sqlite.Store
	authz     *AuthzService
	tokens    *auth.TokenService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewInvitationService creates a new invitation service.
func NewInvitationService(store *sqlite.Store, authz *AuthzService, tokens *auth.TokenService, logger *slog.Logger) *InvitationService {
	return &InvitationService{
		store:     store,
		authz:     authz,
		tokens:    tokens,
		validator: validation.New(),
		logger:    logger,
	}
}

// CreateInvitationRequest is the input for creating an invitation.
type CreateInvitationRequest struct {
	ResourceType string     `json:"resource_type" validate:"required,oneof=tag"`
	ResourceID   string     `json:"resource_id" validate:"required"`
	Action       string     `json:"action" validate:"required,oneof=read write *"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// CreateInvitationResult carries the stored invitation and its signed token.
type CreateInvitationResult struct {
	Invitation *domain.Invitation `json:"invitation"`
	Token      string             `json:"token"`
}

// CreateInvitation persists an invitation for a resource the caller owns and
// mints its signed token. The token embeds only the invitation's ID, so the
// stored row stays the single source of truth and resource identifiers never
// leak through the link.
func (s *InvitationService) CreateInvitation(ctx context.Context, callerID string, req CreateInvitationRequest) (*CreateInvitationResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return nil, errors.Validation("expires_at must be in the future")
	}

	resourceType := domain.ResourceType(req.ResourceType)
	if err := s.authz.RequireOwner(ctx, callerID, resourceType, req.ResourceID); err != nil {
		return nil, err
	}

	inv := &domain.Invitation{
		ResourceType: resourceType,
		ResourceID:   req.ResourceID,
		Action:       domain.Action(req.Action),
		ExpiresAt:    req.ExpiresAt,
		CreatorID:    callerID,
	}
	inv.ID = id.MustGenerate("inv")
	inv.InitTimestamps()

	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateInvitationToken(inv)
	if err != nil {
		return nil, err
	}

	s.logger.Info("invitation created",
		"invitation_id", inv.ID,
		"resource_type", inv.ResourceType,
		"resource_id", inv.ResourceID,
		"action", inv.Action,
	)
	return &CreateInvitationResult{Invitation: inv, Token: token}, nil
}

// AcceptInvitationResult is what a successful exchange returns: the shared
// resource and the policy now in effect (nil when the caller is the owner).
type AcceptInvitationResult struct {
	Tag    *domain.Tag    `json:"tag"`
	Policy *domain.Policy `json:"policy,omitempty"`
}

// AcceptInvitation redeems a signed invitation token for the caller.
//
// Repeated acceptance by the same grantee converges to a single active
// policy, and an existing broader grant (no expiry, or a later one) is never
// downgraded. Self-acceptance by the resource owner is a no-op.
func (s *InvitationService) AcceptInvitation(ctx context.Context, callerID, token string) (*AcceptInvitationResult, error) {
	if callerID == "" {
		return nil, errors.Unauthenticated("authentication required")
	}

	claims, err := s.tokens.VerifyInvitationToken(token)
	if err != nil {
		return nil, errors.InvalidToken("invitation token is invalid or expired")
	}

	inv, err := s.store.GetInvitation(ctx, claims.InvitationID)
	if err != nil {
		// A deleted invitation permanently invalidates all copies of the
		// token; the caller can't tell that apart from a forged one.
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidToken("invitation token is invalid or expired")
		}
		return nil, err
	}

	tag, err := s.store.GetTag(ctx, inv.ResourceID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidToken("invitation token is invalid or expired")
		}
		return nil, err
	}

	// Self-acceptance is meaningless; the owner already has everything.
	if tag.OwnerID == callerID {
		return &AcceptInvitationResult{Tag: tag}, nil
	}

	var policy *domain.Policy
	err = s.store.RunInTx(ctx, func(txs *sqlite.Store) error {
		existing, err := txs.GetActivePolicy(ctx, inv.ResourceType, inv.ResourceID, callerID)
		if err != nil {
			return err
		}
		if existing != nil {
			if keepsExistingGrant(existing, inv) {
				policy = existing
				return nil
			}
			// The stale, narrower grant is replaced below.
			if err := txs.DeletePolicy(ctx, existing.ID); err != nil {
				return err
			}
		}

		policy = &domain.Policy{
			ResourceType: inv.ResourceType,
			ResourceID:   inv.ResourceID,
			GranteeID:    callerID,
			Action:       inv.Action,
			ExpiresAt:    inv.ExpiresAt,
			InvitationID: inv.ID,
			CreatorID:    tag.OwnerID,
		}
		policy.ID = id.MustGenerate("policy")
		policy.InitTimestamps()
		return txs.CreatePolicy(ctx, policy)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invitation accepted",
		"invitation_id", inv.ID,
		"grantee", callerID,
		"policy_id", policy.ID,
	)
	return &AcceptInvitationResult{Tag: tag, Policy: policy}, nil
}

// keepsExistingGrant reports whether an already-held policy outlives what
// the invitation offers: it never lapses, or lapses later.
func keepsExistingGrant(existing *domain.Policy, inv *domain.Invitation) bool {
	if existing.ExpiresAt == nil {
		return true
	}
	if inv.ExpiresAt == nil {
		return false
	}
	return existing.ExpiresAt.After(*inv.ExpiresAt)
}

// ListInvitations returns the invitations for a resource the caller owns.
func (s *InvitationService) ListInvitations(ctx context.Context, callerID string, resourceType domain.ResourceType, resourceID string) ([]*domain.Invitation, error) {
	if err := s.authz.RequireOwner(ctx, callerID, resourceType, resourceID); err != nil {
		return nil, err
	}
	return s.store.ListInvitationsForResource(ctx, resourceType, resourceID)
}

// DeleteInvitation soft-deletes an invitation, invalidating every
// outstanding copy of its token. Policies already materialized from it are
// unaffected. Owner only.
func (s *InvitationService) DeleteInvitation(ctx context.Context, callerID, invitationID string) error {
	inv, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil {
		return err
	}
	if err := s.authz.RequireOwner(ctx, callerID, inv.ResourceType, inv.ResourceID); err != nil {
		return err
	}

	if err := s.store.DeleteInvitation(ctx, invitationID); err != nil {
		return err
	}

	s.logger.Info("invitation deleted", "invitation_id", invitationID, "owner", callerID)
	return nil
}
