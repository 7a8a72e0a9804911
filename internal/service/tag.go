package service

import (
	"context"
	"log/slog"

	"github.com/chordseqapp/chordseq-server/internal/domain"
	"github.com/chordseqapp/chordseq-server/internal/errors"
	"github.com/chordseqapp/chordseq-server/internal/id"
	"github.com/chordseqapp/chordseq-server/internal/normalize"
	"github.com/chordseqapp/chordseq-server/internal/store/sqlite"
	"github.com/chordseqapp/chordseq-server/internal/validation"
)

// TagService manages user-defined tags.
type TagService struct {
	store     *sqlite.Store
	authz     *AuthzService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewTagService creates a new tag service.
func NewTagService(store *sqlite.Store, authz *AuthzService, logger *slog.Logger) *TagService {
	return &TagService{
		store:     store,
		authz:     authz,
		validator: validation.New(),
		logger:    logger,
	}
}

// CreateTagRequest is the input for creating a tag.
type CreateTagRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=100"`
	Kind   string `json:"kind" validate:"required,oneof=descriptor list"`
	Public bool   `json:"public"`
}

// CreateTag creates a tag owned by the caller. Two names that normalize to
// the same munge within one owner's namespace and kind are the same tag, so
// a duplicate fails with a conflict.
func (s *TagService) CreateTag(ctx context.Context, callerID string, req CreateTagRequest) (*domain.Tag, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	scope := callerID
	if req.Public {
		scope = domain.ScopePublic
	}

	tag := &domain.Tag{
		Name:    req.Name,
		Munge:   normalize.Munge(req.Name),
		Kind:    domain.TagKind(req.Kind),
		OwnerID: callerID,
		Scope:   scope,
	}
	tag.ID = id.MustGenerate("tag")
	tag.InitTimestamps()

	if err := s.store.CreateTag(ctx, tag); err != nil {
		return nil, err
	}

	s.logger.Info("tag created", "tag_id", tag.ID, "owner", callerID, "kind", tag.Kind)
	return tag, nil
}

// GetTag returns a tag if the caller can see it: their own, public, or
// granted via an active policy. Invisible and nonexistent are
// indistinguishable.
func (s *TagService) GetTag(ctx context.Context, callerID, tagID string) (*domain.Tag, error) {
	return s.store.GetVisibleTag(ctx, callerID, tagID)
}

// ListTags returns every tag visible to the caller.
func (s *TagService) ListTags(ctx context.Context, callerID string) ([]*domain.Tag, error) {
	return s.store.ListTagsForUser(ctx, callerID)
}

// DeleteTag soft-deletes a tag. Owner only; a write policy does not extend
// to deleting the tag itself.
func (s *TagService) DeleteTag(ctx context.Context, callerID, tagID string) error {
	if err := s.authz.RequireOwner(ctx, callerID, domain.ResourceTag, tagID); err != nil {
		return err
	}

	if err := s.store.DeleteTag(ctx, tagID); err != nil {
		return err
	}

	s.logger.Info("tag deleted", "tag_id", tagID, "owner", callerID)
	return nil
}

// requireTagVisible checks that the caller can at least read the tag,
// translating a policy miss into not-found so tag existence doesn't leak.
func (s *TagService) requireTagVisible(ctx context.Context, callerID, tagID string) error {
	if err := s.authz.Authorize(ctx, callerID, domain.ResourceTag, tagID, domain.ActionRead); err != nil {
		if errors.Is(err, errors.ErrForbidden) {
			return errors.NotFoundf("tag %s not found", tagID)
		}
		return err
	}
	return nil
}
