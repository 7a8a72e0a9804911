package service

import (
	"context"
	"log/slog"

	"github.com/chordseqapp/chordseq-server/internal/domain"
	"github.com/chordseqapp/chordseq-server/internal/errors"
	"github.com/chordseqapp/chordseq-server/internal/id"
	"github.com/chordseqapp/chordseq-server/internal/store/sqlite"
	"github.com/chordseqapp/chordseq-server/internal/validation"
)

// ChartService manages chart content: creation, mutation, tagging, and the
// read-side query surface.
type ChartService struct {
	store     *sqlite.Store
	authz     *AuthzService
	tags      *TagService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewChartService creates a new chart service.
func NewChartService(store *sqlite.Store, authz *AuthzService, tags *TagService, logger *slog.Logger) *ChartService {
	return &ChartService{
		store:     store,
		authz:     authz,
		tags:      tags,
		validator: validation.New(),
		logger:    logger,
	}
}

// CreateChartRequest is the input for creating a chart.
type CreateChartRequest struct {
	Kind     string   `json:"kind" validate:"required,oneof=chord progression"`
	Public   bool     `json:"public"`
	AudioURL string   `json:"audio_url,omitempty" validate:"omitempty,max=500"`
	ImageURL string   `json:"image_url,omitempty" validate:"omitempty,max=500"`
	Hint     string   `json:"hint,omitempty" validate:"max=2000"`
	Notes    string   `json:"notes,omitempty" validate:"max=10000"`
	Root     string   `json:"root,omitempty" validate:"max=3"`
	Quality  string   `json:"quality,omitempty" validate:"omitempty,oneof=major minor dominant diminished augmented suspended"`
	Bass     string   `json:"bass,omitempty" validate:"max=3"`
	TagIDs   []string `json:"tag_ids,omitempty" validate:"max=20,dive,required"`
}

// CreateChart creates a chart owned by the caller, optionally attaching tags
// in the same unit of work.
func (s *ChartService) CreateChart(ctx context.Context, callerID string, req CreateChartRequest) (*domain.Chart, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	scope := callerID
	if req.Public {
		scope = domain.ScopePublic
	}

	chart := &domain.Chart{
		Kind:     domain.ChartKind(req.Kind),
		OwnerID:  callerID,
		Scope:    scope,
		AudioURL: req.AudioURL,
		ImageURL: req.ImageURL,
		Hint:     req.Hint,
		Notes:    req.Notes,
		Root:     domain.Note(req.Root),
		Quality:  domain.ChartQuality(req.Quality),
		Bass:     domain.Note(req.Bass),
	}
	chart.ID = id.MustGenerate("chart")
	chart.InitTimestamps()

	err := s.store.RunInTx(ctx, func(txs *sqlite.Store) error {
		if err := txs.CreateChart(ctx, chart); err != nil {
			return err
		}
		txTags := s.withStore(txs)
		for _, tagID := range req.TagIDs {
			if err := txTags.attachTag(ctx, callerID, chart.ID, tagID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("chart created", "chart_id", chart.ID, "owner", callerID, "kind", chart.Kind)
	return chart, nil
}

// UpdateChartRequest is the input for updating a chart. Nil fields are left
// untouched.
type UpdateChartRequest struct {
	Public   *bool   `json:"public,omitempty"`
	AudioURL *string `json:"audio_url,omitempty" validate:"omitempty,max=500"`
	ImageURL *string `json:"image_url,omitempty" validate:"omitempty,max=500"`
	Hint     *string `json:"hint,omitempty" validate:"omitempty,max=2000"`
	Notes    *string `json:"notes,omitempty" validate:"omitempty,max=10000"`
	Root     *string `json:"root,omitempty" validate:"omitempty,max=3"`
	Quality  *string `json:"quality,omitempty" validate:"omitempty,oneof=major minor dominant diminished augmented suspended"`
	Bass     *string `json:"bass,omitempty" validate:"omitempty,max=3"`
}

// UpdateChart mutates a chart. Owner only.
func (s *ChartService) UpdateChart(ctx context.Context, callerID, chartID string, req UpdateChartRequest) (*domain.Chart, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	chart, err := s.requireOwnedChart(ctx, callerID, chartID)
	if err != nil {
		return nil, err
	}

	if req.Public != nil {
		if *req.Public {
			chart.Scope = domain.ScopePublic
		} else {
			chart.Scope = chart.OwnerID
		}
	}
	if req.AudioURL != nil {
		chart.AudioURL = *req.AudioURL
	}
	if req.ImageURL != nil {
		chart.ImageURL = *req.ImageURL
	}
	if req.Hint != nil {
		chart.Hint = *req.Hint
	}
	if req.Notes != nil {
		chart.Notes = *req.Notes
	}
	if req.Root != nil {
		chart.Root = domain.Note(*req.Root)
	}
	if req.Quality != nil {
		chart.Quality = domain.ChartQuality(*req.Quality)
	}
	if req.Bass != nil {
		chart.Bass = domain.Note(*req.Bass)
	}
	chart.Touch()

	if err := s.store.UpdateChart(ctx, chart); err != nil {
		return nil, err
	}
	return chart, nil
}

// DeleteChart soft-deletes a chart and detaches its tags and extensions.
// Owner only.
func (s *ChartService) DeleteChart(ctx context.Context, callerID, chartID string) error {
	if _, err := s.requireOwnedChart(ctx, callerID, chartID); err != nil {
		return err
	}

	if err := s.store.DeleteChart(ctx, chartID); err != nil {
		return err
	}

	s.logger.Info("chart deleted", "chart_id", chartID, "owner", callerID)
	return nil
}

// AddTags attaches tags to a chart the caller owns. Each tag must be visible
// to the caller; list-kind tags assign the next position.
func (s *ChartService) AddTags(ctx context.Context, callerID, chartID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return errors.Validation("at least one tag id is required")
	}
	if _, err := s.requireOwnedChart(ctx, callerID, chartID); err != nil {
		return err
	}

	return s.store.RunInTx(ctx, func(txs *sqlite.Store) error {
		txCharts := s.withStore(txs)
		for _, tagID := range tagIDs {
			if err := txCharts.attachTag(ctx, callerID, chartID, tagID); err != nil {
				return err
			}
		}
		return nil
	})
}

// UnTag detaches a tag from a chart the caller owns.
func (s *ChartService) UnTag(ctx context.Context, callerID, chartID, tagID string) error {
	if _, err := s.requireOwnedChart(ctx, callerID, chartID); err != nil {
		return err
	}
	return s.store.RemoveChartTag(ctx, chartID, tagID)
}

// AddExtensions attaches chord alterations to a chart the caller owns.
func (s *ChartService) AddExtensions(ctx context.Context, callerID, chartID string, extensionIDs []string) error {
	if len(extensionIDs) == 0 {
		return errors.Validation("at least one extension id is required")
	}
	if _, err := s.requireOwnedChart(ctx, callerID, chartID); err != nil {
		return err
	}

	return s.store.RunInTx(ctx, func(txs *sqlite.Store) error {
		for _, extID := range extensionIDs {
			if err := txs.AddChartExtension(ctx, chartID, extID); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveExtensions detaches chord alterations from a chart the caller owns.
func (s *ChartService) RemoveExtensions(ctx context.Context, callerID, chartID string, extensionIDs []string) error {
	if _, err := s.requireOwnedChart(ctx, callerID, chartID); err != nil {
		return err
	}

	return s.store.RunInTx(ctx, func(txs *sqlite.Store) error {
		for _, extID := range extensionIDs {
			if err := txs.RemoveChartExtension(ctx, chartID, extID); err != nil {
				return err
			}
		}
		return nil
	})
}

// QueryCharts runs a declarative chart query under the caller's visibility.
func (s *ChartService) QueryCharts(ctx context.Context, callerID string, q sqlite.ChartQuery) ([]*domain.Chart, error) {
	return s.store.QueryCharts(ctx, callerID, q)
}

// GetChart resolves a single chart under the caller's visibility. Invisible
// and nonexistent are indistinguishable.
func (s *ChartService) GetChart(ctx context.Context, callerID, chartID string) (*domain.Chart, error) {
	charts, err := s.store.QueryCharts(ctx, callerID, sqlite.ChartQuery{ID: chartID})
	if err != nil {
		return nil, err
	}
	if len(charts) == 0 {
		return nil, errors.NotFoundf("chart %s not found", chartID)
	}
	return charts[0], nil
}

// ListExtensions returns the fixed extension reference set.
func (s *ChartService) ListExtensions(ctx context.Context) ([]*domain.Extension, error) {
	return s.store.ListExtensions(ctx)
}

// attachTag links one tag after checking the caller can see it.
func (s *ChartService) attachTag(ctx context.Context, callerID, chartID, tagID string) error {
	if err := s.tags.requireTagVisible(ctx, callerID, tagID); err != nil {
		return err
	}
	return s.store.AddChartTag(ctx, chartID, tagID)
}

// requireOwnedChart loads a chart and checks the caller owns it. A foreign
// but visible chart yields forbidden; an invisible one yields not-found.
func (s *ChartService) requireOwnedChart(ctx context.Context, callerID, chartID string) (*domain.Chart, error) {
	if callerID == "" {
		return nil, errors.Unauthenticated("authentication required")
	}
	chart, err := s.store.GetChart(ctx, chartID)
	if err != nil {
		return nil, err
	}
	if chart.OwnerID != callerID {
		visible, err := s.store.QueryCharts(ctx, callerID, sqlite.ChartQuery{ID: chartID})
		if err != nil {
			return nil, err
		}
		if len(visible) == 0 {
			return nil, errors.NotFoundf("chart %s not found", chartID)
		}
		return nil, errors.ForbiddenResource("chart", chartID)
	}
	return chart, nil
}

// withStore rebinds the service to a transaction-scoped store view.
func (s *ChartService) withStore(store *sqlite.Store) *ChartService {
	clone := *s
	clone.store = store
	clone.tags = &TagService{
		store:     store,
		authz:     NewAuthzService(store, s.logger),
		validator: s.tags.validator,
		logger:    s.logger,
	}
	return &clone
}
