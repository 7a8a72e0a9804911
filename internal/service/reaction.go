package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/chordseqapp/chordseq-server/internal/domain"
	"github.com/chordseqapp/chordseq-server/internal/errors"
	"github.com/chordseqapp/chordseq-server/internal/store/sqlite"
)

// ReactionService handles reactions on charts.
type ReactionService struct {
	store  *sqlite.Store
	logger *slog.Logger
}

// NewReactionService creates a new reaction service.
func NewReactionService(store *sqlite.Store, logger *slog.Logger) *ReactionService {
	return &ReactionService{store: store, logger: logger}
}

// React toggles the caller's reaction on a chart: a new kind is set, the
// same kind again removes it, a different kind replaces it. The chart must
// be visible to the caller. Returns the reaction now in effect, or nil when
// the toggle removed it.
func (r *ReactionService) React(ctx context.Context, callerID, chartID string, kind domain.ReactionKind) (*domain.Reaction, error) {
	if callerID == "" {
		return nil, errors.Unauthenticated("authentication required")
	}
	if !kind.Valid() {
		return nil, errors.Validationf("unknown reaction kind %q", kind)
	}

	visible, err := r.store.QueryCharts(ctx, callerID, sqlite.ChartQuery{ID: chartID})
	if err != nil {
		return nil, err
	}
	if len(visible) == 0 {
		return nil, errors.NotFoundf("chart %s not found", chartID)
	}

	// Read-then-write under one savepoint so a racing duplicate collapses
	// into the upsert instead of surfacing a conflict.
	var result *domain.Reaction
	err = r.store.RunInTx(ctx, func(txs *sqlite.Store) error {
		existing, err := txs.GetReaction(ctx, chartID, callerID)
		if err != nil {
			return err
		}

		if existing != nil && existing.Kind == kind {
			result = nil
			return txs.DeleteReaction(ctx, chartID, callerID)
		}

		reaction := &domain.Reaction{
			ChartID:   chartID,
			UserID:    callerID,
			Kind:      kind,
			CreatedAt: time.Now(),
		}
		if err := txs.SetReaction(ctx, reaction); err != nil {
			return err
		}
		result = reaction
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
