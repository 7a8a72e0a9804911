package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chordseqapp/chordseq-server/internal/domain"
)

// GetReaction returns the caller's reaction on a chart, or nil if none.
func (s *Store) GetReaction(ctx context.Context, chartID, userID string) (*domain.Reaction, error) {
	var (
		r         domain.Reaction
		kind      string
		createdAt string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT chart_id, user_id, kind, created_at FROM reactions
		WHERE chart_id = ? AND user_id = ?`, chartID, userID).
		Scan(&r.ChartID, &r.UserID, &kind, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query reaction: %w", err)
	}
	r.Kind = domain.ReactionKind(kind)
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &r, nil
}

// SetReaction upserts a reaction. A concurrent duplicate insert is absorbed
// by the conflict clause rather than surfaced as an error.
func (s *Store) SetReaction(ctx context.Context, r *domain.Reaction) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO reactions (chart_id, user_id, kind, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (chart_id, user_id) DO UPDATE SET kind = excluded.kind, created_at = excluded.created_at`,
		r.ChartID, r.UserID, string(r.Kind), formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert reaction: %w", err)
	}
	return nil
}

// DeleteReaction removes the caller's reaction on a chart, if any.
func (s *Store) DeleteReaction(ctx context.Context, chartID, userID string) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM reactions WHERE chart_id = ? AND user_id = ?`, chartID, userID)
	if err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	return nil
}

// GetReactionCountsByChartIDs returns the total reaction count per chart in
// one batched query. Charts with no reactions are absent from the map.
func (s *Store) GetReactionCountsByChartIDs(ctx context.Context, chartIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(chartIDs))
	if len(chartIDs) == 0 {
		return counts, nil
	}

	args := make([]any, len(chartIDs))
	for i, id := range chartIDs {
		args[i] = id
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT chart_id, COUNT(*) FROM reactions
		WHERE chart_id IN (`+placeholders(len(chartIDs))+`)
		GROUP BY chart_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query reaction counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan reaction count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// GetUserReactionsByChartIDs returns the given user's reactions across the
// given charts, keyed by chart ID, in one batched query.
func (s *Store) GetUserReactionsByChartIDs(ctx context.Context, userID string, chartIDs []string) (map[string]*domain.Reaction, error) {
	result := make(map[string]*domain.Reaction, len(chartIDs))
	if len(chartIDs) == 0 {
		return result, nil
	}

	args := make([]any, 0, len(chartIDs)+1)
	args = append(args, userID)
	for _, id := range chartIDs {
		args = append(args, id)
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT chart_id, user_id, kind, created_at FROM reactions
		WHERE user_id = ? AND chart_id IN (`+placeholders(len(chartIDs))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query user reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r         domain.Reaction
			kind      string
			createdAt string
		)
		if err := rows.Scan(&r.ChartID, &r.UserID, &kind, &createdAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		r.Kind = domain.ReactionKind(kind)
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		result[r.ChartID] = &r
	}
	return result, rows.Err()
}
