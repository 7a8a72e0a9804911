package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chordseqapp/chordseq-server/internal/domain"
	apperrors "github.com/chordseqapp/chordseq-server/internal/errors"
)

const chartColumns = "id, created_at, updated_at, deleted_at, kind, owner_id, scope, " +
	"audio_url, image_url, hint, notes, root, quality, bass"

// chartColumnsAliased is the same list prefixed for join queries.
const chartColumnsAliased = "c.id, c.created_at, c.updated_at, c.deleted_at, c.kind, c.owner_id, c.scope, " +
	"c.audio_url, c.image_url, c.hint, c.notes, c.root, c.quality, c.bass"

// CreateChart inserts a new chart.
func (s *Store) CreateChart(ctx context.Context, chart *domain.Chart) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO charts (`+chartColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chart.ID, formatTime(chart.CreatedAt), formatTime(chart.UpdatedAt), nullTimeString(chart.DeletedAt),
		string(chart.Kind), chart.OwnerID, chart.Scope,
		chart.AudioURL, chart.ImageURL, chart.Hint, chart.Notes,
		string(chart.Root), string(chart.Quality), string(chart.Bass))
	if err != nil {
		return fmt.Errorf("insert chart: %w", err)
	}
	return nil
}

// GetChart returns a chart by ID regardless of visibility; callers are
// expected to authorize separately.
func (s *Store) GetChart(ctx context.Context, chartID string) (*domain.Chart, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+chartColumns+` FROM charts WHERE id = ? AND deleted_at IS NULL`, chartID)
	return scanChart(row)
}

// UpdateChart persists mutable chart fields.
func (s *Store) UpdateChart(ctx context.Context, chart *domain.Chart) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE charts SET updated_at = ?, scope = ?, audio_url = ?, image_url = ?,
			hint = ?, notes = ?, root = ?, quality = ?, bass = ?
		WHERE id = ? AND deleted_at IS NULL`,
		formatTime(chart.UpdatedAt), chart.Scope, chart.AudioURL, chart.ImageURL,
		chart.Hint, chart.Notes, string(chart.Root), string(chart.Quality), string(chart.Bass),
		chart.ID)
	if err != nil {
		return fmt.Errorf("update chart: %w", err)
	}
	return requireRowAffected(res, "chart")
}

// DeleteChart soft-deletes a chart and removes its associations.
func (s *Store) DeleteChart(ctx context.Context, chartID string) error {
	now := formatTime(time.Now())
	res, err := s.q.ExecContext(ctx, `
		UPDATE charts SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, chartID)
	if err != nil {
		return fmt.Errorf("delete chart: %w", err)
	}
	if err := requireRowAffected(res, "chart"); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM chart_tags WHERE chart_id = ?`, chartID); err != nil {
		return fmt.Errorf("delete tag associations: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM chart_extensions WHERE chart_id = ?`, chartID); err != nil {
		return fmt.Errorf("delete extension associations: %w", err)
	}
	return nil
}

// scanChart reads a chart from a row scanner.
func scanChart(row interface{ Scan(...any) error }) (*domain.Chart, error) {
	var (
		c                    domain.Chart
		createdAt, updatedAt string
		deletedAt            sql.NullString
		kind, root, quality  string
		bass                 string
	)
	err := row.Scan(&c.ID, &createdAt, &updatedAt, &deletedAt, &kind, &c.OwnerID, &c.Scope,
		&c.AudioURL, &c.ImageURL, &c.Hint, &c.Notes, &root, &quality, &bass)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("chart not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan chart: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if c.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, fmt.Errorf("parse deleted_at: %w", err)
	}
	c.Kind = domain.ChartKind(kind)
	c.Root = domain.Note(root)
	c.Quality = domain.ChartQuality(quality)
	c.Bass = domain.Note(bass)
	return &c, nil
}
