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

const tagColumns = "id, created_at, updated_at, deleted_at, name, munge, kind, owner_id, scope"

// activePolicyJoin is the reusable join clause matching the caller's active
// policies for a tag. It expects two bind arguments: grantee ID and the
// current time (RFC3339Nano).
const activePolicyJoin = `
	LEFT JOIN policies p ON p.resource_type = 'tag' AND p.resource_id = t.id
		AND p.grantee_id = ? AND p.deleted_at IS NULL
		AND (p.expires_at IS NULL OR p.expires_at > ?)`

// CreateTag inserts a new tag. The munge key must be unique within the
// owner's namespace per tag kind.
func (s *Store) CreateTag(ctx context.Context, tag *domain.Tag) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO tags (`+tagColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tag.ID, formatTime(tag.CreatedAt), formatTime(tag.UpdatedAt), nullTimeString(tag.DeletedAt),
		tag.Name, tag.Munge, string(tag.Kind), tag.OwnerID, tag.Scope)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("a tag with this name already exists")
		}
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

// GetTag returns a tag by ID regardless of visibility; callers are expected
// to authorize separately.
func (s *Store) GetTag(ctx context.Context, tagID string) (*domain.Tag, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+tagColumns+` FROM tags WHERE id = ? AND deleted_at IS NULL`, tagID)
	return scanTag(row)
}

// GetVisibleTag returns a tag by ID only if the caller can see it: owned,
// public, or readable through an active policy. Invisible and missing tags
// are indistinguishable to the caller.
func (s *Store) GetVisibleTag(ctx context.Context, callerID, tagID string) (*domain.Tag, error) {
	now := formatTime(time.Now())
	row := s.q.QueryRowContext(ctx, `
		SELECT DISTINCT t.id, t.created_at, t.updated_at, t.deleted_at, t.name, t.munge, t.kind, t.owner_id, t.scope
		FROM tags t`+activePolicyJoin+`
		WHERE t.id = ? AND t.deleted_at IS NULL
			AND (t.owner_id = ? OR t.scope = ? OR p.id IS NOT NULL)`,
		callerID, now, tagID, callerID, domain.ScopePublic)
	return scanTag(row)
}

// ListTagsForUser returns all tags the caller can see: owned, public, or
// granted through an active policy.
func (s *Store) ListTagsForUser(ctx context.Context, callerID string) ([]*domain.Tag, error) {
	now := formatTime(time.Now())
	rows, err := s.q.QueryContext(ctx, `
		SELECT DISTINCT t.id, t.created_at, t.updated_at, t.deleted_at, t.name, t.munge, t.kind, t.owner_id, t.scope
		FROM tags t`+activePolicyJoin+`
		WHERE t.deleted_at IS NULL
			AND (t.owner_id = ? OR t.scope = ? OR p.id IS NOT NULL)
		ORDER BY t.created_at ASC`,
		callerID, now, callerID, domain.ScopePublic)
	if err != nil {
		return nil, fmt.Errorf("query tags for user: %w", err)
	}
	defer rows.Close()

	var tags []*domain.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// DeleteTag soft-deletes a tag and removes its chart associations.
func (s *Store) DeleteTag(ctx context.Context, tagID string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE tags SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		formatTime(time.Now()), formatTime(time.Now()), tagID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if err := requireRowAffected(res, "tag"); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM chart_tags WHERE tag_id = ?`, tagID); err != nil {
		return fmt.Errorf("delete chart associations: %w", err)
	}
	return nil
}

// AddChartTag attaches a tag to a chart. For list-kind tags the chart is
// appended at the next free position; re-tagging an already-tagged chart is
// a no-op.
func (s *Store) AddChartTag(ctx context.Context, chartID, tagID string) error {
	var next int
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), 0) + 1 FROM chart_tags WHERE tag_id = ?`, tagID).Scan(&next)
	if err != nil {
		return fmt.Errorf("next position: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO chart_tags (chart_id, tag_id, position) VALUES (?, ?, ?)
		ON CONFLICT (chart_id, tag_id) DO NOTHING`,
		chartID, tagID, next)
	if err != nil {
		return fmt.Errorf("insert chart tag: %w", err)
	}
	return nil
}

// RemoveChartTag detaches a tag from a chart.
func (s *Store) RemoveChartTag(ctx context.Context, chartID, tagID string) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM chart_tags WHERE chart_id = ? AND tag_id = ?`, chartID, tagID)
	if err != nil {
		return fmt.Errorf("delete chart tag: %w", err)
	}
	return nil
}

// GetTagsByChartIDs returns the tags attached to each of the given charts,
// keyed by chart ID. One batched query serves the per-request loaders.
func (s *Store) GetTagsByChartIDs(ctx context.Context, chartIDs []string) (map[string][]*domain.Tag, error) {
	result := make(map[string][]*domain.Tag, len(chartIDs))
	if len(chartIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(chartIDs))
	for i, id := range chartIDs {
		args[i] = id
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT ct.chart_id, t.id, t.created_at, t.updated_at, t.deleted_at, t.name, t.munge, t.kind, t.owner_id, t.scope
		FROM chart_tags ct
		JOIN tags t ON t.id = ct.tag_id AND t.deleted_at IS NULL
		WHERE ct.chart_id IN (`+placeholders(len(chartIDs))+`)
		ORDER BY ct.position ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query tags by chart ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var chartID string
		var (
			t                    domain.Tag
			createdAt, updatedAt string
			deletedAt            sql.NullString
			kind                 string
		)
		if err := rows.Scan(&chartID, &t.ID, &createdAt, &updatedAt, &deletedAt, &t.Name, &t.Munge, &kind, &t.OwnerID, &t.Scope); err != nil {
			return nil, fmt.Errorf("scan chart tag: %w", err)
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		if t.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
			return nil, fmt.Errorf("parse deleted_at: %w", err)
		}
		t.Kind = domain.TagKind(kind)
		result[chartID] = append(result[chartID], &t)
	}
	return result, rows.Err()
}

// scanTag reads a tag from a row scanner.
func scanTag(row interface{ Scan(...any) error }) (*domain.Tag, error) {
	var (
		t                    domain.Tag
		createdAt, updatedAt string
		deletedAt            sql.NullString
		kind                 string
	)
	err := row.Scan(&t.ID, &createdAt, &updatedAt, &deletedAt, &t.Name, &t.Munge, &kind, &t.OwnerID, &t.Scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("tag not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan tag: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if t.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, fmt.Errorf("parse deleted_at: %w", err)
	}
	t.Kind = domain.TagKind(kind)
	return &t, nil
}
