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

const invitationColumns = "id, created_at, updated_at, deleted_at, resource_type, resource_id, " +
	"action, expires_at, creator_id"

// CreateInvitation inserts a new invitation.
func (s *Store) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO invitations (`+invitationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, formatTime(inv.CreatedAt), formatTime(inv.UpdatedAt), nullTimeString(inv.DeletedAt),
		string(inv.ResourceType), inv.ResourceID, string(inv.Action),
		nullTimeString(inv.ExpiresAt), inv.CreatorID)
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

// GetInvitation returns a non-deleted invitation by ID. A soft-deleted
// invitation is reported as not found: deleting the row permanently
// invalidates every copy of its token.
func (s *Store) GetInvitation(ctx context.Context, invitationID string) (*domain.Invitation, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+invitationColumns+` FROM invitations WHERE id = ? AND deleted_at IS NULL`,
		invitationID)
	return scanInvitation(row)
}

// ListInvitationsForResource returns the non-deleted invitations on a resource.
func (s *Store) ListInvitationsForResource(ctx context.Context, resourceType domain.ResourceType, resourceID string) ([]*domain.Invitation, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+invitationColumns+` FROM invitations
		WHERE resource_type = ? AND resource_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC`,
		string(resourceType), resourceID)
	if err != nil {
		return nil, fmt.Errorf("query invitations for resource: %w", err)
	}
	defer rows.Close()

	var invs []*domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

// DeleteInvitation soft-deletes an invitation, invalidating future exchanges
// of its token. Policies already materialized from it are unaffected.
func (s *Store) DeleteInvitation(ctx context.Context, invitationID string) error {
	now := formatTime(time.Now())
	res, err := s.q.ExecContext(ctx, `
		UPDATE invitations SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, invitationID)
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	return requireRowAffected(res, "invitation")
}

// scanInvitation reads an invitation from a row scanner.
func scanInvitation(row interface{ Scan(...any) error }) (*domain.Invitation, error) {
	var (
		inv                  domain.Invitation
		createdAt, updatedAt string
		deletedAt, expiresAt sql.NullString
		resourceType, action string
	)
	err := row.Scan(&inv.ID, &createdAt, &updatedAt, &deletedAt, &resourceType, &inv.ResourceID,
		&action, &expiresAt, &inv.CreatorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("invitation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan invitation: %w", err)
	}
	if inv.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if inv.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if inv.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, fmt.Errorf("parse deleted_at: %w", err)
	}
	if inv.ExpiresAt, err = parseNullableTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	inv.ResourceType = domain.ResourceType(resourceType)
	inv.Action = domain.Action(action)
	return &inv, nil
}
