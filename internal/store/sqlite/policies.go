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

const policyColumns = "id, created_at, updated_at, deleted_at, resource_type, resource_id, " +
	"grantee_id, action, expires_at, invitation_id, creator_id"

// CreatePolicy inserts a new policy.
func (s *Store) CreatePolicy(ctx context.Context, p *domain.Policy) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO policies (`+policyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, formatTime(p.CreatedAt), formatTime(p.UpdatedAt), nullTimeString(p.DeletedAt),
		string(p.ResourceType), p.ResourceID, p.GranteeID, string(p.Action),
		nullTimeString(p.ExpiresAt), p.InvitationID, p.CreatorID)
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

// GetPolicy returns a policy by ID, including soft-deleted rows.
func (s *Store) GetPolicy(ctx context.Context, policyID string) (*domain.Policy, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+policyColumns+` FROM policies WHERE id = ?`, policyID)
	return scanPolicy(row)
}

// GetActivePolicy returns the grantee's active policy on a resource, or nil
// if there is none. Active means not soft-deleted and not expired.
func (s *Store) GetActivePolicy(ctx context.Context, resourceType domain.ResourceType, resourceID, granteeID string) (*domain.Policy, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+policyColumns+` FROM policies
		WHERE resource_type = ? AND resource_id = ? AND grantee_id = ?
			AND deleted_at IS NULL
			AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at DESC LIMIT 1`,
		string(resourceType), resourceID, granteeID, formatTime(time.Now()))
	p, err := scanPolicy(row)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// ListPoliciesForResource returns the non-deleted policies on a resource.
func (s *Store) ListPoliciesForResource(ctx context.Context, resourceType domain.ResourceType, resourceID string) ([]*domain.Policy, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+policyColumns+` FROM policies
		WHERE resource_type = ? AND resource_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC`,
		string(resourceType), resourceID)
	if err != nil {
		return nil, fmt.Errorf("query policies for resource: %w", err)
	}
	defer rows.Close()
	return collectPolicies(rows)
}

// ListPoliciesForGrantee returns the grantee's non-deleted policies.
func (s *Store) ListPoliciesForGrantee(ctx context.Context, granteeID string) ([]*domain.Policy, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+policyColumns+` FROM policies
		WHERE grantee_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC`, granteeID)
	if err != nil {
		return nil, fmt.Errorf("query policies for grantee: %w", err)
	}
	defer rows.Close()
	return collectPolicies(rows)
}

// DeletePolicy soft-deletes a policy.
func (s *Store) DeletePolicy(ctx context.Context, policyID string) error {
	now := formatTime(time.Now())
	res, err := s.q.ExecContext(ctx, `
		UPDATE policies SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, policyID)
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	return requireRowAffected(res, "policy")
}

func collectPolicies(rows *sql.Rows) ([]*domain.Policy, error) {
	var policies []*domain.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// scanPolicy reads a policy from a row scanner.
func scanPolicy(row interface{ Scan(...any) error }) (*domain.Policy, error) {
	var (
		p                     domain.Policy
		createdAt, updatedAt  string
		deletedAt, expiresAt  sql.NullString
		resourceType, action  string
	)
	err := row.Scan(&p.ID, &createdAt, &updatedAt, &deletedAt, &resourceType, &p.ResourceID,
		&p.GranteeID, &action, &expiresAt, &p.InvitationID, &p.CreatorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("policy not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan policy: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if p.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, fmt.Errorf("parse deleted_at: %w", err)
	}
	if p.ExpiresAt, err = parseNullableTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	p.ResourceType = domain.ResourceType(resourceType)
	p.Action = domain.Action(action)
	return &p, nil
}
