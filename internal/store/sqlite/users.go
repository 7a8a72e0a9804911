package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/chordseqapp/chordseq-server/internal/domain"
	apperrors "github.com/chordseqapp/chordseq-server/internal/errors"
)

const userColumns = "id, created_at, updated_at, deleted_at, email, password_hash, display_name, settings"

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	settings, err := json.Marshal(user.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if user.Settings == nil {
		settings = []byte("{}")
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, formatTime(user.CreatedAt), formatTime(user.UpdatedAt), nullTimeString(user.DeletedAt),
		user.Email, user.PasswordHash, user.DisplayName, string(settings))
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("email already in use")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = ? AND deleted_at IS NULL`, userID)
	return scanUser(row)
}

// GetUserByEmail returns a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = ? AND deleted_at IS NULL`, email)
	return scanUser(row)
}

// GetUsersByIDs returns the users for the given IDs, keyed by ID.
// Missing IDs are simply absent from the result; callers decide whether
// that is an error.
func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	if len(ids) == 0 {
		return map[string]*domain.User{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE deleted_at IS NULL AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query users by ids: %w", err)
	}
	defer rows.Close()

	users := make(map[string]*domain.User, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users[u.ID] = u
	}
	return users, rows.Err()
}

// ListUsers returns users matching an optional display-name/email search,
// newest first.
func (s *Store) ListUsers(ctx context.Context, search string, limit int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	args := []any{}
	if search != "" {
		query += ` AND (display_name LIKE ? OR email LIKE ?)`
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser persists mutable user fields.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	settings, err := json.Marshal(user.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if user.Settings == nil {
		settings = []byte("{}")
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE users SET updated_at = ?, display_name = ?, password_hash = ?, settings = ?
		WHERE id = ? AND deleted_at IS NULL`,
		formatTime(user.UpdatedAt), user.DisplayName, user.PasswordHash, string(settings), user.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRowAffected(res, "user")
}

// DeleteUser hard-deletes a user. Charts and tags cascade via foreign keys.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRowAffected(res, "user")
}

// scanUser reads a user from a row scanner.
func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var (
		u                              domain.User
		createdAt, updatedAt, settings string
		deletedAt                      sql.NullString
	)
	err := row.Scan(&u.ID, &createdAt, &updatedAt, &deletedAt, &u.Email, &u.PasswordHash, &u.DisplayName, &settings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if u.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, fmt.Errorf("parse deleted_at: %w", err)
	}
	if settings != "" && settings != "{}" {
		if err := json.Unmarshal([]byte(settings), &u.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	return &u, nil
}

// placeholders returns n comma-separated SQL placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// requireRowAffected converts a zero-row update/delete into a not-found error.
func requireRowAffected(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound(entity + " not found")
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
