package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/shared"
)

const userColumns = `id, sequence, external_user_id, display_name, email, access_token, refresh_token,
	expires_at, created_at, updated_at, last_login`

// UserRepository persists [models.User] accounts and their credentials.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByExternalID retrieves an account by the primary provider's user id.
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE external_user_id = ?", externalID)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrCredentialNotFound, externalID)
	}
	return user, err
}

// List retrieves all accounts matching the given criteria ("email"), ordered by sequence.
func (r *UserRepository) List(ctx context.Context, criteria map[string]any) ([]*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE 1 = 1"
	args := []any{}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, email)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// TouchLogin records a successful interactive login.
func (r *UserRepository) TouchLogin(ctx context.Context, externalID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, "UPDATE users SET last_login = ? WHERE external_user_id = ?", at.UTC(), externalID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrCredentialNotFound, externalID)
	}
	return nil
}

// FindByExternalID returns the stored credential for externalID or [shared.ErrCredentialNotFound].
func (r *UserRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Credential, error) {
	user, err := r.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	cred := user.Credential()
	return &cred, nil
}

// Upsert inserts cred's account if absent or overwrites its tokens, expiry and display fields.
//
// Empty refresh tokens and display fields never replace stored values.
func (r *UserRepository) Upsert(ctx context.Context, cred *models.Credential) error {
	if cred == nil || cred.ExternalUserID == "" {
		return fmt.Errorf("%w: credential requires an external user id", shared.ErrInvalidInput)
	}

	now := time.Now().UTC()
	update := `
		UPDATE users SET
			display_name = CASE WHEN ? <> '' THEN ? ELSE display_name END,
			email = CASE WHEN ? <> '' THEN ? ELSE email END,
			access_token = ?,
			refresh_token = CASE WHEN ? <> '' THEN ? ELSE refresh_token END,
			expires_at = ?,
			updated_at = ?
		WHERE external_user_id = ?
	`
	result, err := r.db.ExecContext(ctx, update,
		cred.DisplayName, cred.DisplayName,
		cred.Email, cred.Email,
		cred.AccessToken,
		cred.RefreshToken, cred.RefreshToken,
		cred.ExpiresAt.UTC(), now, cred.ExternalUserID)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	if rows, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	} else if rows > 0 {
		return nil
	}

	sequence, err := NextSequence(ctx, r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	// A concurrent insert for the same id may land between the update and here.
	insert := `
		INSERT INTO users (id, sequence, external_user_id, display_name, email, access_token, refresh_token,
			expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_user_id) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name <> '' THEN excluded.display_name ELSE users.display_name END,
			email = CASE WHEN excluded.email <> '' THEN excluded.email ELSE users.email END,
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token <> '' THEN excluded.refresh_token ELSE users.refresh_token END,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, insert, shared.GenerateID(), sequence, cred.ExternalUserID, cred.DisplayName,
		cred.Email, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt.UTC(), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		id, externalID, displayName, email string
		accessToken, refreshToken          string
		sequence                           int
		expiresAt, createdAt, updatedAt    time.Time
		lastLogin                          sql.NullTime
	)

	err := row.Scan(&id, &sequence, &externalID, &displayName, &email, &accessToken, &refreshToken,
		&expiresAt, &createdAt, &updatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user := models.NewUser(sequence, models.Credential{
		ExternalUserID: externalID,
		DisplayName:    displayName,
		Email:          email,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		ExpiresAt:      expiresAt,
	})
	user.SetID(id)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	if lastLogin.Valid {
		user.SetLastLogin(&lastLogin.Time)
	}
	return user, nil
}
