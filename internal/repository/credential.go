package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/servicenegotiator/api/internal/model"
)

// ErrCredentialNotFound is returned when no credential exists for a user.
var ErrCredentialNotFound = errors.New("credential not found")

// CreateCredential inserts the password credential for a user.
// Credentials are immutable after signup; there is no update path.
func (r *Repository) CreateCredential(ctx context.Context, cred *model.Credential) error {
	query := `
		INSERT INTO credentials (user_id, password_hash, created_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.pool.Exec(ctx, query,
		cred.UserID,
		cred.PasswordHash,
		cred.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

// GetCredentialByUserID retrieves a user's password credential.
func (r *Repository) GetCredentialByUserID(ctx context.Context, userID string) (*model.Credential, error) {
	query := `
		SELECT user_id, password_hash, created_at
		FROM credentials
		WHERE user_id = $1
	`

	var cred model.Credential
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&cred.UserID,
		&cred.PasswordHash,
		&cred.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &cred, nil
}
