package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/servicenegotiator/api/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

// CreateUser inserts a new user. The email must already be normalized.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, plan, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Plan,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `
		SELECT id, email, plan, billing_customer_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetUserByEmail retrieves a user by their normalized email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, email, plan, billing_customer_id, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, model.NormalizeEmail(email)))
}

// UpdatePlanByEmail sets the plan tier for the user with the given email.
// This is the reconciler's only write path into the account record.
func (r *Repository) UpdatePlanByEmail(ctx context.Context, email string, plan model.Plan) error {
	query := `
		UPDATE users
		SET plan = $1, updated_at = now()
		WHERE email = $2
	`

	tag, err := r.pool.Exec(ctx, query, plan, model.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ClaimBillingCustomer assigns a billing customer reference to the user with
// the given email, but only if none is set yet. It returns the reference that
// ended up on the record, which may be a concurrent claimer's value. Callers
// that lose the race must use the returned id and discard their own.
func (r *Repository) ClaimBillingCustomer(ctx context.Context, email, customerID string) (string, error) {
	query := `
		UPDATE users
		SET billing_customer_id = $1, updated_at = now()
		WHERE email = $2 AND billing_customer_id IS NULL
	`

	normalized := model.NormalizeEmail(email)

	tag, err := r.pool.Exec(ctx, query, customerID, normalized)
	if err != nil {
		return "", fmt.Errorf("failed to claim billing customer: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return customerID, nil
	}

	// Lost the race or already claimed; read back the winner.
	user, err := r.GetUserByEmail(ctx, normalized)
	if err != nil {
		return "", err
	}
	if user.BillingCustomerID == nil {
		return "", fmt.Errorf("billing customer claim failed for %s", normalized)
	}

	return *user.BillingCustomerID, nil
}

func (r *Repository) scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Plan,
		&user.BillingCustomerID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
