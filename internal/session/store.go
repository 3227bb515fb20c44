// Package session issues, validates, and invalidates cookie-carried
// session tokens bound to a user id.
package session

import (
	"context"
	"errors"

	"github.com/servicenegotiator/api/internal/model"
)

// ErrNotFound is returned by a Store when no session exists for a token.
var ErrNotFound = errors.New("session not found")

// Store persists session records keyed by token.
type Store interface {
	// Save persists a session until its expiry.
	Save(ctx context.Context, session *model.Session) error

	// Get returns the session for a token, or ErrNotFound.
	// Implementations may return expired sessions; the manager checks expiry.
	Get(ctx context.Context, token string) (*model.Session, error)

	// Delete removes a session. Deleting an absent token is a no-op.
	Delete(ctx context.Context, token string) error
}
