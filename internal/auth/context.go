package auth

import (
	"context"

	"github.com/servicenegotiator/api/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// identityContextKey is the context key for the authenticated user.
const identityContextKey contextKey = "identity"

// ContextWithUser adds the authenticated user to the context.
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, identityContextKey, user)
}

// UserFromContext retrieves the authenticated user from the context.
// Returns nil for unauthenticated requests.
func UserFromContext(ctx context.Context) *model.User {
	user, ok := ctx.Value(identityContextKey).(*model.User)
	if !ok {
		return nil
	}
	return user
}
