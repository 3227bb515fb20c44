package middleware

import (
	"log/slog"
	"net/http"

	"github.com/servicenegotiator/api/internal/auth"
	"github.com/servicenegotiator/api/internal/session"
)

// Session returns a middleware that resolves the session cookie to an
// account and injects it into the request context. It never rejects the
// request: anonymous, expired, and tampered sessions all pass through with
// no identity, and each handler decides what that means. Store failures
// also pass through anonymously so a Redis blip degrades to logged-out
// behavior instead of an outage.
func Session(manager *session.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := manager.ReadCookie(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, _, err := manager.Validate(r.Context(), token)
			if err != nil {
				logger.Error("session validation failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				next.ServeHTTP(w, r)
				return
			}
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser returns a middleware that rejects anonymous requests with 401.
// Must be applied after Session.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserFromContext(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized","code":"UNAUTHORIZED"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
