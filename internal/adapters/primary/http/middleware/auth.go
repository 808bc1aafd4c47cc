package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lorrc/helpdesk-backend/internal/auth"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// ActorKey is the key used to store the resolved actor in the request context.
const ActorKey contextKey = "actor"

// UserKey is the key used to store the full user record in the request context.
const UserKey contextKey = "user"

// Authenticator validates the bearer token and resolves the caller into a
// domain actor. The role is re-read from the database on every request so a
// demotion or suspension takes effect immediately, not at token expiry.
func Authenticator(tm *auth.TokenManager, users ports.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "Authorization header is required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, "Authorization header format must be Bearer {token}")
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			user, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}
			if user.Status != domain.UserActive {
				unauthorized(w, "Account is not active")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			ctx = context.WithValue(ctx, ActorKey, user.AsActor())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActor retrieves the resolved actor from the context.
func GetActor(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(domain.Actor)
	return actor, ok
}

// GetUser retrieves the full user record from the context.
func GetUser(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(UserKey).(*domain.User)
	return user, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	http.Error(w, message, http.StatusUnauthorized)
}
