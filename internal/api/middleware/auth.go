package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rental-marketplace/backend/internal/apperror"
	"github.com/rental-marketplace/backend/internal/auth"
	"github.com/rental-marketplace/backend/internal/storage/models"
)

type userKey struct{}

// UserLookup loads the account a token refers to.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Authenticate resolves the caller from a bearer token and stores the user
// in the request context. Websocket clients cannot set headers from a
// browser, so a token query parameter is accepted as well.
func Authenticate(tokens *auth.Tokens, users UserLookup, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				WriteError(w, r, apperror.Unauthorized("authentication required"))
				return
			}

			claims, err := tokens.Verify(tokenStr)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidToken) {
					log.Warn("token verification failed", "error", err)
				}
				WriteError(w, r, apperror.Unauthorized("invalid or expired token"))
				return
			}

			user, err := users.GetByID(r.Context(), claims.Subject)
			if err != nil {
				WriteError(w, r, apperror.Internal("failed to load user", err))
				return
			}
			if user == nil {
				WriteError(w, r, apperror.Unauthorized("user no longer exists"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin rejects authenticated callers without the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r.Context())
		if user == nil {
			WriteError(w, r, apperror.Unauthorized("authentication required"))
			return
		}
		if user.Role != models.RoleAdmin {
			WriteError(w, r, apperror.Forbidden("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey{}).(*models.User)
	return user
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}
