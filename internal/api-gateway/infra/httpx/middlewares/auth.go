package middlewares

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/interceptors/constants"
	user "github.com/clickmarket/marketplace/internal/user-service/domain"
)

type contextKey struct{}

// Authenticate resolves the caller named by the X-User-ID header. Session
// handling lives in front of this service; the header is trusted as is.
func Authenticate(users user.Directory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(constants.HeaderXUserID)
			if id == "" {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "missing "+constants.HeaderXUserID+" header")
				return
			}
			u, err := users.GetUser(r.Context(), id)
			if err != nil {
				if !apperr.IsKind(err, apperr.NotFound) {
					slog.ErrorContext(r.Context(), "user lookup failed", "user_id", id, "error", err)
					writeError(w, http.StatusInternalServerError, "internal", "user lookup failed")
					return
				}
				writeError(w, http.StatusUnauthorized, "unauthenticated", "unknown user")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, u)))
		})
	}
}

// CurrentUser returns the caller set by Authenticate.
func CurrentUser(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(contextKey{}).(*user.User)
	return u, ok
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r.Context())
			if !ok || !slices.Contains(roles, u.Role) {
				writeError(w, http.StatusForbidden, "forbidden", "role not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": msg})
}
