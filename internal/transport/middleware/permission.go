package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	internal "github.com/frahmantamala/school-management/internal"
	"github.com/frahmantamala/school-management/internal/auth"
)

// RequirePermission gates a route on one permission code, resolved through
// the super-admin override, the RBAC tables and the legacy fallback in that
// order. Denials are audited by the resolver itself.
func RequirePermission(resolver auth.PermissionResolver, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := internal.UserIDFromContext(r.Context())
			if userID == "" {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			if err := resolver.HasPermission(r.Context(), userID, permission); err != nil {
				var appErr *internal.AppError
				if errors.As(err, &appErr) {
					writeAppError(w, appErr)
					return
				}
				slog.Error("permission check failed", "user_id", userID, "permission", permission, "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAppError(w http.ResponseWriter, appErr *internal.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"type":    appErr.Type,
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}
