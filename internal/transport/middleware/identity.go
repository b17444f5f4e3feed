package middleware

import (
	"net/http"
	"strconv"

	internal "github.com/frahmantamala/school-management/internal"
)

// Identity headers set by the edge gateway after it authenticates the
// session. The service trusts them; anything in front of it must strip
// client-supplied copies.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
	HeaderSchoolID = "X-School-Id"
)

// Identity copies the gateway identity headers into the request context.
// X-School-Id is an override request honored only for super admins, which
// the scope guard decides downstream; here it is just carried along.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if userID := r.Header.Get(HeaderUserID); userID != "" {
			ctx = internal.ContextWithUserID(ctx, userID)
		}
		if role := r.Header.Get(HeaderUserRole); role != "" {
			ctx = internal.ContextWithRole(ctx, role)
		}
		if schoolID := r.Header.Get(HeaderSchoolID); schoolID != "" {
			if id, err := strconv.ParseInt(schoolID, 10, 64); err == nil && id > 0 {
				ctx = internal.ContextWithTenantOverride(ctx, id)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireIdentity rejects requests that arrived without a user header.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if internal.UserIDFromContext(r.Context()) == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
