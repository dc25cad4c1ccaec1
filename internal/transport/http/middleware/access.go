package middleware

import (
	"net/http"

	"minutehr/internal/domain/permissions"
	"minutehr/internal/transport/http/api"
)

// RequireAction gates a route on the dual policy gate plus the caller's
// effective permission row for the module. The per-user rows load lazily
// on first use of the session.
func RequireAction(resolver *permissions.Resolver, module string, action permissions.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}

			if !resolver.RoleAllows(claims.RoleName, module, action) {
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", GetRequestID(r.Context()))
				return
			}

			if !resolver.UserLoaded(claims.UserID) {
				if err := resolver.LoadUser(r.Context(), claims.UserID); err != nil {
					api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", GetRequestID(r.Context()))
					return
				}
			}
			if !resolver.HasAction(claims.UserID, module, action) {
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth only demands a valid token, leaving permission checks to the
// handler itself.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetClaims(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
