package middleware

import (
	"net/http"

	"github.com/JoshiAarya/ai-ticket-app/internal/models"
	"github.com/JoshiAarya/ai-ticket-app/internal/utils"
)

// RequireAuth blocks when no identity is present in context (set by WithAuth).
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := utils.IdentityFrom(r.Context()); !ok {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRoles allows the request only if the caller's role is in the allowed list.
func RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := utils.IdentityFrom(r.Context())
			if !ok {
				utils.Error(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if _, ok := allowed[id.Role]; !ok {
				utils.Error(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
