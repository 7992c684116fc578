package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/internal/models"
	"github.com/JoshiAarya/ai-ticket-app/internal/utils"
)

type Authenticator interface {
	Authenticate(token string) (models.Identity, error)
}

// WithAuth attaches the caller's identity when the request carries a valid
// session. Requests without one pass through unauthenticated.
func WithAuth(log zerolog.Logger, auth Authenticator, production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// cookie "token" or Authorization: Bearer
			var tok string
			fromCookie := false
			if c, err := r.Cookie(utils.SessionCookieName); err == nil && c.Value != "" {
				tok, fromCookie = c.Value, true
			} else if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				tok = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			}

			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := auth.Authenticate(tok)
			if err != nil {
				log.Debug().Err(err).Str("request_id", utils.RequestID(r.Context())).Msg("rejected session token")
				// clear broken/expired cookie so it stops being sent
				if fromCookie {
					http.SetCookie(w, utils.ClearSessionCookie(production))
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.WithIdentity(r.Context(), id)))
		})
	}
}
