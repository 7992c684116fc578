package utils

import (
	"net/http"
	"time"
)

const SessionCookieName = "token"

// SessionCookie carries the session token.
func SessionCookie(token string, production bool) *http.Cookie {
	c := baseCookie(production)
	c.Value = token
	c.MaxAge = int(SessionTTL / time.Second)
	c.Expires = time.Now().Add(SessionTTL)
	return c
}

func ClearSessionCookie(production bool) *http.Cookie {
	c := baseCookie(production)
	c.MaxAge = -1              // expire immediately
	c.Expires = time.Unix(0, 0) // for older browsers
	return c
}

func baseCookie(production bool) *http.Cookie {
	c := &http.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if production {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}
