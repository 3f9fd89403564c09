package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/videotube/backend/internal/config"
	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/models"
)

const refreshCookie = "refreshToken"

// CookieWriter sets and clears the session cookies.
type CookieWriter struct {
	Secure bool
	Domain string
}

// NewCookieWriter builds a CookieWriter from configuration.
func NewCookieWriter(cfg config.CookieConfig) CookieWriter {
	return CookieWriter{Secure: cfg.Secure, Domain: cfg.Domain}
}

func (c CookieWriter) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetSession writes both session cookies.
func (c CookieWriter) SetSession(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, c.cookie(middleware.AccessCookie, tokens.AccessToken, tokens.AccessExpiresAt))
	http.SetCookie(w, c.cookie(refreshCookie, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

// ClearSession expires both session cookies.
func (c CookieWriter) ClearSession(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessCookie, refreshCookie} {
		cookie := c.cookie(name, "", time.Unix(0, 0))
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}

// refreshTokenCookie returns the refresh token carried by the session cookie.
func refreshTokenCookie(r *http.Request) string {
	if c, err := r.Cookie(refreshCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
