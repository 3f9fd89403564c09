package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/logging"
)

// AccessCookie is the cookie that carries the access token for browser clients.
const AccessCookie = "accessToken"

// TokenAuthenticator resolves an access token into an identity.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

// ErrorWriter renders an error response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// RequireAuth rejects requests without a valid access token and attaches the
// caller's identity to the request context otherwise.
func RequireAuth(authn TokenAuthenticator, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authn.Authenticate(r.Context(), AccessToken(r))
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// OptionalAuth attaches an identity when a valid access token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(authn TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := AccessToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			identity, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				logging.FromContext(r.Context()).Debug("ignoring invalid optional credentials", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// AccessToken extracts the access token from the accessToken cookie or a
// Bearer Authorization header.
func AccessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func withIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return logging.WithUser(auth.WithIdentity(ctx, identity), identity.UserID)
}
