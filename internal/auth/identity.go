package auth

import (
	"context"
	"errors"

	"github.com/videotube/backend/internal/apperror"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

type identityKey struct{}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID   string
	Username string
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// AccessVerifier validates access tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (string, error)
}

// UserLookup loads identities by id.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// Authenticator resolves a bearer access token into an Identity.
type Authenticator struct {
	tokens AccessVerifier
	users  UserLookup
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(tokens AccessVerifier, users UserLookup) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate verifies token and confirms the identity still exists.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperror.Unauthorized("Unauthorized request")
	}

	userID, err := a.tokens.VerifyAccess(token)
	if err != nil {
		logging.FromContext(ctx).Warn("access token rejected", "error", err)
		return Identity{}, apperror.Unauthorized("Invalid Access Token").WithCause(err)
	}

	user, err := a.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return Identity{}, apperror.Unauthorized("Invalid Access Token").WithCause(err)
		}
		return Identity{}, apperror.Internal("unable to load user", err)
	}

	return Identity{UserID: user.ID, Username: user.Username}, nil
}
