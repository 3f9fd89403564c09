package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/videotube/backend/internal/apperror"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/metrics"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

const (
	msgRefreshRejected = "Refresh token is expired or used"
	minPasswordLength  = 8
)

// CredentialStore persists identities and their current refresh token.
type CredentialStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	SetRefreshToken(ctx context.Context, userID, token string) error
	// SwapRefreshToken replaces the stored token with next only if it still
	// equals current. It reports false when the swap lost.
	SwapRefreshToken(ctx context.Context, userID, current, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, hash string, updatedAt time.Time) error
}

// TokenIssuer issues token pairs and verifies refresh tokens.
type TokenIssuer interface {
	Issue(userID string) (models.SessionTokens, error)
	VerifyRefresh(token string) (string, error)
}

// LoginInput carries login credentials. Exactly one of Username or Email must be set.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// Manager drives the session lifecycle: login, logout, refresh and password change.
type Manager struct {
	users  CredentialStore
	tokens TokenIssuer
	hasher PasswordHasher
	now    func() time.Time
}

// NewManager constructs a Manager.
func NewManager(users CredentialStore, tokens TokenIssuer, hasher PasswordHasher) *Manager {
	if users == nil || tokens == nil || hasher == nil {
		panic("auth: credential store, token issuer and hasher must not be nil")
	}
	return &Manager{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Login verifies credentials, issues a fresh token pair and makes its refresh
// token the only valid one for the user.
func (m *Manager) Login(ctx context.Context, in LoginInput) (models.LoginResult, error) {
	ctx, span := logging.StartSpan(ctx, "auth.login")
	defer span.End()
	logger := logging.FromContext(ctx)

	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))

	switch {
	case username == "" && email == "":
		return models.LoginResult{}, apperror.InvalidInput("Username or Email is required.")
	case username != "" && email != "":
		return models.LoginResult{}, apperror.InvalidInput("Provide either username or email, not both.")
	}
	if in.Password == "" {
		return models.LoginResult{}, apperror.InvalidInput("Password is required.")
	}

	var (
		user models.User
		err  error
	)
	if username != "" {
		user, err = m.users.FindByUsername(ctx, username)
	} else {
		user, err = m.users.FindByEmail(ctx, email)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			metrics.RecordAuth("login", "unknown_user")
			return models.LoginResult{}, apperror.NotFound("User does not exist.")
		}
		return models.LoginResult{}, apperror.Internal("unable to load user", err)
	}

	if err := m.hasher.Compare(user.Password, in.Password); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID, "error", err)
		metrics.RecordAuth("login", "bad_credentials")
		return models.LoginResult{}, apperror.Unauthorized("Invalid User Credentials.")
	}

	tokens, err := m.tokens.Issue(user.ID)
	if err != nil {
		return models.LoginResult{}, apperror.Internal("Something went wrong while generating refresh and access tokens.", err)
	}
	if err := m.users.SetRefreshToken(ctx, user.ID, tokens.RefreshToken); err != nil {
		return models.LoginResult{}, apperror.Internal("Something went wrong while generating refresh and access tokens.", err)
	}

	metrics.RecordAuth("login", "success")
	logger.Info("user logged in", "userId", user.ID)
	return models.LoginResult{User: user.Public(), Tokens: tokens}, nil
}

// Logout revokes the user's refresh token. Repeated calls are not an error.
func (m *Manager) Logout(ctx context.Context, userID string) error {
	ctx, span := logging.StartSpan(ctx, "auth.logout")
	defer span.End()

	if err := m.users.ClearRefreshToken(ctx, userID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return apperror.Internal("unable to log out", err)
	}
	metrics.RecordAuth("logout", "success")
	return nil
}

// Refresh exchanges the user's current refresh token for a new pair. A token
// that was already rotated away is rejected even if its signature is still valid.
func (m *Manager) Refresh(ctx context.Context, presented string) (models.SessionTokens, error) {
	ctx, span := logging.StartSpan(ctx, "auth.refresh")
	defer span.End()
	logger := logging.FromContext(ctx)

	presented = strings.TrimSpace(presented)
	if presented == "" {
		return models.SessionTokens{}, apperror.Unauthorized("unauthorized request")
	}

	userID, err := m.tokens.VerifyRefresh(presented)
	if err != nil {
		logger.Warn("refresh token verification failed", "error", err)
		return models.SessionTokens{}, m.rejectRefresh("invalid", err)
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("refresh token owner missing", "userId", userID)
			return models.SessionTokens{}, m.rejectRefresh("unknown_user", err)
		}
		return models.SessionTokens{}, apperror.Internal("unable to load user", err)
	}

	if subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(presented)) != 1 {
		logger.Warn("refresh token does not match current session", "userId", userID)
		return models.SessionTokens{}, m.rejectRefresh("replayed", nil)
	}

	tokens, err := m.tokens.Issue(user.ID)
	if err != nil {
		return models.SessionTokens{}, apperror.Internal("unable to issue tokens", err)
	}

	swapped, err := m.users.SwapRefreshToken(ctx, user.ID, presented, tokens.RefreshToken)
	if err != nil {
		return models.SessionTokens{}, apperror.Internal("unable to rotate refresh token", err)
	}
	if !swapped {
		logger.Warn("refresh token rotated concurrently", "userId", userID)
		return models.SessionTokens{}, m.rejectRefresh("replayed", nil)
	}

	metrics.RecordAuth("refresh", "success")
	return tokens, nil
}

// ChangePassword replaces the password hash after verifying the old password.
// The current refresh token stays valid.
func (m *Manager) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	ctx, span := logging.StartSpan(ctx, "auth.change_password")
	defer span.End()

	if oldPassword == "" || newPassword == "" {
		return apperror.InvalidInput("Old and new passwords are required.")
	}
	if len(newPassword) < minPasswordLength {
		return apperror.InvalidInput("password must be at least 8 characters")
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperror.NotFound("User does not exist.")
		}
		return apperror.Internal("unable to load user", err)
	}

	if err := m.hasher.Compare(user.Password, oldPassword); err != nil {
		logging.FromContext(ctx).Warn("change password mismatch", "userId", userID, "error", err)
		metrics.RecordAuth("change_password", "bad_credentials")
		return apperror.Unauthorized("Invalid old password")
	}

	hashed, err := m.hasher.Hash(newPassword)
	if err != nil {
		return apperror.Internal("failed to secure password", err)
	}
	if err := m.users.UpdatePassword(ctx, userID, hashed, m.now()); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperror.NotFound("User does not exist.")
		}
		return apperror.Internal("unable to update password", err)
	}

	metrics.RecordAuth("change_password", "success")
	return nil
}

func (m *Manager) rejectRefresh(reason string, cause error) error {
	metrics.RecordAuth("refresh", reason)
	return apperror.Unauthorized(msgRefreshRejected).WithCause(cause)
}
