package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/videotube/backend/internal/apperror"
	"github.com/videotube/backend/internal/config"
	"github.com/videotube/backend/internal/models"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrInvalidToken is the cause attached to every verification failure.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload carried by both token kinds.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"uid"`
	TokenType string `json:"typ"`
}

// TokenService signs and verifies access and refresh tokens. It is stateless;
// revocation of refresh tokens is the session manager's concern.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	clock         clockwork.Clock
}

// NewTokenService constructs a TokenService from configuration. A nil clock
// falls back to the real clock.
func NewTokenService(cfg config.TokenConfig, clock clockwork.Clock) (*TokenService, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("auth: token secrets must be provided")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		clock:         clock,
	}, nil
}

// Issue creates a new pair of independently signed tokens for userID.
func (s *TokenService) Issue(userID string) (models.SessionTokens, error) {
	if userID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	now := s.clock.Now().UTC()

	access, accessExp, err := s.sign(userID, tokenTypeAccess, s.accessSecret, now, s.accessTTL)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := s.sign(userID, tokenTypeRefresh, s.refreshSecret, now, s.refreshTTL)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess validates an access token and returns the user id it carries.
func (s *TokenService) VerifyAccess(raw string) (string, error) {
	return s.verify(raw, tokenTypeAccess, s.accessSecret)
}

// VerifyRefresh validates a refresh token's signature and expiry. It does not
// check whether the token is still the user's current one.
func (s *TokenService) VerifyRefresh(raw string) (string, error) {
	return s.verify(raw, tokenTypeRefresh, s.refreshSecret)
}

func (s *TokenService) sign(userID, tokenType string, secret []byte, now time.Time, ttl time.Duration) (string, time.Time, error) {
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
		UserID:    userID,
		TokenType: tokenType,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt.Time, nil
}

func (s *TokenService) verify(raw, tokenType string, secret []byte) (string, error) {
	if raw == "" {
		return "", unauthorizedToken(fmt.Errorf("%w: empty", ErrInvalidToken))
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims Claims
	token, err := jwt.NewParser(opts...).ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return "", unauthorizedToken(fmt.Errorf("%w: %w", ErrInvalidToken, err))
	}
	if !token.Valid {
		return "", unauthorizedToken(ErrInvalidToken)
	}
	if claims.TokenType != tokenType {
		return "", unauthorizedToken(fmt.Errorf("%w: type mismatch %q", ErrInvalidToken, claims.TokenType))
	}
	if claims.UserID == "" {
		return "", unauthorizedToken(fmt.Errorf("%w: missing user id", ErrInvalidToken))
	}
	return claims.UserID, nil
}

func unauthorizedToken(cause error) error {
	return apperror.Unauthorized("Invalid or expired token").WithCause(cause)
}
