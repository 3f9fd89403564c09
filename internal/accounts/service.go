// Package accounts implements registration and profile maintenance for identities.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/apperror"
	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
	"github.com/videotube/backend/internal/storage"
)

const minPasswordLength = 8

// MediaStore persists uploaded profile media and returns its public location.
type MediaStore interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

// Media is either an already hosted URL or an uploaded file.
type Media struct {
	URL         string
	File        io.Reader
	Filename    string
	ContentType string
}

func (m Media) empty() bool {
	return strings.TrimSpace(m.URL) == "" && m.File == nil
}

// RegisterInput carries the fields required to create an identity.
type RegisterInput struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     Media
	CoverImage Media
}

// Service implements account registration and updates.
type Service struct {
	users  repositories.UserRepository
	hasher auth.PasswordHasher
	media  MediaStore
	now    func() time.Time
}

// NewService constructs an account service. media may be nil, in which case
// only hosted media URLs are accepted.
func NewService(users repositories.UserRepository, hasher auth.PasswordHasher, media MediaStore) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		media:  media,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a new identity and returns its public projection.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.PublicUser, error) {
	ctx, span := logging.StartSpan(ctx, "accounts.register")
	defer span.End()
	logger := logging.FromContext(ctx)

	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fullName := strings.TrimSpace(in.FullName)

	if username == "" || email == "" || fullName == "" || strings.TrimSpace(in.Password) == "" {
		return models.PublicUser{}, apperror.InvalidInput("All fields are required.")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.PublicUser{}, apperror.InvalidInput("invalid email address")
	}
	if len(in.Password) < minPasswordLength {
		return models.PublicUser{}, apperror.InvalidInput("password must be at least 8 characters")
	}
	if in.Avatar.empty() {
		return models.PublicUser{}, apperror.InvalidInput("Avatar is required.")
	}

	if err := s.ensureAvailable(ctx, username, email); err != nil {
		return models.PublicUser{}, err
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.PublicUser{}, apperror.Internal("failed to secure password", err)
	}

	id := uuid.NewString()
	avatar, err := s.resolveMedia(ctx, "avatars", id, in.Avatar)
	if err != nil {
		return models.PublicUser{}, err
	}
	var coverImage string
	if !in.CoverImage.empty() {
		if coverImage, err = s.resolveMedia(ctx, "covers", id, in.CoverImage); err != nil {
			return models.PublicUser{}, err
		}
	}

	now := s.now()
	user := models.User{
		ID:         id,
		Username:   username,
		Email:      email,
		FullName:   fullName,
		Password:   hashed,
		Avatar:     avatar,
		CoverImage: coverImage,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.PublicUser{}, apperror.Conflict("User with email or username already exists")
		}
		return models.PublicUser{}, apperror.Internal("Something went wrong while registering the user", err)
	}

	logger.Info("user registered", "userId", user.ID, "username", user.Username)
	return user.Public(), nil
}

func (s *Service) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return apperror.Conflict("User with email or username already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return apperror.Internal("unable to verify existing accounts", err)
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return apperror.Conflict("User with email or username already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return apperror.Internal("unable to verify existing accounts", err)
	}
	return nil
}

// CurrentUser returns the public projection of userID.
func (s *Service) CurrentUser(ctx context.Context, userID string) (models.PublicUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return models.PublicUser{}, notFoundOrInternal(err)
	}
	return user.Public(), nil
}

// UpdateAccount changes the display name and email of userID.
func (s *Service) UpdateAccount(ctx context.Context, userID, fullName, email string) (models.PublicUser, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" || email == "" {
		return models.PublicUser{}, apperror.InvalidInput("All fields are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.PublicUser{}, apperror.InvalidInput("invalid email address")
	}

	user, err := s.users.UpdateAccount(ctx, userID, fullName, email, s.now())
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.PublicUser{}, apperror.Conflict("Email is already in use")
		}
		return models.PublicUser{}, notFoundOrInternal(err)
	}
	return user.Public(), nil
}

// UpdateAvatar replaces the avatar of userID.
func (s *Service) UpdateAvatar(ctx context.Context, userID string, media Media) (models.PublicUser, error) {
	if media.empty() {
		return models.PublicUser{}, apperror.InvalidInput("Avatar file is missing")
	}
	location, err := s.resolveMedia(ctx, "avatars", userID, media)
	if err != nil {
		return models.PublicUser{}, err
	}
	user, err := s.users.UpdateAvatar(ctx, userID, location, s.now())
	if err != nil {
		return models.PublicUser{}, notFoundOrInternal(err)
	}
	return user.Public(), nil
}

// UpdateCoverImage replaces the cover image of userID.
func (s *Service) UpdateCoverImage(ctx context.Context, userID string, media Media) (models.PublicUser, error) {
	if media.empty() {
		return models.PublicUser{}, apperror.InvalidInput("Cover image file is missing")
	}
	location, err := s.resolveMedia(ctx, "covers", userID, media)
	if err != nil {
		return models.PublicUser{}, err
	}
	user, err := s.users.UpdateCoverImage(ctx, userID, location, s.now())
	if err != nil {
		return models.PublicUser{}, notFoundOrInternal(err)
	}
	return user.Public(), nil
}

func (s *Service) resolveMedia(ctx context.Context, kind, userID string, media Media) (string, error) {
	if media.File == nil {
		return strings.TrimSpace(media.URL), nil
	}
	if s.media == nil {
		return "", apperror.InvalidInput("media uploads are not configured; provide a URL instead")
	}

	location, err := s.media.Save(ctx, storage.ObjectKey(kind, userID, media.Filename), media.ContentType, media.File)
	if errors.Is(err, storage.ErrUnsupportedMedia) {
		return "", apperror.InvalidInput("Only image uploads are supported").WithCause(err)
	}
	if err != nil {
		return "", apperror.Internal(fmt.Sprintf("Error while uploading %s", strings.TrimSuffix(kind, "s")), err)
	}
	return location, nil
}

func notFoundOrInternal(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperror.NotFound("User does not exist.")
	}
	return apperror.Internal("unable to load user", err)
}
