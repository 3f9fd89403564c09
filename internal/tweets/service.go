// Package tweets implements short text posts owned by identities.
package tweets

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/apperror"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

const (
	MaxContentLength = 300
	DefaultPage      = 1
	DefaultLimit     = 5
	MaxLimit         = 100
)

// UserLookup resolves tweet owners.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindSummaries(ctx context.Context, ids []string) (map[string]models.UserSummary, error)
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalItems  int64 `json:"totalItems"`
	TotalPages  int64 `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// Page is a paginated list of tweets.
type Page struct {
	Tweets     []models.TweetView `json:"tweets"`
	Pagination Pagination         `json:"pagination"`
}

// Service implements tweet operations.
type Service struct {
	users  UserLookup
	tweets repositories.TweetRepository
	now    func() time.Time
}

// NewService constructs a tweet service.
func NewService(users UserLookup, tweets repositories.TweetRepository) *Service {
	return &Service{
		users:  users,
		tweets: tweets,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperror.InvalidInput("Content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", apperror.InvalidInput("Content must be at most 300 characters")
	}
	return content, nil
}

// Create publishes a new tweet for ownerID.
func (s *Service) Create(ctx context.Context, ownerID, content string) (models.TweetView, error) {
	content, err := validateContent(content)
	if err != nil {
		return models.TweetView{}, err
	}

	owner, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.TweetView{}, apperror.NotFound("User not found")
		}
		return models.TweetView{}, apperror.Internal("unable to load user", err)
	}

	now := s.now()
	tweet := models.Tweet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tweets.Create(ctx, tweet); err != nil {
		return models.TweetView{}, apperror.Internal("Failed to create tweet", err)
	}

	logging.FromContext(ctx).Info("tweet created", "tweetId", tweet.ID, "ownerId", ownerID)
	return models.TweetView{Tweet: tweet, Owner: owner.Summary()}, nil
}

// ListByUser returns a page of tweets by the referenced user, newest first.
// userRef may be an id or a username. Zero page or limit selects the default.
func (s *Service) ListByUser(ctx context.Context, userRef string, page, limit int) (Page, error) {
	if page == 0 {
		page = DefaultPage
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if page < 1 || limit < 1 || limit > MaxLimit || page > math.MaxInt/limit {
		return Page{}, apperror.InvalidInput("Invalid pagination parameters")
	}

	owner, err := s.resolveUser(ctx, userRef)
	if err != nil {
		return Page{}, err
	}

	tweets, total, err := s.tweets.ListByOwner(ctx, owner.ID, limit, (page-1)*limit)
	if err != nil {
		return Page{}, apperror.Internal("unable to list tweets", err)
	}

	views := make([]models.TweetView, 0, len(tweets))
	summary := owner.Summary()
	for _, t := range tweets {
		views = append(views, models.TweetView{Tweet: t, Owner: summary})
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	return Page{
		Tweets: views,
		Pagination: Pagination{
			Page:        page,
			Limit:       limit,
			TotalItems:  total,
			TotalPages:  totalPages,
			HasNextPage: int64(page) < totalPages,
			HasPrevPage: page > 1,
		},
	}, nil
}

func (s *Service) resolveUser(ctx context.Context, ref string) (models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.User{}, apperror.InvalidInput("User id is required")
	}

	var (
		user models.User
		err  error
	)
	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		user, err = s.users.FindByID(ctx, ref)
	} else {
		user, err = s.users.FindByUsername(ctx, strings.ToLower(ref))
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, apperror.NotFound("User not found")
		}
		return models.User{}, apperror.Internal("unable to load user", err)
	}
	return user, nil
}

// Update replaces the content of a tweet owned by ownerID.
func (s *Service) Update(ctx context.Context, ownerID, tweetID, content string) (models.TweetView, error) {
	content, err := validateContent(content)
	if err != nil {
		return models.TweetView{}, err
	}
	if _, err := s.ownedTweet(ctx, ownerID, tweetID); err != nil {
		return models.TweetView{}, err
	}

	updated, err := s.tweets.UpdateContent(ctx, tweetID, content, s.now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.TweetView{}, apperror.NotFound("Tweet not found")
		}
		return models.TweetView{}, apperror.Internal("Failed to update tweet", err)
	}

	return models.TweetView{Tweet: updated, Owner: s.ownerSummary(ctx, ownerID)}, nil
}

// Delete removes a tweet owned by ownerID. It succeeds only if exactly one
// owned tweet was removed.
func (s *Service) Delete(ctx context.Context, ownerID, tweetID string) error {
	if _, err := s.ownedTweet(ctx, ownerID, tweetID); err != nil {
		return err
	}

	if err := s.tweets.Delete(ctx, tweetID, ownerID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperror.NotFound("Tweet not found")
		}
		return apperror.Internal("Failed to delete tweet", err)
	}

	logging.FromContext(ctx).Info("tweet deleted", "tweetId", tweetID, "ownerId", ownerID)
	return nil
}

func (s *Service) ownedTweet(ctx context.Context, ownerID, tweetID string) (models.Tweet, error) {
	if _, err := uuid.Parse(tweetID); err != nil {
		return models.Tweet{}, apperror.InvalidInput("Invalid tweet ID")
	}

	tweet, err := s.tweets.FindByID(ctx, tweetID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Tweet{}, apperror.NotFound("Tweet not found")
		}
		return models.Tweet{}, apperror.Internal("unable to load tweet", err)
	}
	if tweet.OwnerID != ownerID {
		return models.Tweet{}, apperror.Forbidden("You are not allowed to modify this tweet")
	}
	return tweet, nil
}

func (s *Service) ownerSummary(ctx context.Context, ownerID string) models.UserSummary {
	summaries, err := s.users.FindSummaries(ctx, []string{ownerID})
	if err != nil {
		logging.FromContext(ctx).Warn("tweet owner lookup failed", "ownerId", ownerID, "error", err)
	}
	if summary, ok := summaries[ownerID]; ok {
		return summary
	}
	return models.UserSummary{ID: ownerID}
}
