package handlers

import (
	"context"

	"github.com/videotube/backend/internal/accounts"
	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/subscriptions"
	"github.com/videotube/backend/internal/tweets"
)

// SessionController performs credential and session lifecycle operations.
type SessionController interface {
	Login(ctx context.Context, in auth.LoginInput) (models.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	Refresh(ctx context.Context, presented string) (models.SessionTokens, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

// AccountService manages registration and profile details.
type AccountService interface {
	Register(ctx context.Context, in accounts.RegisterInput) (models.PublicUser, error)
	CurrentUser(ctx context.Context, userID string) (models.PublicUser, error)
	UpdateAccount(ctx context.Context, userID, fullName, email string) (models.PublicUser, error)
	UpdateAvatar(ctx context.Context, userID string, media accounts.Media) (models.PublicUser, error)
	UpdateCoverImage(ctx context.Context, userID string, media accounts.Media) (models.PublicUser, error)
}

// ProfileService builds derived channel views.
type ProfileService interface {
	ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
	WatchHistory(ctx context.Context, viewerID string) ([]models.WatchedVideo, error)
	RecordView(ctx context.Context, viewerID, videoID string) error
}

// SubscriptionService mutates and reads the subscription graph.
type SubscriptionService interface {
	Toggle(ctx context.Context, viewerID, channelRef string) (subscriptions.ToggleResult, error)
	ListSubscribers(ctx context.Context, channelID string) ([]models.UserSummary, error)
	ListSubscriptions(ctx context.Context, subscriberID string) ([]models.UserSummary, error)
}

// TweetService manages short text posts.
type TweetService interface {
	Create(ctx context.Context, ownerID, content string) (models.TweetView, error)
	ListByUser(ctx context.Context, userRef string, page, limit int) (tweets.Page, error)
	Update(ctx context.Context, ownerID, tweetID, content string) (models.TweetView, error)
	Delete(ctx context.Context, ownerID, tweetID string) error
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
