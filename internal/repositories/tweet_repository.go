package repositories

import (
	"context"
	"time"

	"github.com/videotube/backend/internal/models"
)

// TweetRepository defines the data access contract for tweets.
type TweetRepository interface {
	Create(ctx context.Context, tweet models.Tweet) error
	FindByID(ctx context.Context, id string) (models.Tweet, error)
	// ListByOwner returns one page of the owner's tweets, newest first, and the total count.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Tweet, int64, error)
	UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) (models.Tweet, error)
	// Delete removes the tweet only if ownerID owns it, returning ErrNotFound otherwise.
	Delete(ctx context.Context, id, ownerID string) error
}
