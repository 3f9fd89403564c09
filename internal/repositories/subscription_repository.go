package repositories

import (
	"context"

	"github.com/videotube/backend/internal/models"
)

// SubscriptionRepository defines the data access contract for subscription edges.
type SubscriptionRepository interface {
	// Create inserts an edge. A duplicate edge yields ErrConflict.
	Create(ctx context.Context, sub models.Subscription) error
	Exists(ctx context.Context, subscriberID, channelID string) (bool, error)
	// Delete removes an edge, returning ErrNotFound if none was removed.
	Delete(ctx context.Context, subscriberID, channelID string) error
	CountSubscribers(ctx context.Context, channelID string) (int64, error)
	CountSubscriptions(ctx context.Context, subscriberID string) (int64, error)
	ListSubscribers(ctx context.Context, channelID string) ([]models.UserSummary, error)
	ListSubscriptions(ctx context.Context, subscriberID string) ([]models.UserSummary, error)
}
