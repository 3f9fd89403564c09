// Package subscriptions maintains the directed subscriber to channel graph.
package subscriptions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/apperror"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/metrics"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

const (
	ActionSubscribed   = "subscribed"
	ActionUnsubscribed = "unsubscribed"

	maxToggleAttempts = 2
)

// UserLookup resolves channel references.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
}

// ToggleResult reports what a toggle did. Subscription is set when an edge was created.
type ToggleResult struct {
	Action       string               `json:"action"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// Engine implements subscription toggling and listing.
type Engine struct {
	users UserLookup
	edges repositories.SubscriptionRepository
	now   func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(users UserLookup, edges repositories.SubscriptionRepository) *Engine {
	return &Engine{
		users: users,
		edges: edges,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Toggle flips the edge between viewerID and the referenced channel. The
// channel reference may be an id or a username.
func (e *Engine) Toggle(ctx context.Context, viewerID, channelRef string) (ToggleResult, error) {
	ctx, span := logging.StartSpan(ctx, "subscriptions.toggle")
	defer span.End()
	logger := logging.FromContext(ctx)

	channel, err := e.resolveChannel(ctx, channelRef)
	if err != nil {
		return ToggleResult{}, err
	}
	if channel.ID == viewerID {
		return ToggleResult{}, apperror.InvalidInput("Cannot subscribe to yourself")
	}

	for attempt := 1; ; attempt++ {
		result, err := e.toggleOnce(ctx, viewerID, channel.ID)
		if errors.Is(err, repositories.ErrConflict) && attempt < maxToggleAttempts {
			// A concurrent subscribe won the insert; decide again against the stored edge.
			logger.Warn("subscription insert raced", "viewerId", viewerID, "channelId", channel.ID)
			metrics.SubscriptionToggleRetries.Inc()
			continue
		}
		if errors.Is(err, repositories.ErrConflict) {
			return ToggleResult{}, apperror.Internal("Unable to subscribe", err)
		}
		if err != nil {
			return ToggleResult{}, err
		}

		metrics.RecordToggle(result.Action)
		logger.Info("subscription toggled", "viewerId", viewerID, "channelId", channel.ID, "action", result.Action)
		return result, nil
	}
}

func (e *Engine) toggleOnce(ctx context.Context, viewerID, channelID string) (ToggleResult, error) {
	exists, err := e.edges.Exists(ctx, viewerID, channelID)
	if err != nil {
		return ToggleResult{}, apperror.Internal("unable to load subscription", err)
	}

	if exists {
		if err := e.edges.Delete(ctx, viewerID, channelID); err != nil {
			return ToggleResult{}, apperror.Internal("Unable to unsubscribe", err)
		}
		return ToggleResult{Action: ActionUnsubscribed}, nil
	}

	sub := models.Subscription{
		ID:           uuid.NewString(),
		SubscriberID: viewerID,
		ChannelID:    channelID,
		CreatedAt:    e.now(),
	}
	if err := e.edges.Create(ctx, sub); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			return ToggleResult{}, err
		case errors.Is(err, repositories.ErrNotFound):
			return ToggleResult{}, apperror.NotFound("Channel Not Found")
		}
		return ToggleResult{}, apperror.Internal("Unable to subscribe", err)
	}
	return ToggleResult{Action: ActionSubscribed, Subscription: &sub}, nil
}

func (e *Engine) resolveChannel(ctx context.Context, ref string) (models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.User{}, apperror.InvalidInput("Channel id is required")
	}

	var (
		channel models.User
		err     error
	)
	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		channel, err = e.users.FindByID(ctx, ref)
	} else {
		channel, err = e.users.FindByUsername(ctx, strings.ToLower(ref))
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, apperror.NotFound("Channel Not Found")
		}
		return models.User{}, apperror.Internal("unable to load channel", err)
	}
	return channel, nil
}

// ListSubscribers returns the condensed projections of channelID's subscribers.
func (e *Engine) ListSubscribers(ctx context.Context, channelID string) ([]models.UserSummary, error) {
	if _, err := uuid.Parse(channelID); err != nil {
		return nil, apperror.InvalidInput("Invalid channel ID")
	}
	subscribers, err := e.edges.ListSubscribers(ctx, channelID)
	if err != nil {
		return nil, apperror.Internal("unable to list subscribers", err)
	}
	return subscribers, nil
}

// ListSubscriptions returns the condensed projections of the channels subscriberID follows.
func (e *Engine) ListSubscriptions(ctx context.Context, subscriberID string) ([]models.UserSummary, error) {
	if _, err := uuid.Parse(subscriberID); err != nil {
		return nil, apperror.InvalidInput("Invalid subscriber ID")
	}
	channels, err := e.edges.ListSubscriptions(ctx, subscriberID)
	if err != nil {
		return nil, apperror.Internal("unable to list subscriptions", err)
	}
	return channels, nil
}
