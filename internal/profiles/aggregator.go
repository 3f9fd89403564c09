// Package profiles computes derived read views over identities, the
// subscription graph and content.
package profiles

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/apperror"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

// Aggregator builds channel profiles and watch history views.
type Aggregator struct {
	users  repositories.UserRepository
	edges  repositories.SubscriptionRepository
	videos repositories.VideoRepository
}

// NewAggregator constructs an Aggregator.
func NewAggregator(users repositories.UserRepository, edges repositories.SubscriptionRepository, videos repositories.VideoRepository) *Aggregator {
	return &Aggregator{users: users, edges: edges, videos: videos}
}

// ChannelProfile returns the public profile of username with its subscription
// statistics. viewerID may be empty for anonymous callers.
func (a *Aggregator) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	ctx, span := logging.StartSpan(ctx, "profiles.channel")
	defer span.End()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return models.ChannelProfile{}, apperror.InvalidInput("username is missing")
	}

	channel, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.ChannelProfile{}, apperror.NotFound("channel does not exists")
		}
		return models.ChannelProfile{}, apperror.Internal("unable to load channel", err)
	}

	subscribers, err := a.edges.CountSubscribers(ctx, channel.ID)
	if err != nil {
		return models.ChannelProfile{}, apperror.Internal("unable to count subscribers", err)
	}
	subscribedTo, err := a.edges.CountSubscriptions(ctx, channel.ID)
	if err != nil {
		return models.ChannelProfile{}, apperror.Internal("unable to count subscriptions", err)
	}

	var isSubscribed bool
	if viewerID != "" {
		if isSubscribed, err = a.edges.Exists(ctx, viewerID, channel.ID); err != nil {
			return models.ChannelProfile{}, apperror.Internal("unable to load subscription", err)
		}
	}

	return models.ChannelProfile{
		ID:                        channel.ID,
		Username:                  channel.Username,
		Email:                     channel.Email,
		FullName:                  channel.FullName,
		Avatar:                    channel.Avatar,
		CoverImage:                channel.CoverImage,
		SubscribersCount:          subscribers,
		ChannelsSubscribedToCount: subscribedTo,
		IsSubscribed:              isSubscribed,
	}, nil
}

// WatchHistory returns the viewer's watched videos in history order, each with
// its owner's condensed projection. Videos that no longer exist are skipped.
func (a *Aggregator) WatchHistory(ctx context.Context, viewerID string) ([]models.WatchedVideo, error) {
	ctx, span := logging.StartSpan(ctx, "profiles.watch_history")
	defer span.End()

	ids, err := a.users.WatchHistory(ctx, viewerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperror.NotFound("User does not exist.")
		}
		return nil, apperror.Internal("unable to load watch history", err)
	}

	history := []models.WatchedVideo{}
	if len(ids) == 0 {
		return history, nil
	}

	videos, err := a.videos.ListByIDs(ctx, ids)
	if err != nil {
		return nil, apperror.Internal("unable to load watched videos", err)
	}

	ownerIDs := make([]string, 0, len(videos))
	seen := make(map[string]struct{}, len(videos))
	for _, v := range videos {
		if _, ok := seen[v.OwnerID]; ok {
			continue
		}
		seen[v.OwnerID] = struct{}{}
		ownerIDs = append(ownerIDs, v.OwnerID)
	}

	owners, err := a.users.FindSummaries(ctx, ownerIDs)
	if err != nil {
		return nil, apperror.Internal("unable to load video owners", err)
	}

	for _, v := range videos {
		owner, ok := owners[v.OwnerID]
		if !ok {
			owner = models.UserSummary{ID: v.OwnerID}
		}
		history = append(history, models.WatchedVideo{Video: v, Owner: owner})
	}
	return history, nil
}

// RecordView adds videoID to the front of the viewer's history.
func (a *Aggregator) RecordView(ctx context.Context, viewerID, videoID string) error {
	if _, err := uuid.Parse(videoID); err != nil {
		return apperror.InvalidInput("Invalid video ID")
	}

	if err := a.videos.RecordView(ctx, viewerID, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperror.NotFound("Video not found")
		}
		return apperror.Internal("unable to record view", err)
	}

	logging.FromContext(ctx).Debug("view recorded", "viewerId", viewerID, "videoId", videoID)
	return nil
}
