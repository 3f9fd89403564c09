// Package memstore is an in-memory implementation of the repository contracts.
// It backs the "memory" store driver and the service and handler tests.
package memstore

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

// ErrSelfSubscription mirrors the storage check that forbids self edges.
var ErrSelfSubscription = errors.New("subscriber and channel must differ")

type edgeKey struct {
	subscriber string
	channel    string
}

type tweetEntry struct {
	tweet models.Tweet
	seq   int64
}

// Store holds all records behind a single lock.
type Store struct {
	mu     sync.RWMutex
	users  map[string]models.User
	edges  []models.Subscription
	edgeIx map[edgeKey]struct{}
	videos map[string]models.Video
	tweets map[string]tweetEntry
	seq    int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:  make(map[string]models.User),
		edgeIx: make(map[edgeKey]struct{}),
		videos: make(map[string]models.Video),
		tweets: make(map[string]tweetEntry),
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() *Users { return &Users{s: s} }

// Subscriptions returns the subscription repository view of the store.
func (s *Store) Subscriptions() *Subscriptions { return &Subscriptions{s: s} }

// Videos returns the video repository view of the store.
func (s *Store) Videos() *Videos { return &Videos{s: s} }

// Tweets returns the tweet repository view of the store.
func (s *Store) Tweets() *Tweets { return &Tweets{s: s} }

// PutVideo inserts or replaces a video. Videos have no write path of their own.
func (s *Store) PutVideo(video models.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[video.ID] = video
}

func cloneUser(u models.User) models.User {
	u.WatchHistory = slices.Clone(u.WatchHistory)
	return u
}

// Users implements repositories.UserRepository.
type Users struct{ s *Store }

// Create inserts a user, rejecting duplicate usernames or emails.
func (r *Users) Create(_ context.Context, user models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; ok {
		return repositories.ErrConflict
	}
	for _, existing := range r.s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

// FindByID fetches a user by id.
func (r *Users) FindByID(_ context.Context, id string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return cloneUser(user), nil
}

// FindByUsername fetches a user by username.
func (r *Users) FindByUsername(_ context.Context, username string) (models.User, error) {
	return r.findBy(func(u models.User) bool { return u.Username == username })
}

// FindByEmail fetches a user by email.
func (r *Users) FindByEmail(_ context.Context, email string) (models.User, error) {
	return r.findBy(func(u models.User) bool { return u.Email == email })
}

func (r *Users) findBy(match func(models.User) bool) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, user := range r.s.users {
		if match(user) {
			return cloneUser(user), nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

// FindSummaries returns condensed projections for the known ids.
func (r *Users) FindSummaries(_ context.Context, ids []string) (map[string]models.UserSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[string]models.UserSummary, len(ids))
	for _, id := range ids {
		if user, ok := r.s.users[id]; ok {
			out[id] = user.Summary()
		}
	}
	return out, nil
}

// UpdateAccount changes full name and email.
func (r *Users) UpdateAccount(_ context.Context, id, fullName, email string, updatedAt time.Time) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	for otherID, other := range r.s.users {
		if otherID != id && other.Email == email {
			return models.User{}, repositories.ErrConflict
		}
	}
	user.FullName = fullName
	user.Email = email
	user.UpdatedAt = updatedAt
	r.s.users[id] = user
	return cloneUser(user), nil
}

// UpdateAvatar replaces the avatar URL.
func (r *Users) UpdateAvatar(_ context.Context, id, avatar string, updatedAt time.Time) (models.User, error) {
	return r.mutate(id, func(u *models.User) {
		u.Avatar = avatar
		u.UpdatedAt = updatedAt
	})
}

// UpdateCoverImage replaces the cover image URL.
func (r *Users) UpdateCoverImage(_ context.Context, id, coverImage string, updatedAt time.Time) (models.User, error) {
	return r.mutate(id, func(u *models.User) {
		u.CoverImage = coverImage
		u.UpdatedAt = updatedAt
	})
}

// UpdatePassword replaces the password hash.
func (r *Users) UpdatePassword(_ context.Context, id, hash string, updatedAt time.Time) error {
	_, err := r.mutate(id, func(u *models.User) {
		u.Password = hash
		u.UpdatedAt = updatedAt
	})
	return err
}

// SetRefreshToken overwrites the current refresh token.
func (r *Users) SetRefreshToken(_ context.Context, id, token string) error {
	_, err := r.mutate(id, func(u *models.User) { u.RefreshToken = token })
	return err
}

// ClearRefreshToken revokes the current refresh token.
func (r *Users) ClearRefreshToken(_ context.Context, id string) error {
	_, err := r.mutate(id, func(u *models.User) { u.RefreshToken = "" })
	return err
}

// SwapRefreshToken replaces the token only while it still equals current.
func (r *Users) SwapRefreshToken(_ context.Context, id, current, next string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok || user.RefreshToken == "" || user.RefreshToken != current {
		return false, nil
	}
	user.RefreshToken = next
	r.s.users[id] = user
	return true, nil
}

// WatchHistory returns a copy of the viewer's history.
func (r *Users) WatchHistory(_ context.Context, id string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return slices.Clone(user.WatchHistory), nil
}

func (r *Users) mutate(id string, fn func(*models.User)) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	fn(&user)
	r.s.users[id] = user
	return cloneUser(user), nil
}

// Subscriptions implements repositories.SubscriptionRepository.
type Subscriptions struct{ s *Store }

// Create inserts an edge, enforcing uniqueness, no self edges and existing endpoints.
func (r *Subscriptions) Create(_ context.Context, sub models.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if sub.SubscriberID == sub.ChannelID {
		return ErrSelfSubscription
	}
	if _, ok := r.s.users[sub.SubscriberID]; !ok {
		return repositories.ErrNotFound
	}
	if _, ok := r.s.users[sub.ChannelID]; !ok {
		return repositories.ErrNotFound
	}
	key := edgeKey{sub.SubscriberID, sub.ChannelID}
	if _, ok := r.s.edgeIx[key]; ok {
		return repositories.ErrConflict
	}
	r.s.edgeIx[key] = struct{}{}
	r.s.edges = append(r.s.edges, sub)
	return nil
}

// Exists reports whether the edge is present.
func (r *Subscriptions) Exists(_ context.Context, subscriberID, channelID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.edgeIx[edgeKey{subscriberID, channelID}]
	return ok, nil
}

// Delete removes the edge.
func (r *Subscriptions) Delete(_ context.Context, subscriberID, channelID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := edgeKey{subscriberID, channelID}
	if _, ok := r.s.edgeIx[key]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.edgeIx, key)
	r.s.edges = slices.DeleteFunc(r.s.edges, func(e models.Subscription) bool {
		return e.SubscriberID == subscriberID && e.ChannelID == channelID
	})
	return nil
}

// CountSubscribers counts edges pointing at channelID.
func (r *Subscriptions) CountSubscribers(_ context.Context, channelID string) (int64, error) {
	return r.count(func(e models.Subscription) bool { return e.ChannelID == channelID }), nil
}

// CountSubscriptions counts edges leaving subscriberID.
func (r *Subscriptions) CountSubscriptions(_ context.Context, subscriberID string) (int64, error) {
	return r.count(func(e models.Subscription) bool { return e.SubscriberID == subscriberID }), nil
}

func (r *Subscriptions) count(match func(models.Subscription) bool) int64 {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, e := range r.s.edges {
		if match(e) {
			n++
		}
	}
	return n
}

// ListSubscribers returns the users following channelID in edge creation order.
func (r *Subscriptions) ListSubscribers(_ context.Context, channelID string) ([]models.UserSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.UserSummary{}
	for _, e := range r.s.edges {
		if e.ChannelID != channelID {
			continue
		}
		if user, ok := r.s.users[e.SubscriberID]; ok {
			out = append(out, user.Summary())
		}
	}
	return out, nil
}

// ListSubscriptions returns the channels subscriberID follows in edge creation order.
func (r *Subscriptions) ListSubscriptions(_ context.Context, subscriberID string) ([]models.UserSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.UserSummary{}
	for _, e := range r.s.edges {
		if e.SubscriberID != subscriberID {
			continue
		}
		if user, ok := r.s.users[e.ChannelID]; ok {
			out = append(out, user.Summary())
		}
	}
	return out, nil
}

// Videos implements repositories.VideoRepository.
type Videos struct{ s *Store }

// FindByID fetches a video.
func (r *Videos) FindByID(_ context.Context, id string) (models.Video, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	video, ok := r.s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

// ListByIDs returns videos in the order of ids, skipping unknown ids.
func (r *Videos) ListByIDs(_ context.Context, ids []string) ([]models.Video, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.Video{}
	for _, id := range ids {
		if video, ok := r.s.videos[id]; ok {
			out = append(out, video)
		}
	}
	return out, nil
}

// RecordView moves videoID to the front of the viewer's history and bumps views.
func (r *Videos) RecordView(_ context.Context, viewerID, videoID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	video, ok := r.s.videos[videoID]
	if !ok {
		return repositories.ErrNotFound
	}
	user, ok := r.s.users[viewerID]
	if !ok {
		return repositories.ErrNotFound
	}

	history := make([]string, 0, len(user.WatchHistory)+1)
	history = append(history, videoID)
	for _, id := range user.WatchHistory {
		if id != videoID {
			history = append(history, id)
		}
	}
	user.WatchHistory = history
	r.s.users[viewerID] = user

	video.Views++
	r.s.videos[videoID] = video
	return nil
}

// Tweets implements repositories.TweetRepository.
type Tweets struct{ s *Store }

// Create stores a tweet.
func (r *Tweets) Create(_ context.Context, tweet models.Tweet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[tweet.OwnerID]; !ok {
		return repositories.ErrNotFound
	}
	if _, ok := r.s.tweets[tweet.ID]; ok {
		return repositories.ErrConflict
	}
	r.s.seq++
	r.s.tweets[tweet.ID] = tweetEntry{tweet: tweet, seq: r.s.seq}
	return nil
}

// FindByID fetches a tweet.
func (r *Tweets) FindByID(_ context.Context, id string) (models.Tweet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	entry, ok := r.s.tweets[id]
	if !ok {
		return models.Tweet{}, repositories.ErrNotFound
	}
	return entry.tweet, nil
}

// ListByOwner returns a page of the owner's tweets, newest first.
func (r *Tweets) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]models.Tweet, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var owned []tweetEntry
	for _, entry := range r.s.tweets {
		if entry.tweet.OwnerID == ownerID {
			owned = append(owned, entry)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].tweet.CreatedAt.Equal(owned[j].tweet.CreatedAt) {
			return owned[i].tweet.CreatedAt.After(owned[j].tweet.CreatedAt)
		}
		return owned[i].seq > owned[j].seq
	})

	total := int64(len(owned))
	out := []models.Tweet{}
	if offset < 0 {
		offset = 0
	}
	for i := offset; i < len(owned) && len(out) < limit; i++ {
		out = append(out, owned[i].tweet)
	}
	return out, total, nil
}

// UpdateContent replaces tweet content.
func (r *Tweets) UpdateContent(_ context.Context, id, content string, updatedAt time.Time) (models.Tweet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	entry, ok := r.s.tweets[id]
	if !ok {
		return models.Tweet{}, repositories.ErrNotFound
	}
	entry.tweet.Content = content
	entry.tweet.UpdatedAt = updatedAt
	r.s.tweets[id] = entry
	return entry.tweet, nil
}

// Delete removes a tweet owned by ownerID.
func (r *Tweets) Delete(_ context.Context, id, ownerID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	entry, ok := r.s.tweets[id]
	if !ok || entry.tweet.OwnerID != ownerID {
		return repositories.ErrNotFound
	}
	delete(r.s.tweets, id)
	return nil
}

var (
	_ repositories.UserRepository         = (*Users)(nil)
	_ repositories.SubscriptionRepository = (*Subscriptions)(nil)
	_ repositories.VideoRepository        = (*Videos)(nil)
	_ repositories.TweetRepository        = (*Tweets)(nil)
)

// Ping always succeeds; it lets the store stand in for a database in health checks.
func (s *Store) Ping(context.Context) error { return nil }
