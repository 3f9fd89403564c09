package app

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/videotube/backend/internal/accounts"
	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/config"
	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/handlers"
	"github.com/videotube/backend/internal/memstore"
	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/profiles"
	"github.com/videotube/backend/internal/repositories"
	"github.com/videotube/backend/internal/storage"
	"github.com/videotube/backend/internal/subscriptions"
	"github.com/videotube/backend/internal/tweets"
)

// stores groups the repositories backing the services.
type stores struct {
	users         repositories.UserRepository
	subscriptions repositories.SubscriptionRepository
	videos        repositories.VideoRepository
	tweets        repositories.TweetRepository
	health        handlers.HealthChecker
}

func postgresStores(pool db.Pool) stores {
	return stores{
		users:         repositories.NewPostgresUserRepository(pool),
		subscriptions: repositories.NewPostgresSubscriptionRepository(pool),
		videos:        repositories.NewPostgresVideoRepository(pool),
		tweets:        repositories.NewPostgresTweetRepository(pool),
		health:        pool,
	}
}

func memoryStores(store *memstore.Store) stores {
	return stores{
		users:         store.Users(),
		subscriptions: store.Subscriptions(),
		videos:        store.Videos(),
		tweets:        store.Tweets(),
		health:        store,
	}
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, st stores, cfg config.Config) (handlers.Dependencies, error) {
	clock := clockwork.NewRealClock()
	tokens, err := auth.NewTokenService(cfg.Tokens, clock)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure tokens: %w", err)
	}

	hasher := auth.BcryptHasher{}

	var media accounts.MediaStore
	if cfg.ObjectStore.Enabled() {
		s3Store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, fmt.Errorf("configure media storage: %w", err)
		}
		media = s3Store
	}

	return handlers.Dependencies{
		Authenticator: auth.NewAuthenticator(tokens, st.users),
		Sessions:      auth.NewManager(st.users, tokens, hasher),
		Accounts:      accounts.NewService(st.users, hasher, media),
		Profiles:      profiles.NewAggregator(st.users, st.subscriptions, st.videos),
		Subscriptions: subscriptions.NewEngine(st.users, st.subscriptions),
		Tweets:        tweets.NewService(st.users, st.tweets),
		Health:        st.health,
		Cookies:       handlers.NewCookieWriter(cfg.Cookies),
		Limiter:       middleware.NewClientLimiter(cfg.RateLimit, clock),
	}, nil
}
