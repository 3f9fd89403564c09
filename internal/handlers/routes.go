package handlers

import (
	"net/http"

	"github.com/videotube/backend/internal/middleware"
)

const apiPrefix = "/api/v1"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Store: deps.Health}
	users := UserHandler{
		Accounts: deps.Accounts,
		Sessions: deps.Sessions,
		Profiles: deps.Profiles,
		Cookies:  deps.Cookies,
	}
	subs := SubscriptionHandler{Subscriptions: deps.Subscriptions}
	tweets := TweetHandler{Tweets: deps.Tweets}

	private := middleware.RequireAuth(deps.Authenticator, WriteError)
	optional := middleware.OptionalAuth(deps.Authenticator)
	throttled := func(scope middleware.Scope, h http.HandlerFunc) http.Handler {
		return middleware.RateLimit(deps.Limiter, scope, respondTooManyRequests)(h)
	}

	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, h)
	}
	secured := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, private(h))
	}

	handle("GET /healthz", health.Handle)
	handle("GET "+apiPrefix+"/healthcheck", health.Healthcheck)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	handle("POST "+apiPrefix+"/users/register", users.Register)
	mux.Handle("POST "+apiPrefix+"/users/login", throttled(middleware.ScopeLogin, users.Login))
	mux.Handle("POST "+apiPrefix+"/users/refresh-token", throttled(middleware.ScopeRefresh, users.RefreshToken))
	secured("POST "+apiPrefix+"/users/logout", users.Logout)
	secured("POST "+apiPrefix+"/users/change-password", users.ChangePassword)
	secured("GET "+apiPrefix+"/users/current-user", users.CurrentUser)
	secured("PATCH "+apiPrefix+"/users/update-account", users.UpdateAccount)
	secured("PATCH "+apiPrefix+"/users/update-avatar", users.UpdateAvatar)
	secured("PATCH "+apiPrefix+"/users/update-cover-image", users.UpdateCoverImage)
	mux.Handle("GET "+apiPrefix+"/users/c/{username}", optional(http.HandlerFunc(users.ChannelProfile)))
	secured("GET "+apiPrefix+"/users/history", users.WatchHistory)
	secured("POST "+apiPrefix+"/users/history/{videoId}", users.RecordView)

	secured("POST "+apiPrefix+"/subscriptions/c/{channelId}", subs.Toggle)
	secured("GET "+apiPrefix+"/subscriptions/c/{channelId}", subs.ListSubscribers)
	secured("GET "+apiPrefix+"/subscriptions/u/{subscriberId}", subs.ListSubscriptions)

	secured("POST "+apiPrefix+"/tweets", tweets.Create)
	handle("GET "+apiPrefix+"/tweets/user/{userId}", tweets.ListByUser)
	secured("PATCH "+apiPrefix+"/tweets/{tweetId}", tweets.Update)
	secured("DELETE "+apiPrefix+"/tweets/{tweetId}", tweets.Delete)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Authenticator middleware.TokenAuthenticator
	Sessions      SessionController
	Accounts      AccountService
	Profiles      ProfileService
	Subscriptions SubscriptionService
	Tweets        TweetService
	Health        HealthChecker
	Cookies       CookieWriter
	Limiter       middleware.RequestLimiter
	Metrics       http.Handler
}
