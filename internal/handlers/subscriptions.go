package handlers

import (
	"net/http"

	"github.com/videotube/backend/internal/subscriptions"
)

// SubscriptionHandler implements the subscription graph endpoints.
type SubscriptionHandler struct {
	Subscriptions SubscriptionService
}

// Toggle handles POST /api/v1/subscriptions/c/{channelId}. The path value may
// be a channel id or a username.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	result, err := h.Subscriptions.Toggle(ctx, identity.UserID, r.PathValue("channelId"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	message := "Subscribed successfully"
	if result.Action == subscriptions.ActionUnsubscribed {
		message = "Unsubscribed successfully"
	}
	respondSuccess(ctx, w, http.StatusOK, result, message)
}

// ListSubscribers handles GET /api/v1/subscriptions/c/{channelId}.
func (h SubscriptionHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subscribers, err := h.Subscriptions.ListSubscribers(ctx, r.PathValue("channelId"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respondSuccess(ctx, w, http.StatusOK, subscribers, "Subscribers fetched successfully")
}

// ListSubscriptions handles GET /api/v1/subscriptions/u/{subscriberId}.
func (h SubscriptionHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channels, err := h.Subscriptions.ListSubscriptions(ctx, r.PathValue("subscriberId"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respondSuccess(ctx, w, http.StatusOK, channels, "Subscribed channels fetched successfully")
}
