package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/videotube/backend/internal/apperror"
)

// TweetHandler implements tweet endpoints.
type TweetHandler struct {
	Tweets TweetService
}

type tweetRequest struct {
	Content string `json:"content"`
}

// Create handles POST /api/v1/tweets.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req tweetRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	tweet, err := h.Tweets.Create(ctx, identity.UserID, req.Content)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respondSuccess(ctx, w, http.StatusCreated, tweet, "Tweet created successfully")
}

// ListByUser handles GET /api/v1/tweets/user/{userId}?page=&limit=.
func (h TweetHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := queryInt(r, "page")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	result, err := h.Tweets.ListByUser(ctx, r.PathValue("userId"), page, limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respondSuccess(ctx, w, http.StatusOK, result, "Tweets fetched successfully")
}

// Update handles PATCH /api/v1/tweets/{tweetId}.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req tweetRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	tweet, err := h.Tweets.Update(ctx, identity.UserID, r.PathValue("tweetId"), req.Content)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respondSuccess(ctx, w, http.StatusOK, tweet, "Tweet updated successfully")
}

// Delete handles DELETE /api/v1/tweets/{tweetId}.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.Tweets.Delete(ctx, identity.UserID, r.PathValue("tweetId")); err != nil {
		WriteError(w, r, err)
		return
	}
	respondSuccess(ctx, w, http.StatusOK, struct{}{}, "Tweet deleted successfully")
}

// queryInt parses an optional integer query parameter; absent means zero.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.InvalidInput("Invalid pagination parameters").WithCause(err)
	}
	return n, nil
}
