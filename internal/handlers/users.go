package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/videotube/backend/internal/accounts"
	"github.com/videotube/backend/internal/apperror"
	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
)

const maxUploadMemory = 10 << 20

// UserHandler implements account and session endpoints.
type UserHandler struct {
	Accounts AccountService
	Sessions SessionController
	Profiles ProfileService
	Cookies  CookieWriter
}

type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	Password   string `json:"password"`
	Avatar     string `json:"avatar"`
	CoverImage string `json:"coverImage"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type loginResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register handles POST /api/v1/users/register. It accepts JSON bodies with
// media URLs or multipart forms carrying avatar and coverImage files.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in accounts.RegisterInput
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			WriteError(w, r, apperror.InvalidInput("invalid multipart form").WithCause(err))
			return
		}
		in = accounts.RegisterInput{
			Username:   r.FormValue("username"),
			Email:      r.FormValue("email"),
			FullName:   r.FormValue("fullName"),
			Password:   r.FormValue("password"),
			Avatar:     formMedia(r, "avatar"),
			CoverImage: formMedia(r, "coverImage"),
		}
		defer closeMedia(in.Avatar, in.CoverImage)
	} else {
		var req registerRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		in = accounts.RegisterInput{
			Username:   req.Username,
			Email:      req.Email,
			FullName:   req.FullName,
			Password:   req.Password,
			Avatar:     accounts.Media{URL: req.Avatar},
			CoverImage: accounts.Media{URL: req.CoverImage},
		}
	}

	user, err := h.Accounts.Register(ctx, in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respondSuccess(ctx, w, http.StatusCreated, user, "User registered Successfully")
}

// Login handles POST /api/v1/users/login.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	result, err := h.Sessions.Login(ctx, auth.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	h.Cookies.SetSession(w, result.Tokens)
	respondSuccess(ctx, w, http.StatusOK, loginResponse{
		User:         result.User,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}, "User logged In Successfully")
}

// Logout handles POST /api/v1/users/logout.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.Sessions.Logout(ctx, identity.UserID); err != nil {
		WriteError(w, r, err)
		return
	}

	h.Cookies.ClearSession(w)
	respondSuccess(ctx, w, http.StatusOK, struct{}{}, "User logged Out")
}

// RefreshToken handles POST /api/v1/users/refresh-token. The refreshToken
// cookie wins; the body is only read when the cookie is absent.
func (h UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := refreshTokenCookie(r)
	if token == "" {
		var req refreshRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		token = strings.TrimSpace(req.RefreshToken)
	}

	tokens, err := h.Sessions.Refresh(ctx, token)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	h.Cookies.SetSession(w, tokens)
	respondSuccess(ctx, w, http.StatusOK, tokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "Access token refreshed")
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.Sessions.ChangePassword(ctx, identity.UserID, req.OldPassword, req.NewPassword); err != nil {
		WriteError(w, r, err)
		return
	}
	respondSuccess(ctx, w, http.StatusOK, struct{}{}, "Password changed successfully")
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	user, err := h.Accounts.CurrentUser(ctx, identity.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respondSuccess(ctx, w, http.StatusOK, user, "current user fetched successfully")
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	user, err := h.Accounts.UpdateAccount(ctx, identity.UserID, req.FullName, req.Email)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respondSuccess(ctx, w, http.StatusOK, user, "Account details updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/update-avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, "avatar", h.Accounts.UpdateAvatar, "Avatar image updated successfully")
}

// UpdateCoverImage handles PATCH /api/v1/users/update-cover-image.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, "coverImage", h.Accounts.UpdateCoverImage, "Cover image updated successfully")
}

type mediaUpdater func(ctx context.Context, userID string, media accounts.Media) (models.PublicUser, error)

func (h UserHandler) updateMedia(w http.ResponseWriter, r *http.Request, field string, update mediaUpdater, message string) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var media accounts.Media
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			WriteError(w, r, apperror.InvalidInput("invalid multipart form").WithCause(err))
			return
		}
		media = formMedia(r, field)
		defer closeMedia(media)
	} else {
		var req map[string]string
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		media = accounts.Media{URL: req[field]}
	}

	user, err := update(ctx, identity.UserID, media)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respondSuccess(ctx, w, http.StatusOK, user, message)
}

// ChannelProfile handles GET /api/v1/users/c/{username}. Authentication is
// optional; anonymous viewers are never reported as subscribed.
func (h UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var viewerID string
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		viewerID = identity.UserID
	}

	profile, err := h.Profiles.ChannelProfile(ctx, r.PathValue("username"), viewerID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respondSuccess(ctx, w, http.StatusOK, profile, "User channel fetched successfully")
}

// WatchHistory handles GET /api/v1/users/history.
func (h UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	history, err := h.Profiles.WatchHistory(ctx, identity.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respondSuccess(ctx, w, http.StatusOK, history, "Watch history fetched successfully")
}

// RecordView handles POST /api/v1/users/history/{videoId}.
func (h UserHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.Profiles.RecordView(ctx, identity.UserID, r.PathValue("videoId")); err != nil {
		WriteError(w, r, err)
		return
	}
	respondSuccess(ctx, w, http.StatusOK, struct{}{}, "Video added to watch history")
}

// formMedia reads an uploaded file for field, falling back to a URL value.
func formMedia(r *http.Request, field string) accounts.Media {
	file, header, err := r.FormFile(field)
	if err != nil {
		return accounts.Media{URL: strings.TrimSpace(r.FormValue(field))}
	}
	logging.FromContext(r.Context()).Debug("received upload", "field", field, "filename", header.Filename, "size", header.Size)
	return accounts.Media{
		File:        file,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}
}

func closeMedia(media ...accounts.Media) {
	for _, m := range media {
		if c, ok := m.File.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

// requireIdentity returns the authenticated caller, writing an Unauthorized
// response when the route was reached without one.
func requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		WriteError(w, r, apperror.Unauthorized("Unauthorized request"))
		return auth.Identity{}, false
	}
	return identity, true
}
