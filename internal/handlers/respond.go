package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/videotube/backend/internal/apperror"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/metrics"
	"github.com/videotube/backend/internal/middleware"
)

const maxJSONBody = 1 << 20

// envelope is the success response shape shared by every API endpoint.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type failureEnvelope struct {
	envelope
	Errors []string `json:"errors"`
}

func respondSuccess(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	writeJSON(ctx, w, status, envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

func respondFailure(ctx context.Context, w http.ResponseWriter, status int, message string, details []string) {
	if details == nil {
		details = []string{}
	}
	writeJSON(ctx, w, status, failureEnvelope{
		envelope: envelope{StatusCode: status, Message: message},
		Errors:   details,
	})
}

// WriteError renders err in the failure envelope. Errors that are not domain
// errors are reported as internal failures without leaking their text.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.From(err)
	status := appErr.HTTPStatus()
	metrics.RecordHTTPError(string(appErr.Kind))

	logger := logging.FromContext(r.Context()).With("kind", appErr.Kind)
	if status >= http.StatusInternalServerError {
		logger.Error("request error", "error", err)
	} else {
		logger.Warn("request rejected", "error", err)
	}

	respondFailure(r.Context(), w, status, appErr.Message, appErr.Details)
}

func respondTooManyRequests(w http.ResponseWriter, r *http.Request, scope middleware.Scope) {
	metrics.RateLimitedTotal.WithLabelValues(string(scope)).Inc()
	metrics.RecordHTTPError("rate_limited")
	logging.FromContext(r.Context()).Warn("rate limit exceeded", "scope", scope, "client", middleware.ClientIP(r))
	respondFailure(r.Context(), w, http.StatusTooManyRequests, "Too many requests, please try again later.", nil)
}

// decodeJSON reads a JSON request body into dst. An empty body leaves dst
// untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperror.InvalidInput("invalid request body").WithCause(err)
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// writeJSON encodes body with the given status. Rejections are logged by
// WriteError, so only encoding failures are reported here.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(ctx).Error("encode response envelope", "status", status, "error", err)
	}
}
