package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/config"
	"github.com/videotube/backend/internal/logging"
)

type stubAuthenticator struct {
	tokens map[string]auth.Identity
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (auth.Identity, error) {
	if token == "" {
		return auth.Identity{}, errors.New("missing token")
	}
	identity, ok := s.tokens[token]
	if !ok {
		return auth.Identity{}, errors.New("invalid token")
	}
	return identity, nil
}

func identityEcho(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		_, _ = io.WriteString(w, "anonymous")
		return
	}
	_, _ = io.WriteString(w, identity.Username)
}

func TestRequireAuth(t *testing.T) {
	authn := stubAuthenticator{tokens: map[string]auth.Identity{"good": {UserID: "u1", Username: "alice"}}}
	var rejected error
	handler := RequireAuth(authn, func(w http.ResponseWriter, _ *http.Request, err error) {
		rejected = err
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(identityEcho))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "alice" {
		t.Fatalf("expected bearer token to authenticate, got %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "good"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Body.String() != "alice" {
		t.Fatalf("expected cookie token to authenticate, got %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || rejected == nil {
		t.Fatalf("expected rejection, got %d", rec.Code)
	}
}

func TestOptionalAuthFallsBackToAnonymous(t *testing.T) {
	authn := stubAuthenticator{tokens: map[string]auth.Identity{"good": {UserID: "u1", Username: "alice"}}}
	handler := OptionalAuth(authn)(http.HandlerFunc(identityEcho))

	for token, want := range map[string]string{"": "anonymous", "bad": "anonymous", "good": "alice"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("token %q: expected %q got %d %q", token, want, rec.Code, rec.Body.String())
		}
	}
}

func TestAccessTokenPrefersCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer header-token")
	if got := AccessToken(req); got != "header-token" {
		t.Fatalf("expected header token, got %q", got)
	}

	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "cookie-token"})
	if got := AccessToken(req); got != "cookie-token" {
		t.Fatalf("expected cookie token, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	if got := AccessToken(req); got != "" {
		t.Fatalf("expected no token for basic auth, got %q", got)
	}
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = addr
	return req
}

func TestClientLimiterBudgets(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter := NewClientLimiter(config.RateLimitConfig{Requests: 1, Window: time.Hour, Burst: 2, TTL: time.Minute}, clock)

	first := requestFrom("1.1.1.1:4000")
	if !limiter.AllowRequest(first, ScopeLogin) || !limiter.AllowRequest(first, ScopeLogin) {
		t.Fatal("expected burst to be allowed")
	}
	if limiter.AllowRequest(first, ScopeLogin) {
		t.Fatal("expected third request to be limited")
	}
	if !limiter.AllowRequest(first, ScopeRefresh) {
		t.Fatal("expected refresh to have its own budget")
	}
	if !limiter.AllowRequest(requestFrom("2.2.2.2:4000"), ScopeLogin) {
		t.Fatal("expected a different client to have its own budget")
	}
	if got := limiter.Len(); got != 3 {
		t.Fatalf("expected 3 buckets, got %d", got)
	}

	clock.Advance(2 * time.Minute)
	limiter.AllowRequest(requestFrom("3.3.3.3:4000"), ScopeLogin)
	if got := limiter.Len(); got != 1 {
		t.Fatalf("expected idle buckets to expire after the ttl, got %d", got)
	}
	if !limiter.AllowRequest(first, ScopeLogin) {
		t.Fatal("expected an expired client to start with a fresh budget")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewClientLimiter(config.RateLimitConfig{Requests: 1, Window: time.Hour, Burst: 1, TTL: time.Hour}, clock)

	var limited Scope
	handler := RateLimit(limiter, ScopeLogin, func(w http.ResponseWriter, _ *http.Request, scope Scope) {
		limited = scope
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("1.1.1.1:4000"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected first request through, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("1.1.1.1:4000"))
	if rec.Code != http.StatusTooManyRequests || limited != ScopeLogin {
		t.Fatalf("expected login scope to be throttled, got %d (%q)", rec.Code, limited)
	}

	open := RateLimit(nil, ScopeLogin, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, requestFrom("1.1.1.1:4000"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected nil limiter to pass requests through, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	if got := ClientIP(req); got != "10.0.0.1" {
		t.Fatalf("expected remote host, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("expected forwarded client, got %q", got)
	}
}

func TestRequestLoggerPropagatesRequestID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var seen string
	handler := RequestLogger(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "req-123" || seen != "req-123" {
		t.Fatalf("expected incoming request id to be echoed, got %q (context %q)", got, seen)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestRequestLoggerRecoversPanics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var rendered error
	handler := RequestLogger(logger, func(w http.ResponseWriter, _ *http.Request, err error) {
		rendered = err
		w.WriteHeader(http.StatusInternalServerError)
	})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError || rendered == nil {
		t.Fatalf("expected panic to be rendered as 500, got %d (%v)", rec.Code, rendered)
	}

	partial := RequestLogger(logger, func(http.ResponseWriter, *http.Request, error) {
		t.Fatal("expected no error rendering after the response started")
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("partial"))
		panic("late")
	}))
	rec = httptest.NewRecorder()
	partial.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected started response to keep its status, got %d", rec.Code)
	}
}
