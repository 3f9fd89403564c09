package logging

import (
	"context"
	"log/slog"
)

type scopeKey struct{}

// scope is the per-request logging state carried on a context. It is
// copied on every change so parent contexts keep their view.
type scope struct {
	logger    *slog.Logger
	requestID string
	userID    string
	traceID   string
	spanID    string
}

func scopeFrom(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	sc, _ := ctx.Value(scopeKey{}).(scope)
	return sc
}

func withScope(ctx context.Context, sc scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, sc)
}

// WithLogger replaces the logger carried by ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	sc := scopeFrom(ctx)
	sc.logger = logger
	return withScope(ctx, sc)
}

// FromContext returns the request-scoped logger or falls back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if sc := scopeFrom(ctx); sc.logger != nil {
		return sc.logger
	}
	return slog.Default()
}

// WithRequest starts the logging scope of an inbound request: base is tagged
// with request_id and the given attributes.
func WithRequest(ctx context.Context, base *slog.Logger, requestID string, attrs ...any) context.Context {
	if base == nil {
		base = FromContext(ctx)
	}
	sc := scope{
		requestID: requestID,
		logger:    base.With(append([]any{slog.String("request_id", requestID)}, attrs...)...),
	}
	return withScope(ctx, sc)
}

// WithUser tags the scope with the authenticated caller. Repeated calls with
// the same id leave the logger unchanged.
func WithUser(ctx context.Context, userID string) context.Context {
	sc := scopeFrom(ctx)
	if userID == "" || sc.userID == userID {
		return ctx
	}
	sc.userID = userID
	sc.logger = FromContext(ctx).With(slog.String("user_id", userID))
	return withScope(ctx, sc)
}

// RequestID returns the id assigned by WithRequest, if any.
func RequestID(ctx context.Context) string {
	return scopeFrom(ctx).requestID
}
