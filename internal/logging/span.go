package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one service operation within a request trace.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
}

// StartSpan opens a span named after the operation. The first span of a
// request assigns the trace id; nested spans record their parent.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	sc := scopeFrom(ctx)
	logger := FromContext(ctx)

	if sc.traceID == "" {
		sc.traceID = uuid.NewString()
		logger = logger.With(slog.String("trace_id", sc.traceID))
	}

	spanID := uuid.NewString()
	attrs := []any{slog.String("span_name", name), slog.String("span_id", spanID)}
	if sc.spanID != "" {
		attrs = append(attrs, slog.String("parent_span_id", sc.spanID))
	}
	sc.spanID = spanID
	sc.logger = logger.With(attrs...)

	return withScope(ctx, sc), &Span{name: name, logger: sc.logger, start: time.Now()}
}

// End logs the span duration at debug level.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.logger.Debug("span completed", slog.Duration("duration", time.Since(s.start)))
}
