package report

import (
	"context"
	"fmt"

	"github.com/italolelis/course_downloader/internal/logctx"
	"github.com/italolelis/course_downloader/internal/notifier"
	"github.com/italolelis/course_downloader/internal/resolver"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Multi fans every event out to each sink in order.
type Multi []resolver.Sink

func (m Multi) Report(ctx context.Context, e resolver.Event) {
	for _, s := range m {
		s.Report(ctx, e)
	}
}

// Log writes events to the context logger, which already carries the clip identity.
type Log struct{}

func (Log) Report(ctx context.Context, e resolver.Event) {
	logger := logctx.LoggerFromContext(ctx)

	switch ev := e.(type) {
	case resolver.AttemptStarted:
		logger.DebugContext(ctx, "attempt started", "index", ev.Index, "source_id", ev.Candidate.SourceID, "retry", RetryLabel(ev.Index))
	case resolver.AttemptSkippedInvalid:
		logger.InfoContext(ctx, "attempt skipped, invalid source", "index", ev.Index, "source_id", ev.Candidate.SourceID, "reason", ev.Reason)
	case resolver.AttemptFailed:
		logger.InfoContext(ctx, "attempt failed", "index", ev.Index, "source_id", ev.Candidate.SourceID, "last", ev.IsLast, "err", ev.Err)
	case resolver.AttemptSucceeded:
		logger.InfoContext(ctx, "clip downloaded", "index", ev.Index, "source_id", ev.Candidate.SourceID)
	case resolver.AllExhausted:
		logger.WarnContext(ctx, "clip exhausted all sources", "attempts", ev.Attempts)
	}
}

// Notify forwards exhausted clips to a notifier.
type Notify struct {
	Notifier notifier.Notifier
}

func (n Notify) Report(ctx context.Context, e resolver.Event) {
	ev, ok := e.(resolver.AllExhausted)
	if !ok {
		return
	}

	msg := fmt.Sprintf("Download failed for clip %q (%s) of course %s after %d attempts. Retry with --course %s --clip %s",
		ev.Target.Clip.Title, ev.Target.Clip.ID, ev.Target.CourseName, ev.Attempts, ev.Target.CourseName, ev.Target.Clip.ID)

	if err := n.Notifier.Notify(ctx, msg); err != nil {
		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to send notification", "clip_id", ev.Target.Clip.ID, "err", err)
	}
}

// Span records events on the span found in the context.
type Span struct{}

func (Span) Report(ctx context.Context, e resolver.Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	switch ev := e.(type) {
	case resolver.AttemptStarted:
		span.AddEvent("attempt_started", trace.WithAttributes(
			attribute.Int("index", ev.Index),
			attribute.String("source_id", ev.Candidate.SourceID),
		))
	case resolver.AttemptSkippedInvalid:
		span.AddEvent("attempt_skipped_invalid", trace.WithAttributes(
			attribute.Int("index", ev.Index),
			attribute.String("reason", ev.Reason),
		))
	case resolver.AttemptFailed:
		span.AddEvent("attempt_failed", trace.WithAttributes(
			attribute.Int("index", ev.Index),
			attribute.Bool("last", ev.IsLast),
		))
	case resolver.AttemptSucceeded:
		span.AddEvent("attempt_succeeded", trace.WithAttributes(attribute.Int("index", ev.Index)))
	case resolver.AllExhausted:
		span.AddEvent("all_exhausted", trace.WithAttributes(attribute.Int("attempts", ev.Attempts)))
	}
}
