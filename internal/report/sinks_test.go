package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/italolelis/course_downloader/internal/logctx"
	"github.com/italolelis/course_downloader/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeNotifier struct {
	messages []string
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, content string) error {
	f.messages = append(f.messages, content)

	return f.err
}

func TestMulti_FansOutInOrder(t *testing.T) {
	var seen []string

	sink := func(name string) resolver.Sink {
		return resolver.SinkFunc(func(context.Context, resolver.Event) { seen = append(seen, name) })
	}

	Multi{sink("console"), sink("log")}.Report(context.Background(), resolver.AttemptStarted{})

	assert.Equal(t, []string{"console", "log"}, seen)
}

func TestNotify_OnlyExhaustedClips(t *testing.T) {
	n := &fakeNotifier{}
	sink := Notify{Notifier: n}
	target := testTarget("/out/a.mp4")

	sink.Report(context.Background(), resolver.AttemptFailed{Target: target, IsLast: true})
	sink.Report(context.Background(), resolver.AttemptSucceeded{Target: target})
	require.Empty(t, n.messages)

	sink.Report(context.Background(), resolver.AllExhausted{Target: target, Attempts: 2})
	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "--course go-fundamentals --clip clip-7")
	assert.Contains(t, n.messages[0], "after 2 attempts")
}

func TestNotify_ErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer

	ctx := logctx.WithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	Notify{Notifier: &fakeNotifier{err: errors.New("webhook down")}}.
		Report(ctx, resolver.AllExhausted{Target: testTarget("/out/a.mp4")})

	assert.Contains(t, buf.String(), "failed to send notification")
	assert.Contains(t, buf.String(), "webhook down")
}

func TestLog_WritesStructuredEntries(t *testing.T) {
	var buf bytes.Buffer

	ctx := logctx.WithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	target := testTarget("/out/a.mp4")

	Log{}.Report(ctx, resolver.AttemptStarted{Target: target, Index: 1, Candidate: cand("b", 1)})
	Log{}.Report(ctx, resolver.AllExhausted{Target: target, Attempts: 2})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var started, exhausted map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &started))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &exhausted))

	assert.Equal(t, "attempt started", started["msg"])
	assert.Equal(t, "Retry #1", started["retry"])
	assert.EqualValues(t, 1, started["index"])
	assert.Equal(t, "WARN", exhausted["level"])
}

func TestSpan_RecordsEvents(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	ctx, span := tp.Tracer("test").Start(context.Background(), "resolve_clip")
	target := testTarget("/out/a.mp4")

	Span{}.Report(ctx, resolver.AttemptStarted{Target: target, Index: 0, Candidate: cand("a", 0)})
	Span{}.Report(ctx, resolver.AttemptSucceeded{Target: target, Index: 0, Candidate: cand("a", 0)})
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)

	var names []string
	for _, e := range ended[0].Events() {
		names = append(names, e.Name)
	}

	assert.Equal(t, []string{"attempt_started", "attempt_succeeded"}, names)
}

func TestSpan_NoSpanIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		Span{}.Report(context.Background(), resolver.AllExhausted{})
	})
}
