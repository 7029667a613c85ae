package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledTelemetryIsNoop(t *testing.T) {
	tel, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()

	assert.NotPanics(t, func() {
		tel.RecordAttempt(ctx, "success")
		tel.RecordResolution(ctx, "exhausted", time.Second)
		tel.AddDownloadedBytes(ctx, 1024)
		tel.RecordClientOperation(ctx, "get_course", "error")
		tel.RecordDBOperation(ctx, "record_result", "success", time.Millisecond)
	})

	cause := errors.New("boom")
	err = tel.InstrumentFetch(ctx, func(ctx context.Context) error { return cause })
	assert.ErrorIs(t, err, cause)

	assert.NotNil(t, tel.Tracer())
	assert.NoError(t, tel.Shutdown(ctx))
}

func TestNilTelemetryIsNoop(t *testing.T) {
	var tel *Telemetry

	called := false
	err := tel.InstrumentDBOperation(context.Background(), "get_downloads", func(ctx context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(RequestIDHeader, "upstream-id")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "upstream-id", seen)
		assert.Equal(t, "upstream-id", rec.Header().Get(RequestIDHeader))
	})
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		302: "3xx",
		404: "4xx",
		503: "5xx",
		100: "unknown",
	}

	for code, want := range tests {
		assert.Equal(t, want, statusClass(code), "code %d", code)
	}
}
