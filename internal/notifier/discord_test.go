package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordNotifier_Notify(t *testing.T) {
	var received map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewDiscordNotifier(srv.URL, srv.Client())

	require.NoError(t, n.Notify(context.Background(), "course go-fundamentals finished"))
	assert.Equal(t, "course go-fundamentals finished", received["content"])
}

func TestDiscordNotifier_TruncatesLongContent(t *testing.T) {
	var received map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
	}))
	defer srv.Close()

	n := NewDiscordNotifier(srv.URL, srv.Client())

	require.NoError(t, n.Notify(context.Background(), strings.Repeat("a", 5000)))
	assert.Equal(t, maxDiscordContent, utf8.RuneCountInString(received["content"]))
}

func TestDiscordNotifier_Errors(t *testing.T) {
	t.Run("missing webhook", func(t *testing.T) {
		err := NewDiscordNotifier("", nil).Notify(context.Background(), "hi")
		assert.EqualError(t, err, "webhook URL is not set")
	})

	t.Run("non-2xx response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		err := NewDiscordNotifier(srv.URL, srv.Client()).Notify(context.Background(), "hi")
		assert.EqualError(t, err, "webhook failed with status 400")
	})
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Notify(context.Background(), "ignored"))
}
