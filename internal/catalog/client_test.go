package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const courseJSON = `{
	"header": {"id": "course-1", "name": "go-fundamentals", "title": "Go Fundamentals"},
	"modules": [
		{"id": "mod-1", "title": "Intro", "clips": [
			{"id": "clip-1", "title": "Hello", "index": 1},
			{"id": "clip-2", "title": "World", "index": 2}
		]},
		{"id": "mod-2", "title": "Concurrency", "clips": [
			{"id": "clip-3", "title": "Channels", "index": 1}
		]}
	]
}`

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /courses/go-fundamentals", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(courseJSON))
	})
	mux.HandleFunc("GET /courses/course-1/access", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"mayDownload": true}`))
	})
	mux.HandleFunc("POST /clips/urls", func(w http.ResponseWriter, r *http.Request) {
		var body clipURLsRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if body.ClipID == "clip-broken" {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}

		_, _ = w.Write([]byte(`{"rankedOptions": [
			{"cdn": "akamai", "url": "https://akamai.example.com/` + body.CourseID + `/` + body.ClipID + `.mp4"},
			{"cdn": "fastly", "url": "https://fastly.example.com/` + body.ClipID + `.mp4"}
		]}`))
	})

	authed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		mux.ServeHTTP(w, r)
	})

	srv := httptest.NewServer(authed)
	t.Cleanup(srv.Close)

	return srv
}

func TestHTTPClient_GetCourse(t *testing.T) {
	srv := newCatalogServer(t)
	client := NewHTTPClient(srv.URL+"/", "secret-token", srv.Client())

	course, err := client.GetCourse(context.Background(), "go-fundamentals")
	require.NoError(t, err)

	assert.Equal(t, "course-1", course.Header.ID)
	assert.Equal(t, "Go Fundamentals", course.Header.Title)
	require.Len(t, course.Modules, 2)
	assert.Equal(t, 3, course.ClipCount())
}

func TestHTTPClient_GetCourseNotFound(t *testing.T) {
	srv := newCatalogServer(t)
	client := NewHTTPClient(srv.URL, "secret-token", srv.Client())

	_, err := client.GetCourse(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestHTTPClient_Unauthorized(t *testing.T) {
	srv := newCatalogServer(t)
	client := NewHTTPClient(srv.URL, "wrong", srv.Client())

	_, err := client.GetCourse(context.Background(), "go-fundamentals")

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "get_course", authErr.Operation)
}

func TestHTTPClient_HasCourseAccess(t *testing.T) {
	srv := newCatalogServer(t)
	client := NewHTTPClient(srv.URL, "secret-token", srv.Client())

	ok, err := client.HasCourseAccess(context.Background(), "course-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHTTPClient_GetClipCandidates(t *testing.T) {
	srv := newCatalogServer(t)
	client := NewHTTPClient(srv.URL, "secret-token", srv.Client())

	candidates, err := client.GetClipCandidates(context.Background(), "course-1", "clip-3")
	require.NoError(t, err)

	assert.Equal(t, []Candidate{
		{SourceID: "akamai", Locator: "https://akamai.example.com/course-1/clip-3.mp4", Rank: 0},
		{SourceID: "fastly", Locator: "https://fastly.example.com/clip-3.mp4", Rank: 1},
	}, candidates)
}

func TestHTTPClient_GetClipCandidatesError(t *testing.T) {
	srv := newCatalogServer(t)
	client := NewHTTPClient(srv.URL, "secret-token", srv.Client())

	_, err := client.GetClipCandidates(context.Background(), "course-1", "clip-broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type stubClient struct {
	err error
}

func (s stubClient) GetCourse(context.Context, string) (*Course, error) {
	return &Course{Header: Header{ID: "course-1"}}, s.err
}

func (s stubClient) HasCourseAccess(context.Context, string) (bool, error) { return true, s.err }

func (s stubClient) GetClipCandidates(context.Context, string, string) ([]Candidate, error) {
	return []Candidate{{SourceID: "a"}}, s.err
}

func TestInstrumentedClient(t *testing.T) {
	ctx := context.Background()

	t.Run("passes results through", func(t *testing.T) {
		c := NewInstrumentedClient(stubClient{}, nil)

		course, err := c.GetCourse(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, "course-1", course.Header.ID)

		ok, err := c.HasCourseAccess(ctx, "course-1")
		require.NoError(t, err)
		assert.True(t, ok)

		candidates, err := c.GetClipCandidates(ctx, "course-1", "clip-1")
		require.NoError(t, err)
		assert.Len(t, candidates, 1)
	})

	t.Run("drops results on error", func(t *testing.T) {
		cause := errors.New("boom")
		c := NewInstrumentedClient(stubClient{err: cause}, nil)

		course, err := c.GetCourse(ctx, "x")
		assert.ErrorIs(t, err, cause)
		assert.Nil(t, course)

		candidates, err := c.GetClipCandidates(ctx, "course-1", "clip-1")
		assert.ErrorIs(t, err, cause)
		assert.Nil(t, candidates)
	})
}

func TestHTTPClient_BrotliResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "br", r.Header.Get("Accept-Encoding"))

		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte(courseJSON))
		_ = bw.Close()

		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)

	course, err := NewHTTPClient(srv.URL, "", srv.Client()).GetCourse(context.Background(), "go-fundamentals")
	require.NoError(t, err)

	assert.Equal(t, "Go Fundamentals", course.Header.Title)
	assert.Equal(t, 3, course.ClipCount())
}
