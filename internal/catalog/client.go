package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/italolelis/course_downloader/internal/logctx"
	"golang.org/x/oauth2"
)

const maxErrorBody = 4 * 1024

// HTTPClient talks to the catalog JSON API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient builds a catalog client. When token is not empty every request carries it as a
// bearer token; base provides the underlying transport and timeout.
func NewHTTPClient(baseURL, token string, base *http.Client) *HTTPClient {
	if base == nil {
		base = &http.Client{}
	}

	client := base
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
		client.Timeout = base.Timeout
	}

	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

type accessResponse struct {
	MayDownload bool `json:"mayDownload"`
}

type clipURLsRequest struct {
	CourseID string `json:"courseId"`
	ClipID   string `json:"clipId"`
}

type clipURLsResponse struct {
	RankedOptions []struct {
		CDN string `json:"cdn"`
		URL string `json:"url"`
	} `json:"rankedOptions"`
}

// GetCourse fetches the course structure by its name.
func (c *HTTPClient) GetCourse(ctx context.Context, name string) (*Course, error) {
	var course Course

	status, err := c.do(ctx, "get_course", http.MethodGet, "/courses/"+url.PathEscape(name), nil, &course)
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, name)
	}

	if err != nil {
		return nil, err
	}

	return &course, nil
}

// HasCourseAccess reports whether the authenticated account may download the course.
func (c *HTTPClient) HasCourseAccess(ctx context.Context, courseID string) (bool, error) {
	var resp accessResponse

	if _, err := c.do(ctx, "has_course_access", http.MethodGet, "/courses/"+url.PathEscape(courseID)+"/access", nil, &resp); err != nil {
		return false, err
	}

	return resp.MayDownload, nil
}

// GetClipCandidates asks the catalog where a clip can be fetched from. The response order is
// the ranking; Rank is assigned from it.
func (c *HTTPClient) GetClipCandidates(ctx context.Context, courseID, clipID string) ([]Candidate, error) {
	var resp clipURLsResponse

	body := clipURLsRequest{CourseID: courseID, ClipID: clipID}
	if _, err := c.do(ctx, "get_clip_candidates", http.MethodPost, "/clips/urls", body, &resp); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(resp.RankedOptions))
	for i, opt := range resp.RankedOptions {
		candidates = append(candidates, Candidate{
			SourceID: opt.CDN,
			Locator:  opt.URL,
			Rank:     i,
		})
	}

	return candidates, nil
}

// do executes a JSON request and decodes the response into out. The status code is returned
// whenever a response was received so callers can map specific codes.
func (c *HTTPClient) do(ctx context.Context, operation, method, path string, in, out any) (int, error) {
	logger := logctx.LoggerFromContext(ctx).With("operation", operation)

	var body io.Reader

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal %s request: %w", operation, err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s request: %w", operation, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.DebugContext(ctx, "sending catalog request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody := decodeBody(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return resp.StatusCode, &AuthenticationError{Operation: operation}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(respBody, maxErrorBody))
		logger.ErrorContext(ctx, "non-2xx catalog response", "status", resp.StatusCode, "body", string(b))

		return resp.StatusCode, fmt.Errorf("%s request failed: %s", operation, resp.Status)
	}

	if err := json.NewDecoder(respBody).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", operation, err)
	}

	return resp.StatusCode, nil
}

// decodeBody undoes the brotli content encoding requested in do. Setting Accept-Encoding
// disables the transport's transparent gzip, so identity bodies are read as they are.
func decodeBody(resp *http.Response) io.Reader {
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "br") {
		return brotli.NewReader(resp.Body)
	}

	return resp.Body
}
