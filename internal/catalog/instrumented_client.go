package catalog

import (
	"context"

	"github.com/italolelis/course_downloader/internal/telemetry"
)

// InstrumentedClient wraps Client with telemetry.
type InstrumentedClient struct {
	client    Client
	telemetry *telemetry.Telemetry
}

// NewInstrumentedClient creates a new instrumented catalog client.
func NewInstrumentedClient(client Client, tel *telemetry.Telemetry) *InstrumentedClient {
	return &InstrumentedClient{
		client:    client,
		telemetry: tel,
	}
}

// GetCourse fetches a course with telemetry.
func (c *InstrumentedClient) GetCourse(ctx context.Context, name string) (*Course, error) {
	var result *Course

	err := c.telemetry.InstrumentClientOperation(ctx, "get_course", func(ctx context.Context) error {
		var err error

		result, err = c.client.GetCourse(ctx, name)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// HasCourseAccess checks course access with telemetry.
func (c *InstrumentedClient) HasCourseAccess(ctx context.Context, courseID string) (bool, error) {
	var result bool

	err := c.telemetry.InstrumentClientOperation(ctx, "has_course_access", func(ctx context.Context) error {
		var err error

		result, err = c.client.HasCourseAccess(ctx, courseID)

		return err
	})
	if err != nil {
		return false, err
	}

	return result, nil
}

// GetClipCandidates fetches ranked clip sources with telemetry.
func (c *InstrumentedClient) GetClipCandidates(ctx context.Context, courseID, clipID string) ([]Candidate, error) {
	var result []Candidate

	err := c.telemetry.InstrumentClientOperation(ctx, "get_clip_candidates", func(ctx context.Context) error {
		var err error

		result, err = c.client.GetClipCandidates(ctx, courseID, clipID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
