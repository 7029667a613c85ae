package downloader

import (
	"context"

	"github.com/italolelis/course_downloader/internal/catalog"
	"github.com/italolelis/course_downloader/internal/telemetry"
)

// Fetcher is anything that can place a candidate's bytes at a destination.
type Fetcher interface {
	FetchTo(ctx context.Context, c catalog.Candidate, destination string) (bool, error)
}

// InstrumentedDownloader wraps a Fetcher with telemetry.
type InstrumentedDownloader struct {
	next      Fetcher
	telemetry *telemetry.Telemetry
}

// NewInstrumentedDownloader creates a new instrumented downloader.
func NewInstrumentedDownloader(next Fetcher, tel *telemetry.Telemetry) *InstrumentedDownloader {
	return &InstrumentedDownloader{
		next:      next,
		telemetry: tel,
	}
}

// FetchTo fetches a candidate with telemetry.
func (d *InstrumentedDownloader) FetchTo(ctx context.Context, c catalog.Candidate, destination string) (bool, error) {
	var ok bool

	err := d.telemetry.InstrumentFetch(ctx, func(ctx context.Context) error {
		var err error

		ok, err = d.next.FetchTo(ctx, c, destination)

		return err
	})

	return ok, err
}
