package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/course_downloader/internal/catalog"
	"github.com/italolelis/course_downloader/internal/downloader/progress"
	"github.com/italolelis/course_downloader/internal/logctx"
	"github.com/italolelis/course_downloader/internal/telemetry"
)

const (
	dirPerm = 0755

	// PartialSuffix marks files that are still being written.
	PartialSuffix = ".part"

	progressInterval = int64(10 * 1024 * 1024) // 10MB
)

// HTTPDownloader fetches candidate locators over HTTP(S) into a destination file.
type HTTPDownloader struct {
	client      *http.Client
	telemetry   *telemetry.Telemetry
	progressOut io.Writer
}

func NewHTTPDownloader(client *http.Client, tel *telemetry.Telemetry, opts ...Option) *HTTPDownloader {
	if client == nil {
		client = &http.Client{}
	}

	d := &HTTPDownloader{
		client:    client,
		telemetry: tel,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Validate checks that the candidate locator can be fetched by this downloader.
func (d *HTTPDownloader) Validate(c catalog.Candidate) error {
	invalid := func(reason string) error {
		return &InvalidSourceError{SourceID: c.SourceID, Locator: c.Locator, Reason: reason}
	}

	if c.Locator == "" {
		return invalid("empty locator")
	}

	u, err := url.Parse(c.Locator)
	if err != nil {
		return invalid("unparsable locator")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid(fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}

	if u.Host == "" {
		return invalid("missing host")
	}

	return nil
}

// FetchTo downloads the candidate into destination, replacing any existing file.
//
// It answers false when the candidate is invalid or refused by the source; the returned error
// is then nil or an *InvalidSourceError carrying the reason, and nothing was written. Transfer
// failures return a *TransferError and destination faults a *DestinationError; in both cases
// the partial file has been removed and destination is untouched.
func (d *HTTPDownloader) FetchTo(ctx context.Context, c catalog.Candidate, destination string) (bool, error) {
	logger := logctx.LoggerFromContext(ctx).With("source_id", c.SourceID, "destination", destination)

	if err := d.Validate(c); err != nil {
		logger.DebugContext(ctx, "rejected candidate", "err", err)

		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Locator, nil)
	if err != nil {
		return false, &InvalidSourceError{SourceID: c.SourceID, Locator: c.Locator, Reason: err.Error()}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return false, &TransferError{SourceID: c.SourceID, Operation: "request", Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if err := checkResponse(c, resp); err != nil {
		return false, err
	}

	if err := ensureTargetDir(destination, logger); err != nil {
		return false, err
	}

	partPath := destination + PartialSuffix

	out, err := os.Create(partPath)
	if err != nil {
		return false, &DestinationError{Path: destination, Reason: "cannot create temporary file", Err: err}
	}

	written, copyErr := d.writeFile(ctx, out, resp.Body, c, resp.ContentLength)
	closeErr := out.Close()

	switch {
	case copyErr != nil:
		removePartial(ctx, partPath)

		return false, &TransferError{SourceID: c.SourceID, Operation: "copy", Message: copyErr.Error(), Err: copyErr}
	case closeErr != nil:
		removePartial(ctx, partPath)

		return false, &DestinationError{Path: destination, Reason: "cannot flush temporary file", Err: closeErr}
	case resp.ContentLength >= 0 && written != resp.ContentLength:
		removePartial(ctx, partPath)

		return false, &TransferError{
			SourceID:  c.SourceID,
			Operation: "verify_length",
			Message:   fmt.Sprintf("received %d of %d bytes", written, resp.ContentLength),
			Err:       io.ErrUnexpectedEOF,
		}
	}

	if err := os.Rename(partPath, destination); err != nil {
		removePartial(ctx, partPath)

		return false, &DestinationError{Path: destination, Reason: "cannot move file into place", Err: err}
	}

	logger.InfoContext(ctx, "downloaded and saved file", "size", humanize.Bytes(uint64(written)))

	return true, nil
}

// checkResponse maps HTTP statuses onto candidate outcomes. Client errors mean the source
// refused this locator; 408 and 429 are transient and treated like server errors.
func checkResponse(c catalog.Candidate, resp *http.Response) error {
	code := resp.StatusCode

	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return &TransferError{SourceID: c.SourceID, Operation: "request", StatusCode: code, Message: resp.Status}
	case code >= 400:
		return &InvalidSourceError{SourceID: c.SourceID, Locator: c.Locator, Reason: resp.Status}
	default:
		return &TransferError{SourceID: c.SourceID, Operation: "request", StatusCode: code, Message: "unexpected status " + resp.Status}
	}
}

func (d *HTTPDownloader) writeFile(ctx context.Context, out io.Writer, body io.Reader, c catalog.Candidate, totalBytes int64) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	if totalBytes > 0 {
		logger.DebugContext(ctx, "downloading file", "source_id", c.SourceID, "file_size", humanize.Bytes(uint64(totalBytes)))
	}

	progressCb := func(written int64, total int64) {
		if total > 0 {
			logger.DebugContext(ctx, "download progress",
				"source_id", c.SourceID,
				"downloaded", humanize.Bytes(uint64(written)),
				"total", humanize.Bytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(written)*100/float64(total), 2))
		} else {
			logger.DebugContext(ctx, "download progress", "source_id", c.SourceID, "downloaded", humanize.Bytes(uint64(written)))
		}
	}

	pr := progress.NewReader(body, totalBytes, progressInterval, progressCb)

	if d.progressOut == nil {
		written, err := io.Copy(out, pr)
		d.telemetry.AddDownloadedBytes(ctx, written)

		if err != nil {
			return written, fmt.Errorf("failed to copy file: %w", err)
		}

		return written, nil
	}

	bar := newProgressBar(d.progressOut, totalBytes, c.SourceID)

	written, err := io.Copy(io.MultiWriter(out, bar), pr)
	d.telemetry.AddDownloadedBytes(ctx, written)

	if err != nil {
		_ = bar.Clear()

		return written, fmt.Errorf("failed to copy file: %w", err)
	}

	_ = bar.Finish()

	return written, nil
}

func ensureTargetDir(targetPath string, logger *slog.Logger) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		logger.Error("failed to create target directory", "dir", dir, "err", err)

		return &DestinationError{Path: targetPath, Reason: "cannot create directory", Err: err}
	}

	return nil
}

func removePartial(ctx context.Context, partPath string) {
	if err := os.Remove(partPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to remove partial file", "path", partPath, "err", err)
	}
}
