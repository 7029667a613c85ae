package downloader

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Option configures an HTTPDownloader.
type Option func(*HTTPDownloader)

// WithProgressBar draws a transfer progress bar on w while a candidate is being fetched. Only
// useful when clips are fetched one at a time.
func WithProgressBar(w io.Writer) Option {
	return func(d *HTTPDownloader) {
		d.progressOut = w
	}
}

// newProgressBar returns a bar for a transfer of total bytes; total <= 0 draws a spinner.
func newProgressBar(w io.Writer, total int64, description string) *progressbar.ProgressBar {
	if total <= 0 {
		total = -1
	}

	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSpinnerType(14),
	)
}
