package progress

import "io"

// Func receives the cumulative number of bytes read and the expected total (0 when unknown).
type Func func(read, total int64)

// Reader wraps an io.Reader and reports progress every interval bytes, and additionally each
// time another tenth of a known total has been read.
type Reader struct {
	r          io.Reader
	total      int64
	interval   int64
	onProgress Func

	read       int64
	sinceLast  int64
	lastDecile int64
}

func NewReader(r io.Reader, total, interval int64, onProgress Func) *Reader {
	return &Reader{
		r:          r,
		total:      total,
		interval:   interval,
		onProgress: onProgress,
	}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n <= 0 {
		return n, err
	}

	pr.read += int64(n)
	pr.sinceLast += int64(n)

	report := pr.interval > 0 && pr.sinceLast >= pr.interval

	if pr.total > 0 {
		if decile := pr.read * 10 / pr.total; decile > pr.lastDecile {
			pr.lastDecile = decile
			report = true
		}
	}

	if report && pr.onProgress != nil {
		pr.onProgress(pr.read, pr.total)
		pr.sinceLast = 0
	}

	return n, err
}

// BytesRead returns the number of bytes read so far.
func (pr *Reader) BytesRead() int64 {
	return pr.read
}
