package progress

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_ReportsByInterval(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 100)

	var reports []int64

	pr := NewReader(bytes.NewReader(data), 0, 30, func(read, total int64) {
		assert.Zero(t, total)
		reports = append(reports, read)
	})

	buf := make([]byte, 10)
	for {
		_, err := pr.Read(buf)
		if err == io.EOF {
			break
		}

		require.NoError(t, err)
	}

	assert.Equal(t, []int64{30, 60, 90}, reports)
	assert.Equal(t, int64(100), pr.BytesRead())
}

func TestReader_ReportsByDecile(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 100)

	var reports []int64

	pr := NewReader(bytes.NewReader(data), int64(len(data)), 0, func(read, total int64) {
		assert.Equal(t, int64(100), total)
		reports = append(reports, read)
	})

	buf := make([]byte, 25)
	_, err := io.CopyBuffer(struct{ io.Writer }{io.Discard}, pr, buf)
	require.NoError(t, err)

	assert.Equal(t, []int64{25, 50, 75, 100}, reports)
}

func TestReader_NilCallback(t *testing.T) {
	pr := NewReader(bytes.NewReader([]byte("hello")), 5, 1, nil)

	out, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}
