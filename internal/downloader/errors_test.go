package downloader

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidSourceError_Error(t *testing.T) {
	err := &InvalidSourceError{
		SourceID: "akamai",
		Locator:  "ftp://cdn/clip.mp4",
		Reason:   "unsupported scheme \"ftp\"",
	}

	assert.Equal(t, `invalid source akamai (ftp://cdn/clip.mp4): unsupported scheme "ftp"`, err.Error())
}

func TestTransferError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *TransferError
		want string
	}{
		{
			name: "with HTTP status code",
			err: &TransferError{
				SourceID:   "fastly",
				Operation:  "request",
				StatusCode: 503,
				Message:    "503 Service Unavailable",
			},
			want: "transfer error from fastly during request (HTTP 503): 503 Service Unavailable",
		},
		{
			name: "without HTTP status code",
			err: &TransferError{
				SourceID:  "fastly",
				Operation: "copy",
				Message:   "unexpected EOF",
			},
			want: "transfer error from fastly during copy: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestDestinationError_Error(t *testing.T) {
	err := &DestinationError{Path: "/out/course/1. intro/1. hello.mp4", Reason: "cannot create directory"}

	assert.Equal(t, "destination error for '/out/course/1. intro/1. hello.mp4': cannot create directory", err.Error())
}

func TestErrorUnwrapping(t *testing.T) {
	t.Run("transfer error unwraps cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		wrapped := fmt.Errorf("fetch: %w", &TransferError{SourceID: "a", Operation: "copy", Err: cause})

		var transferErr *TransferError
		require.ErrorAs(t, wrapped, &transferErr)
		assert.Equal(t, "copy", transferErr.Operation)
		assert.ErrorIs(t, wrapped, cause)
	})

	t.Run("destination error unwraps cause", func(t *testing.T) {
		wrapped := fmt.Errorf("fetch: %w", &DestinationError{Path: "/x", Reason: "denied", Err: os.ErrPermission})

		var destErr *DestinationError
		require.ErrorAs(t, wrapped, &destErr)
		assert.ErrorIs(t, wrapped, os.ErrPermission)
	})

	t.Run("types do not cross match", func(t *testing.T) {
		err := error(&TransferError{SourceID: "a", Operation: "request"})

		var destErr *DestinationError
		assert.False(t, errors.As(err, &destErr))
	})
}
