package cleanup

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/italolelis/course_downloader/internal/logctx"
)

// DeletePartialFiles removes files under dir that end in suffix and were last modified more
// than olderThan ago. They are leftovers of interrupted runs; younger ones may belong to a run
// that is still writing. It returns the number of files removed.
func DeletePartialFiles(ctx context.Context, dir, suffix string, olderThan time.Duration) (int, error) {
	if suffix == "" {
		return 0, errors.New("partial file suffix must not be empty")
	}

	logger := logctx.LoggerFromContext(ctx)
	cutoff := time.Now().Add(-olderThan)
	removed := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil // already deleted
			}

			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if info.ModTime().After(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.ErrorContext(ctx, "failed to delete partial file", "file", path, "err", err)

			return err
		}

		logger.InfoContext(ctx, "deleted stale partial file", "file", path, "modified_at", info.ModTime())
		removed++

		return nil
	})

	return removed, err
}
