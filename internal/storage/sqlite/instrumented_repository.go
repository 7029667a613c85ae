package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/italolelis/course_downloader/internal/storage"
	"github.com/italolelis/course_downloader/internal/telemetry"
)

// InstrumentedDownloadRepository wraps DownloadRepository with telemetry.
type InstrumentedDownloadRepository struct {
	repo      *DownloadRepository
	telemetry *telemetry.Telemetry
}

// NewInstrumentedDownloadRepository creates a new instrumented download repository.
func NewInstrumentedDownloadRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedDownloadRepository {
	return &InstrumentedDownloadRepository{
		repo:      NewDownloadRepository(dbConn),
		telemetry: tel,
	}
}

// GetDownloads retrieves all clip records with telemetry.
func (r *InstrumentedDownloadRepository) GetDownloads(ctx context.Context) ([]storage.ClipRecord, error) {
	var result []storage.ClipRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "get_downloads", func(ctx context.Context) error {
		var err error

		result, err = r.repo.GetDownloads(ctx)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetFailed retrieves the failed clips of a course with telemetry.
func (r *InstrumentedDownloadRepository) GetFailed(ctx context.Context, courseName string) ([]storage.ClipRecord, error) {
	var result []storage.ClipRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "get_failed", func(ctx context.Context) error {
		var err error

		result, err = r.repo.GetFailed(ctx, courseName)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ClaimClip claims a clip with telemetry.
func (r *InstrumentedDownloadRepository) ClaimClip(ctx context.Context, rec storage.ClipRecord, runID string, staleAfter time.Duration) (bool, error) {
	var claimed bool

	err := r.telemetry.InstrumentDBOperation(ctx, "claim_clip", func(ctx context.Context) error {
		var err error

		claimed, err = r.repo.ClaimClip(ctx, rec, runID, staleAfter)

		return err
	})
	if err != nil {
		return false, err
	}

	return claimed, nil
}

// RecordResult stores a clip outcome with telemetry.
func (r *InstrumentedDownloadRepository) RecordResult(ctx context.Context, rec storage.ClipRecord) error {
	return r.telemetry.InstrumentDBOperation(ctx, "record_result", func(ctx context.Context) error {
		return r.repo.RecordResult(ctx, rec)
	})
}
