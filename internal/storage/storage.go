package storage

import (
	"context"
	"errors"
	"time"
)

// Clip download states.
const (
	StatusDownloading = "downloading"
	StatusDownloaded  = "downloaded"
	StatusFailed      = "failed"    // every candidate source was exhausted
	StatusNotFound    = "not_found" // the catalog offered no source
	StatusAborted     = "aborted"   // stopped by a destination fault or cancellation
)

var ErrClaimed = errors.New("clip is being downloaded by another run")

// ClipRecord is the download history of one clip of a course.
type ClipRecord struct {
	CourseName string
	CourseID   string
	ModuleID   string
	ClipID     string
	ClipTitle  string
	FilePath   string
	SourceID   string // the source that delivered the file, if any
	Status     string
	Attempts   int
	UpdatedAt  time.Time
	LockedBy   string
}

type DownloadReadRepository interface {
	GetDownloads(ctx context.Context) ([]ClipRecord, error)
	// GetFailed returns the clips of a course whose last run did not produce a file.
	GetFailed(ctx context.Context, courseName string) ([]ClipRecord, error)
}

type DownloadWriteRepository interface {
	// ClaimClip marks the clip as downloading by runID. It returns false when another run
	// holds a claim younger than staleAfter.
	ClaimClip(ctx context.Context, rec ClipRecord, runID string, staleAfter time.Duration) (bool, error)
	// RecordResult stores the outcome of a run and releases its claim.
	RecordResult(ctx context.Context, rec ClipRecord) error
}

type DownloadRepository interface {
	DownloadReadRepository
	DownloadWriteRepository
}
