package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/italolelis/course_downloader/internal/storage"
)

const selectColumns = `course_name, course_id, module_id, clip_id, clip_title, file_path, source_id,
	status, attempts, updated_at, locked_by`

type DownloadRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDownloadRepository(dbConn *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: dbConn, now: time.Now}
}

func (r *DownloadRepository) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}

func (r *DownloadRepository) GetDownloads(ctx context.Context) ([]storage.ClipRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM clip_downloads ORDER BY course_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (r *DownloadRepository) GetFailed(ctx context.Context, courseName string) ([]storage.ClipRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+`
		FROM clip_downloads
		WHERE course_name = ?
		AND status IN (?, ?, ?)
		ORDER BY id`,
		courseName, storage.StatusFailed, storage.StatusNotFound, storage.StatusAborted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ClaimClip inserts or takes over the clip row unless another run holds a fresh claim on it.
func (r *DownloadRepository) ClaimClip(ctx context.Context, rec storage.ClipRecord, runID string, staleAfter time.Duration) (bool, error) {
	staleBefore := r.now().Add(-staleAfter).UTC().Format(time.RFC3339)

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO clip_downloads (course_name, course_id, module_id, clip_id, clip_title, file_path, status, updated_at, locked_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(course_name, clip_id) DO UPDATE SET
			status = excluded.status,
			course_id = excluded.course_id,
			module_id = excluded.module_id,
			clip_title = excluded.clip_title,
			file_path = excluded.file_path,
			updated_at = excluded.updated_at,
			locked_by = excluded.locked_by
		WHERE clip_downloads.status != ?
		OR clip_downloads.locked_by IS NULL
		OR clip_downloads.locked_by = excluded.locked_by
		OR clip_downloads.updated_at < ?
	`,
		rec.CourseName, rec.CourseID, rec.ModuleID, rec.ClipID, rec.ClipTitle, rec.FilePath,
		storage.StatusDownloading, r.timestamp(), runID,
		storage.StatusDownloading, staleBefore,
	)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *DownloadRepository) RecordResult(ctx context.Context, rec storage.ClipRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clip_downloads (course_name, course_id, module_id, clip_id, clip_title, file_path, source_id, status, attempts, updated_at, locked_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(course_name, clip_id) DO UPDATE SET
			course_id = excluded.course_id,
			module_id = excluded.module_id,
			clip_title = excluded.clip_title,
			file_path = excluded.file_path,
			source_id = excluded.source_id,
			status = excluded.status,
			attempts = excluded.attempts,
			updated_at = excluded.updated_at,
			locked_by = NULL
	`,
		rec.CourseName, rec.CourseID, rec.ModuleID, rec.ClipID, rec.ClipTitle, rec.FilePath,
		nullString(rec.SourceID), rec.Status, rec.Attempts, r.timestamp(),
	)

	return err
}

func scanRecords(rows *sql.Rows) ([]storage.ClipRecord, error) {
	var records []storage.ClipRecord

	for rows.Next() {
		var record storage.ClipRecord

		var courseID, moduleID, title, path, source, updatedAt, lockedBy sql.NullString

		err := rows.Scan(&record.CourseName, &courseID, &moduleID, &record.ClipID, &title, &path, &source,
			&record.Status, &record.Attempts, &updatedAt, &lockedBy)
		if err != nil {
			return nil, err
		}

		record.CourseID = courseID.String
		record.ModuleID = moduleID.String
		record.ClipTitle = title.String
		record.FilePath = path.String
		record.SourceID = source.String
		record.LockedBy = lockedBy.String

		if updatedAt.Valid {
			if t, err := time.Parse(time.RFC3339, updatedAt.String); err == nil {
				record.UpdatedAt = t
			}
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
