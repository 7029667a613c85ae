package sqlite

import (
	"database/sql"
	"fmt"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database at path and creates the clip_downloads table if it doesn't
// exist. Use ":memory:" for a throwaway database.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// ":memory:" databases live per connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS clip_downloads (
		id INTEGER PRIMARY KEY,
		course_name TEXT NOT NULL,
		course_id TEXT,
		module_id TEXT,
		clip_id TEXT NOT NULL,
		clip_title TEXT,
		file_path TEXT,
		source_id TEXT,
		status TEXT NOT NULL DEFAULT 'downloading',
		attempts INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT,
		locked_by TEXT,
		UNIQUE(course_name, clip_id)
	)`)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}
