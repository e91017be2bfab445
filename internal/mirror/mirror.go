// Package mirror copies the final catalog into a SQLite database.
package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"catalogcrawler/internal/catalog"
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
  key TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  uris TEXT NOT NULL,
  file_size TEXT NOT NULL,
  upload_date TEXT,
  run_id TEXT NOT NULL,
  synced_at TEXT NOT NULL
);`

// Open opens the database at path, creating its directory and schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}

// Export upserts entries keyed by normalized title and deletes rows that
// were not part of this export, all in one transaction.
func Export(ctx context.Context, db *sql.DB, runID string, entries []catalog.Entry, now time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO downloads (key, title, uris, file_size, upload_date, run_id, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		  title = excluded.title,
		  uris = excluded.uris,
		  file_size = excluded.file_size,
		  upload_date = excluded.upload_date,
		  run_id = excluded.run_id,
		  synced_at = excluded.synced_at
	`)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	synced := now.UTC().Format(time.RFC3339)
	for _, entry := range entries {
		urisJSON, err := json.Marshal(entry.URIs)
		if err != nil {
			return fmt.Errorf("marshal uris for %q: %w", entry.Title, err)
		}

		var uploaded sql.NullString
		if entry.UploadDate.Present() {
			uploaded = sql.NullString{String: entry.UploadDate.Format(time.RFC3339), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, entry.Key(), entry.Title, string(urisJSON), entry.FileSize, uploaded, runID, synced); err != nil {
			return fmt.Errorf("exec upsert for %q: %w", entry.Title, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM downloads WHERE run_id <> ?`, runID); err != nil {
		return fmt.Errorf("prune stale rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Sync opens path, exports entries and closes the database.
func Sync(ctx context.Context, path, runID string, entries []catalog.Entry, now time.Time) error {
	db, err := Open(ctx, path)
	if err != nil {
		return err
	}

	if err := Export(ctx, db, runID, entries, now); err != nil {
		_ = db.Close()

		return err
	}

	return db.Close()
}
