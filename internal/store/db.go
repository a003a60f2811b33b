// Package store persists favorites and recently browsed paths in a
// local SQLite database.
package store

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/tannerhall/assetview/internal/debug"
)

type DB struct {
	conn       *sql.DB
	maxRecents int
}

// Open initializes the database connection and schema.
func Open(dbPath string, maxRecents int) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Performance Tuning
	// WAL mode allows simultaneous readers and writers
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, err
	}
	// Synchronous NORMAL is safe against app crashes, faster than FULL
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS favorites (
		path TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS recents (
		path TEXT PRIMARY KEY,
		visited_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	if maxRecents <= 0 {
		maxRecents = 50
	}
	return &DB{conn: db, maxRecents: maxRecents}, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Favorites returns favorite paths in insertion order.
func (d *DB) Favorites() ([]string, error) {
	rows, err := d.conn.Query("SELECT path FROM favorites ORDER BY created_at ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// AddFavorite stores a path; adding an existing favorite is a no-op.
func (d *DB) AddFavorite(path string) error {
	_, err := d.conn.Exec("INSERT OR IGNORE INTO favorites (path) VALUES (?)", path)
	if err != nil {
		debug.Log(debug.STORE, "AddFavorite %q: %v", path, err)
	}
	return err
}

// RemoveFavorite deletes a path from favorites.
func (d *DB) RemoveFavorite(path string) error {
	_, err := d.conn.Exec("DELETE FROM favorites WHERE path = ?", path)
	if err != nil {
		debug.Log(debug.STORE, "RemoveFavorite %q: %v", path, err)
	}
	return err
}

// TouchRecent records a visit to path and prunes history beyond the
// configured cap, oldest first.
func (d *DB) TouchRecent(path string) error {
	if _, err := d.conn.Exec(
		"INSERT INTO recents (path, visited_at) VALUES (?, CURRENT_TIMESTAMP) "+
			"ON CONFLICT(path) DO UPDATE SET visited_at = CURRENT_TIMESTAMP", path); err != nil {
		debug.Log(debug.STORE, "TouchRecent %q: %v", path, err)
		return err
	}
	_, err := d.conn.Exec(
		"DELETE FROM recents WHERE path NOT IN "+
			"(SELECT path FROM recents ORDER BY visited_at DESC, path DESC LIMIT ?)", d.maxRecents)
	return err
}

// Recents returns recently visited paths, most recent first.
func (d *DB) Recents() ([]string, error) {
	rows, err := d.conn.Query("SELECT path FROM recents ORDER BY visited_at DESC, path DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
