package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to the launcher's SQLite database.
type DB struct {
	*sql.DB
	Path string

	// Now supplies timestamps for added_date, last_used and state rows.
	Now func() time.Time
}

// DefaultDBPath returns the default database path: <user cache>/ade/launchd.db
func DefaultDBPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("get cache dir: %w", err)
	}
	return filepath.Join(dir, "ade", "launchd.db"), nil
}

// Open opens (or creates) the SQLite database at the given path,
// configures pragmas, and runs migrations.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &Error{Op: "open", Err: fmt.Errorf("create db dir: %w", err)}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	return setup(sqlDB, path)
}

// OpenMemory opens an in-memory SQLite database for testing.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	return setup(sqlDB, ":memory:")
}

func setup(sqlDB *sql.DB, path string) (*DB, error) {
	// One connection: every statement is serialized and an in-memory
	// database stays the same database.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, Path: path, Now: time.Now}
	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, &Error{Op: "open", Err: err}
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, &Error{Op: "migrate", Err: err}
	}
	return db, nil
}

func (db *DB) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func (db *DB) now() int64 {
	if db.Now == nil {
		return time.Now().Unix()
	}
	return db.Now().Unix()
}
