package store

import (
	"database/sql"
	"strconv"
)

// State keys.
const (
	KeyLastScanTime   = "last_application_search_time"
	KeyLegacyImported = "legacy_run_index_imported"
)

// GetState returns the value stored under key and whether it exists.
func (db *DB) GetState(key string) (string, bool, error) {
	var value string
	err := db.QueryRow("SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, &Error{Op: "get state " + key, Err: err}
	}
	return value, true, nil
}

// SetState stores value under key, replacing any previous value.
func (db *DB) SetState(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, db.now())
	if err != nil {
		return &Error{Op: "set state " + key, Err: err}
	}
	return nil
}

// GetLastScanTime returns the unix time of the last full scan, 0 if none.
// An unparsable stored value also reads as 0 so that a rescan happens.
func (db *DB) GetLastScanTime() (int64, error) {
	value, ok, err := db.GetState(KeyLastScanTime)
	if err != nil || !ok {
		return 0, err
	}
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, nil
	}
	return ts, nil
}

// SetLastScanTime records the unix time of a completed full scan.
func (db *DB) SetLastScanTime(ts int64) error {
	return db.SetState(KeyLastScanTime, strconv.FormatInt(ts, 10))
}
