package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/0xADE/ade-launchd/internal/apps"
)

// Statement sizes for bulk reconcile writes, kept well below SQLite's
// bound-parameter limit.
const (
	deleteChunkSize = 500
	insertChunkSize = 150
)

// Record is a persisted application row.
type Record struct {
	AppID      string
	Name       string
	Path       string
	UsageCount int64
	LastUsed   *int64 // nil until the first launch
	AddedDate  int64
}

// Application converts the record into a working-set entry with no
// session-only fields filled in.
func (r Record) Application() apps.Application {
	app := apps.New(r.Name, r.AppID, r.Path)
	app.UsageCount = r.UsageCount
	app.AddedDate = r.AddedDate
	if r.LastUsed != nil {
		app.LastUsed = *r.LastUsed
	}
	return app
}

// GetAll returns every persisted application ordered by app_id.
func (db *DB) GetAll() ([]Record, error) {
	rows, err := db.Query(`
		SELECT app_id, name, path, usage_count, last_used, added_date
		FROM applications ORDER BY app_id
	`)
	if err != nil {
		return nil, &Error{Op: "get all", Err: err}
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.AppID, &r.Name, &r.Path, &r.UsageCount, &r.LastUsed, &r.AddedDate); err != nil {
			return nil, &Error{Op: "get all", Err: err}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "get all", Err: err}
	}
	return records, nil
}

// Get returns one record, or nil when appID is unknown.
func (db *DB) Get(appID string) (*Record, error) {
	var r Record
	err := db.QueryRow(`
		SELECT app_id, name, path, usage_count, last_used, added_date
		FROM applications WHERE app_id = ?
	`, appID).Scan(&r.AppID, &r.Name, &r.Path, &r.UsageCount, &r.LastUsed, &r.AddedDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Op: "get", Err: err}
	}
	return &r, nil
}

// Count returns the number of persisted applications.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM applications").Scan(&n); err != nil {
		return 0, &Error{Op: "count", Err: err}
	}
	return n, nil
}

// Reconcile makes the applications table match candidates. Rows whose app_id
// is still present are left untouched, rows no longer present are deleted
// and the remaining candidates are inserted with zero usage. Only the newly
// inserted records are returned, in candidate order. When a scan yields the
// same app_id twice the first occurrence wins.
//
// All writes happen in one transaction; on error nothing is changed.
func (db *DB) Reconcile(candidates []apps.Application) ([]Record, error) {
	pending := make(map[string]int, len(candidates))
	for i, c := range candidates {
		if c.AppID == "" {
			continue
		}
		if _, seen := pending[c.AppID]; !seen {
			pending[c.AppID] = i
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, &Error{Op: "reconcile", Err: err}
	}
	defer tx.Rollback()

	stale, err := diffPersisted(tx, pending)
	if err != nil {
		return nil, &Error{Op: "reconcile", Err: err}
	}

	now := db.now()
	added := make([]Record, 0, len(pending))
	for i, c := range candidates {
		if idx, ok := pending[c.AppID]; ok && idx == i {
			added = append(added, Record{
				AppID:     c.AppID,
				Name:      c.Name,
				Path:      c.Path,
				AddedDate: now,
			})
		}
	}

	if err := deleteApplications(tx, stale); err != nil {
		return nil, &Error{Op: "reconcile", Err: err}
	}
	if err := insertApplications(tx, added); err != nil {
		return nil, &Error{Op: "reconcile", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, &Error{Op: "reconcile", Err: err}
	}
	return added, nil
}

// diffPersisted streams persisted ids, removing survivors from pending and
// returning the ids that are gone.
func diffPersisted(tx *sql.Tx, pending map[string]int) ([]string, error) {
	rows, err := tx.Query("SELECT app_id FROM applications")
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		if _, ok := pending[id]; ok {
			delete(pending, id)
			continue
		}
		stale = append(stale, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	return stale, nil
}

func deleteApplications(tx *sql.Tx, ids []string) error {
	for start := 0; start < len(ids); start += deleteChunkSize {
		chunk := ids[start:min(start+deleteChunkSize, len(ids))]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := "DELETE FROM applications WHERE app_id IN (" + placeholders(len(chunk), "?") + ")"
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("delete applications: %w", err)
		}
	}
	return nil
}

func insertApplications(tx *sql.Tx, records []Record) error {
	for start := 0; start < len(records); start += insertChunkSize {
		chunk := records[start:min(start+insertChunkSize, len(records))]
		args := make([]any, 0, len(chunk)*4)
		for _, r := range chunk {
			args = append(args, r.AppID, r.Name, r.Path, r.AddedDate)
		}
		query := "INSERT INTO applications (app_id, name, path, added_date) VALUES " +
			placeholders(len(chunk), "(?, ?, ?, ?)")
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("insert applications: %w", err)
		}
	}
	return nil
}

func placeholders(n int, group string) string {
	return strings.TrimSuffix(strings.Repeat(group+", ", n), ", ")
}

// RecordLaunch increments usage_count and sets last_used to now. An empty or
// unknown appID is not an error.
func (db *DB) RecordLaunch(appID string) error {
	if appID == "" {
		return nil
	}
	_, err := db.Exec(`
		UPDATE applications SET usage_count = usage_count + 1, last_used = ?
		WHERE app_id = ?
	`, db.now(), appID)
	if err != nil {
		return &Error{Op: "record launch", Err: err}
	}
	return nil
}

// ImportUsage adds counts to the usage of applications matched by app_id or
// path. It returns how many rows were updated.
func (db *DB) ImportUsage(counts map[string]int64) (int, error) {
	if len(counts) == 0 {
		return 0, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, &Error{Op: "import usage", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE applications SET usage_count = usage_count + ?
		WHERE app_id = ? OR path = ?
	`)
	if err != nil {
		return 0, &Error{Op: "import usage", Err: err}
	}
	defer stmt.Close()

	var updated int
	for key, count := range counts {
		if key == "" || count <= 0 {
			continue
		}
		result, err := stmt.Exec(count, key, key)
		if err != nil {
			return 0, &Error{Op: "import usage", Err: err}
		}
		n, _ := result.RowsAffected()
		updated += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, &Error{Op: "import usage", Err: err}
	}
	return updated, nil
}
