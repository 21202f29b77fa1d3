// Package store is the import ledger: one sqlite row per camera file with a
// small state machine driven by claims, transitions and error backoff.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gpcam/internal/metrics"
	"gpcam/internal/model"

	_ "modernc.org/sqlite"
)

const timeFormat = "2006-01-02 15:04:05"

var now = time.Now

func stamp(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// Open opens the ledger at path and creates the schema if needed.
func Open(path string) (*sql.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InsertDiscovered adds f in DISCOVERED state. It reports false when the
// ledger already had the file.
func InsertDiscovered(db *sql.DB, f model.FileRow) (bool, error) {
	res, err := db.Exec(`
INSERT OR IGNORE INTO files (device_id, folder, name, staged_path, mime, size, state)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.DeviceID, f.Folder, f.Name, f.StagedPath, f.MIME, f.Size, string(model.StateDiscovered),
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if n == 1 {
		metrics.RecordTransition(string(model.StateDiscovered))
	}
	return n == 1, nil
}

// Seen reports whether the ledger knows folder/name on the device.
func Seen(db *sql.DB, deviceID, folder, name string) (bool, error) {
	var one int
	err := db.QueryRow(`SELECT 1 FROM files WHERE device_id=? AND folder=? AND name=?`, deviceID, folder, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

const columns = `id, device_id, folder, name, staged_path, mime, size, sha256, crc32c, state, attempts, last_error`

func scanRow(s interface{ Scan(...any) error }) (model.FileRow, error) {
	var f model.FileRow
	var stateStr string
	var crc32c int64
	if err := s.Scan(
		&f.ID, &f.DeviceID, &f.Folder, &f.Name, &f.StagedPath, &f.MIME, &f.Size, &f.SHA256, &crc32c, &stateStr, &f.Attempts, &f.LastError,
	); err != nil {
		return model.FileRow{}, err
	}
	f.CRC32C = uint32(crc32c)
	f.State = model.FileState(stateStr)
	return f, nil
}

// Get loads one row.
func Get(db *sql.DB, id int64) (model.FileRow, error) {
	return scanRow(db.QueryRow(`SELECT `+columns+` FROM files WHERE id=?`, id))
}

// FetchRunnable returns rows in state whose backoff has elapsed, oldest
// first. An empty deviceID matches every device.
func FetchRunnable(db *sql.DB, state model.FileState, deviceID string, limit int) ([]model.FileRow, error) {
	rows, err := db.Query(`
SELECT `+columns+`
FROM files
WHERE state = ? AND (? = '' OR device_id = ?) AND (next_run_at IS NULL OR next_run_at <= ?)
ORDER BY id
LIMIT ?
`, string(state), deviceID, deviceID, stamp(now()), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FileRow
	for rows.Next() {
		f, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Claim moves a row from one state into a working state under a lease. A
// row already in the working state can be taken over once its lease ran
// out.
func Claim(db *sql.DB, fileID int64, from, to model.FileState, claimedBy string, lease time.Duration) (bool, error) {
	t := now()
	res, err := db.Exec(`
UPDATE files
SET state = ?, claimed_by = ?, claim_until = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND (state = ? OR (state = ? AND (claim_until IS NULL OR claim_until < ?)))
`, string(to), claimedBy, stamp(t.Add(lease)), fileID, string(from), string(to), stamp(t),
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if n == 1 {
		metrics.RecordTransition(string(to))
	}
	return n == 1, nil
}

// Transition moves a file from one state to the next.
func Transition(db *sql.DB, fileID int64, from, to model.FileState) error {
	res, err := db.Exec(`
UPDATE files
SET state = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND state = ?
`, string(to), fileID, string(from))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return fmt.Errorf("transition %s -> %s failed for file=%d", from, to, fileID)
	}
	metrics.RecordTransition(string(to))
	return nil
}

// UpdateHashes records the digests of the staged copy.
func UpdateHashes(db *sql.DB, fileID int64, size int64, sha256 string, crc32c uint32) error {
	_, err := db.Exec(`
UPDATE files
SET size=?, sha256=?, crc32c=?, updated_at=CURRENT_TIMESTAMP
WHERE id=?`,
		size, sha256, int64(crc32c), fileID,
	)
	return err
}

// MarkErrorWithBackoff records cause and puts the row back into retry with
// an exponential delay of 2^attempts seconds, capped at 2^10.
func MarkErrorWithBackoff(db *sql.DB, fileID int64, retry model.FileState, cause error) error {
	var attempts int64
	if err := db.QueryRow(`SELECT attempts FROM files WHERE id=?`, fileID).Scan(&attempts); err != nil {
		return err
	}
	attempts++

	delay := time.Second * time.Duration(1<<min(attempts, 10))
	nextRun := stamp(now().Add(delay))

	msg := cause.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}

	_, err := db.Exec(`
UPDATE files
SET state = ?, attempts = ?, last_error = ?, next_run_at = ?, claimed_by = '', claim_until = NULL, updated_at = CURRENT_TIMESTAMP
WHERE id=?`,
		string(retry), attempts, msg, nextRun, fileID,
	)
	if err == nil {
		metrics.RecordTransition(string(model.StateError))
	}
	return err
}

// Counts returns the number of rows per state for one device, or for every
// device when deviceID is empty.
func Counts(db *sql.DB, deviceID string) (map[model.FileState]int, error) {
	rows, err := db.Query(`
SELECT state, COUNT(*) FROM files
WHERE ? = '' OR device_id = ?
GROUP BY state`, deviceID, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.FileState]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[model.FileState(s)] = n
	}
	return out, rows.Err()
}
