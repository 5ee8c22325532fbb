// Package state persists run history in a local sqlite database.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/surge-downloader/m3u8dl/internal/engine/types"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

var (
	dbMu   sync.Mutex
	db     *sql.DB
	dbPath string
)

// ErrNotFound is returned when no run matches an id
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	output      TEXT NOT NULL DEFAULT '',
	cache_dir   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	segments    INTEGER NOT NULL DEFAULT 0,
	fetched     INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	bytes       INTEGER NOT NULL DEFAULT 0,
	mime        TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS runs_started ON runs(started_at);
`

// Configure sets the database file. Any open handle is closed so the next call reopens it.
func Configure(path string) {
	dbMu.Lock()
	defer dbMu.Unlock()
	if db != nil {
		_ = db.Close()
		db = nil
	}
	dbPath = path
}

// GetDB returns the shared handle, opening and migrating it on first use
func GetDB() (*sql.DB, error) {
	dbMu.Lock()
	defer dbMu.Unlock()
	if db != nil {
		return db, nil
	}
	if dbPath == "" {
		return nil, errors.New("history database not configured")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	handle, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	handle.SetMaxOpenConns(1)
	if _, err := handle.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("configure history db: %w", err)
	}
	if _, err := handle.Exec(schema); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	utils.Debug("History DB opened at %s", dbPath)
	db = handle
	return db, nil
}

// CloseDB closes the shared handle if it is open
func CloseDB() {
	dbMu.Lock()
	defer dbMu.Unlock()
	if db != nil {
		if err := db.Close(); err != nil {
			utils.Debug("Closing history db: %v", err)
		}
		db = nil
	}
}

// AddRun inserts a new run row
func AddRun(e types.RunEntry) error {
	d, err := GetDB()
	if err != nil {
		return err
	}
	if e.StartedAt == 0 {
		e.StartedAt = time.Now().Unix()
	}
	if e.Status == "" {
		e.Status = types.RunStatusRunning
	}
	_, err = d.Exec(`INSERT INTO runs (id, url, output, cache_dir, status, segments, fetched, skipped, bytes, mime, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.URL, e.Output, e.CacheDir, e.Status, e.Segments, e.Fetched, e.Skipped, e.Bytes, e.MIME, e.Error, e.StartedAt, e.FinishedAt)
	if err != nil {
		return fmt.Errorf("add run %s: %w", e.ID, err)
	}
	return nil
}

// FinishRun records the outcome of a run
func FinishRun(e types.RunEntry) error {
	d, err := GetDB()
	if err != nil {
		return err
	}
	if e.FinishedAt == 0 {
		e.FinishedAt = time.Now().Unix()
	}
	res, err := d.Exec(`UPDATE runs SET status = ?, segments = ?, fetched = ?, skipped = ?, bytes = ?, mime = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		e.Status, e.Segments, e.Fetched, e.Skipped, e.Bytes, e.MIME, e.Error, e.FinishedAt, e.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", e.ID, ErrNotFound)
	}
	return nil
}

const selectRuns = `SELECT id, url, output, cache_dir, status, segments, fetched, skipped, bytes, mime, error, started_at, finished_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (types.RunEntry, error) {
	var e types.RunEntry
	err := s.Scan(&e.ID, &e.URL, &e.Output, &e.CacheDir, &e.Status, &e.Segments, &e.Fetched, &e.Skipped, &e.Bytes, &e.MIME, &e.Error, &e.StartedAt, &e.FinishedAt)
	return e, err
}

// ListRuns returns runs, newest first. limit <= 0 returns all.
func ListRuns(limit int) ([]types.RunEntry, error) {
	d, err := GetDB()
	if err != nil {
		return nil, err
	}
	q := selectRuns + ` ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := d.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	runs := []types.RunEntry{}
	for rows.Next() {
		e, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, e)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given id or unique id prefix
func GetRun(idOrPrefix string) (*types.RunEntry, error) {
	id, err := ResolveRunID(idOrPrefix)
	if err != nil {
		return nil, err
	}
	d, err := GetDB()
	if err != nil {
		return nil, err
	}
	e, err := scanRun(d.QueryRow(selectRuns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", idOrPrefix, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ResolveRunID expands a unique id prefix to the full id
func ResolveRunID(partialID string) (string, error) {
	d, err := GetDB()
	if err != nil {
		return "", err
	}
	rows, err := d.Query(`SELECT id FROM runs WHERE id LIKE ? ESCAPE '\'`, escapeLike(partialID)+"%")
	if err != nil {
		return "", err
	}
	defer func() { _ = rows.Close() }()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		matches = append(matches, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s: %w", partialID, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous ID prefix '%s' matches %d runs", partialID, len(matches))
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
