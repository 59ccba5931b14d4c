// Package db provides SQLite storage for mailscheduler.
package db

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection for mailscheduler operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) a mailscheduler database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// GenID generates a random 16-character hex ID.
func GenID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// Now returns the current time as an ISO 8601 string.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// FormatTime renders t in the storage format used for all date columns.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime parses a stored date column value.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// DiscoverDB finds the mailscheduler database by walking up from cwd.
// Returns the path to .mailscheduler/scheduler.db or empty string if not found.
func DiscoverDB() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".mailscheduler", "scheduler.db")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// --- Settings operations ---

// GetSetting returns the stored value for key, or "" if unset.
func (d *DB) GetSetting(key string) string {
	var v string
	d.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	return v
}

// SetSetting stores a key/value pair, replacing any previous value.
func (d *DB) SetSetting(key, value string) error {
	_, err := d.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// Underlying returns the raw sql.DB connection.
func (d *DB) Underlying() *sql.DB {
	return d.conn
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
