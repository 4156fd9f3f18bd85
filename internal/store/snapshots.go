// Package store persists continuous memory snapshots in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"os4/internal/logging"
)

// ErrNotFound is returned for an unknown snapshot id.
var ErrNotFound = errors.New("snapshot not found")

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Assignment is a saved key assignment.
type Assignment struct {
	Key   uint8
	ROM   int
	Index int
}

// Snapshot is one saved state of continuous memory.
type Snapshot struct {
	ID        string
	CreatedAt time.Time
	Label     string
	Status    uint16
	// Memory is the raw register image of the buffer store.
	Memory []byte
	// Shells lists the shell stack from the top, by name.
	Shells      []string
	Assignments []Assignment
}

// Summary is a snapshot without its memory image.
type Summary struct {
	ID        string
	CreatedAt time.Time
	Label     string
	Registers int
}

// Store manages the snapshot database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Open creates or opens the snapshot database at path. MemoryPath gives a
// database that lives as long as the Store.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database is per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to enable foreign keys: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.Store("Snapshot store ready at %s", path)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		status INTEGER NOT NULL,
		memory BLOB NOT NULL,
		shells_json TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at);

	CREATE TABLE IF NOT EXISTS assignments (
		snapshot_id TEXT NOT NULL,
		key INTEGER NOT NULL,
		rom INTEGER NOT NULL,
		idx INTEGER NOT NULL,
		PRIMARY KEY (snapshot_id, key),
		FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save stores snap. An empty ID gets a fresh UUID and a zero CreatedAt the
// current time.
func (s *Store) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	if snap.Memory == nil {
		snap.Memory = []byte{}
	}
	shellsJSON, err := json.Marshal(snap.Shells)
	if err != nil {
		return fmt.Errorf("failed to encode shells: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO snapshots (id, created_at, label, status, memory, shells_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.CreatedAt, snap.Label, int(snap.Status), snap.Memory, string(shellsJSON)); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	for _, a := range snap.Assignments {
		if _, err := tx.Exec(`
			INSERT INTO assignments (snapshot_id, key, rom, idx) VALUES (?, ?, ?, ?)
		`, snap.ID, int(a.Key), a.ROM, a.Index); err != nil {
			return fmt.Errorf("failed to save assignment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	logging.StoreDebug("saved snapshot %s (%d bytes, %d assignments)", snap.ID, len(snap.Memory), len(snap.Assignments))
	return nil
}

// Get loads the snapshot with id.
func (s *Store) Get(id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(`WHERE id = ?`, id)
}

// Latest loads the most recent snapshot. It returns nil, nil when there is
// none.
func (s *Store) Latest() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, err := s.load(`ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return snap, err
}

func (s *Store) load(where string, args ...interface{}) (*Snapshot, error) {
	var snap Snapshot
	var status int
	var shellsJSON sql.NullString
	err := s.db.QueryRow(`
		SELECT id, created_at, label, status, memory, shells_json FROM snapshots `+where,
		args...).Scan(&snap.ID, &snap.CreatedAt, &snap.Label, &status, &snap.Memory, &shellsJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	snap.Status = uint16(status)
	if shellsJSON.Valid {
		if err := json.Unmarshal([]byte(shellsJSON.String), &snap.Shells); err != nil {
			return nil, fmt.Errorf("snapshot %s: bad shell list: %w", snap.ID, err)
		}
	}

	rows, err := s.db.Query(`
		SELECT key, rom, idx FROM assignments WHERE snapshot_id = ? ORDER BY key
	`, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a Assignment
		var key int
		if err := rows.Scan(&key, &a.ROM, &a.Index); err != nil {
			return nil, err
		}
		a.Key = uint8(key)
		snap.Assignments = append(snap.Assignments, a)
	}
	return &snap, rows.Err()
}

// List returns up to limit snapshot summaries, newest first. limit <= 0
// lists all.
func (s *Store) List(limit int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, created_at, label, length(memory) FROM snapshots
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var size int
		if err := rows.Scan(&sum.ID, &sum.CreatedAt, &sum.Label, &size); err != nil {
			return nil, err
		}
		sum.Registers = size / 7
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes a snapshot and its assignments.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM assignments WHERE snapshot_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete assignments: %w", err)
	}
	res, err := s.db.Exec(`DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// Prune keeps the newest keep snapshots and deletes the rest.
func (s *Store) Prune(keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	if _, err := s.db.Exec(`
		DELETE FROM assignments WHERE snapshot_id NOT IN (SELECT id FROM snapshots)
	`); err != nil {
		return int(n), fmt.Errorf("failed to prune assignments: %w", err)
	}
	if n > 0 {
		logging.StoreDebug("pruned %d snapshot(s)", n)
	}
	return int(n), nil
}
