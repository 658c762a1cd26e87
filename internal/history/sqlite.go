package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/tails/internal/foundation/errors"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens the database at dbPath, creating it when needed.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "could not create history directory").
				WithContext("path", dbPath).
				Build()
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "could not open history database").
			WithContext("path", dbPath).
			Build()
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		path TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_history_build_id ON history(build_id);
	CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a record. A zero Timestamp is set to now.
func (s *SQLiteStore) Append(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	if r.Metadata != nil {
		var err error
		if metadataJSON, err = json.Marshal(r.Metadata); err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO history (build_id, kind, path, outcome, duration_ms, timestamp, metadata) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.BuildID, string(r.Kind), r.Path, r.Outcome, r.Duration.Milliseconds(), r.Timestamp.UnixMilli(), metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, build_id, kind, path, outcome, duration_ms, timestamp, metadata FROM history ORDER BY id DESC LIMIT ?",
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *SQLiteStore) ByBuild(ctx context.Context, buildID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, build_id, kind, path, outcome, duration_ms, timestamp, metadata FROM history WHERE build_id = ? ORDER BY id",
		buildID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var kind string
		var durationMS, tsMS int64
		var metadataJSON []byte

		if err := rows.Scan(&r.ID, &r.BuildID, &kind, &r.Path, &r.Outcome, &durationMS, &tsMS, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Kind = Kind(kind)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.Timestamp = time.UnixMilli(tsMS)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
