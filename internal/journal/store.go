package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// Store keeps msgpack-encoded items in SQLite, each associated with the
// file path it belongs to. Items of one path are returned newest first.
type Store[T any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewStore opens (or creates) the database at dbPath.
func NewStore[T any](dbPath string) (*Store[T], error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA auto_vacuum=INCREMENTAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL,
			value BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_data_key ON data(key);

		CREATE TABLE IF NOT EXISTS files (
			file_path TEXT NOT NULL,
			data_id INTEGER NOT NULL,
			PRIMARY KEY (file_path, data_id),
			FOREIGN KEY (data_id) REFERENCES data(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_files_path ON files(file_path);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return &Store[T]{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// SaveItem stores item under key and associates it with filePath.
func (s *Store[T]) SaveItem(filePath, key string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := msgpack.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.Exec("INSERT INTO data (key, value) VALUES (?, ?)", key, data)
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}

	dataID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO files (file_path, data_id) VALUES (?, ?)", filePath, dataID); err != nil {
		return fmt.Errorf("failed to save file association: %w", err)
	}

	return tx.Commit()
}

// GetValues returns all items stored under key, newest first.
func (s *Store[T]) GetValues(key string) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT value FROM data WHERE key = ? ORDER BY id DESC", key)
	if err != nil {
		return nil, fmt.Errorf("failed to query data: %w", err)
	}
	return scanItems[T](rows)
}

// GetValuesByPath returns up to limit items of filePath, newest first.
// A limit <= 0 returns everything.
func (s *Store[T]) GetValuesByPath(filePath string, limit int) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`
		SELECT d.value FROM data d
		INNER JOIN files f ON d.id = f.data_id
		WHERE f.file_path = ?
		ORDER BY d.id DESC
		LIMIT ?
	`, filePath, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query data: %w", err)
	}
	return scanItems[T](rows)
}

// Prune keeps only the newest keep items of filePath.
func (s *Store[T]) Prune(filePath string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		DELETE FROM data WHERE id IN (
			SELECT data_id FROM files
			WHERE file_path = ?
			ORDER BY data_id DESC
			LIMIT -1 OFFSET ?
		)
	`, filePath, keep)
	if err != nil {
		return fmt.Errorf("failed to prune %s: %w", filePath, err)
	}
	return nil
}

// DeletePath removes the items of filePath. Their file rows follow
// through the foreign key cascade.
func (s *Store[T]) DeletePath(filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM data WHERE id IN (SELECT data_id FROM files WHERE file_path = ?)", filePath)
	if err != nil {
		return fmt.Errorf("failed to delete items of %s: %w", filePath, err)
	}
	return nil
}

// Clear removes everything.
func (s *Store[T]) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM files; DELETE FROM data;"); err != nil {
		return err
	}

	_, err := s.db.Exec("PRAGMA incremental_vacuum")
	return err
}

// Close checkpoints the WAL and closes the database.
func (s *Store[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.db.Exec("PRAGMA optimize")
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")

	return s.db.Close()
}

func scanItems[T any](rows *sql.Rows) ([]T, error) {
	defer func() { _ = rows.Close() }()

	items := []T{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(data) == 0 {
			continue
		}

		var item T
		if err := msgpack.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}
