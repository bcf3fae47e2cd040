// Package journal records metadata about every analyzer run so that a
// misconfigured analyzer or package path can be diagnosed from the editor.
// It never stores analyzer output.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ponylang/pony-lsp/internal/analyzer"
)

// DefaultKeep is the number of entries kept per file.
const DefaultKeep = 50

// Entry is one journaled analyzer run.
type Entry struct {
	ID         string    `msgpack:"id" json:"id"`
	Time       time.Time `msgpack:"time" json:"time"`
	Mode       string    `msgpack:"mode" json:"mode"`
	File       string    `msgpack:"file" json:"file"`
	Executable string    `msgpack:"executable" json:"executable"`
	Args       []string  `msgpack:"args" json:"args"`
	PonyPath   string    `msgpack:"ponyPath" json:"ponyPath"`
	Outcome    string    `msgpack:"outcome" json:"outcome"`
	ExitCode   int       `msgpack:"exitCode" json:"exitCode"`
	DurationMs int64     `msgpack:"durationMs" json:"durationMs"`
	OutputSize int       `msgpack:"outputSize" json:"outputSize"`
	Error      string    `msgpack:"error,omitempty" json:"error,omitempty"`
}

// Journal is an analyzer.Recorder backed by a Store.
type Journal struct {
	store  *Store[Entry]
	keep   int
	logger *slog.Logger
	now    func() time.Time
}

// Open opens the journal database at dbPath.
func Open(dbPath string, keep int, logger *slog.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	removed, err := checkSchema(dbPath)
	if err != nil {
		return nil, err
	}
	if removed {
		logger.Info("discarded journal with an outdated schema", "path", dbPath)
	}

	store, err := NewStore[Entry](dbPath)
	if err != nil {
		return nil, err
	}
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Journal{store: store, keep: keep, logger: logger, now: time.Now}, nil
}

// RecordInvocation implements analyzer.Recorder. Failures are logged and
// never affect the request.
func (j *Journal) RecordInvocation(_ context.Context, rec analyzer.Record) {
	entry := Entry{
		ID:         uuid.NewString(),
		Time:       j.now().UTC(),
		Mode:       string(rec.Invocation.Mode),
		File:       rec.Invocation.FilePath,
		Executable: rec.Invocation.Executable,
		Args:       rec.Invocation.Args(),
		PonyPath:   rec.Invocation.PonyPath,
		Outcome:    rec.Outcome,
		ExitCode:   rec.ExitCode,
		DurationMs: rec.Duration.Milliseconds(),
		OutputSize: rec.OutputSize,
	}
	if rec.Err != nil {
		entry.Error = rec.Err.Error()
	}

	if err := j.store.SaveItem(entry.File, entry.ID, entry); err != nil {
		j.logger.Warn("failed to journal analyzer run", "file", entry.File, "error", err)
		return
	}
	if err := j.store.Prune(entry.File, j.keep); err != nil {
		j.logger.Warn("failed to prune journal", "file", entry.File, "error", err)
	}
}

// Entries returns up to limit entries for a file, newest first.
func (j *Journal) Entries(filePath string, limit int) ([]Entry, error) {
	return j.store.GetValuesByPath(filePath, limit)
}

// Entry returns a single entry by ID.
func (j *Journal) Entry(id string) (Entry, bool, error) {
	entries, err := j.store.GetValues(id)
	if err != nil || len(entries) == 0 {
		return Entry{}, false, err
	}
	return entries[0], true, nil
}

// ClearFile removes the entries of one file.
func (j *Journal) ClearFile(filePath string) error {
	return j.store.DeletePath(filePath)
}

// Clear removes all entries.
func (j *Journal) Clear() error {
	return j.store.Clear()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.store.Close()
}
