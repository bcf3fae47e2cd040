package journal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SchemaVersion is the encoding version of Entry. Bump it whenever a field
// changes incompatibly; older journals are then discarded on open.
const SchemaVersion = 1

// databaseFiles are the SQLite files that make up one database.
var databaseFiles = []string{"", "-wal", "-shm"}

func versionFile(dbPath string) string {
	return dbPath + ".version"
}

// checkSchema compares the version stored beside dbPath with SchemaVersion.
// A missing, corrupted or different version removes the database. It
// reports whether an existing database was removed.
func checkSchema(dbPath string) (bool, error) {
	data, err := os.ReadFile(versionFile(dbPath))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to read version file: %w", err)
	}

	if err == nil {
		stored, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if convErr == nil && stored == SchemaVersion {
			return false, nil
		}
	}

	removed, err := removeDatabase(dbPath)
	if err != nil {
		return false, fmt.Errorf("failed to remove stale journal: %w", err)
	}
	if err := os.WriteFile(versionFile(dbPath), []byte(strconv.Itoa(SchemaVersion)), 0o644); err != nil {
		return false, fmt.Errorf("failed to write version: %w", err)
	}
	return removed, nil
}

func removeDatabase(dbPath string) (bool, error) {
	removed := false
	for _, suffix := range databaseFiles {
		err := os.Remove(dbPath + suffix)
		switch {
		case err == nil:
			removed = true
		case !errors.Is(err, os.ErrNotExist):
			return removed, err
		}
	}
	return removed, nil
}
