package main

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// getProjectStateFolder returns the per-project directory for server state
// such as the invocation journal, creating it if needed.
func getProjectStateFolder(projectRoot string) (string, error) {
	configDir, err := getUserConfigDir()
	if err != nil {
		return "", err
	}

	projectSlug := strings.ReplaceAll(projectRoot, "/", "_")
	projectSlug = strings.ReplaceAll(projectSlug, ":", "_")
	projectSlug = strings.ReplaceAll(projectSlug, "\\", "_")

	expectedDir := filepath.Join(configDir, "pony-lsp", projectSlug)

	if err := os.MkdirAll(expectedDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}

	return expectedDir, nil
}

func getUserConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		usr, err := user.Current()
		if err != nil {
			return "", fmt.Errorf("failed to get current user: %w", err)
		}
		return filepath.Join(usr.HomeDir, ".config"), nil
	}
	return configDir, nil
}

// defaultJournalPath is the journal database for the project in dir.
func defaultJournalPath(dir string) (string, error) {
	stateDir, err := getProjectStateFolder(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(stateDir, "journal.db"), nil
}
