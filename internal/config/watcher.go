package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher keeps the file layer of a Store in sync with the workspace
// config file.
type FileWatcher struct {
	path    string
	store   *Store
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	done    chan struct{}
}

// WatchFile loads the config file once and then reloads it on every change.
// The parent directory is watched so the file may be created later.
func WatchFile(path string, store *Store, logger *slog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		path:    filepath.Clean(path),
		store:   store,
		watcher: watcher,
		logger:  logger,
		done:    make(chan struct{}),
	}

	if err := watcher.Add(filepath.Dir(fw.path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	fw.reload()

	go fw.watchChanges()

	return fw, nil
}

func (fw *FileWatcher) reload() {
	o, err := LoadFile(fw.path)
	if err != nil {
		fw.logger.Warn("config file not applied", "path", fw.path, "error", err)
		return
	}
	if _, err := fw.store.Set(LayerFile, o); err != nil {
		fw.logger.Warn("config file rejected", "path", fw.path, "error", err)
	}
}

func (fw *FileWatcher) watchChanges() {
	defer close(fw.done)

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				fw.logger.Debug("config file changed, reloading", "path", fw.path)
				fw.reload()
			} else if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				fw.logger.Debug("config file removed", "path", fw.path)
				if _, err := fw.store.Set(LayerFile, Overrides{}); err != nil {
					fw.logger.Warn("failed to reset file settings", "error", err)
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("config watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (fw *FileWatcher) Close() error {
	err := fw.watcher.Close()
	<-fw.done
	return err
}
