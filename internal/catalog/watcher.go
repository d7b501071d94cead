package catalog

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"shlrec/internal/errors"
)

// Watcher watches the catalog dataset file and triggers reloads on change
type Watcher struct {
	mu sync.Mutex

	dataFile      string
	debounceDelay time.Duration
	debounceTimer *time.Timer

	fsWatcher *fsnotify.Watcher
	stopChan  chan struct{}

	reloadCallback func()
	logger         *errors.Logger

	running bool
}

// NewWatcher creates a catalog file watcher. The callback runs on a
// background goroutine after changes settle for the debounce delay.
func NewWatcher(dataFile string, debounceDelay time.Duration, reloadCallback func(), logger *errors.Logger) *Watcher {
	if debounceDelay == 0 {
		debounceDelay = time.Second
	}

	return &Watcher{
		dataFile:       dataFile,
		debounceDelay:  debounceDelay,
		stopChan:       make(chan struct{}),
		reloadCallback: reloadCallback,
		logger:         logger,
	}
}

// Start begins watching the dataset file for changes
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("catalog watcher is already running")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.fsWatcher = fsWatcher

	// Watch the parent directory. Editors and atomic writers replace the
	// file, which drops a watch placed on the file itself.
	dir := filepath.Dir(w.dataFile)
	if err := fsWatcher.Add(dir); err != nil {
		_ = fsWatcher.Close()
		return fmt.Errorf("failed to watch catalog directory %s: %w", dir, err)
	}

	w.running = true
	go w.watchLoop()

	w.logger.Info("Catalog watcher started",
		"file", w.dataFile,
		"debounce_delay", w.debounceDelay.String())
	return nil
}

// Stop stops the watcher and releases its resources
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false

	close(w.stopChan)
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	if err := w.fsWatcher.Close(); err != nil {
		w.logger.LogError(err, "Failed to close catalog file watcher")
	}

	w.logger.Info("Catalog watcher stopped", "file", w.dataFile)
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.LogError(err, "Catalog file watcher error")

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.dataFile) {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	w.logger.Debug("Catalog file changed",
		"file", event.Name,
		"op", event.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}

	// Reset the debounce timer so rapid successive writes trigger one reload
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.fireReload)
}

// fireReload runs the reload callback unless the watcher stopped while the
// debounce timer was pending. Stop on an expired timer cannot cancel it.
func (w *Watcher) fireReload() {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if !running {
		return
	}
	w.reloadCallback()
}
