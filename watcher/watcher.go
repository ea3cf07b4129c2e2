package watcher

import (
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the input folder and triggers a conversion pass once it settles
type Watcher struct {
	dir      string
	debounce time.Duration
	run      func()
	watcher  *fsnotify.Watcher

	// runMu serializes passes so the pipeline never runs twice at once
	runMu sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// New creates a watcher for dir. run is called after debounce has elapsed
// without further changes.
func New(dir string, debounce time.Duration, run func()) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		dir:      dir,
		debounce: debounce,
		run:      run,
		watcher:  fsWatcher,
	}, nil
}

// Start begins monitoring dir and its current subfolders
func (w *Watcher) Start() error {
	if err := w.addTree(w.dir); err != nil {
		return fmt.Errorf("failed to watch folder %s: %w", w.dir, err)
	}
	log.Printf("Watching folder: %s", w.dir)

	go w.processEvents()

	return nil
}

// addTree watches root and every folder below it. fsnotify is not recursive.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Skip temp files
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	// Removals come from the pass clearing the input folder
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}

	if event.Has(fsnotify.Create) {
		if err := w.addTree(event.Name); err != nil {
			// The folder may already be gone again
			log.Printf("Not watching %s: %v", event.Name, err)
		}
	}

	w.schedule()
}

// schedule (re)starts the debounce timer
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	w.runMu.Lock()
	defer w.runMu.Unlock()
	w.run()
}

// Stop stops the watcher and waits for a running pass to finish
func (w *Watcher) Stop() error {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()

	w.runMu.Lock()
	w.runMu.Unlock()

	return err
}
