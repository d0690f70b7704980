/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package devwatch is the recursive, debounced filesystem watcher that
// feeds "file changed" batches into the HMR propagator.
package devwatch

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"bennypowers.dev/devgraph/internal/logging"
	"bennypowers.dev/devgraph/internal/platform"
)

// FileEvent is a batch of file changes collapsed by the debounce window.
type FileEvent struct {
	Path      string
	Paths     []string
	EventType string
	Timestamp time.Time
}

// Timer is the minimal *time.Timer surface the debounce logic needs.
type Timer interface {
	Stop() bool
}

// Scheduler arms the debounce timer. Kept distinct from
// platform.TimeProvider, whose After(d) <-chan time.Time has no
// stop-and-reschedule semantics, the same reasoning behind the
// optimizer package's own Scheduler abstraction.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type realScheduler struct{}

// NewRealScheduler returns the time.AfterFunc-backed production Scheduler.
func NewRealScheduler() Scheduler { return realScheduler{} }

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Watcher recursively watches a root directory and emits debounced batches
// of changed files.
type Watcher interface {
	Watch(path string) error
	Events() <-chan FileEvent
	Close() error
}

// watcher adapts internal/platform.FileWatcher (the production fsnotify
// implementation or, in tests, platform.MockFileWatcher) into debounced
// FileEvent batches.
type watcher struct {
	fw             platform.FileWatcher
	fs             platform.FileSystem
	clock          platform.TimeProvider
	scheduler      Scheduler
	events         chan FileEvent
	debounceWindow time.Duration
	excludeGlobs   []string

	mu             sync.Mutex
	debouncedFiles map[string]time.Time
	debounceTimer  Timer

	logger logging.Logger
	done   chan struct{}
}

// New creates a Watcher over fw, debouncing bursts of events within
// debounceWindow and ignoring paths matched by the built-in ignore list
// plus any extra excludeGlobs.
func New(fw platform.FileWatcher, fs platform.FileSystem, clock platform.TimeProvider, scheduler Scheduler, debounceWindow time.Duration, excludeGlobs []string, logger logging.Logger) Watcher {
	w := &watcher{
		fw:             fw,
		fs:             fs,
		clock:          clock,
		scheduler:      scheduler,
		events:         make(chan FileEvent, 100),
		debounceWindow: debounceWindow,
		excludeGlobs:   excludeGlobs,
		debouncedFiles: make(map[string]time.Time),
		logger:         logger,
		done:           make(chan struct{}),
	}
	go w.processEvents()
	return w
}

// Watch adds path to the watch set, recursively descending directories.
func (w *watcher) Watch(path string) error {
	if err := w.fw.Add(path); err != nil {
		return err
	}
	return w.addSubdirs(path)
}

// addSubdirs recursively adds every non-ignored subdirectory of dir to the
// watch set, mirroring fsnotify's lack of native recursive watching.
func (w *watcher) addSubdirs(dir string) error {
	entries, err := w.fs.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if w.shouldIgnore(sub) {
			continue
		}
		if err := w.fw.Add(sub); err != nil {
			return err
		}
		if err := w.addSubdirs(sub); err != nil {
			return err
		}
	}
	return nil
}

// Events returns the channel of debounced file-change batches.
func (w *watcher) Events() <-chan FileEvent { return w.events }

// Close stops the watcher and its processing goroutine.
func (w *watcher) Close() error {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()

	err := w.fw.Close()
	close(w.done)
	w.clock.Sleep(10 * time.Millisecond)
	close(w.events)
	return err
}

func (w *watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.fw.Events():
			if !ok {
				return
			}
			if w.shouldIgnore(event.Name) {
				continue
			}

			w.mu.Lock()
			w.debouncedFiles[event.Name] = w.clock.Now()
			if w.debounceTimer != nil {
				w.debounceTimer.Stop()
			}
			w.debounceTimer = w.scheduler.AfterFunc(w.debounceWindow, w.flush)
			w.mu.Unlock()

			if w.logger != nil {
				w.logger.Debug("file changed: %s", event.Name)
			}

		case err, ok := <-w.fw.Errors():
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Error("watcher error: %v", err)
			}

		case <-w.done:
			return
		}
	}
}

func (w *watcher) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}
	if len(w.debouncedFiles) == 0 {
		return
	}

	files := make([]string, 0, len(w.debouncedFiles))
	for file := range w.debouncedFiles {
		files = append(files, file)
	}
	w.debouncedFiles = make(map[string]time.Time)

	event := FileEvent{Path: files[0], Paths: files, EventType: "modified", Timestamp: w.clock.Now()}
	select {
	case w.events <- event:
	case <-w.done:
	default:
		if w.logger != nil {
			w.logger.Debug("dropped file event batch (channel full)")
		}
	}
}

func (w *watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)

	for _, dir := range []string{".git", "node_modules", "dist", "build", ".cache"} {
		if base == dir {
			return true
		}
	}
	if isEditorTempFile(base) {
		return true
	}
	for _, pattern := range w.excludeGlobs {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

// isEditorTempFile recognizes swap/backup files a save can transiently
// create, so a vim ":w" doesn't fire two change batches for one edit.
func isEditorTempFile(base string) bool {
	if strings.HasPrefix(base, ".") && (strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".swo") || strings.HasSuffix(base, ".swn")) {
		return true
	}
	if strings.HasSuffix(base, "~") {
		return true
	}
	if strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	if strings.HasPrefix(base, ".#") {
		return true
	}
	if base != "" && !strings.Contains(base, ".") && isAllDigits(base) {
		return true
	}
	return false
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
