// Package watch rebuilds the index artifacts when the corpus changes.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mwiater/minirag/internal/logging"
)

// DefaultDebounce is the quiet period before a rebuild starts.
const DefaultDebounce = 500 * time.Millisecond

// RebuildFunc rebuilds the artifacts. It runs on the watcher goroutine, so
// rebuilds never overlap.
type RebuildFunc func(ctx context.Context) error

// Watcher monitors a corpus directory tree.
type Watcher struct {
	dir        string
	extensions map[string]struct{}
	debounce   time.Duration
	rebuild    RebuildFunc
	watcher    *fsnotify.Watcher
}

// New creates a watcher over dir and its subdirectories. Only files with one
// of the given extensions trigger a rebuild; an empty list accepts all.
func New(dir string, extensions []string, debounce time.Duration, rebuild RebuildFunc) (*Watcher, error) {
	if rebuild == nil {
		return nil, fmt.Errorf("rebuild func is nil")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:        dir,
		extensions: make(map[string]struct{}, len(extensions)),
		debounce:   debounce,
		rebuild:    rebuild,
		watcher:    fw,
	}
	for _, ext := range extensions {
		w.extensions[strings.ToLower(ext)] = struct{}{}
	}
	if _, err := w.addTree(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches root and every directory below it. It reports whether the
// tree already holds a file with an accepted extension.
func (w *Watcher) addTree(root string) (bool, error) {
	found := false
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		if w.accepts(path) {
			found = true
		}
		return nil
	})
	return found, err
}

func (w *Watcher) accepts(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	_, ok := w.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Run processes events until ctx is cancelled. Bursts of changes collapse
// into one rebuild after the debounce period.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			logging.Debugf("watch: %s %s", event.Op, event.Name)
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.LogEvent("[WATCH] watcher error: %v", err)
		case <-timer.C:
			logging.LogEvent("[WATCH] corpus changed, rebuilding index")
			if err := w.rebuild(ctx); err != nil {
				logging.LogEvent("[WATCH] rebuild failed: %v", err)
			}
		}
	}
}

// relevant reports whether an event should schedule a rebuild. New
// directories are added to the watch list and count as a change when they
// arrive with corpus files already inside.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			found, err := w.addTree(event.Name)
			if err != nil {
				logging.LogEvent("[WATCH] cannot watch %s: %v", event.Name, err)
			}
			return found
		}
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return w.accepts(event.Name)
}
