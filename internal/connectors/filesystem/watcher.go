package filesystem

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/benefitsflow/benefits-rag/internal/logger"
)

// debounceWindow coalesces bursts of filesystem events into one signal.
// Editors commonly emit several writes per save.
const debounceWindow = 500 * time.Millisecond

// Watcher observes a directory tree and signals when corpus files
// change. Events are debounced; the channel carries at most one pending
// signal, so a slow consumer never blocks the watch loop.
type Watcher struct {
	fsw     *fsnotify.Watcher
	changes chan struct{}
}

// NewWatcher starts watching the directory tree rooted at root.
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the root and every subdirectory. fsnotify is not recursive.
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); strings.HasPrefix(name, ".") && path != root {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		fsw:     fsw,
		changes: make(chan struct{}, 1),
	}, nil
}

// Changes returns the channel that signals after corpus files changed.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run processes filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			logger.Debug("Filesystem event: %s %s", event.Op, event.Name)
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				timer.Reset(debounceWindow)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			select {
			case w.changes <- struct{}{}:
			default: // signal already pending
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("Filesystem watch error: %v", err)
		}
	}
}

// relevant reports whether an event concerns a corpus file or a
// directory we should start watching.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	// New directories need to be added to the watch set.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(event.Name)
			return false
		}
	}

	if !textExtensions[strings.ToLower(filepath.Ext(event.Name))] {
		return false
	}
	return event.Op.Has(fsnotify.Create) ||
		event.Op.Has(fsnotify.Write) ||
		event.Op.Has(fsnotify.Remove) ||
		event.Op.Has(fsnotify.Rename)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
