// Package watch re-validates prompt files as they change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptlint/internal/logging"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// DefaultDebounce coalesces the burst of events editors emit for one save.
const DefaultDebounce = 150 * time.Millisecond

// Handler is called once per changed file after the debounce window.
type Handler func(ctx context.Context, path string)

// Watcher reports writes and creations of matching files below a root.
type Watcher struct {
	root     string
	single   string
	filter   func(string) bool
	debounce time.Duration
	watcher  *fsnotify.Watcher
	stop     chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New watches root, recursively when it is a directory. When root is a
// file only that file is reported. filter selects the files of interest;
// nil accepts everything.
func New(root string, filter func(string) bool, opts ...Option) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	w := &Watcher{
		root:     root,
		filter:   filter,
		debounce: DefaultDebounce,
		watcher:  fw,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if !info.IsDir() {
		w.single = filepath.Clean(root)
		err = fw.Add(filepath.Dir(root))
	} else {
		err = w.addTree(root)
	}
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	return w, nil
}

// addTree watches dir and every directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

// Run delivers changed files to handle until ctx is done or Stop is called.
// Files changed within one debounce window are delivered in path order.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	logger := logging.FromContext(ctx).Named("watch")

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-w.stop:
			return nil
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			logger.Trace(ctx, "fs event", zap.String("path", event.Name), zap.String("op", event.Op.String()))

			if event.Op&fsnotify.Create == fsnotify.Create && w.single == "" {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						logger.Warn(ctx, "cannot watch new directory", zap.String("path", event.Name), zap.Error(err))
					}
					continue
				}
			}

			if !w.wants(event) {
				continue
			}
			if len(pending) == 0 {
				timer.Reset(w.debounce)
			}
			pending[event.Name] = true

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)

			for _, p := range paths {
				handle(logging.WithDocument(ctx, p), p)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(ctx, "watcher error", zap.Error(err))
		}
	}
}

// wants reports whether event is a write or create of a file of interest.
func (w *Watcher) wants(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	if w.single != "" {
		return filepath.Clean(event.Name) == w.single
	}
	return w.filter == nil || w.filter(event.Name)
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}
