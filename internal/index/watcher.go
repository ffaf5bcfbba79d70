package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/logging"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// defaultDebounce batches bursts of file events into one rebuild.
const defaultDebounce = 500 * time.Millisecond

// Watcher triggers index rebuilds when files under the root change.
//
// Optional supporting machinery: the index itself never requires a watcher;
// callers may always rebuild explicitly.
type Watcher struct {
	index    *Index
	watcher  *fsnotify.Watcher
	logger   *logging.Logger
	debounce time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewWatcher creates a watcher over the index's root directory tree.
func NewWatcher(idx *Index, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	w := &Watcher{
		index:    idx,
		watcher:  fsw,
		logger:   logger.Named("index.watcher"),
		debounce: defaultDebounce,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if err := w.addRecursive(idx.config.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop shuts the watcher down and waits for the loop to exit.
// Safe to call more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.ignored(event.Name) {
				continue
			}
			// New directories need explicit watches.
			if event.Op.Has(fsnotify.Create) {
				_ = w.addRecursive(event.Name)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				// Drain a fired-but-unconsumed timer so Reset
				// cannot deliver a stale, premature rebuild.
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			pending = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, "watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			if err := w.index.Rebuild(ctx); err != nil {
				w.logger.Warn(ctx, "debounced rebuild failed", zap.Error(err))
			}
		}
	}
}

// ignored filters git internals and the snapshot file itself, which would
// otherwise retrigger rebuilds forever.
func (w *Watcher) ignored(path string) bool {
	clean := filepath.ToSlash(path)
	if strings.Contains(clean, "/.git/") || strings.HasSuffix(clean, "/.git") {
		return true
	}
	if w.index.config.SnapshotPath != "" {
		snap := filepath.ToSlash(w.index.config.SnapshotPath)
		if clean == snap || clean == snap+".tmp" {
			return true
		}
	}
	return false
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Raced with a delete; nothing to watch.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" || d.Name() == ".crew" {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
