package server

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	defaultWatchDebounce = 250 * time.Millisecond
	watchReasonExternal  = "external_edit"
)

var errMissingWatchPath = errors.New("catalog watcher requires a document path")

// ChangeNotifier receives a reason whenever the document changes.
type ChangeNotifier interface {
	CatalogChanged(reason string)
}

type CatalogWatcherConfig struct {
	DocumentPath string
	Notifier     ChangeNotifier
	Debounce     time.Duration
	Logger       *zap.Logger
}

// CatalogWatcher reports edits to the document made outside the admin tool,
// such as a git pull in another terminal. It watches the parent directory so
// rename-based writes are seen.
type CatalogWatcher struct {
	watcher  *fsnotify.Watcher
	target   string
	notifier ChangeNotifier
	debounce time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	timer *time.Timer
}

func NewCatalogWatcher(cfg CatalogWatcherConfig) (*CatalogWatcher, error) {
	if cfg.DocumentPath == "" {
		return nil, errMissingWatchPath
	}
	target, err := filepath.Abs(cfg.DocumentPath)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cfg.DocumentPath, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogWatcher{
		watcher:  watcher,
		target:   target,
		notifier: cfg.Notifier,
		debounce: debounce,
		logger:   logger,
	}, nil
}

// Run consumes file events until ctx is done, then closes the watcher.
func (w *CatalogWatcher) Run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		_ = w.watcher.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("catalog watcher error", zap.Error(err))
		}
	}
}

func (w *CatalogWatcher) handleEvent(event fsnotify.Event) {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != w.target {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	w.logger.Debug("catalog file event", zap.String("op", event.Op.String()))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if w.notifier != nil {
			w.notifier.CatalogChanged(watchReasonExternal)
		}
	})
}
