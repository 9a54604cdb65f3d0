package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/midoBB/qs-daemon/internal/logging"
)

var watchLog = logging.ForComponent(logging.CompConfig)

// reloadDebounce is how long to wait after the last write event before
// re-reading the file. Editors often produce several events per save.
const reloadDebounce = 300 * time.Millisecond

// Watcher re-reads the config file when it changes and delivers the new
// snapshot on Updates. Watch errors are logged, never fatal.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	updates chan Config

	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWatcher watches the directory containing path; watching the file
// itself breaks on editors that replace it via rename.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		path:    path,
		fsw:     fsw,
		updates: make(chan Config, 1),
		closeCh: make(chan struct{}),
	}, nil
}

// Updates delivers one Config per observed change. The channel is buffered;
// a pending unread snapshot is replaced by a newer one.
func (w *Watcher) Updates() <-chan Config {
	return w.updates
}

// Start begins watching (non-blocking).
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.watchLoop()
}

// Stop ends the watch and releases the fsnotify handle.
func (w *Watcher) Stop() {
	w.closeOnce.Do(func() {
		close(w.closeCh)
		w.fsw.Close()
	})
	w.wg.Wait()
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-w.closeCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, w.reload)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			watchLog.Warn("config_watch_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		watchLog.Warn("config_reload_failed", slog.String("error", err.Error()))
		return
	}
	watchLog.Info("config_reloaded", slog.String("path", w.path))

	// Replace any pending snapshot rather than blocking.
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- cfg:
	case <-w.closeCh:
	}
}
