package remoteconfig

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher calls onChange after the repositories file was written, created,
// renamed or removed. Bursts of events within the debounce window produce one call.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func()
	logger   *logrus.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for path. Call Start to begin watching.
func NewWatcher(path string, debounce time.Duration, onChange func(), logger *logrus.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
	}
}

// Start watches the directory holding the file, so editors that replace the
// file by rename are handled.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopLocked()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch %q: %w", dir, err)
	}

	w.watcher = fw
	w.done = make(chan struct{})
	go w.loop(fw, w.done)

	w.logger.WithField("path", w.path).Info("Watching remote repository file")
	return nil
}

// Stop ends watching and waits for the watch goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

func (w *Watcher) stopLocked() {
	if w.watcher != nil {
		_ = w.watcher.Close()
		<-w.done
		w.watcher = nil
		w.done = nil
	}
}

func (w *Watcher) loop(fw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			w.logger.WithFields(logrus.Fields{
				"path": ev.Name,
				"op":   ev.Op.String(),
			}).Debug("Remote repository file changed")

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.onChange()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Remote repository watcher error")
		}
	}
}
