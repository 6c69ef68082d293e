package prompts

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ternarybob/arbor"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reloads a Set whenever a template file in its directory changes.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	set      *Set
	dir      string
	logger   arbor.ILogger
	debounce time.Duration
	onReload func(error)
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewWatcher creates a watcher for dir. Call Start to begin watching.
func NewWatcher(set *Set, dir string, logger arbor.ILogger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Watcher{
		watcher:  w,
		set:      set,
		dir:      dir,
		logger:   logger,
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// OnReload registers fn to be called after every reload attempt with its
// result. It must be set before Start.
func (w *Watcher) OnReload(fn func(error)) {
	w.onReload = fn
}

// Start adds the directory to the watch list and runs the event loop in a
// goroutine. It is a no-op if the watcher is already running.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.running = true
	w.logger.Info().Str("dir", w.dir).Msg("Watching prompt templates")
	go w.run(ctx)
	return nil
}

// Stop ends the event loop and releases the underlying watcher. It is safe
// to call Stop on a watcher that was never started.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isTemplateFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Prompt file changed")
			// Editors often emit several events per save.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Prompt watcher error")
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	err := w.set.Reload(w.dir)
	if err != nil {
		w.logger.Error().Err(err).Str("dir", w.dir).Msg("Prompt reload failed, keeping previous templates")
	} else {
		w.logger.Info().Str("dir", w.dir).Msg("Prompt templates reloaded")
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}

func isTemplateFile(path string) bool {
	base := filepath.Base(path)
	if base == OverrideFile {
		return true
	}
	if !strings.HasSuffix(base, ".txt") {
		return false
	}
	_, ok := allowed[Name(strings.TrimSuffix(base, ".txt"))]
	return ok
}
