// Package watcher notices edits to a concept-graph source on disk. A source
// is one graph file or a directory of them (see internal/datasource); edits
// are coalesced and reported through callbacks, and GraphWatcher turns them
// into reloaded graphs.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/conceptmap/internal/datasource"
	"github.com/vanderheijden86/conceptmap/pkg/debug"
)

// DefaultPollInterval is how often the polling fallback stats the source.
const DefaultPollInterval = 2 * time.Second

// ForcePollEnv, when truthy, forces polling (network mounts, containers with
// unreliable inotify).
const ForcePollEnv = "CMAP_FORCE_POLL"

var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets how long edits must be quiet before a change fires.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.interval = d }
}

// WithOnChange sets the callback run after a debounced change.
func WithOnChange(fn func()) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// WithOnError sets the callback for removal and watch errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// WithForcePoll skips fsnotify entirely.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) { w.forcePoll = force }
}

// stamp summarizes a source for polling. For a directory it covers every
// graph file inside it.
type stamp struct {
	exists  bool
	newest  time.Time
	size    int64
	entries int
}

func (s stamp) differs(o stamp) bool {
	return s.exists != o.exists || !s.newest.Equal(o.newest) || s.size != o.size || s.entries != o.entries
}

// Watcher monitors a graph file, or a directory of graph files.
type Watcher struct {
	path      string
	dir       bool
	debounce  time.Duration
	interval  time.Duration
	forcePoll bool
	onChange  func()
	onError   func(error)

	mu       sync.RWMutex
	started  bool
	polling  bool
	cancel   context.CancelFunc
	fsw      *fsnotify.Watcher
	last     stamp
	deb      *Debouncer
	changeCh chan struct{}
}

// NewWatcher prepares a watcher for path. Nothing is watched until Start.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		debounce: DefaultDebounceDuration,
		interval: DefaultPollInterval,
		onChange: func() {},
		onError:  func(error) {},
		changeCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.interval <= 0 {
		w.interval = DefaultPollInterval
	}
	w.deb = NewDebouncer(w.debounce)
	return w, nil
}

// Start begins watching. fsnotify is used when available; otherwise, or when
// forced, the source is polled.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}

	info, err := os.Stat(w.path)
	switch {
	case os.IsPermission(err):
		return ErrPermission
	case err == nil:
		w.dir = info.IsDir()
	}
	w.last = w.stat()

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.polling = w.forcePoll || envBool(ForcePollEnv)
	if !w.polling {
		if fsw, err := w.openFsnotify(); err != nil {
			debug.Log("watcher: fsnotify unavailable for %s, polling: %v", w.path, err)
			w.polling = true
		} else {
			w.fsw = fsw
			go w.runEvents(ctx, fsw)
		}
	}
	if w.polling {
		go w.runPolling(ctx)
	}
	w.started = true
	return nil
}

// openFsnotify watches the source directory (or the file's parent, so
// atomic saves that replace the file are seen).
func (w *Watcher) openFsnotify() (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	target := filepath.Dir(w.path)
	if w.dir {
		target = w.path
	}
	if err := fsw.Add(target); err != nil {
		fsw.Close()
		return nil, err
	}
	return fsw, nil
}

// Stop stops watching and drops any pending change. Changed() stays open.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.cancel()
	if w.fsw != nil {
		w.fsw.Close()
		w.fsw = nil
	}
	w.deb.Cancel()
	w.started = false
}

// IsPolling reports whether the polling fallback is in use.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.polling
}

// IsStarted reports whether the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed receives after each debounced change, alongside the OnChange callback.
func (w *Watcher) Changed() <-chan struct{} { return w.changeCh }

// Path returns the absolute watched path.
func (w *Watcher) Path() string { return w.path }

// PollInterval returns the polling interval.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.interval
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// relevant reports whether an event on name concerns the source.
func (w *Watcher) relevant(name string) bool {
	if !w.dir {
		return filepath.Base(name) == filepath.Base(w.path)
	}
	_, err := datasource.DetectType(name)
	return err == nil
}

func (w *Watcher) runEvents(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev.Name) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove) && !w.dir:
				w.onError(ErrFileRemoved)
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create), ev.Has(fsnotify.Rename), ev.Has(fsnotify.Remove):
				w.deb.Trigger(w.fire)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) runPolling(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	_, statErr := os.Stat(w.path)
	if os.IsPermission(statErr) {
		w.onError(ErrPermission)
		return
	}
	cur := w.stat()

	w.mu.Lock()
	prev := w.last
	w.last = cur
	w.mu.Unlock()

	switch {
	case prev.exists && !cur.exists:
		w.onError(ErrFileRemoved)
	case cur.exists && cur.differs(prev):
		w.deb.Trigger(w.fire)
	}
}

// stat builds the current stamp of the source.
func (w *Watcher) stat() stamp {
	info, err := os.Stat(w.path)
	if err != nil {
		return stamp{}
	}
	if !info.IsDir() {
		return stamp{exists: true, newest: info.ModTime(), size: info.Size(), entries: 1}
	}
	s := stamp{exists: true}
	entries, err := os.ReadDir(w.path)
	if err != nil {
		return s
	}
	for _, e := range entries {
		if e.IsDir() || !w.relevant(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		s.entries++
		s.size += fi.Size()
		if fi.ModTime().After(s.newest) {
			s.newest = fi.ModTime()
		}
	}
	return s
}

// fire runs after the debounce window unless the watcher was stopped.
func (w *Watcher) fire() {
	if !w.IsStarted() {
		return
	}
	w.onChange()
	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}
