package config

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/avaimg/internal/observability"
)

// DefaultDebounceDelay is the quiet period before a change is reloaded.
const DefaultDebounceDelay = 100 * time.Millisecond

// ConfigCallback receives each valid configuration after a change.
type ConfigCallback func(*Config)

// ErrorCallback receives load and watch errors.
type ErrorCallback func(error)

// snapshot is the last accepted file content.
type snapshot struct {
	cfg    *Config
	digest [sha256.Size]byte
}

// Watcher reloads the route table file when it changes. Changes are
// debounced, and rewrites that leave the bytes unchanged are ignored.
// An invalid file is reported and the previous configuration stays.
type Watcher struct {
	path     string
	fs       *fsnotify.Watcher
	onChange ConfigCallback
	onError  ErrorCallback
	logger   observability.Logger
	debounce time.Duration

	current atomic.Pointer[snapshot]

	mu      sync.Mutex
	started bool
	stop    context.CancelFunc
	done    chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the quiet period before reloading.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = delay }
}

// WithLogger sets the watcher's logger.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithErrorCallback sets the function told about rejected reloads.
func WithErrorCallback(callback ErrorCallback) WatcherOption {
	return func(w *Watcher) { w.onError = callback }
}

// NewWatcher creates a watcher for the file at path. Nothing is read until
// Start or ForceReload.
func NewWatcher(path string, onChange ConfigCallback, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		fs:       fs,
		onChange: onChange,
		logger:   observability.NopLogger(),
		debounce: DefaultDebounceDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start loads the file and begins watching its directory, which also
// catches editors that save by renaming over the file. Starting a running
// watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	snap, err := w.read()
	if err != nil {
		return err
	}
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.current.Store(snap)

	ctx, w.stop = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.started = true
	go w.loop(ctx, w.done)

	w.logger.Info("watching configuration file", observability.String("path", w.path))
	return nil
}

// Stop ends the watch loop and releases the fsnotify handle. It is safe to
// call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.started {
		w.stop()
		<-w.done
		w.started = false
	}
	w.mu.Unlock()
	return w.fs.Close()
}

// LastConfig returns the last accepted configuration, nil before the first
// successful load.
func (w *Watcher) LastConfig() *Config {
	if snap := w.current.Load(); snap != nil {
		return snap.cfg
	}
	return nil
}

// ForceReload loads the file now and hands it to the callback even when the
// content is unchanged.
func (w *Watcher) ForceReload() error {
	snap, err := w.read()
	if err != nil {
		return err
	}
	w.accept(snap)
	return nil
}

func (w *Watcher) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("configuration watcher stopped")
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if w.matches(ev) {
				timer.Reset(w.debounce)
			}
		case <-timer.C:
			w.reload()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.fail("configuration watch error", err)
		}
	}
}

func (w *Watcher) matches(ev fsnotify.Event) bool {
	return filepath.Clean(ev.Name) == w.path &&
		ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename)
}

func (w *Watcher) reload() {
	snap, err := w.read()
	if err != nil {
		w.fail("configuration reload rejected", err)
		return
	}
	if prev := w.current.Load(); prev != nil && prev.digest == snap.digest {
		w.logger.Debug("configuration unchanged", observability.String("path", w.path))
		return
	}
	w.logger.Info("configuration reloaded",
		observability.String("path", w.path),
		observability.Int("routes", len(snap.cfg.Routes)),
	)
	w.accept(snap)
}

func (w *Watcher) accept(snap *snapshot) {
	w.current.Store(snap)
	if w.onChange != nil {
		w.onChange(snap.cfg)
	}
}

func (w *Watcher) fail(msg string, err error) {
	w.logger.Error(msg, observability.String("path", w.path), observability.Error(err))
	if w.onError != nil {
		w.onError(err)
	}
}

// read loads, parses and validates the file.
func (w *Watcher) read() (*snapshot, error) {
	data, err := readConfigFile(w.path)
	if err != nil {
		return nil, err
	}
	cfg, err := parseConfig(data)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &snapshot{cfg: cfg, digest: sha256.Sum256(data)}, nil
}
