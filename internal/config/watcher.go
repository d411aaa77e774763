package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] stats the config file.
const DefaultWatchInterval = 5 * time.Second

// snapshot identifies one version of the file on disk.
type snapshot struct {
	mtime time.Time
	sum   [sha256.Size]byte
	data  []byte
}

func takeSnapshot(path string) (snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return snapshot{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{mtime: info.ModTime(), sum: sha256.Sum256(data), data: data}, nil
}

// Watcher polls a config file and hands every valid new version to a
// callback. A version that fails to load is reported once; the previous
// config stays current until the file changes again.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)
	log      *slog.Logger

	mu      sync.Mutex
	current *Config
	last    snapshot

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Default: [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger reload events go to. Default: [slog.Default].
func WithLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatcher loads path once and starts polling it. The initial load must
// succeed. onChange may be nil; it runs on the polling goroutine.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := takeSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(snap.data))
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.last = cfg, snap

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.loop(ctx)
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling and waits for an in-progress callback to return. It is
// safe to call more than once.
func (w *Watcher) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if old, cfg := w.reload(); cfg != nil && w.onChange != nil {
				w.onChange(old, cfg)
			}
		}
	}
}

// reload returns the previous and the new config when the file holds a new
// valid version, and nil otherwise. A touch without a content change and a
// repeat of an already rejected version are both ignored.
func (w *Watcher) reload() (old, cfg *Config) {
	info, err := os.Stat(w.path)
	if err != nil {
		w.log.Warn("config watcher: stat failed", "path", w.path, "err", err)
		return nil, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if info.ModTime().Equal(w.last.mtime) {
		return nil, nil
	}

	snap, err := takeSnapshot(w.path)
	if err != nil {
		w.log.Warn("config watcher: read failed", "path", w.path, "err", err)
		return nil, nil
	}
	unchanged := snap.sum == w.last.sum
	w.last = snap
	if unchanged {
		return nil, nil
	}

	cfg, err = LoadFromReader(bytes.NewReader(snap.data))
	if err != nil {
		w.log.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return nil, nil
	}
	old, w.current = w.current, cfg
	w.log.Info("config watcher: configuration reloaded", "path", w.path)
	return old, cfg
}
