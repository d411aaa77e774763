package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/soundwatch/internal/config"
)

const baseYAML = `
providers:
  recognizer: {name: vito}
  sentiment: {name: huggingface}
  embeddings: {name: openai}
  classifier: {name: tfserving, base_url: "http://localhost:8501"}
`

func withLevel(level string) string {
	return "server:\n  log_level: " + level + "\n" + baseYAML
}

// file is a config file whose mtime the test controls, so reloads do not
// depend on filesystem timestamp granularity.
type file struct {
	t     *testing.T
	path  string
	mtime time.Time
}

func newFile(t *testing.T, content string) *file {
	t.Helper()
	f := &file{t: t, path: filepath.Join(t.TempDir(), "soundwatch.yaml"), mtime: time.Now().Add(-time.Hour)}
	f.write(content)
	return f
}

func (f *file) write(content string) {
	f.t.Helper()
	if err := os.WriteFile(f.path, []byte(content), 0o644); err != nil {
		f.t.Fatalf("write %s: %v", f.path, err)
	}
	f.mtime = f.mtime.Add(time.Second)
	if err := os.Chtimes(f.path, f.mtime, f.mtime); err != nil {
		f.t.Fatalf("chtimes: %v", err)
	}
}

type change struct{ old, new config.LogLevel }

func watch(t *testing.T, f *file, opts ...config.WatcherOption) (*config.Watcher, <-chan change) {
	t.Helper()
	changes := make(chan change, 8)
	opts = append([]config.WatcherOption{config.WithInterval(10 * time.Millisecond)}, opts...)
	w, err := config.NewWatcher(f.path, func(old, new *config.Config) {
		changes <- change{old.Server.LogLevel, new.Server.LogLevel}
	}, opts...)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, changes
}

func expectChange(t *testing.T, changes <-chan change, want change) {
	t.Helper()
	select {
	case got := <-changes:
		if got != want {
			t.Fatalf("change = %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no change delivered, want %+v", want)
	}
}

func expectQuiet(t *testing.T, changes <-chan change) {
	t.Helper()
	select {
	case got := <-changes:
		t.Fatalf("unexpected change %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNewWatcher_InitialLoad(t *testing.T) {
	t.Parallel()

	w, _ := watch(t, newFile(t, withLevel("warn")))
	if got := w.Current().Server.LogLevel; got != config.LogWarn {
		t.Errorf("log level = %q, want warn", got)
	}
	if got := w.Current().Pipeline.Workers; got <= 0 {
		t.Errorf("defaults not applied: workers = %d", got)
	}
}

func TestNewWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") }},
		{"invalid level", func(t *testing.T) string { return newFile(t, withLevel("loud")).path }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := config.NewWatcher(tt.path(t), nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWatcher_ReloadSequence(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	var logMu sync.Mutex
	logger := slog.New(slog.NewTextHandler(&lockedWriter{w: &logs, mu: &logMu}, nil))

	f := newFile(t, withLevel("info"))
	w, changes := watch(t, f, config.WithLogger(logger))

	f.write(withLevel("debug"))
	expectChange(t, changes, change{config.LogInfo, config.LogDebug})

	// Invalid content is rejected once and the debug config stays current.
	f.write(withLevel("loud"))
	expectQuiet(t, changes)
	f.write(withLevel("loud"))
	expectQuiet(t, changes)
	if got := w.Current().Server.LogLevel; got != config.LogDebug {
		t.Errorf("current level after invalid file = %q, want debug", got)
	}

	// Touching without changing the content is not a reload.
	f.write(withLevel("loud"))
	expectQuiet(t, changes)

	f.write(withLevel("error"))
	expectChange(t, changes, change{config.LogDebug, config.LogError})

	w.Stop()
	logMu.Lock()
	defer logMu.Unlock()
	if n := strings.Count(logs.String(), "keeping previous config"); n != 1 {
		t.Errorf("rejection logged %d times, want 1:\n%s", n, logs.String())
	}
	if n := strings.Count(logs.String(), "configuration reloaded"); n != 2 {
		t.Errorf("reload logged %d times, want 2", n)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFile(t, withLevel("info"))
	w, changes := watch(t, f)
	w.Stop()
	w.Stop()

	f.write(withLevel("debug"))
	expectQuiet(t, changes)
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
