// Package signal provides a file-based stop signal. Creating the stop file
// (heavysql stop, or touch <dir>/signals/stop) cancels every request running
// under a context from WithStop.
package signal

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrStopped is the cancellation cause of contexts ended by the stop file.
var ErrStopped = errors.New("stop signal received")

// StopFile is the name of the signal file inside the signals directory.
const StopFile = "stop"

// pollInterval is used when fsnotify is unavailable.
const pollInterval = 500 * time.Millisecond

// Watcher watches a directory for the stop file.
type Watcher struct {
	dir string

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}

	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  sync.Once
}

// DefaultDir returns the signals directory under the user's data directory.
func DefaultDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "heavysql", "signals")
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "heavysql", "signals")
}

// NewWatcher creates dir if needed and starts watching it. A stop file left
// over from an earlier run is honoured immediately; call Clear to reset.
func NewWatcher(dir string) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:    dir,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	fw, err := fsnotify.NewWatcher()
	if err == nil {
		if err = fw.Add(dir); err != nil {
			fw.Close()
		}
	}
	if err != nil {
		log.Printf("[signal] fsnotify unavailable, polling %s: %v", dir, err)
		go w.poll()
	} else {
		w.watcher = fw
		go w.watch()
	}

	w.ShouldStop()
	return w, nil
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == StopFile && event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.trigger()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[signal] watch error: %v", err)
		}
	}
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.ShouldStop()
		}
	}
}

func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stopCh)
	log.Printf("[signal] stop file detected in %s", w.dir)
}

// ShouldStop reports whether the stop signal has been received. The file is
// also checked directly in case the watcher missed it.
func (w *Watcher) ShouldStop() bool {
	if _, err := os.Stat(filepath.Join(w.dir, StopFile)); err == nil {
		w.trigger()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// Stopped returns a channel closed when the stop signal arrives.
func (w *Watcher) Stopped() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopCh
}

// WithStop returns a context that is cancelled with ErrStopped when the stop
// signal arrives.
func (w *Watcher) WithStop(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	stopCh := w.Stopped()
	go func() {
		select {
		case <-stopCh:
			cancel(ErrStopped)
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

// SendStop writes the stop file.
func (w *Watcher) SendStop() error {
	return SendStop(w.dir)
}

// SendStop writes the stop file into dir, for use from another process.
func SendStop(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, StopFile)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes the stop file and re-arms the watcher.
func (w *Watcher) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.Remove(filepath.Join(w.dir, StopFile)); err != nil && !os.IsNotExist(err) {
		log.Printf("[signal] remove stop file: %v", err)
	}
	if w.stopped {
		w.stopped = false
		w.stopCh = make(chan struct{})
	}
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Close stops watching.
func (w *Watcher) Close() {
	w.closed.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}
