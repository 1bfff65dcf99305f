// Package watcher notifies when the termmeta database is written by another process,
// so cached term to carrier mappings can be dropped.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/termmeta/internal/log"
)

// Watcher monitors the database and its WAL file for changes and sends debounced
// notifications.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dbPath    string
	debounce  time.Duration
	grace     time.Duration
	onChange  chan struct{}
	done      chan struct{}

	mu        sync.Mutex
	ownWrites []*writeWindow
}

// writeWindow spans a write made by this process. A zero end means the write is in
// progress.
type writeWindow struct {
	start, end time.Time
}

// Config holds watcher configuration options.
type Config struct {
	DBPath      string
	DebounceDur time.Duration
	// OwnWriteGrace is how long after an OwnWrite ends its file events are still
	// attributed to it.
	OwnWriteGrace time.Duration
}

// DefaultConfig returns the watcher defaults for dbPath.
func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:        dbPath,
		DebounceDur:   500 * time.Millisecond,
		OwnWriteGrace: time.Second,
	}
}

// New creates a new database watcher.
func New(cfg Config) (*Watcher, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("watcher: database path is required")
	}
	if cfg.DebounceDur <= 0 {
		cfg.DebounceDur = DefaultConfig(cfg.DBPath).DebounceDur
	}
	if cfg.OwnWriteGrace <= 0 {
		cfg.OwnWriteGrace = DefaultConfig(cfg.DBPath).OwnWriteGrace
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		dbPath:    cfg.DBPath,
		debounce:  cfg.DebounceDur,
		grace:     cfg.OwnWriteGrace,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the database directory.
// Returns a channel that receives a signal when the database changes.
func (w *Watcher) Start() (<-chan struct{}, error) {
	// The WAL file comes and goes, so watch the directory rather than the files.
	dir := filepath.Dir(w.dbPath)
	if err := w.fsWatcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	log.Debug(log.CatWatcher, "watching database", "path", w.dbPath, "debounce", w.debounce)
	go w.loop()

	return w.onChange, nil
}

// Run starts the watcher and calls fn after every debounced change until ctx is
// cancelled. The watcher is stopped before Run returns.
func (w *Watcher) Run(ctx context.Context, fn func()) error {
	changes, err := w.Start()
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			fn()
		}
	}
}

// OwnWrite marks the start of database work done by this process and returns a
// function marking its end. A debounced burst whose events all fall inside such a
// window, or within the grace period after it, sends no notification.
func (w *Watcher) OwnWrite() (done func()) {
	now := time.Now()
	win := &writeWindow{start: now}
	w.mu.Lock()
	w.pruneLocked(now)
	w.ownWrites = append(w.ownWrites, win)
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if win.end.IsZero() {
			win.end = time.Now()
		}
	}
}

// ownBurst reports whether every event time falls in an own-write window. Windows
// that closed before the burst began are pruned.
func (w *Watcher) ownBurst(events []time.Time) bool {
	if len(events) == 0 {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	own := true
	for _, at := range events {
		if !w.coveredLocked(at) {
			own = false
			break
		}
	}

	w.pruneLocked(events[0])
	return own
}

// pruneLocked drops windows whose grace period ended before cutoff. Dropping one too
// early costs at most an extra notification.
func (w *Watcher) pruneLocked(cutoff time.Time) {
	kept := w.ownWrites[:0]
	for _, win := range w.ownWrites {
		if win.end.IsZero() || !win.end.Add(w.grace).Before(cutoff) {
			kept = append(kept, win)
		}
	}
	clear(w.ownWrites[len(kept):])
	w.ownWrites = kept
}

func (w *Watcher) coveredLocked(at time.Time) bool {
	for _, win := range w.ownWrites {
		if at.Before(win.start) {
			continue
		}
		if win.end.IsZero() || !at.After(win.end.Add(w.grace)) {
			return true
		}
	}
	return false
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	return w.fsWatcher.Close()
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var (
		timer *time.Timer
		burst []time.Time
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if !w.isRelevantEvent(event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			burst = append(burst, time.Now())

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if len(burst) == 0 {
				continue
			}
			if w.ownBurst(burst) {
				log.Debug(log.CatWatcher, "ignoring own write", "events", len(burst))
			} else {
				// Drop the signal if the previous one has not been consumed yet.
				select {
				case w.onChange <- struct{}{}:
				default:
				}
			}
			burst = burst[:0]

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "watch error", err, "path", w.dbPath)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent reports whether the event touches the database or its WAL file.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	// The WAL file may be created fresh, so Create counts as well as Write.
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}

	base := filepath.Base(event.Name)
	db := filepath.Base(w.dbPath)
	return base == db || base == db+"-wal"
}
