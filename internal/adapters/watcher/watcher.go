// Package watcher provides file system watching for batch hot folders.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet time before a changed file is handed on.
const DefaultDebounce = 500 * time.Millisecond

// Event is a debounced change of a batch file.
type Event struct {
	Path      string
	Operation Operation
}

// Operation is the kind of change.
type Operation int

// File operation types.
const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Handler is called for every debounced event. Events are handed over one
// at a time, in path order per debounce round.
type Handler func(ctx context.Context, event Event) error

type pendingEvent struct {
	timestamp time.Time
	op        Operation
}

// Config holds watcher configuration.
type Config struct {
	Paths    []string
	Debounce time.Duration
	Filter   func(path string) bool // Selects batch files, nil accepts all
}

// Watcher watches directory trees for batch file changes. Files still being
// written produce a burst of events which is collapsed into one.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	handler   Handler
	filter    func(path string) bool
	logger    *slog.Logger
	paths     []string
	debounce  time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEvent

	queue    chan Event
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a watcher and starts its dispatcher. Stop must be called to
// release it, whether or not Start was called.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Filter == nil {
		cfg.Filter = func(string) bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		fsWatcher: fsWatcher,
		handler:   handler,
		filter:    cfg.Filter,
		logger:    logger,
		paths:     cfg.Paths,
		debounce:  cfg.Debounce,
		pending:   make(map[string]*pendingEvent),
		queue:     make(chan Event, 64),
		ctx:       ctx,
		cancel:    cancel,
	}

	w.wg.Add(1)
	go w.dispatch()

	return w, nil
}

// Start watches the configured paths and their subdirectories until ctx is
// done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	for _, path := range w.paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			w.logger.Warn("invalid watch path", "path", path, "error", err)
			continue
		}
		w.addTree(absPath)
		w.logger.Info("watching directory", "path", absPath, "debounce", w.debounce)
	}

	w.wg.Add(2)
	go w.eventLoop(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops watching and waits for the running handler to return. It is
// safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.cancel()
		err = w.fsWatcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// addTree watches root and every directory below it.
func (w *Watcher) addTree(root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.logger.Warn("failed to watch path", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("failed to walk watch path", "path", root, "error", err)
	}
}

func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	// Permission changes leave the coordinates untouched.
	if event.Op == fsnotify.Chmod {
		return
	}
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addTree(event.Name)
			return
		}
	}
	if !w.filter(event.Name) {
		return
	}

	op := fsnotifyOpToOperation(event.Op)
	w.logger.Debug("batch file changed", "path", event.Name, "op", event.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[event.Name]; ok {
		p.timestamp = time.Now()
		p.op = mergeOperation(p.op, op)
		return
	}
	w.pending[event.Name] = &pendingEvent{timestamp: time.Now(), op: op}
}

// mergeOperation collapses two events of the same file. A delete wins, a
// file deleted and created again counts as created, otherwise the first
// operation is kept.
func mergeOperation(prev, next Operation) Operation {
	switch {
	case next == OpDelete:
		return OpDelete
	case prev == OpDelete && next == OpCreate:
		return OpCreate
	default:
		return prev
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	tick := w.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

// processPending queues the events whose debounce window has passed.
func (w *Watcher) processPending(ctx context.Context) {
	now := time.Now()

	w.mu.Lock()
	var due []Event
	for path, p := range w.pending {
		if now.Sub(p.timestamp) < w.debounce {
			continue
		}
		delete(w.pending, path)
		due = append(due, Event{Path: path, Operation: p.op})
	}
	w.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].Path < due[j].Path })
	for _, e := range due {
		select {
		case w.queue <- e:
		case <-ctx.Done():
			return
		case <-w.ctx.Done():
			return
		}
	}
}

// dispatch runs the handler for queued events one after the other, so a
// file is never processed twice at the same time.
func (w *Watcher) dispatch() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case e := <-w.queue:
			w.logger.Info("processing file event", "path", e.Path, "operation", e.Operation.String())
			if err := w.handler(w.ctx, e); err != nil {
				w.logger.Error("handler error",
					"path", e.Path,
					"operation", e.Operation.String(),
					"error", err,
				)
			}
		}
	}
}

// fsnotifyOpToOperation maps fsnotify operations. A renamed file is gone
// from its old path and counts as deleted.
func fsnotifyOpToOperation(op fsnotify.Op) Operation {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpModify
	}
}
