package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/borrowck/internal/trace"
	tt "github.com/gnoswap-labs/borrowck/internal/types"
)

// DefaultSettleDelay groups bursts of writes to one file into a single run.
const DefaultSettleDelay = 100 * time.Millisecond

var ErrAlreadyWatching = errors.New("already watching")

// ReportFunc receives the result of re-verifying a changed trace file.
type ReportFunc func(filename string, issues []tt.Issue, err error)

// Watcher re-verifies trace files under a set of directories whenever they
// are written.
type Watcher struct {
	engine  *Engine
	logger  *zap.Logger
	dirs    []string
	report  ReportFunc
	settle  time.Duration
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	watching bool
	done     chan struct{}
	pending  map[string]*time.Timer
}

// NewWatcher creates a watcher over dirs. Results are logged unless a
// ReportFunc is set.
func NewWatcher(engine *Engine, logger *zap.Logger, dirs ...string) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		engine:  engine,
		logger:  logger,
		dirs:    dirs,
		settle:  DefaultSettleDelay,
		pending: make(map[string]*time.Timer),
	}
	w.report = w.logIssues
	return w
}

func (w *Watcher) OnReport(fn ReportFunc) {
	if fn != nil {
		w.report = fn
	}
}

func (w *Watcher) SetSettleDelay(d time.Duration) {
	w.settle = d
}

// Start registers every directory below the watched roots and begins handling
// events in the background.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watching {
		return ErrAlreadyWatching
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}

	for _, dir := range w.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			watcher.Close()
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}

	w.watcher = watcher
	w.watching = true
	w.done = make(chan struct{})
	go w.watchLoop(watcher, w.done)
	w.logger.Info("watching", zap.Strings("dirs", w.dirs))
	return nil
}

// Stop ends watching and cancels pending runs.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.watching {
		w.mu.Unlock()
		w.logger.Debug("not watching")
		return nil
	}
	w.watching = false
	for name, timer := range w.pending {
		timer.Stop()
		delete(w.pending, name)
	}
	watcher, done := w.watcher, w.done
	w.mu.Unlock()

	err := watcher.Close()
	<-done
	return err
}

func (w *Watcher) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleFileEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleFileEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if !trace.IsTraceFile(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watching {
		return
	}
	if timer, ok := w.pending[event.Name]; ok {
		timer.Reset(w.settle)
		return
	}
	name := event.Name
	w.pending[name] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, name)
		w.mu.Unlock()
		w.verify(name)
	})
}

func (w *Watcher) verify(filename string) {
	w.logger.Debug("file changed", zap.String("file", filename))
	issues, err := w.engine.Run(filename)
	if ferr := w.engine.FlushCache(); ferr != nil {
		w.logger.Warn("failed to write cache", zap.Error(ferr))
	}
	w.report(filename, issues, err)
}

func (w *Watcher) logIssues(filename string, issues []tt.Issue, err error) {
	if err != nil {
		w.logger.Error("verification failed", zap.String("file", filename), zap.Error(err))
		return
	}
	if len(issues) == 0 {
		w.logger.Info("no issues found", zap.String("file", filename))
		return
	}
	w.logger.Info("issues found", zap.String("file", filename), zap.Int("count", len(issues)))
	for _, issue := range issues {
		w.logger.Info(issue.Message, zap.String("rule", issue.Rule), zap.Int("line", issue.Start.Line))
	}
}
