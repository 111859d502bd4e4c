// Package watch turns filesystem notifications for a directory tree into Records.
//
// The package uses fsnotify to receive notifications and godirwalk to register
// every directory of the tree, including directories created while watching.
// Records are delivered on a bounded channel in the order the notifications
// arrived; a full channel blocks the watcher rather than growing memory.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultBufferSize is the capacity of the record channel when none is given.
const DefaultBufferSize = 1024

// Options defines options for watching a directory tree.
type Options struct {
	// Whether to watch subdirectories recursively
	Recursive bool

	// Whether to include hidden files and directories
	IncludeHidden bool

	// Glob patterns matched against base names; matching paths are dropped
	Ignore []string

	// Drop attribute-only changes instead of reporting them as modified
	SkipChmod bool

	// How long a rename waits for its destination (0 means DefaultMoveWindow)
	MoveWindow time.Duration

	// Capacity of the record channel (0 means DefaultBufferSize)
	BufferSize int

	// Report absolute paths regardless of how the root was given
	Absolute bool

	Logger *zap.Logger
}

// Watcher delivers Records for one root path.
type Watcher struct {
	root    string
	opts    Options
	fs      *fsnotify.Watcher
	records chan Record
	pairer  *movePairer
	logger  *zap.Logger

	// registered directories; only touched by New and the run goroutine
	dirs map[string]struct{}

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	started   bool
	stopOnce  sync.Once
	stopErr   error
}

// New registers root, and every directory below it when opts.Recursive is set.
// Nothing is delivered until Start is called.
func New(root string, opts Options) (*Watcher, error) {
	if root == "" {
		root = "."
	}
	if opts.Absolute {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("error resolving %s: %w", root, err)
		}
		root = abs
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("error watching %s: %w", root, err)
	}

	for _, pattern := range opts.Ignore {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
	}

	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating watcher: %w", err)
	}

	w := &Watcher{
		root:    root,
		opts:    opts,
		fs:      fsw,
		records: make(chan Record, opts.BufferSize),
		pairer:  newMovePairer(opts.MoveWindow, renamesLinked),
		logger:  logger,
		dirs:    make(map[string]struct{}),
		done:    make(chan struct{}),
	}

	if info.IsDir() {
		err = w.addTree(root)
	} else {
		err = fsw.Add(root)
	}
	if err != nil {
		fsw.Close()
		return nil, err
	}

	logger.Info("watching",
		zap.String("root", root),
		zap.Bool("recursive", opts.Recursive),
		zap.Int("directories", len(w.dirs)),
	)
	return w, nil
}

// Root returns the path being watched, resolved when Options.Absolute is set.
func (w *Watcher) Root() string {
	return w.root
}

// Records returns the channel records are delivered on. It is closed once
// the watcher has stopped.
func (w *Watcher) Records() <-chan Record {
	return w.records
}

// Start begins translating notifications. Calls after the first, or after
// Stop, do nothing.
func (w *Watcher) Start() {
	w.startOnce.Do(func() {
		w.started = true
		w.wg.Add(1)
		go w.run()
	})
}

// Stop closes the notification backend and waits for the watcher goroutine
// to exit. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		w.startOnce.Do(func() {})
		w.stopErr = w.fs.Close()
		close(w.done)
		w.wg.Wait()
		if !w.started {
			close(w.records)
		}
	})
	return w.stopErr
}

func (w *Watcher) run() {
	defer w.wg.Done()
	defer close(w.records)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	var expired <-chan time.Time

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				w.send(w.finish(w.pairer.flush()))
				return
			}
			if !w.send(w.translate(event)) {
				return
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				w.send(w.finish(w.pairer.flush()))
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-expired:
			if !w.send(w.finish(w.pairer.expire(time.Now()))) {
				return
			}
		}

		if d, held := w.pairer.wait(time.Now()); held {
			timer.Reset(d)
			expired = timer.C
		} else {
			expired = nil
		}
	}
}

// send delivers records in order. It gives up when the watcher is stopped so
// that a consumer that went away cannot wedge Stop.
func (w *Watcher) send(records []Record) bool {
	for _, rec := range records {
		select {
		case w.records <- rec:
		case <-w.done:
			return false
		}
	}
	return true
}

func (w *Watcher) translate(event fsnotify.Event) []Record {
	kind := opKind(event.Op)
	if kind == 0 {
		return nil
	}
	if kind == fsnotify.Chmod && w.opts.SkipChmod {
		return nil
	}
	w.logger.Debug("notification", zap.String("event", event.String()))

	var from string
	if kind == fsnotify.Create {
		from = renameSource(event)
	}
	return w.finish(w.pairer.observe(kind, event.Name, from, time.Now()))
}

// finish filters paired records, keeps the registered directory set in step
// with them and appends records for entries found in new directories.
func (w *Watcher) finish(records []Record) []Record {
	var out []Record
	for _, rec := range records {
		if rec.EventType == EventDeleted || rec.EventType == EventMoved {
			w.forget(rec.SrcPath)
		}

		kept, ok := w.filter(rec)
		if !ok {
			continue
		}
		out = append(out, kept.normalized())

		for _, found := range w.follow(kept) {
			out = append(out, found.normalized())
		}
	}
	return out
}

// filter applies the hidden and ignore rules. A move with only one side
// excluded is reported as the side that remains visible.
func (w *Watcher) filter(rec Record) (Record, bool) {
	if rec.EventType != EventMoved {
		return rec, !w.skipped(rec.SrcPath)
	}

	srcSkipped := w.skipped(rec.SrcPath)
	destSkipped := w.skipped(rec.DestPath)
	switch {
	case srcSkipped && destSkipped:
		return rec, false
	case srcSkipped:
		return newRecord(EventCreated, rec.DestPath, ""), true
	case destSkipped:
		return newRecord(EventDeleted, rec.SrcPath, ""), true
	}
	return rec, true
}

func (w *Watcher) skipped(path string) bool {
	if !w.opts.IncludeHidden && w.hidden(path) {
		return true
	}
	base := filepath.Base(path)
	for _, pattern := range w.opts.Ignore {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// hidden reports whether any component of path below the root starts with a dot.
func (w *Watcher) hidden(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}

// forget drops the watches for a directory that left its place in the tree.
func (w *Watcher) forget(path string) {
	path = filepath.Clean(path)
	if _, ok := w.dirs[path]; !ok {
		return
	}
	prefix := path + string(filepath.Separator)
	for dir := range w.dirs {
		if dir != path && !strings.HasPrefix(dir, prefix) {
			continue
		}
		delete(w.dirs, dir)
		// The kernel may already have dropped the watch.
		_ = w.fs.Remove(dir)
	}
}
