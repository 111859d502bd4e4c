package watch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"go.uber.org/zap"
)

// addTree registers dir and, when recursive, every directory below it that is
// not hidden or ignored. Only a failure on dir itself is returned.
func (w *Watcher) addTree(dir string) error {
	if err := w.watchDir(dir); err != nil {
		return fmt.Errorf("error watching directory %s: %w", dir, err)
	}
	if w.opts.Recursive {
		w.scan(dir, false)
	}
	return nil
}

// follow registers a directory that appeared in the tree and reports what is
// already inside it: created records for a new directory, moved records for
// the entries of a directory that was renamed.
func (w *Watcher) follow(rec Record) []Record {
	if !w.opts.Recursive {
		return nil
	}

	var path string
	switch rec.EventType {
	case EventCreated:
		path = rec.SrcPath
	case EventMoved:
		path = rec.DestPath
	default:
		return nil
	}

	info, err := os.Lstat(path)
	if err != nil || !info.IsDir() {
		return nil
	}
	if err := w.watchDir(path); err != nil {
		w.logger.Warn("error watching new directory", zap.String("path", path), zap.Error(err))
		return nil
	}

	found := w.scan(path, true)
	out := make([]Record, 0, len(found))
	for _, entry := range found {
		if rec.EventType == EventCreated {
			out = append(out, newRecord(EventCreated, entry, ""))
			continue
		}
		rel, err := filepath.Rel(path, entry)
		if err != nil {
			continue
		}
		out = append(out, newRecord(EventMoved, filepath.Join(rec.SrcPath, rel), entry))
	}
	return out
}

// scan walks below dir, registering directories. With report set it returns
// every entry it finds, in lexical order.
func (w *Watcher) scan(dir string, report bool) []string {
	var found []string
	root := filepath.Clean(dir)

	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if filepath.Clean(path) == root {
				return nil
			}
			if w.skipped(path) {
				if de.IsDir() {
					return godirwalk.SkipThis
				}
				return nil
			}
			if de.IsDir() {
				if err := w.watchDir(path); err != nil {
					w.logger.Warn("error watching directory", zap.String("path", path), zap.Error(err))
				}
			}
			if report {
				found = append(found, filepath.Clean(path))
			}
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			w.logger.Warn("error walking directory", zap.String("path", path), zap.Error(err))
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		w.logger.Warn("error walking directory tree", zap.String("path", dir), zap.Error(err))
	}
	return found
}

func (w *Watcher) watchDir(path string) error {
	path = filepath.Clean(path)
	if err := w.fs.Add(path); err != nil {
		return err
	}
	w.dirs[path] = struct{}{}
	w.logger.Debug("watching directory", zap.String("path", path))
	return nil
}
