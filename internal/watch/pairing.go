package watch

import (
	"runtime"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultMoveWindow is how long a rename waits for the create that completes it.
const DefaultMoveWindow = 50 * time.Millisecond

// renamesLinked reports whether the fsnotify backend names the source of a
// rename on the Create that completes it (inotify and ReadDirectoryChangesW).
// Other backends are paired by arrival order alone.
const renamesLinked = runtime.GOOS == "linux" || runtime.GOOS == "windows"

// movePairer turns fsnotify's Rename(old) + Create(new) sequence into a single
// moved record. Only one rename is held at a time; anything that does not
// complete it releases it as a deletion first, so records keep delivery order.
type movePairer struct {
	window time.Duration
	linked bool

	held     bool
	pending  string
	deadline time.Time

	// source of the last move, whose own Rename may still be in flight
	moved      string
	movedUntil time.Time
}

func newMovePairer(window time.Duration, linked bool) *movePairer {
	if window <= 0 {
		window = DefaultMoveWindow
	}
	return &movePairer{window: window, linked: linked}
}

// observe feeds one notification and returns the records that became ready.
// from is the rename source the backend attached to a Create, if any.
func (p *movePairer) observe(kind fsnotify.Op, path, from string, now time.Time) []Record {
	switch kind {
	case fsnotify.Rename:
		if p.held && p.pending == path {
			p.deadline = now.Add(p.window)
			return nil
		}
		// A directory that was just moved reports its own Rename last.
		if p.moved == path && now.Before(p.movedUntil) {
			return nil
		}
		out := p.flush()
		p.held = true
		p.pending = path
		p.deadline = now.Add(p.window)
		return out

	case fsnotify.Create:
		if p.completes(from) {
			src := p.pending
			p.reset()
			p.moved = src
			p.movedUntil = now.Add(p.window)
			return []Record{newRecord(EventMoved, src, path)}
		}
		out := p.flush()
		return append(out, newRecord(EventCreated, path, ""))
	}

	out := p.flush()
	switch kind {
	case fsnotify.Write, fsnotify.Chmod:
		out = append(out, newRecord(EventModified, path, ""))
	case fsnotify.Remove:
		out = append(out, newRecord(EventDeleted, path, ""))
	}
	return out
}

// completes reports whether a Create renamed from from is the destination of
// the held rename.
func (p *movePairer) completes(from string) bool {
	if !p.held {
		return false
	}
	if p.linked {
		return from == p.pending
	}
	return true
}

// expire releases the held rename once its window has passed.
func (p *movePairer) expire(now time.Time) []Record {
	if !p.held || now.Before(p.deadline) {
		return nil
	}
	return p.flush()
}

// flush releases the held rename, if any, as a deletion: its destination
// never showed up inside the watched tree.
func (p *movePairer) flush() []Record {
	if !p.held {
		return nil
	}
	rec := newRecord(EventDeleted, p.pending, "")
	p.reset()
	return []Record{rec}
}

// wait reports how long until the held rename expires.
func (p *movePairer) wait(now time.Time) (time.Duration, bool) {
	if !p.held {
		return 0, false
	}
	d := p.deadline.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

func (p *movePairer) reset() {
	p.held = false
	p.pending = ""
	p.deadline = time.Time{}
}
