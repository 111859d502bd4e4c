package watch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/unicode/norm"
)

// EventType represents the kind of filesystem change carried by a Record.
type EventType string

// Event types
const (
	EventCreated  EventType = "created"
	EventModified EventType = "modified"
	EventDeleted  EventType = "deleted"
	EventMoved    EventType = "moved"
)

// ErrUnknownEventType is returned by ParseEventType for names outside the closed set.
var ErrUnknownEventType = errors.New("unknown event type")

// EventTypes lists every event type in a stable order.
func EventTypes() []EventType {
	return []EventType{EventCreated, EventModified, EventDeleted, EventMoved}
}

// ParseEventType maps a name, including common aliases, onto an EventType.
func ParseEventType(s string) (EventType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "created", "create":
		return EventCreated, nil
	case "modified", "modify", "write":
		return EventModified, nil
	case "deleted", "delete", "remove":
		return EventDeleted, nil
	case "moved", "move", "rename", "renamed":
		return EventMoved, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, s)
	}
}

// Record is the unit written to the output stream. DestPath is only set for
// moves and is otherwise the empty string.
type Record struct {
	EventType EventType `json:"eventType"`
	SrcPath   string    `json:"srcPath"`
	DestPath  string    `json:"destPath"`
}

// String renders the record the way fsnotify renders events.
func (r Record) String() string {
	if r.DestPath != "" {
		return fmt.Sprintf("%s %q -> %q", strings.ToUpper(string(r.EventType)), r.SrcPath, r.DestPath)
	}
	return fmt.Sprintf("%s %q", strings.ToUpper(string(r.EventType)), r.SrcPath)
}

func newRecord(t EventType, src, dest string) Record {
	return Record{EventType: t, SrcPath: src, DestPath: dest}
}

// normalized returns a copy with both paths in NFC. Raw paths are kept until
// then because the filesystem may not accept the normalized form.
func (r Record) normalized() Record {
	r.SrcPath = normalizePath(r.SrcPath)
	r.DestPath = normalizePath(r.DestPath)
	return r
}

// normalizePath converts to NFC so decomposed names reported by some
// platforms match what users type.
func normalizePath(p string) string {
	if p == "" || norm.NFC.IsNormalString(p) {
		return p
	}
	return norm.NFC.String(p)
}

// opKind picks the single operation a (possibly combined) fsnotify op stands for.
// Create wins over Write, Write over Remove, and so on.
func opKind(op fsnotify.Op) fsnotify.Op {
	switch {
	case op.Has(fsnotify.Create):
		return fsnotify.Create
	case op.Has(fsnotify.Write):
		return fsnotify.Write
	case op.Has(fsnotify.Remove):
		return fsnotify.Remove
	case op.Has(fsnotify.Rename):
		return fsnotify.Rename
	case op.Has(fsnotify.Chmod):
		return fsnotify.Chmod
	default:
		return 0
	}
}

// renameSource returns the path a Create was renamed from. fsnotify only
// exposes the link through Event.String, as `OP "new" ← "old"`; the result is
// empty when the backend did not link the rename.
func renameSource(event fsnotify.Event) string {
	prefix := fmt.Sprintf("%-13s %q ← ", event.Op.String(), event.Name)
	s := event.String()
	if !strings.HasPrefix(s, prefix) {
		return ""
	}
	from, err := strconv.Unquote(s[len(prefix):])
	if err != nil {
		return ""
	}
	return from
}
