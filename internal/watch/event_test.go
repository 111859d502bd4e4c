package watch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/fsnotify/fsnotify"
)

func TestParseEventType(t *testing.T) {
	tests := []struct {
		in   string
		want EventType
	}{
		{"created", EventCreated},
		{"Create", EventCreated},
		{"write", EventModified},
		{"modified", EventModified},
		{"remove", EventDeleted},
		{"DELETED", EventDeleted},
		{"rename", EventMoved},
		{" moved ", EventMoved},
	}
	for _, tt := range tests {
		got, err := ParseEventType(tt.in)
		if err != nil {
			t.Errorf("ParseEventType(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEventType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseEventType("closed"); !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("ParseEventType(closed) error = %v, want ErrUnknownEventType", err)
	}
}

func TestOpKind(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want fsnotify.Op
	}{
		{fsnotify.Create | fsnotify.Write, fsnotify.Create},
		{fsnotify.Write | fsnotify.Chmod, fsnotify.Write},
		{fsnotify.Remove | fsnotify.Rename, fsnotify.Remove},
		{fsnotify.Rename, fsnotify.Rename},
		{fsnotify.Chmod, fsnotify.Chmod},
		{0, 0},
	}
	for _, tt := range tests {
		if got := opKind(tt.op); got != tt.want {
			t.Errorf("opKind(%v) = %v, want %v", tt.op, got, tt.want)
		}
	}
}

func TestRecordJSONKeys(t *testing.T) {
	data, err := json.Marshal(Record{EventType: EventCreated, SrcPath: "a.txt"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(fields) != 3 {
		t.Errorf("record has %d keys, want 3: %s", len(fields), data)
	}
	for _, key := range []string{"eventType", "srcPath", "destPath"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("record is missing %q: %s", key, data)
		}
	}
	if fields["destPath"] != "" {
		t.Errorf("destPath = %v, want empty string", fields["destPath"])
	}
}

func TestNormalized(t *testing.T) {
	// "é" as e + combining acute accent
	decomposed := "cafe\u0301.txt"
	rec := newRecord(EventMoved, decomposed, "plain.txt").normalized()

	if rec.SrcPath != "caf\u00e9.txt" {
		t.Errorf("SrcPath = %q, want NFC form", rec.SrcPath)
	}
	if rec.DestPath != "plain.txt" {
		t.Errorf("DestPath = %q, want unchanged", rec.DestPath)
	}
}

func TestRenameSourceUnlinked(t *testing.T) {
	tests := []fsnotify.Event{
		{Name: "/data/a.txt", Op: fsnotify.Create},
		{Name: `/data/x ← "y"`, Op: fsnotify.Create},
		{Name: "/data/a.txt", Op: fsnotify.Rename},
	}
	for _, event := range tests {
		if got := renameSource(event); got != "" {
			t.Errorf("renameSource(%v) = %q, want empty", event, got)
		}
	}
}
