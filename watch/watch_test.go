package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chanWriter hands every write to a channel so the test can read the stream
// while Stream is still running.
type chanWriter chan []byte

func (c chanWriter) Write(p []byte) (int, error) {
	c <- bytes.Clone(p)
	return len(p), nil
}

func TestStream(t *testing.T) {
	tmpDir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chanWriter, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Stream(ctx, tmpDir, out, Config{Watch: Options{Recursive: true}})
	}()

	// Give the watcher a moment to initialize
	time.Sleep(200 * time.Millisecond)

	file := filepath.Join(tmpDir, "a.txt")
	if err := os.WriteFile(file, []byte("a"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	var created bool
	timeout := time.After(3 * time.Second)
	for !created {
		select {
		case chunk := <-out:
			var rec Record
			if err := json.Unmarshal(chunk, &rec); err != nil {
				t.Fatalf("chunk %q is not a single record: %v", chunk, err)
			}
			t.Logf("Received record: %s", rec)
			if rec.EventType == EventCreated && rec.SrcPath == file {
				created = true
			}
		case <-timeout:
			t.Fatalf("did not receive created record for %s", file)
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Stream returned %v after cancel", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Stream did not return after cancel")
	}
}

func TestStreamMissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	err := Stream(context.Background(), missing, &bytes.Buffer{}, Config{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stream error = %v, want os.ErrNotExist", err)
	}
}

func TestParseEventType(t *testing.T) {
	got, err := ParseEventType("rename")
	if err != nil || got != EventMoved {
		t.Errorf("ParseEventType(rename) = %v, %v", got, err)
	}
}
