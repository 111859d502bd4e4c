package emit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/TFMV/fsjson/internal/watch"
)

// Sink receives every record the emitter drains.
type Sink interface {
	Write(ctx context.Context, rec watch.Record) error
	Close() error
}

// Marshal encodes a record as single-line JSON without a trailing newline.
// Paths are written as-is; '<', '>' and '&' are not escaped.
func Marshal(rec watch.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// StreamSink writes records to a stream, flushing after each one so a reader
// sees every record as soon as it is produced.
type StreamSink struct {
	mu      sync.Mutex
	w       *bufio.Writer
	newline bool
}

// NewStreamSink writes records back to back, or one per line when newline is set.
func NewStreamSink(w io.Writer, newline bool) *StreamSink {
	return &StreamSink{w: bufio.NewWriter(w), newline: newline}
}

// Write encodes rec and flushes it.
func (s *StreamSink) Write(_ context.Context, rec watch.Record) error {
	data, err := Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if s.newline {
		if err := s.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return s.w.Flush()
}

// Close flushes anything still buffered. The underlying writer is left open.
func (s *StreamSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}
