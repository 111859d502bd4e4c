// Package stream reads record streams written by fsjson and renders them for people.
//
// Records may be written back to back with no delimiter, one per line, or
// with any whitespace between them.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/TFMV/fsjson/internal/watch"
)

var (
	// ErrNotObject is returned for a value in the stream that is not a JSON object.
	ErrNotObject = errors.New("record is not an object")

	// ErrMissingEventType is returned for an object without an eventType.
	ErrMissingEventType = errors.New("record has no eventType")
)

// Decoder reads consecutive records from a stream.
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// Next returns the next record, or io.EOF once the stream ends cleanly.
// Every value must be an object with an event type; the type itself is
// passed through unchecked so streams from other producers can be read.
func (d *Decoder) Next() (watch.Record, error) {
	var rec watch.Record
	offset := d.dec.InputOffset()

	var raw json.RawMessage
	if err := d.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("malformed record at offset %d: %w", offset, err)
	}
	if raw[0] != '{' {
		return rec, fmt.Errorf("malformed record at offset %d: %w", offset, ErrNotObject)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return rec, fmt.Errorf("malformed record at offset %d: %w", offset, err)
	}
	if rec.EventType == "" {
		return rec, fmt.Errorf("malformed record at offset %d: %w", offset, ErrMissingEventType)
	}
	return rec, nil
}

// Each calls fn for every record until the stream ends or fn returns an error.
func (d *Decoder) Each(fn func(watch.Record) error) error {
	for {
		rec, err := d.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
