// Package watch streams filesystem changes under a root path as JSON records.
//
// It wires the internal watcher, which turns fsnotify notifications into
// records, to the emitter, which writes each record to an output stream as
// soon as it arrives.
package watch

import (
	"context"
	"io"

	"github.com/TFMV/fsjson/internal/emit"
	internal "github.com/TFMV/fsjson/internal/watch"
	"go.uber.org/zap"
)

// Re-export the types from the internal packages
type (
	// Record is one filesystem change as written to the output stream.
	Record = internal.Record

	// EventType is the kind of change a Record describes.
	EventType = internal.EventType

	// Options controls what is watched and how notifications are translated.
	Options = internal.Options

	// Sink receives every record in addition to the output stream.
	Sink = emit.Sink

	// Stats counts the records written.
	Stats = emit.Stats
)

// Re-export the constants
const (
	EventCreated  = internal.EventCreated
	EventModified = internal.EventModified
	EventDeleted  = internal.EventDeleted
	EventMoved    = internal.EventMoved

	DefaultMoveWindow = internal.DefaultMoveWindow
	DefaultBufferSize = internal.DefaultBufferSize
)

// Config holds everything Stream needs besides the root and the output.
type Config struct {
	Watch Options

	// Separate records with a newline instead of writing them back to back
	Newline bool

	// Additional sinks; failures are logged and do not stop streaming.
	// Stream closes them before it returns.
	Sinks []Sink
}

// Stream watches root and writes a JSON record to out for every change until
// ctx is cancelled. Records already queued when ctx is cancelled are still
// written. It returns an error if watching cannot start or writing to out fails.
func Stream(ctx context.Context, root string, out io.Writer, cfg Config) error {
	logger := cfg.Watch.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	emitter := emit.New(emit.NewStreamSink(out, cfg.Newline), logger, cfg.Sinks...)
	defer func() {
		if err := emitter.Close(); err != nil {
			logger.Warn("error closing sinks", zap.Error(err))
		}
	}()

	w, err := internal.New(root, cfg.Watch)
	if err != nil {
		return err
	}
	defer w.Stop()

	w.Start()
	stop := context.AfterFunc(ctx, func() {
		logger.Info("stopping watcher", zap.String("root", w.Root()))
		w.Stop()
	})
	defer stop()

	err = emitter.Run(ctx, w.Records())

	stats := emitter.Stats()
	logger.Info("watch finished",
		zap.Int64("records", stats.Total()),
		zap.Int64("created", stats.Created),
		zap.Int64("modified", stats.Modified),
		zap.Int64("deleted", stats.Deleted),
		zap.Int64("moved", stats.Moved),
		zap.Int64("sinkFailures", stats.SinkFailures),
	)
	return err
}

// ParseEventType maps a name such as "create" or "moved" onto an EventType.
func ParseEventType(s string) (EventType, error) {
	return internal.ParseEventType(s)
}
