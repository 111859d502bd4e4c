// Package emit drains watcher records into sinks.
//
// The primary sink is the output stream: a failure there ends the drain loop.
// Secondary sinks (journal, Redis stream) are best effort; their failures are
// logged and counted.
package emit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/TFMV/fsjson/internal/watch"
	"go.uber.org/zap"
)

// secondaryTimeout bounds a single write to a secondary sink.
const secondaryTimeout = 5 * time.Second

// Stats holds counters that are updated atomically while draining.
type Stats struct {
	Created      int64 // Records of type created
	Modified     int64 // Records of type modified
	Deleted      int64 // Records of type deleted
	Moved        int64 // Records of type moved
	SinkFailures int64 // Failed writes to secondary sinks
}

// Total returns the number of records written to the primary sink.
func (s Stats) Total() int64 {
	return s.Created + s.Modified + s.Deleted + s.Moved
}

// Emitter moves records from a watcher channel into its sinks.
type Emitter struct {
	primary   Sink
	secondary []Sink
	logger    *zap.Logger
	stats     Stats
}

// New creates an emitter. A nil logger disables logging.
func New(primary Sink, logger *zap.Logger, secondary ...Sink) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{primary: primary, secondary: secondary, logger: logger}
}

// Run blocks on records until the channel is closed, writing each record to
// the primary sink and then to every secondary sink. It returns nil once the
// channel is drained, or the first primary sink error.
func (e *Emitter) Run(ctx context.Context, records <-chan watch.Record) error {
	// Records still queued at shutdown are written even though ctx is done.
	writeCtx := context.WithoutCancel(ctx)

	for rec := range records {
		if err := e.primary.Write(writeCtx, rec); err != nil {
			return fmt.Errorf("error writing record: %w", err)
		}
		e.count(rec.EventType)

		for _, sink := range e.secondary {
			sinkCtx, cancel := context.WithTimeout(writeCtx, secondaryTimeout)
			err := sink.Write(sinkCtx, rec)
			cancel()
			if err != nil {
				atomic.AddInt64(&e.stats.SinkFailures, 1)
				e.logger.Warn("sink write failed",
					zap.String("eventType", string(rec.EventType)),
					zap.String("srcPath", rec.SrcPath),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Close closes every sink and reports all failures.
func (e *Emitter) Close() error {
	var errs []error
	if err := e.primary.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, sink := range e.secondary {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of the counters.
func (e *Emitter) Stats() Stats {
	return Stats{
		Created:      atomic.LoadInt64(&e.stats.Created),
		Modified:     atomic.LoadInt64(&e.stats.Modified),
		Deleted:      atomic.LoadInt64(&e.stats.Deleted),
		Moved:        atomic.LoadInt64(&e.stats.Moved),
		SinkFailures: atomic.LoadInt64(&e.stats.SinkFailures),
	}
}

func (e *Emitter) count(t watch.EventType) {
	switch t {
	case watch.EventCreated:
		atomic.AddInt64(&e.stats.Created, 1)
	case watch.EventModified:
		atomic.AddInt64(&e.stats.Modified, 1)
	case watch.EventDeleted:
		atomic.AddInt64(&e.stats.Deleted, 1)
	case watch.EventMoved:
		atomic.AddInt64(&e.stats.Moved, 1)
	}
}
