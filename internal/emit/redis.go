package emit

import (
	"context"
	"fmt"

	"github.com/TFMV/fsjson/internal/watch"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisStream is the stream key used when none is configured.
const DefaultRedisStream = "fsjson:events"

// streamAdder is the part of the Redis client the sink needs.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStream publishes records to a Redis stream with XADD.
type RedisStream struct {
	client streamAdder
	close  func() error
	stream string
	maxLen int64
}

// NewRedisStream connects to the server at url (redis://...) and checks it
// answers PING. maxLen above zero trims the stream to roughly that many entries.
func NewRedisStream(ctx context.Context, url, stream string, maxLen int64) (*RedisStream, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cannot connect to Redis at %s: %w", opts.Addr, err)
	}

	return newRedisStream(client, client.Close, stream, maxLen), nil
}

func newRedisStream(client streamAdder, closeFn func() error, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = DefaultRedisStream
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return &RedisStream{client: client, close: closeFn, stream: stream, maxLen: maxLen}
}

// Stream returns the stream key records are added to.
func (r *RedisStream) Stream() string {
	return r.stream
}

// Write adds rec as one stream entry.
func (r *RedisStream) Write(ctx context.Context, rec watch.Record) error {
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"eventType": string(rec.EventType),
			"srcPath":   rec.SrcPath,
			"destPath":  rec.DestPath,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", r.stream, err)
	}
	return nil
}

// Close closes the client connection.
func (r *RedisStream) Close() error {
	return r.close()
}
