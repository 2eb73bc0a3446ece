package shardqueue

import "time"

// Config tunes the executor. Zero values fall back to defaults in
// NewShardExecutor.
type Config struct {
	// Shards is the number of worker goroutines / queues.
	Shards int
	// QueueSize is the buffered capacity of each shard queue.
	QueueSize int
	// EnqueueTimeout bounds how long Submit waits for queue space before
	// reporting back-pressure.
	EnqueueTimeout time.Duration
	// MaxAttempts caps retries of a failing job, first run included.
	MaxAttempts int
	// BaseBackoff is the initial retry interval.
	BaseBackoff time.Duration
	// MaxInterval caps the exponential backoff interval.
	MaxInterval time.Duration
	// ErrorHandler, when set, receives errors from jobs that exhausted their
	// retries or failed irrecoverably. It runs on worker goroutines.
	ErrorHandler func(error)
}
