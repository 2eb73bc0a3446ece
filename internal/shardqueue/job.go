package shardqueue

import "context"

// Job is one unit of queued work, typically a single message insert. Run may
// be invoked again on retry, so implementations must tolerate repeat calls on
// the same instance.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a bare function to the Job interface.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }
