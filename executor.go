package heartlink

import (
	"context"

	"github.com/heartlink/heartlink-client/internal/shardqueue"
)

// executor abstracts the internal async job runner used by message sends.
type executor interface {
	Submit(context.Context, string, shardqueue.Job) error
	Stop()
}
