// Package job adapts plain closures to the send queue's Job contract, so
// callers enqueueing a message insert or a flush barrier don't need a named
// type per operation.
package job

import (
	"context"
	"errors"
	"fmt"
)

// ErrNilJobFunc is returned when a nil closure is executed.
var ErrNilJobFunc = errors.New("nil JobFunc")

type jobFunc func(context.Context) error

// Run executes the closure, guarding against a nil function value.
func (f jobFunc) Run(ctx context.Context) error {
	if f == nil {
		return fmt.Errorf("jobfunc: %w", ErrNilJobFunc)
	}
	return f(ctx)
}

// New wraps fn as a queue job.
func New(fn func(context.Context) error) jobFunc {
	return jobFunc(fn)
}
