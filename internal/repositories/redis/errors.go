package redis

import (
	"context"
	"errors"
	"fmt"
)

// Error implements repositories.RepositoryError for Redis failures. Anything other than a missing
// key means the cache could not be reached.
type Error struct {
	op       string
	err      error
	notFound bool
}

func (e *Error) Error() string       { return fmt.Sprintf("redis %s: %v", e.op, e.err) }
func (e *Error) Unwrap() error       { return e.err }
func (e *Error) IsNotFound() bool    { return e.notFound }
func (e *Error) IsConflict() bool    { return false }
func (e *Error) IsUnavailable() bool { return !e.notFound }

func wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{op: op, err: err}
}
