package async

import (
	"context"
	"errors"
	"fmt"
)

// Future holds the result of a function running in its own goroutine.
type Future[U any] struct {
	result U
	err    error
	done   chan struct{}
}

// Await blocks until the function returns.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// Async runs fn(ctx, param) in a new goroutine. A canceled ctx short-circuits
// the call and a panic in fn is returned as ErrPanic.
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				var zero U
				f.result, f.err = zero, fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()

		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}

		f.result, f.err = fn(ctx, param)
	}()

	return f
}

// WaitAll awaits every future. Results keep the order of futures; failed
// entries hold the zero value. Errors are joined.
func WaitAll[U any](futures ...*Future[U]) ([]U, error) {
	results := make([]U, len(futures))
	var errs []error

	for i, future := range futures {
		result, err := future.Await()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results[i] = result
	}

	return results, errors.Join(errs...)
}
