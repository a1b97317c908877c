// Package future provides a typed, write-once result of an asynchronous
// operation. A Future is resolved exactly once, either with a value or with
// an error, and may be awaited by any number of goroutines.
package future

import (
	"context"
	"fmt"
	"sync"

	"github.com/metastage/metastage/kit/platform/errors"
)

// Future holds the eventual result of an operation.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// New returns an unresolved future and the function that resolves it.
// Only the first call to resolve has an effect.
func New[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.resolve
}

// Go runs fn on a new goroutine and resolves the returned future with its
// result. A panic in fn fails the future with an internal error instead of
// crashing the process.
func Go[T any](fn func() (T, error)) *Future[T] {
	f, resolve := New[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				resolve(zero, &errors.Error{
					Code: errors.EInternal,
					Msg:  fmt.Sprintf("panic: %v", r),
				})
			}
		}()
		resolve(fn())
	}()
	return f
}

// Completed returns a future already resolved with v.
func Completed[T any](v T) *Future[T] {
	f, resolve := New[T]()
	resolve(v, nil)
	return f
}

// Failed returns a future already resolved with err.
func Failed[T any](err error) *Future[T] {
	f, resolve := New[T]()
	var zero T
	resolve(zero, err)
	return f
}

func (f *Future[T]) resolve(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future is resolved or ctx is done, whichever
// happens first. Cancelling ctx does not cancel the underlying operation.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the resolved value and error. ok is false while the future
// is still pending.
func (f *Future[T]) Result() (v T, err error, ok bool) {
	select {
	case <-f.done:
		return f.val, f.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Then chains fn onto f. fn only runs when f succeeds; an error from f is
// passed through unchanged.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	return Go(func() (U, error) {
		<-f.done
		if f.err != nil {
			var zero U
			return zero, f.err
		}
		return fn(f.val)
	})
}

// Compose chains an asynchronous step onto f and resolves with that step's result.
func Compose[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	return Go(func() (U, error) {
		<-f.done
		if f.err != nil {
			var zero U
			return zero, f.err
		}
		next := fn(f.val)
		<-next.done
		return next.val, next.err
	})
}

// All resolves with every value in input order once all futures succeed, or
// with the first error encountered in input order.
func All[T any](fs ...*Future[T]) *Future[[]T] {
	return Go(func() ([]T, error) {
		out := make([]T, 0, len(fs))
		for _, f := range fs {
			<-f.done
			if f.err != nil {
				return nil, f.err
			}
			out = append(out, f.val)
		}
		return out, nil
	})
}
