package mailstore

import (
	"context"

	"github.com/rbaliyan/mailstore/store"
)

// Future is the pending result of an asynchronous engine call.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func goFuture[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn()
	}()
	return f
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the result is available or ctx is done. Abandoning a
// future does not cancel the underlying call; cancel the context passed to
// the async method for that.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// SaveAsync runs Save in the background.
func (e *Engine) SaveAsync(ctx context.Context, in MessageInput) *Future[*store.MessageRecord] {
	return goFuture(func() (*store.MessageRecord, error) {
		return e.Save(ctx, in)
	})
}

// RetrieveAsync runs Retrieve in the background.
func (e *Engine) RetrieveAsync(ctx context.Context, locators []store.MessageLocator, fetch FetchType) *Future[[]Result] {
	return goFuture(func() ([]Result, error) {
		return e.Retrieve(ctx, locators, fetch)
	})
}
