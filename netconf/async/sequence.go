// Package async implements the library's cancellable lazy sequence
// primitive (§9): a cold, pull-based stream of values. No work happens
// until a consumer starts pulling; the consumer then receives zero or
// more values followed by either completion or an error; a cancellation
// signal detaches the producer and is observed before the next emission.
//
// Grounded on the teacher's channel+goroutine correlation pattern
// (netconf/client/message.go's per-request response channel and
// subscription notification channel), generalized here into a single
// reusable primitive instead of being wired ad hoc into the session.
package async

import (
	"context"
	"sync"
)

// Producer is invoked exactly once, in its own goroutine, on the first
// call to Next. emit delivers a value and reports whether the consumer is
// still listening; once it returns false the producer should stop
// emitting and return promptly. stop is closed when the sequence is
// cancelled. A non-nil return value is surfaced to the consumer as the
// sequence's terminal error.
type Producer[T any] func(ctx context.Context, emit func(T) bool, stop <-chan struct{}) error

// Sequence is a cold, cancellable, pull-based stream of values of type T.
type Sequence[T any] struct {
	produce Producer[T]

	values chan T
	errCh  chan error
	cancel chan struct{}

	startOnce sync.Once
}

// New returns a Sequence that will run produce on the first call to Next.
// A nil produce yields a sequence that completes immediately with no
// values, useful as a base case.
func New[T any](produce Producer[T]) *Sequence[T] {
	return &Sequence[T]{
		produce: produce,
		values:  make(chan T),
		errCh:   make(chan error, 1),
		cancel:  make(chan struct{}),
	}
}

// Fail returns an already-failed Sequence, for synchronous validation
// errors raised before any I/O (§7 InvalidArgument surface).
func Fail[T any](err error) *Sequence[T] {
	s := New[T](nil)
	s.errCh <- err
	return s
}

func (s *Sequence[T]) start(ctx context.Context) {
	s.startOnce.Do(func() {
		if s.produce == nil {
			close(s.values)
			return
		}
		go func() {
			defer close(s.values)
			emit := func(v T) bool {
				select {
				case s.values <- v:
					return true
				case <-s.cancel:
					return false
				}
			}
			if err := s.produce(ctx, emit, s.cancel); err != nil {
				s.errCh <- err
			}
		}()
	})
}

// Next pulls the next value. ok is false once the sequence has completed,
// whether successfully, via cancellation, or via ctx expiring; err is
// non-nil if the producer failed or ctx expired. Next is not safe to call
// concurrently from multiple goroutines.
func (s *Sequence[T]) Next(ctx context.Context) (v T, ok bool, err error) {
	s.start(ctx)

	select {
	case val, open := <-s.values:
		if !open {
			return v, false, s.finalError()
		}
		return val, true, nil
	case <-s.cancel:
		return v, false, nil
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
}

func (s *Sequence[T]) finalError() error {
	select {
	case err := <-s.errCh:
		return err
	default:
		return nil
	}
}

// Cancel detaches the producer: any blocked emit returns false, the
// producer is expected to return promptly, and the sequence completes
// with no further values. Cancel is idempotent.
func (s *Sequence[T]) Cancel() {
	select {
	case <-s.cancel:
	default:
		close(s.cancel)
	}
}

// Collect drains the sequence to completion, returning every emitted
// value, or the first error encountered.
func (s *Sequence[T]) Collect(ctx context.Context) ([]T, error) {
	var out []T
	for {
		v, ok, err := s.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}
