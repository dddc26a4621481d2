// Package retry runs idempotent storage calls again after transient
// failures, waiting an exponentially growing, jittered delay between
// attempts.
//
// Engine.Save is idempotent, so a caller may wrap it directly:
//
//	rec, err := retry.DoValue(ctx, func(ctx context.Context) (*store.MessageRecord, error) {
//	    return eng.Save(ctx, in)
//	}, retry.WithMaxAttempts(5), retry.WithLogger(logger))
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rbaliyan/mailstore/store"
)

// Default policy values.
const (
	DefaultMaxAttempts    = 4
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMaxBackoff     = 10 * time.Second
	DefaultMultiplier     = 2.0
	DefaultJitter         = 0.1
)

// Sentinel errors carried by *Error.
var (
	// ErrPermanent is reported when the classifier rejected the failure.
	ErrPermanent = errors.New("retry: permanent failure")

	// ErrExhausted is reported when every attempt failed.
	ErrExhausted = errors.New("retry: attempts exhausted")

	// ErrInterrupted is reported when ctx ended between attempts.
	ErrInterrupted = errors.New("retry: interrupted")
)

type options struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
	jitter         float64
	classify       func(error) bool
	logger         *slog.Logger
	sleep          func(context.Context, time.Duration) error
}

// Option configures a retry loop.
type Option func(*options)

func newOptions(opts ...Option) *options {
	o := &options{
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		multiplier:     DefaultMultiplier,
		jitter:         DefaultJitter,
		classify:       Transient,
		sleep:          sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithMaxAttempts sets the total number of calls, first call included.
// Values below 1 are treated as 1.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		o.maxAttempts = max(n, 1)
	}
}

// WithBackoff sets the first delay and the cap on any delay.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(o *options) {
		if initial > 0 {
			o.initialBackoff = initial
		}
		if maxDelay > 0 {
			o.maxBackoff = maxDelay
		}
	}
}

// WithMultiplier sets the growth factor between delays. Values below 1
// are ignored.
func WithMultiplier(m float64) Option {
	return func(o *options) {
		if m >= 1 {
			o.multiplier = m
		}
	}
}

// WithJitter sets the random spread applied to each delay, as a fraction
// in [0, 1].
func WithJitter(j float64) Option {
	return func(o *options) {
		o.jitter = math.Min(math.Max(j, 0), 1)
	}
}

// WithClassifier replaces Transient as the test for whether a failure is
// worth another attempt.
func WithClassifier(fn func(error) bool) Option {
	return func(o *options) {
		if fn != nil {
			o.classify = fn
		}
	}
}

// WithLogger logs every failed attempt that will be retried.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Error describes a call that did not succeed within the policy.
type Error struct {
	// Last is the error of the final attempt.
	Last error

	// Attempts is the number of calls made.
	Attempts int

	// Reason is ErrPermanent, ErrExhausted or ErrInterrupted.
	Reason error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v after %d attempt(s): %v", e.Reason, e.Attempts, e.Last)
}

func (e *Error) Unwrap() []error {
	return []error{e.Reason, e.Last}
}

// Do calls fn until it succeeds, fails permanently, the attempts run out
// or ctx ends. Failures are reported as *Error.
func Do(ctx context.Context, fn func(context.Context) error, opts ...Option) error {
	o := newOptions(opts...)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if attempt == 1 {
				return err
			}
			return &Error{Last: err, Attempts: attempt - 1, Reason: ErrInterrupted}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !o.classify(err) {
			return &Error{Last: err, Attempts: attempt, Reason: ErrPermanent}
		}
		if attempt >= o.maxAttempts {
			return &Error{Last: err, Attempts: attempt, Reason: ErrExhausted}
		}

		delay := o.backoff(attempt)
		if o.logger != nil {
			o.logger.Warn("retrying after transient failure",
				"attempt", attempt,
				"max_attempts", o.maxAttempts,
				"delay", delay,
				"error", err,
			)
		}
		if o.sleep(ctx, delay) != nil {
			return &Error{Last: err, Attempts: attempt, Reason: ErrInterrupted}
		}
	}
}

// DoValue is Do for calls that return a value.
func DoValue[T any](ctx context.Context, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	var out T
	err := Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, opts...)
	return out, err
}

// backoff returns the delay after the given failed attempt (1-based).
func (o *options) backoff(attempt int) time.Duration {
	d := float64(o.initialBackoff) * math.Pow(o.multiplier, float64(attempt-1))
	d = math.Min(d, float64(o.maxBackoff))
	if o.jitter > 0 {
		spread := d * o.jitter
		d += (rand.Float64()*2 - 1) * spread
	}
	return time.Duration(d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Transient reports whether err may go away on a later attempt. Invalid
// arguments, absent data, consistency faults and connection lifecycle
// misuse never do; neither does a cancelled context. Errors marked with
// Permanent are permanent. Anything else is assumed to be a transient
// substrate failure.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var p *permanentError
	if errors.As(err, &p) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	for _, target := range []error{
		store.ErrInvalidArgument,
		store.ErrInvalidID,
		store.ErrNotFound,
		store.ErrConsistency,
		store.ErrAlreadyConnected,
	} {
		if errors.Is(err, target) {
			return false
		}
	}
	return true
}

// Permanent marks err so that Transient rejects it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
