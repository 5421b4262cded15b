// Package retry wraps one adapter call with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted marks a transient failure that survived every attempt.
var ErrExhausted = errors.New("retries exhausted")

// Policy controls how often and how patiently a call is repeated.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultPolicy mirrors three attempts with 2s..10s exponential waits.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
		Multiplier:  2,
	}
}

// Budget is the longest total backoff the policy can sleep for.
func (p Policy) Budget() time.Duration {
	p = p.normalized()
	var total time.Duration
	delay := p.BaseDelay
	for i := 1; i < p.MaxAttempts; i++ {
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		total += delay
		delay = time.Duration(float64(delay) * p.Multiplier)
	}
	return total
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay <= 0 || p.MaxDelay < p.BaseDelay {
		p.MaxDelay = max(p.BaseDelay, def.MaxDelay)
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	return p
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Notify is called before each backoff sleep with the attempt that failed.
type Notify func(attempt int, err error, next time.Duration)

// Do runs op until it succeeds, fails permanently, exhausts the policy or ctx
// is done. It returns the number of attempts made.
func Do(ctx context.Context, p Policy, op func(context.Context) error, notify Notify) (int, error) {
	p = p.normalized()
	attempts := 0

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || Classify(err) == ClassPermanent {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(p.MaxAttempts-1)), ctx)
	err := backoff.RetryNotify(operation, b, func(err error, next time.Duration) {
		if notify != nil {
			notify(attempts, err, next)
		}
	})
	if err == nil {
		return attempts, nil
	}
	if ctx.Err() == nil && Classify(err) == ClassTransient && attempts >= p.MaxAttempts {
		return attempts, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
	}
	return attempts, err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), notify Notify) (T, int, error) {
	var out T
	attempts, err := Do(ctx, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, notify)
	return out, attempts, err
}

// StatusError reports an unexpected HTTP status from a source.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// FromStatus classifies an HTTP status: 429 and 5xx are transient, any other
// 4xx is permanent.
func FromStatus(code int, url string) error {
	err := &StatusError{StatusCode: code, URL: url}
	switch {
	case code == http.StatusTooManyRequests || code >= 500:
		return Transient(err)
	case code >= 400:
		return Permanent(err)
	}
	return Transient(err)
}
