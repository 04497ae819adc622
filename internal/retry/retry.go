// Package retry runs calls against external services with a per-attempt deadline that
// grows with the attempt index, retrying only when an attempt timed out.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"crazeai/internal/config"
	"crazeai/internal/domain"
)

const (
	defaultMaxAttempts = 3
	defaultBaseTimeout = 20 * time.Second
	defaultRetryDelay  = 1500 * time.Millisecond
)

// ErrSuperseded is the cancellation cause used when a newer request replaces an in-flight one.
var ErrSuperseded = errors.New("superseded by a newer request")

type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
)

// Policy describes one operation class (chat, speech).
type Policy struct {
	MaxAttempts       int
	BaseTimeout       time.Duration
	MobileBaseTimeout time.Duration
	TimeoutIncrement  time.Duration
	RetryDelay        time.Duration
	Device            DeviceClass
}

// Attempt is handed to the operation so it can report or forward its index.
type Attempt struct {
	Index   int
	Timeout time.Duration
}

// FromConfig builds a policy from YAML config for the given device class.
func FromConfig(rc config.RetryConfig, device string) Policy {
	d := DeviceDesktop
	if strings.EqualFold(device, string(DeviceMobile)) {
		d = DeviceMobile
	}
	return Normalize(Policy{
		MaxAttempts:       rc.MaxAttempts,
		BaseTimeout:       rc.BaseTimeout,
		MobileBaseTimeout: rc.MobileBaseTimeout,
		TimeoutIncrement:  rc.TimeoutIncrement,
		RetryDelay:        rc.RetryDelay,
		Device:            d,
	})
}

// Normalize fills unset fields with defaults. Negative increments are clamped to zero.
func Normalize(p Policy) Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseTimeout <= 0 {
		p.BaseTimeout = defaultBaseTimeout
	}
	if p.TimeoutIncrement < 0 {
		p.TimeoutIncrement = 0
	}
	if p.RetryDelay < 0 {
		p.RetryDelay = 0
	} else if p.RetryDelay == 0 {
		p.RetryDelay = defaultRetryDelay
	}
	if p.Device == "" {
		p.Device = DeviceDesktop
	}
	return p
}

// TimeoutFor returns base + attempt*increment; never decreasing in attempt.
func (p Policy) TimeoutFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := p.BaseTimeout
	if p.Device == DeviceMobile && p.MobileBaseTimeout > 0 {
		base = p.MobileBaseTimeout
	}
	return base + time.Duration(attempt)*p.TimeoutIncrement
}

type settings struct {
	op      string
	observe func(Attempt, error)
}

type Option func(*settings)

// WithOp names the operation in the final TimeoutError.
func WithOp(name string) Option {
	return func(s *settings) { s.op = name }
}

// WithObserver is called after every attempt with its outcome.
func WithObserver(fn func(Attempt, error)) Option {
	return func(s *settings) { s.observe = fn }
}

// Do runs op until it succeeds, fails with a non-timeout error, or MaxAttempts attempts
// have timed out. Between timed-out attempts it waits RetryDelay. When ctx is canceled
// the context cause is returned (ErrSuperseded when a Slot replaced the request).
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, a Attempt) (T, error), opts ...Option) (T, error) {
	var zero T
	s := settings{op: "request"}
	for _, o := range opts {
		o(&s)
	}
	p = Normalize(p)

	var last error
	for i := 0; i < p.MaxAttempts; i++ {
		a := Attempt{Index: i, Timeout: p.TimeoutFor(i)}
		v, err, expired := runAttempt(ctx, a, op)
		if s.observe != nil {
			s.observe(a, err)
		}
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, context.Cause(ctx)
		}
		if !expired && !domain.IsTimeout(err) {
			return zero, err
		}
		last = &domain.TimeoutError{Op: s.op, Timeout: a.Timeout, Attempts: i + 1}
		if i == p.MaxAttempts-1 {
			break
		}
		if err := SleepContext(ctx, p.RetryDelay); err != nil {
			return zero, context.Cause(ctx)
		}
	}
	return zero, last
}

func runAttempt[T any](ctx context.Context, a Attempt, op func(ctx context.Context, a Attempt) (T, error)) (T, error, bool) {
	actx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()
	v, err := op(actx, a)
	return v, err, errors.Is(actx.Err(), context.DeadlineExceeded)
}

// SleepContext waits for delay unless the context is canceled first.
func SleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
