// Package retry wraps a single network call with bounded retries and
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"syscall"
	"time"

	"github.com/verilabel-ai/verilabel/internal/domain"
	"github.com/verilabel-ai/verilabel/internal/observability"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 2 * time.Second
	maxDelay           = 30 * time.Second
)

// Class labels a failure for logging and diagnostics. Every class is
// retryable; recognition calls are read-only and idempotent.
type Class string

const (
	ClassTimeout    Class = "timeout"
	ClassConnection Class = "connection"
	ClassMalformed  Class = "malformed"
	ClassStatus     Class = "status"
	ClassUnknown    Class = "unknown"
)

// StatusError reports a non-success HTTP status from a provider call.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// ErrMalformedResponse marks an empty or undecodable provider response.
var ErrMalformedResponse = errors.New("malformed provider response")

// Classify buckets a call failure into one of the retryable classes.
func Classify(err error) Class {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return ClassStatus
	}

	if errors.Is(err, ErrMalformedResponse) {
		return ClassMalformed
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EHOSTUNREACH) {
		return ClassConnection
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassConnection
	}

	return ClassUnknown
}

// Executor runs an operation with bounded attempts and doubling backoff.
// The delay sequence is BaseDelay, 2*BaseDelay, 4*BaseDelay, ... capped at
// 30s; the sleep blocks the calling goroutine between attempts.
type Executor struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	logger *observability.Logger

	// wait is swapped out in tests to observe the delay sequence.
	wait func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an Executor. Non-positive arguments fall back to the
// defaults (3 attempts, 2s base delay).
func NewExecutor(maxAttempts int, baseDelay time.Duration, logger *observability.Logger) *Executor {
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	return &Executor{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		logger:      logger,
		wait:        waitTimer,
	}
}

// Do runs op up to MaxAttempts times. The last cause is preserved inside the
// returned ExhaustedRetries error so the facade can report it on failover.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= e.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		text, err := op(ctx)
		if err == nil {
			return text, nil
		}
		lastErr = err

		e.logger.Warn().
			Int("attempt", attempt).
			Int("max_attempts", e.MaxAttempts).
			Str("class", string(Classify(err))).
			Err(err).
			Msg("Recognition attempt failed")

		// No wait after the final attempt.
		if attempt == e.MaxAttempts {
			break
		}

		if werr := e.wait(ctx, e.backoff(attempt)); werr != nil {
			return "", werr
		}
	}

	return "", domain.ExhaustedRetriesError(e.MaxAttempts, lastErr)
}

// backoff returns the delay to wait after the given 1-based failed attempt.
func (e *Executor) backoff(attempt int) time.Duration {
	d := float64(e.BaseDelay) * math.Pow(2, float64(attempt-1))
	if d > float64(e.MaxDelay) {
		d = float64(e.MaxDelay)
	}
	return time.Duration(d)
}

// waitTimer blocks the calling goroutine for d, honouring ctx cancellation.
func waitTimer(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
