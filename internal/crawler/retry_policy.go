package crawler

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// RetryPolicy controls how a session retries a failed navigation.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable reports whether err is worth another attempt. Nil means IsTransient.
	Retryable func(error) bool
}

// DefaultRetryPolicy returns three attempts with 2s doubling backoff capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
		Retryable:   IsTransient,
	}
}

// ShouldRetry decides whether another attempt follows the given 1-based attempt.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts() {
		return false
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	return retryable(err)
}

// Backoff returns the wait after the given 1-based failed attempt:
// BaseDelay doubled per attempt, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// IsTransient matches timeouts and connection failures. Caller cancellation
// is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnection) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Chrome reports network failures as net::ERR_* page load errors.
	return strings.Contains(err.Error(), "net::ERR_")
}
