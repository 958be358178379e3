// Package fetcher provides browser-like fetch sessions with politeness pacing
// and bounded retry on top of a pluggable page driver.
package fetcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/metrics"
	"github.com/JakeFAU/sportsnavi-harvester/internal/policy/ratelimit"
)

// Driver loads a single page and returns its rendered markup.
type Driver interface {
	Load(ctx context.Context, url string) (string, error)
	// Reset clears client-side state (cookies, storage) between retries.
	Reset(ctx context.Context) error
	Close() error
}

// Pacer blocks before each navigation.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// Session implements crawler.Session over a Driver.
type Session struct {
	driver Driver
	policy crawler.RetryPolicy
	pacer  Pacer
	sleep  func(context.Context, time.Duration) error
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// NewSession wraps driver. A nil pacer disables politeness delays.
func NewSession(driver Driver, policy crawler.RetryPolicy, pacer Pacer, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		driver: driver,
		policy: policy,
		pacer:  pacer,
		sleep:  ratelimit.Sleep,
		logger: logger,
	}
}

// Fetch loads url, retrying transient failures with exponential backoff.
// Exhausted or non-retryable failures come back as *crawler.FetchError.
func (s *Session) Fetch(ctx context.Context, url string) (string, error) {
	if s.closed.Load() {
		return "", crawler.ErrSessionClosed
	}
	for attempt := 1; ; attempt++ {
		if s.pacer != nil {
			if err := s.pacer.Wait(ctx, url); err != nil {
				return "", &crawler.FetchError{URL: url, Attempts: attempt - 1, Err: err}
			}
		}

		html, err := s.driver.Load(ctx, url)
		if err == nil {
			metrics.ObserveFetchAttempt(url, "ok")
			return html, nil
		}

		if ctx.Err() != nil || !s.policy.ShouldRetry(err, attempt) {
			metrics.ObserveFetchAttempt(url, "failed")
			return "", &crawler.FetchError{URL: url, Attempts: attempt, Err: err}
		}
		metrics.ObserveFetchAttempt(url, "retry")

		backoff := s.policy.Backoff(attempt)
		s.logger.Warn("fetch attempt failed, retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if rerr := s.driver.Reset(ctx); rerr != nil {
			s.logger.Debug("session reset failed", zap.String("url", url), zap.Error(rerr))
		}
		if serr := s.sleep(ctx, backoff); serr != nil {
			return "", &crawler.FetchError{URL: url, Attempts: attempt, Err: serr}
		}
	}
}

// Close releases the driver. Subsequent calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.driver != nil {
			s.closeErr = s.driver.Close()
		}
	})
	return s.closeErr
}
