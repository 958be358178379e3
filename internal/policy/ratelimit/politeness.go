package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/JakeFAU/sportsnavi-harvester/internal/metrics"
)

// Politeness applies a uniform random delay before each fetch and then
// defers to the shared host limiter, if any.
type Politeness struct {
	min     time.Duration
	max     time.Duration
	limiter *Limiter
	jitter  func(n int64) int64
	sleep   func(context.Context, time.Duration) error
}

// Option customizes a Politeness.
type Option func(*Politeness)

// WithJitter replaces the random source. f must return a value in [0, n).
func WithJitter(f func(n int64) int64) Option {
	return func(p *Politeness) { p.jitter = f }
}

// WithSleeper replaces the pause implementation.
func WithSleeper(f func(context.Context, time.Duration) error) Option {
	return func(p *Politeness) { p.sleep = f }
}

// NewPoliteness builds a Politeness pausing between min and max. A nil
// limiter skips host rate limiting.
func NewPoliteness(minDelay, maxDelay time.Duration, limiter *Limiter, opts ...Option) *Politeness {
	if minDelay < 0 {
		minDelay = 0
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	p := &Politeness{
		min:     minDelay,
		max:     maxDelay,
		limiter: limiter,
		jitter:  rand.Int64N,
		sleep:   Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Delay picks the next pause in [min, max].
func (p *Politeness) Delay() time.Duration {
	span := int64(p.max - p.min)
	if span <= 0 {
		return p.min
	}
	return p.min + time.Duration(p.jitter(span+1))
}

// Wait pauses before a fetch of rawURL.
func (p *Politeness) Wait(ctx context.Context, rawURL string) error {
	if d := p.Delay(); d > 0 {
		if err := p.sleep(ctx, d); err != nil {
			return err
		}
		metrics.ObservePolitenessDelay(metrics.SanitizeHost(rawURL), d)
	}
	if p.limiter != nil {
		return p.limiter.Wait(ctx, rawURL)
	}
	return nil
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
