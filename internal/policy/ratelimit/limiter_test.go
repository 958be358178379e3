package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWait(t *testing.T) {
	t.Parallel()

	// 10 rps with burst 1 means one token every 100ms.
	l := New(Config{HostQPS: 10, HostBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://baseball.yahoo.co.jp/npb/"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://baseball.yahoo.co.jp/mlb/"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond, "second call on the same host should wait")

	start = time.Now()
	require.NoError(t, l.Wait(ctx, "https://sports.yahoo.co.jp/golf/"))
	require.Less(t, time.Since(start), 50*time.Millisecond, "a new host has its own bucket")
	require.Equal(t, 2, l.Hosts())
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://soccer.yahoo.co.jp/ws/"))
	}
}

func TestLimiterContextCanceled(t *testing.T) {
	t.Parallel()

	l := New(Config{HostQPS: 0.1, HostBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://example.com"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, l.Wait(ctx, "https://example.com"))
}

func TestPolitenessDelayRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		min    time.Duration
		max    time.Duration
		jitter int64
		want   time.Duration
	}{
		{name: "lower bound", min: time.Second, max: 3 * time.Second, jitter: 0, want: time.Second},
		{name: "upper bound", min: time.Second, max: 3 * time.Second, jitter: int64(2 * time.Second), want: 3 * time.Second},
		{name: "fixed", min: 2 * time.Second, max: 2 * time.Second, want: 2 * time.Second},
		{name: "inverted bounds clamp", min: 2 * time.Second, max: time.Second, want: 2 * time.Second},
		{name: "zero", want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewPoliteness(tt.min, tt.max, nil, WithJitter(func(n int64) int64 {
				require.Greater(t, n, tt.jitter)
				return tt.jitter
			}))
			require.Equal(t, tt.want, p.Delay())
		})
	}
}

func TestPolitenessWaitSleepsThenLimits(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	p := NewPoliteness(time.Second, 3*time.Second, New(Config{}),
		WithJitter(func(int64) int64 { return int64(500 * time.Millisecond) }),
		WithSleeper(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}))

	require.NoError(t, p.Wait(context.Background(), "https://baseball.yahoo.co.jp/npb/"))
	require.Equal(t, []time.Duration{1500 * time.Millisecond}, slept)
}

func TestPolitenessWaitPropagatesCancel(t *testing.T) {
	t.Parallel()

	boom := errors.New("canceled")
	p := NewPoliteness(time.Second, time.Second, nil,
		WithSleeper(func(context.Context, time.Duration) error { return boom }))
	require.ErrorIs(t, p.Wait(context.Background(), "https://example.com"), boom)
}

func TestSleep(t *testing.T) {
	t.Parallel()

	require.NoError(t, Sleep(context.Background(), 0))
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
