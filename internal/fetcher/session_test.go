package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/source"
)

type fakeDriver struct {
	mu      sync.Mutex
	results []error
	html    string
	loads   int
	resets  int
	closes  int
}

func (d *fakeDriver) Load(_ context.Context, _ string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loads++
	if len(d.results) > 0 {
		err := d.results[0]
		d.results = d.results[1:]
		if err != nil {
			return "", err
		}
	}
	return d.html, nil
}

func (d *fakeDriver) Reset(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
	return nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

type countingPacer struct{ calls int }

func (p *countingPacer) Wait(context.Context, string) error {
	p.calls++
	return nil
}

func newTestSession(driver Driver, pacer Pacer) (*Session, *[]time.Duration) {
	s := NewSession(driver, crawler.DefaultRetryPolicy(), pacer, zap.NewNop())
	var slept []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func TestSessionFetchSuccess(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{html: "<html></html>"}
	pacer := &countingPacer{}
	s, slept := newTestSession(driver, pacer)

	html, err := s.Fetch(context.Background(), "https://baseball.yahoo.co.jp/npb/")
	require.NoError(t, err)
	require.Equal(t, "<html></html>", html)
	require.Equal(t, 1, driver.loads)
	require.Equal(t, 1, pacer.calls)
	require.Empty(t, *slept)
}

func TestSessionFetchRetriesTransient(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{html: "ok", results: []error{crawler.ErrTimeout, crawler.ErrConnection, nil}}
	pacer := &countingPacer{}
	s, slept := newTestSession(driver, pacer)

	html, err := s.Fetch(context.Background(), "https://baseball.yahoo.co.jp/npb/")
	require.NoError(t, err)
	require.Equal(t, "ok", html)
	require.Equal(t, 3, driver.loads)
	require.Equal(t, 2, driver.resets, "state is cleared before each retry")
	require.Equal(t, 3, pacer.calls)
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestSessionFetchExhaustsAttempts(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{results: []error{crawler.ErrTimeout, crawler.ErrTimeout, crawler.ErrTimeout, nil}}
	s, _ := newTestSession(driver, nil)

	_, err := s.Fetch(context.Background(), "https://example.com/a")
	var fetchErr *crawler.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, 3, fetchErr.Attempts)
	require.Equal(t, "https://example.com/a", fetchErr.URL)
	require.ErrorIs(t, err, crawler.ErrTimeout)
	require.Equal(t, 3, driver.loads)
}

func TestSessionFetchNonRetryable(t *testing.T) {
	t.Parallel()

	boom := errors.New("javascript exception")
	driver := &fakeDriver{results: []error{boom}}
	s, slept := newTestSession(driver, nil)

	_, err := s.Fetch(context.Background(), "https://example.com/a")
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, driver.loads)
	require.Zero(t, driver.resets)
	require.Empty(t, *slept)
}

func TestSessionFetchStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	driver := &fakeDriver{results: []error{crawler.ErrTimeout, nil}}
	s, _ := newTestSession(driver, nil)
	s.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := s.Fetch(ctx, "https://example.com/a")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, driver.loads)
}

func TestSessionCloseIdempotent(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{}
	s, _ := newTestSession(driver, nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.Equal(t, 1, driver.closes)

	_, err := s.Fetch(context.Background(), "https://example.com")
	require.ErrorIs(t, err, crawler.ErrSessionClosed)
}

func TestFactoryRoutesDrivers(t *testing.T) {
	t.Parallel()

	var opened []string
	browser := func(_ context.Context, def source.Definition) (Driver, error) {
		opened = append(opened, "browser:"+def.ID)
		return &fakeDriver{}, nil
	}
	static := func(_ context.Context, def source.Definition) (Driver, error) {
		opened = append(opened, "static:"+def.ID)
		return &fakeDriver{}, nil
	}
	f := NewFactory(Route(browser, static), crawler.DefaultRetryPolicy(), nil, zap.NewNop())

	_, err := f.Open(context.Background(), source.Definition{ID: "npb", RequiresScripting: true})
	require.NoError(t, err)
	_, err = f.Open(context.Background(), source.Definition{ID: "plain"})
	require.NoError(t, err)
	require.Equal(t, []string{"browser:npb", "static:plain"}, opened)

	onlyBrowser := NewFactory(Route(browser, nil), crawler.DefaultRetryPolicy(), nil, zap.NewNop())
	_, err = onlyBrowser.Open(context.Background(), source.Definition{ID: "plain"})
	require.NoError(t, err)
	require.Equal(t, "browser:plain", opened[2])
}

func TestFactoryOpenFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("chrome not found")
	f := NewFactory(func(context.Context, source.Definition) (Driver, error) { return nil, boom },
		crawler.DefaultRetryPolicy(), nil, zap.NewNop())
	_, err := f.Open(context.Background(), source.Definition{ID: "npb"})
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "npb")
}
