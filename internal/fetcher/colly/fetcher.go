// Package collyfetcher implements a static page driver using gocolly, for
// sources that render without scripting.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Driver implements fetcher.Driver with plain HTTP GETs.
type Driver struct {
	cfg Config

	mu            sync.Mutex
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Driver with its own cookie jar.
func New(cfg Config) *Driver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(cfg.Timeout)
	d := &Driver{cfg: cfg, baseCollector: c}
	d.resetJar()
	return d
}

// Load executes a single GET and returns the body.
func (d *Driver) Load(ctx context.Context, url string) (string, error) {
	var (
		body     string
		fetchErr error
	)
	d.mu.Lock()
	collector := d.baseCollector.Clone()
	d.mu.Unlock()
	configureHooks(collector, &body, &fetchErr)

	if err := runCollector(ctx, collector, url, &fetchErr); err != nil {
		return "", err
	}
	return body, nil
}

// Reset swaps in an empty cookie jar.
func (d *Driver) Reset(context.Context) error {
	d.resetJar()
	return nil
}

// Close is a no-op; idle connections are reclaimed by the transport.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) resetJar() {
	jar, _ := cookiejar.New(nil) // never fails with nil options
	d.mu.Lock()
	d.baseCollector.SetCookieJar(jar)
	d.mu.Unlock()
}

func configureHooks(hooks collectorHooks, body *string, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*body = string(r.Body)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= http.StatusInternalServerError {
			*fetchErr = fmt.Errorf("%w: status %d: %w", crawler.ErrConnection, r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
