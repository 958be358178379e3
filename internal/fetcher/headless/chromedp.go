// Package headless drives a headless Chrome instance through chromedp.
package headless

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
)

const (
	defaultPageLoadTimeout = 20 * time.Second
	defaultReadyTimeout    = 5 * time.Second

	readyStateExpr = `document.readyState === "complete"`
	resetStateExpr = `(() => {
  try { window.localStorage.clear(); } catch (e) {}
  try { window.sessionStorage.clear(); } catch (e) {}
  return true;
})()`
)

// Config controls browser startup and navigation.
type Config struct {
	PageLoadTimeout time.Duration
	ReadyTimeout    time.Duration
	UserAgent       string
	// RemoteURL points at an already running browser's DevTools endpoint.
	RemoteURL string
	ExecPath  string
}

// Driver owns one browser tab for the lifetime of a crawl.
type Driver struct {
	cfg        Config
	scripting  bool
	browserCtx context.Context
	cancel     context.CancelFunc
	meta       *responseMeta
	logger     *zap.Logger
	closeOnce  sync.Once
}

// Open starts (or attaches to) a browser and prepares a tab. Script
// execution is disabled when scripting is false.
func Open(ctx context.Context, cfg Config, scripting bool, logger *zap.Logger) (*Driver, error) {
	cfg = withDefaults(cfg)
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocatorOptions(cfg)...)
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	d := &Driver{
		cfg:        cfg,
		scripting:  scripting,
		browserCtx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
		meta:   newResponseMeta(),
		logger: logger,
	}
	chromedp.ListenTarget(browserCtx, d.meta.captureEvent)

	if err := chromedp.Run(browserCtx, d.setupAction()); err != nil {
		d.cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return d, nil
}

func withDefaults(cfg Config) Config {
	if cfg.PageLoadTimeout <= 0 {
		cfg.PageLoadTimeout = defaultPageLoadTimeout
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	return cfg
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.WindowSize(1920, 1080),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

func (d *Driver) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if d.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(d.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if !d.scripting {
			if err := emulation.SetScriptExecutionDisabled(true).Do(ctx); err != nil {
				return fmt.Errorf("disable scripts: %w", err)
			}
		}
		return nil
	})
}

// Load navigates to url and returns the document's outer HTML once it is
// ready or the ready wait expires.
func (d *Driver) Load(ctx context.Context, url string) (string, error) {
	loadCtx, cancel := context.WithTimeout(d.browserCtx, d.cfg.PageLoadTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	d.meta.reset()
	if err := chromedp.Run(loadCtx, chromedp.Navigate(url)); err != nil {
		return "", classifyError(ctx, err)
	}
	d.waitReady(loadCtx, url)

	var html string
	if err := chromedp.Run(loadCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", classifyError(ctx, err)
	}
	if status := d.meta.status(); status >= 500 {
		return "", fmt.Errorf("%w: %s returned status %d", crawler.ErrConnection, url, status)
	}
	return html, nil
}

// waitReady polls document.readyState. Expiry is logged, not fatal.
func (d *Driver) waitReady(ctx context.Context, url string) {
	var action chromedp.Action
	if d.scripting {
		var ready bool
		action = chromedp.Poll(readyStateExpr, &ready, chromedp.WithPollingTimeout(d.cfg.ReadyTimeout))
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, d.cfg.ReadyTimeout)
		defer cancel()
		ctx = waitCtx
		action = chromedp.WaitReady("body", chromedp.ByQuery)
	}
	if err := chromedp.Run(ctx, action); err != nil {
		d.logger.Debug("page not ready before timeout", zap.String("url", url), zap.Error(err))
	}
}

// Reset clears cookies and web storage.
func (d *Driver) Reset(ctx context.Context) error {
	resetCtx, cancel := context.WithTimeout(d.browserCtx, d.cfg.ReadyTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	actions := []chromedp.Action{network.ClearBrowserCookies()}
	if d.scripting {
		var cleared bool
		actions = append(actions, chromedp.Evaluate(resetStateExpr, &cleared))
	}
	if err := chromedp.Run(resetCtx, actions...); err != nil {
		return fmt.Errorf("reset browser state: %w", err)
	}
	return nil
}

// Close shuts down the tab and, for locally launched browsers, the process.
func (d *Driver) Close() error {
	if d == nil {
		return nil
	}
	d.closeOnce.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
	})
	return nil
}

// classifyError maps chromedp failures onto the crawler error kinds the
// retry policy understands.
func classifyError(caller context.Context, err error) error {
	switch {
	case caller.Err() != nil:
		return fmt.Errorf("navigation aborted: %w", caller.Err())
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", crawler.ErrTimeout, err)
	case strings.Contains(err.Error(), "net::ERR_TIMED_OUT"):
		return fmt.Errorf("%w: %w", crawler.ErrTimeout, err)
	case strings.Contains(err.Error(), "net::ERR_"):
		return fmt.Errorf("%w: %w", crawler.ErrConnection, err)
	default:
		return fmt.Errorf("chromedp run: %w", err)
	}
}

// responseMeta records the status of the last document response.
type responseMeta struct {
	mu   sync.RWMutex
	code int
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	m.code = int(event.Response.Status)
	m.mu.Unlock()
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) reset() {
	m.mu.Lock()
	m.code = 0
	m.mu.Unlock()
}

func (m *responseMeta) status() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.code
}
