package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/logging"
	"github.com/JakeFAU/sportsnavi-harvester/internal/source"
)

// Escalate serves a source with the static driver until a page looks like an
// unrendered script shell, then switches that source's session to a browser
// for the rest of the crawl.
func Escalate(static, browser DriverOpener, promote func(html string) bool, logger *zap.Logger) DriverOpener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, def source.Definition) (Driver, error) {
		d, err := static(ctx, def)
		if err != nil {
			return nil, err
		}
		return &escalatingDriver{
			def:     def,
			static:  d,
			open:    browser,
			promote: promote,
			logger:  logging.ForSource(logger, def.ID),
		}, nil
	}
}

type escalatingDriver struct {
	def     source.Definition
	static  Driver
	open    DriverOpener
	promote func(string) bool
	logger  *zap.Logger

	mu      sync.Mutex
	browser Driver
}

func (d *escalatingDriver) current() Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.browser != nil {
		return d.browser
	}
	return d.static
}

func (d *escalatingDriver) Load(ctx context.Context, url string) (string, error) {
	driver := d.current()
	html, err := driver.Load(ctx, url)
	if err != nil || driver != d.static || !d.promote(html) {
		return html, err
	}

	d.logger.Info("page needs rendering, switching to browser", zap.String("url", url))
	browser, err := d.open(ctx, d.def)
	if err != nil {
		return "", fmt.Errorf("promote to browser: %w", err)
	}
	d.mu.Lock()
	d.browser = browser
	d.mu.Unlock()
	return browser.Load(ctx, url)
}

func (d *escalatingDriver) Reset(ctx context.Context) error {
	return d.current().Reset(ctx)
}

func (d *escalatingDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	if d.browser != nil {
		errs = append(errs, d.browser.Close())
	}
	errs = append(errs, d.static.Close())
	return errors.Join(errs...)
}
