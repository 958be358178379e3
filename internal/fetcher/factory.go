package fetcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/logging"
	"github.com/JakeFAU/sportsnavi-harvester/internal/source"
)

// DriverOpener starts a driver suited to def.
type DriverOpener func(ctx context.Context, def source.Definition) (Driver, error)

// Factory implements crawler.SessionFactory.
type Factory struct {
	open   DriverOpener
	policy crawler.RetryPolicy
	pacer  Pacer
	logger *zap.Logger
}

// NewFactory builds a Factory. Every session shares pacer, so the host
// limiter inside it is the only cross-session state.
func NewFactory(open DriverOpener, policy crawler.RetryPolicy, pacer Pacer, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{open: open, policy: policy, pacer: pacer, logger: logger}
}

// Open starts a fresh driver for def and wraps it in a Session.
func (f *Factory) Open(ctx context.Context, def source.Definition) (crawler.Session, error) {
	driver, err := f.open(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("open session for %s: %w", def.ID, err)
	}
	return NewSession(driver, f.policy, f.pacer, logging.ForSource(f.logger, def.ID)), nil
}

// Route picks the static driver for sources that need no scripting when one
// is configured, and the browser driver otherwise.
func Route(browser, static DriverOpener) DriverOpener {
	return func(ctx context.Context, def source.Definition) (Driver, error) {
		if !def.RequiresScripting && static != nil {
			return static(ctx, def)
		}
		return browser(ctx, def)
	}
}
